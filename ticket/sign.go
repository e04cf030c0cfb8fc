package ticket

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pepcrypto"
	"github.com/pep-constellation/pep-core/peperr"
)

// schnorrDomain separates ticket signatures from the decryption-proof
// challenge hash in pepcrypto.HashToScalar's shared hash function.
const schnorrDomain = "pep-ticket-schnorr-v1"

// KeyPair is a party's Schnorr signing key over group.
type KeyPair struct {
	Secret *group.Scalar
	Public *group.Point
}

// GenerateKeyPair draws a fresh Schnorr keypair.
func GenerateKeyPair() KeyPair {
	secret := group.RandomScalar()
	return KeyPair{Secret: secret, Public: group.BaseMult(secret)}
}

// signature is a standard Fiat-Shamir Schnorr signature: R = r*G,
// s = r + challenge*secret.
type signature struct {
	R *group.Point
	S *group.Scalar
}

func (sig signature) encode() []byte {
	var buf bytes.Buffer
	buf.Write(sig.R.Pack())
	buf.Write(sig.S.Encode())
	return buf.Bytes()
}

func decodeSignature(b []byte) (signature, error) {
	if len(b) != 64 {
		return signature{}, peperr.New(peperr.KindInvalidEncoding, "ticket: malformed signature")
	}
	r, err := group.Unpack(b[:32])
	if err != nil {
		return signature{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed signature R")
	}
	s, err := group.DecodeScalar(b[32:])
	if err != nil {
		return signature{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ticket: malformed signature s")
	}
	return signature{R: r, S: s}, nil
}

func challenge(message []byte, r *group.Point, pub *group.Point) *group.Scalar {
	msgPoint := group.HashToPoint(message)
	return pepcrypto.HashToScalar(schnorrDomain, r, pub, msgPoint)
}

// sign produces a detached Schnorr signature over message under kp.
func sign(kp KeyPair, message []byte) []byte {
	k := group.RandomScalar()
	r := group.BaseMult(k)
	e := challenge(message, r, kp.Public)
	s := k.Add(e.Mul(kp.Secret))
	return signature{R: r, S: s}.encode()
}

// verify checks a detached Schnorr signature over message under pub.
func verify(pub *group.Point, message, sigBytes []byte) error {
	sig, err := decodeSignature(sigBytes)
	if err != nil {
		return err
	}
	e := challenge(message, sig.R, pub)
	lhs := group.BaseMult(sig.S)
	rhs := sig.R.Add(pub.Mult(e))
	if !lhs.Equal(rhs) {
		return peperr.New(peperr.KindSignatureInvalid, "ticket: signature verification failed")
	}
	return nil
}

// canonicalBytes serialises the parts of a ticket that a signing party
// commits to: every field other than the signatures, followed by the
// first uptoSignature signatures already on the chain, so each party's
// signature covers the prior parties' signatures too (a chain).
func canonicalBytes(t Ticket2, uptoSignature int) []byte {
	var buf bytes.Buffer
	buf.WriteString(t.Requester.User)
	buf.WriteByte(0)
	buf.WriteString(t.Requester.UserGroup)
	buf.WriteByte(0)
	for _, c := range t.Columns {
		buf.WriteString(c)
		buf.WriteByte(0)
	}
	for _, m := range t.Modes {
		buf.WriteString(string(m))
		buf.WriteByte(0)
	}
	for _, pe := range t.Pseudonyms {
		buf.Write(pe.Polymorphic.B.Pack())
		buf.Write(pe.Polymorphic.C.Pack())
		if pe.LocalAtAM != nil {
			buf.Write(pe.LocalAtAM.Pack())
		}
		if pe.LocalAtSF != nil {
			buf.Write(pe.LocalAtSF.Pack())
		}
		if pe.LocalAtAccessGroup != nil {
			buf.Write(pe.LocalAtAccessGroup.Pack())
		}
	}

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(t.IssuedAt.UnixNano()))
	buf.Write(tsBuf[:])
	binary.BigEndian.PutUint64(tsBuf[:], uint64(t.Validity))
	buf.Write(tsBuf[:])

	for i := 0; i < uptoSignature && i < len(t.Signatures); i++ {
		buf.Write(t.Signatures[i])
	}
	return buf.Bytes()
}

// Sign appends kp's signature over the ticket's canonical bytes plus the
// prior signatures already on the chain, so each signer attests to
// everyone upstream of it.
func Sign(t Ticket2, kp KeyPair) Ticket2 {
	msg := canonicalBytes(t, len(t.Signatures))
	sig := sign(kp, msg)
	out := t
	out.Signatures = append(append([][]byte{}, t.Signatures...), sig)
	return out
}

// Validate checks the ticket's full signature chain against the issuing
// parties' public keys, in order, plus its validity window.
func Validate(t Ticket2, now time.Time, chain []*group.Point) error {
	if now.Before(t.IssuedAt) {
		return peperr.New(peperr.KindTicketNotYetValid, "ticket: presented before issuance time")
	}
	if now.After(t.ExpiresAt()) {
		return peperr.New(peperr.KindTicketExpired, "ticket: presented after validity window")
	}
	if len(t.Signatures) != len(chain) {
		return peperr.New(peperr.KindSignatureInvalid, "ticket: signature count does not match issuing chain")
	}
	for i, pub := range chain {
		msg := canonicalBytes(t, i)
		if err := verify(pub, msg, t.Signatures[i]); err != nil {
			return err
		}
	}
	return nil
}
