package elgamal

import (
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pepcrypto"
	"github.com/pep-constellation/pep-core/peperr"
)

// DecryptionProof is a non-interactive Chaum-Pedersen proof that msg is the
// correct decryption of ciphertext c under the private key behind
// publicKey, without revealing that private key. Adapted from the
// vocdoni-davinci-node elgamal proof pattern in the example pack (see
// DESIGN.md), ported from math/big to this package's group types.
type DecryptionProof struct {
	A1, A2 *group.Point // commitments r*G, r*C1
	Z      *group.Scalar
}

// BuildDecryptionProof proves that msg is the correct decryption of c
// under privateKey (whose public key is publicKey).
func BuildDecryptionProof(privateKey *group.Scalar, publicKey *group.Point, c Ciphertext, msg *group.Point) DecryptionProof {
	r := group.RandomScalar()
	A1 := group.BaseMult(r)
	A2 := c.B.Mult(r)

	D := c.C.Sub(msg) // D = C - M, shares a discrete log with C1 wrt P

	e := pepcrypto.HashToScalar("pep/elgamal/decryption-proof", publicKey, c.B, D, A1, A2)

	z := e.Mul(privateKey).Add(r)
	return DecryptionProof{A1: A1, A2: A2, Z: z}
}

// VerifyDecryptionProof checks a DecryptionProof produced by
// BuildDecryptionProof, returning peperr.SignatureInvalid-kinded error on
// failure.
func VerifyDecryptionProof(publicKey *group.Point, c Ciphertext, msg *group.Point, proof DecryptionProof) error {
	D := c.C.Sub(msg)
	e := pepcrypto.HashToScalar("pep/elgamal/decryption-proof", publicKey, c.B, D, proof.A1, proof.A2)

	left1 := group.BaseMult(proof.Z)
	right1 := proof.A1.Add(publicKey.Mult(e))
	if !left1.Equal(right1) {
		return peperr.New(peperr.KindSignatureInvalid, "decryption proof: first equation failed")
	}

	left2 := c.B.Mult(proof.Z)
	right2 := proof.A2.Add(D.Mult(e))
	if !left2.Equal(right2) {
		return peperr.New(peperr.KindSignatureInvalid, "decryption proof: second equation failed")
	}
	return nil
}
