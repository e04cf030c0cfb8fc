// Package pepcrypto holds the small KDF/hash helpers shared by elgamal,
// cell and ticket: hashing structured input, then stretching it with
// HKDF.
package pepcrypto

import (
	"crypto/sha512"
	"io"

	"github.com/pep-constellation/pep-core/group"
	"golang.org/x/crypto/hkdf"
)

// DeriveKey runs HKDF over secret with the given info, using a 512-bit
// hash for key splitting, producing size bytes of key material.
func DeriveKey(secret, salt, info []byte, size int) []byte {
	reader := hkdf.New(sha512.New, secret, salt, info)
	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		panic("pepcrypto: hkdf expansion failed")
	}
	return out
}

// HashToScalar hashes an ordered sequence of points into a group scalar,
// the Fiat-Shamir challenge construction used by both
// elgamal.DecryptionProof and ticket's Schnorr signatures.
func HashToScalar(domain string, points ...*group.Point) *group.Scalar {
	h := sha512.New()
	h.Write([]byte(domain))
	for _, p := range points {
		h.Write(p.Pack())
	}
	return group.ScalarFromUniformBytes(h.Sum(nil))
}

// HashToScalarBytes is HashToScalar's counterpart for plain byte strings
// rather than group elements, used by the Key Server to derive the
// participant- and column-specific blinding factors it mixes into a
// per-cell key before transcrypting it.
func HashToScalarBytes(domain string, parts ...[]byte) *group.Scalar {
	h := sha512.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	return group.ScalarFromUniformBytes(h.Sum(nil))
}
