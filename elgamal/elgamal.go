// Package elgamal implements ElGamal encryption over the Ristretto group
// plus the Rewrite-Shuffle-Key (RSK) primitive used throughout PEP to
// transform a ciphertext without ever decrypting it.
package elgamal

import "github.com/pep-constellation/pep-core/group"

// Ciphertext is an ElGamal pair (B, C) = (b*G, M + b*Y) encrypting point M
// under public key Y = y*G.
type Ciphertext struct {
	B *group.Point
	C *group.Point
}

// Encrypt encrypts plaintext point m under public key y, drawing a fresh
// random blinding scalar b.
func Encrypt(m *group.Point, y *group.Point) Ciphertext {
	b := group.RandomScalar()
	return EncryptWithBlind(m, y, b)
}

// EncryptWithBlind encrypts m under y using caller-supplied blinding scalar
// b. Exposed so callers that need determinism (tests, proofs) can control
// b directly; production call sites should use Encrypt.
func EncryptWithBlind(m *group.Point, y *group.Point, b *group.Scalar) Ciphertext {
	return Ciphertext{
		B: group.BaseMult(b),
		C: m.Add(y.Mult(b)),
	}
}

// Decrypt recovers the plaintext point from ciphertext c using private key
// y (the scalar such that the public key is y*G).
func Decrypt(c Ciphertext, y *group.Scalar) *group.Point {
	return c.C.Sub(c.B.Mult(y))
}

// Rerandomize returns a fresh encryption of the same plaintext under the
// same public key, using fresh randomness r.
func Rerandomize(c Ciphertext, y *group.Point, r *group.Scalar) Ciphertext {
	return Ciphertext{
		B: c.B.Add(group.BaseMult(r)),
		C: c.C.Add(y.Mult(r)),
	}
}

// Reshuffle scales the encrypted plaintext by s, preserving the recipient
// key.
func Reshuffle(c Ciphertext, s *group.Scalar) Ciphertext {
	return Ciphertext{
		B: c.B.Mult(s),
		C: c.C.Mult(s),
	}
}

// Rekey changes the effective recipient key from Y to k*Y, without
// re-randomising.
func Rekey(c Ciphertext, k *group.Scalar) (Ciphertext, error) {
	kInv, err := k.Invert()
	if err != nil {
		return Ciphertext{}, err
	}
	return Ciphertext{
		B: c.B.Mult(kInv),
		C: c.C,
	}, nil
}

// RSK applies the combined shuffle+rekey+rerandomise primitive:
//
//	((s*k^-1)*B + r*G, s*C + r*(k*Y))
//
// turning a ciphertext encrypted under Y into one encrypted under k*Y,
// with the plaintext scaled by s and fresh randomness r. This is the core
// primitive the pseudonymisation protocol uses to turn a polymorphic
// pseudonym into a party-local one.
func RSK(c Ciphertext, y *group.Point, s, k, r *group.Scalar) (Ciphertext, error) {
	kInv, err := k.Invert()
	if err != nil {
		return Ciphertext{}, err
	}
	sKInv := s.Mul(kInv)
	newB := c.B.Mult(sKInv).Add(group.BaseMult(r))

	kY := y.Mult(k)
	newC := c.C.Mult(s).Add(kY.Mult(r))

	return Ciphertext{B: newB, C: newC}, nil
}
