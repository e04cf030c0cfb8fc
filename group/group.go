// Package group wraps the Ristretto prime-order group over Curve25519,
// giving pseudonym, elgamal and cell a single constant-time arithmetic
// surface to build on.
package group

import (
	"crypto/rand"
	"fmt"

	ristretto "github.com/gtank/ristretto255"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidEncoding is returned whenever a packed Point or Scalar fails to
// decode to a canonical group element.
var ErrInvalidEncoding = fmt.Errorf("group: invalid encoding")

// ErrNonInvertibleScalar is returned by Scalar.Invert on the zero scalar.
var ErrNonInvertibleScalar = fmt.Errorf("group: scalar has no inverse")

// Scalar is an element of the Ristretto scalar field.
type Scalar struct {
	s *ristretto.Scalar
}

// RandomScalar draws a uniform scalar from the process CSPRNG: 64 bytes
// reduced modulo the group order.
func RandomScalar() *Scalar {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		panic("group: could not read entropy")
	}
	return ScalarFromUniformBytes(b)
}

// ScalarFromUniformBytes reduces buf (which must be >= 64 bytes of uniform
// randomness) modulo the group order. Rejecting modulo bias in the input is
// the caller's concern.
func ScalarFromUniformBytes(buf []byte) *Scalar {
	return &Scalar{s: new(ristretto.Scalar).FromUniformBytes(buf)}
}

// ZeroScalar returns the additive identity.
func ZeroScalar() *Scalar {
	return &Scalar{s: new(ristretto.Scalar).Zero()}
}

// OneScalar returns the multiplicative identity.
func OneScalar() *Scalar {
	return &Scalar{s: new(ristretto.Scalar).One()}
}

// Add returns s + other.
func (s *Scalar) Add(other *Scalar) *Scalar {
	return &Scalar{s: new(ristretto.Scalar).Add(s.s, other.s)}
}

// Sub returns s - other.
func (s *Scalar) Sub(other *Scalar) *Scalar {
	return &Scalar{s: new(ristretto.Scalar).Subtract(s.s, other.s)}
}

// Mul returns s * other.
func (s *Scalar) Mul(other *Scalar) *Scalar {
	return &Scalar{s: new(ristretto.Scalar).Multiply(s.s, other.s)}
}

// Square returns s * s.
func (s *Scalar) Square() *Scalar {
	return s.Mul(s)
}

// Invert returns s^-1. Fails with ErrNonInvertibleScalar if s is zero.
func (s *Scalar) Invert() (*Scalar, error) {
	if s.IsZero() {
		return nil, ErrNonInvertibleScalar
	}
	return &Scalar{s: new(ristretto.Scalar).Invert(s.s)}, nil
}

// IsZero reports whether s is the additive identity.
func (s *Scalar) IsZero() bool {
	return s.Equal(ZeroScalar())
}

// Equal reports whether two scalars are the same field element.
func (s *Scalar) Equal(other *Scalar) bool {
	return s.s.Equal(other.s) == 1
}

// Encode returns the canonical 32-byte encoding of s.
func (s *Scalar) Encode() []byte {
	return s.s.Encode(nil)
}

// DecodeScalar parses the canonical 32-byte encoding of a scalar.
func DecodeScalar(b []byte) (*Scalar, error) {
	s := new(ristretto.Scalar)
	if err := s.Decode(b); err != nil {
		return nil, ErrInvalidEncoding
	}
	return &Scalar{s: s}, nil
}

// Point is an element of the Ristretto group.
type Point struct {
	p      *ristretto.Element
	packed []byte // cached canonical encoding, populated lazily
}

func wrap(e *ristretto.Element) *Point {
	return &Point{p: e}
}

// Identity returns the group identity element.
func Identity() *Point {
	return wrap(ristretto.NewIdentityElement())
}

// BasePoint returns the distinguished base point G.
func BasePoint() *Point {
	return wrap(ristretto.NewGeneratorElement())
}

// BaseMult returns s*G in constant time, treating s as secret.
func BaseMult(s *Scalar) *Point {
	return wrap(new(ristretto.Element).ScalarBaseMult(s.s))
}

// PublicBaseMult returns s*G. The caller asserts s is public; since
// ristretto255 exposes one constant-time ScalarBaseMult implementation,
// this calls BaseMult and exists only to mark such call sites.
func PublicBaseMult(s *Scalar) *Point {
	return BaseMult(s)
}

// HashToPoint maps arbitrary bytes to a group element via Elligator2,
// yielding output computationally indistinguishable from uniform.
func HashToPoint(data []byte) *Point {
	return wrap(new(ristretto.Element).FromUniformBytes(expand(data)))
}

// expand stretches data to the 64 bytes FromUniformBytes requires by
// hashing it with sha3.Sum512.
func expand(data []byte) []byte {
	h := sha3.Sum512(data)
	return h[:]
}

// Add returns p + other.
func (p *Point) Add(other *Point) *Point {
	return wrap(new(ristretto.Element).Add(p.p, other.p))
}

// Sub returns p - other.
func (p *Point) Sub(other *Point) *Point {
	return wrap(new(ristretto.Element).Subtract(p.p, other.p))
}

// Double returns p + p.
func (p *Point) Double() *Point {
	return wrap(new(ristretto.Element).Add(p.p, p.p))
}

// Negate returns -p.
func (p *Point) Negate() *Point {
	return wrap(new(ristretto.Element).Negate(p.p))
}

// Mult returns s*p in constant time.
func (p *Point) Mult(s *Scalar) *Point {
	return wrap(new(ristretto.Element).ScalarMult(s.s, p.p))
}

// VarTimeMult returns s*p. ristretto255 exposes a single constant-time
// ScalarMult; VarTimeMult exists so call sites can document that s is
// public even though the underlying implementation is the same.
func (p *Point) VarTimeMult(s *Scalar) *Point {
	return p.Mult(s)
}

// Equal reports whether p and other encode the same group element.
func (p *Point) Equal(other *Point) bool {
	return p.p.Equal(other.p) == 1
}

// Pack returns the cached canonical 32-byte encoding of p.
func (p *Point) Pack() []byte {
	if p.packed == nil {
		p.packed = p.p.Encode(nil)
	}
	out := make([]byte, len(p.packed))
	copy(out, p.packed)
	return out
}

// Unpack parses a canonical 32-byte point encoding, failing with
// ErrInvalidEncoding on non-canonical input.
func Unpack(b []byte) (*Point, error) {
	e := new(ristretto.Element)
	if err := e.Decode(b); err != nil {
		return nil, ErrInvalidEncoding
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Point{p: e, packed: cp}, nil
}

// Table wraps a fixed base point for repeated multiplications.
// ristretto255 has no native windowed-table type, and Table does no
// precomputation of its own: each Mult is one constant-time ScalarMult
// against the stored base element.
type Table struct {
	base *Point
}

// NewTable builds a multiplication table for base.
func NewTable(base *Point) *Table {
	return &Table{base: base}
}

// Mult returns s*base in constant time.
func (t *Table) Mult(s *Scalar) *Point {
	return t.base.Mult(s)
}
