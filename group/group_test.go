package group

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarInverse(t *testing.T) {
	s := RandomScalar()
	inv, err := s.Invert()
	require.NoError(t, err)
	require.True(t, s.Mul(inv).Equal(OneScalar()))
}

func TestZeroScalarNotInvertible(t *testing.T) {
	_, err := ZeroScalar().Invert()
	require.ErrorIs(t, err, ErrNonInvertibleScalar)
}

func TestPointPackUnpackRoundTrip(t *testing.T) {
	s := RandomScalar()
	p := BaseMult(s)

	packed := p.Pack()
	unpacked, err := Unpack(packed)
	require.NoError(t, err)
	require.True(t, p.Equal(unpacked))
}

func TestUnpackRejectsGarbage(t *testing.T) {
	bad := make([]byte, 32)
	for i := range bad {
		bad[i] = 0xFF
	}
	_, err := Unpack(bad)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestHashToPointDeterministic(t *testing.T) {
	a := HashToPoint([]byte("alice"))
	b := HashToPoint([]byte("alice"))
	c := HashToPoint([]byte("bob"))

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestAddSubRoundTrip(t *testing.T) {
	p := BaseMult(RandomScalar())
	q := BaseMult(RandomScalar())

	sum := p.Add(q)
	back := sum.Sub(q)
	require.True(t, back.Equal(p))
}
