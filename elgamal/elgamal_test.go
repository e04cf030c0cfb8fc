package elgamal

import (
	"testing"

	"github.com/pep-constellation/pep-core/group"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	m := group.BaseMult(group.RandomScalar())

	c := Encrypt(m, Y)
	got := Decrypt(c, y)
	require.True(t, got.Equal(m))
}

func TestRerandomizePreservesPlaintext(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	m := group.BaseMult(group.RandomScalar())

	c := Encrypt(m, Y)
	r := group.RandomScalar()
	c2 := Rerandomize(c, Y, r)

	require.False(t, c.B.Equal(c2.B))
	require.True(t, Decrypt(c2, y).Equal(m))
}

func TestReshuffleScalesPlaintext(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	m := group.BaseMult(group.RandomScalar())

	c := Encrypt(m, Y)
	s := group.RandomScalar()
	c2 := Reshuffle(c, s)

	require.True(t, Decrypt(c2, y).Equal(m.Mult(s)))
}

func TestRekeyChangesRecipient(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	m := group.BaseMult(group.RandomScalar())

	c := Encrypt(m, Y)
	k := group.RandomScalar()
	c2, err := Rekey(c, k)
	require.NoError(t, err)

	kY := Y.Mult(k)
	ky, err := k.Invert()
	require.NoError(t, err)
	_ = ky
	newPriv := y.Mul(k) // new private key is y*k so that (y*k)*G = k*Y
	require.True(t, group.BaseMult(newPriv).Equal(kY))
	require.True(t, Decrypt(c2, newPriv).Equal(m))
}

func TestRSKTurnsCiphertextIntoLocalPseudonym(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	id := group.HashToPoint([]byte("participant-alice"))

	c := Encrypt(id, Y)

	s := group.RandomScalar()
	k := group.RandomScalar()
	r := group.RandomScalar()

	c2, err := RSK(c, Y, s, k, r)
	require.NoError(t, err)

	newPriv := y.Mul(k)
	newPub := group.BaseMult(newPriv)
	require.True(t, group.BaseMult(newPriv).Equal(newPub))

	got := Decrypt(c2, newPriv)
	require.True(t, got.Equal(id.Mult(s)))
}

func TestRSKComposes(t *testing.T) {
	y := group.RandomScalar()
	Y := group.BaseMult(y)
	id := group.HashToPoint([]byte("participant-bob"))
	c := Encrypt(id, Y)

	s1, k1, r1 := group.RandomScalar(), group.RandomScalar(), group.RandomScalar()
	s2, k2, r2 := group.RandomScalar(), group.RandomScalar(), group.RandomScalar()

	hop1, err := RSK(c, Y, s1, k1, r1)
	require.NoError(t, err)
	Y1 := Y.Mult(k1)
	hop2, err := RSK(hop1, Y1, s2, k2, r2)
	require.NoError(t, err)

	// Composed shuffle factor is s1*s2; composed key factor is k1*k2.
	composedS := s1.Mul(s2)
	composedK := k1.Mul(k2)
	finalPriv := y.Mul(composedK)

	got := Decrypt(hop2, finalPriv)
	require.True(t, got.Equal(id.Mult(composedS)))
}
