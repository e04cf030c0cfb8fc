package pseudonym

import (
	"testing"

	"github.com/pep-constellation/pep-core/group"
	"github.com/stretchr/testify/require"
)

// buildChain wraps the given hops into a Chain starting from masterY and
// ending at targetKey.
func buildChain(masterY *group.Point, hops []Hop, targetKey *group.Scalar) Chain {
	return Chain{MasterY: masterY, Hops: hops, TargetKey: targetKey}
}

func TestTranscryptToIsDeterministicPerParty(t *testing.T) {
	masterPriv := group.RandomScalar()
	masterY := group.BaseMult(masterPriv)

	s1, k1 := group.RandomScalar(), group.RandomScalar()
	targetPriv := masterPriv.Mul(k1)

	chain := buildChain(masterY, []Hop{{Party: AccessManager, S: s1, K: k1}}, targetPriv)

	pp := Pseudonymize([]byte("alice"), masterY)

	lp1, err := TranscryptTo(pp, chain)
	require.NoError(t, err)

	pp2 := Pseudonymize([]byte("alice"), masterY) // fresh, rerandomized PP
	lp2, err := TranscryptTo(pp2, chain)
	require.NoError(t, err)

	require.True(t, lp1.Point.Equal(lp2.Point), "LP must be stable across rerandomized PPs of the same identifier")
}

func TestTranscryptToUnlinkableAcrossParties(t *testing.T) {
	masterPriv := group.RandomScalar()
	masterY := group.BaseMult(masterPriv)

	sAM, kAM := group.RandomScalar(), group.RandomScalar()
	sSF, kSF := group.RandomScalar(), group.RandomScalar()

	amChain := buildChain(masterY, []Hop{{Party: AccessManager, S: sAM, K: kAM}}, masterPriv.Mul(kAM))
	sfChain := buildChain(masterY, []Hop{{Party: StorageFacility, S: sSF, K: kSF}}, masterPriv.Mul(kSF))

	pp := Pseudonymize([]byte("alice"), masterY)

	lpAM, err := TranscryptTo(pp, amChain)
	require.NoError(t, err)
	lpSF, err := TranscryptTo(pp, sfChain)
	require.NoError(t, err)

	require.False(t, lpAM.Point.Equal(lpSF.Point))
}

func TestTranscryptToDifferentIdentifiersDiffer(t *testing.T) {
	masterPriv := group.RandomScalar()
	masterY := group.BaseMult(masterPriv)
	s, k := group.RandomScalar(), group.RandomScalar()
	chain := buildChain(masterY, []Hop{{Party: AccessManager, S: s, K: k}}, masterPriv.Mul(k))

	ppAlice := Pseudonymize([]byte("alice"), masterY)
	ppBob := Pseudonymize([]byte("bob"), masterY)

	lpAlice, err := TranscryptTo(ppAlice, chain)
	require.NoError(t, err)
	lpBob, err := TranscryptTo(ppBob, chain)
	require.NoError(t, err)

	require.False(t, lpAlice.Point.Equal(lpBob.Point))
}

func TestCacheReturnsSameValueWithoutRecomputing(t *testing.T) {
	masterPriv := group.RandomScalar()
	masterY := group.BaseMult(masterPriv)
	s, k := group.RandomScalar(), group.RandomScalar()
	chain := buildChain(masterY, []Hop{{Party: AccessManager, S: s, K: k}}, masterPriv.Mul(k))
	pp := Pseudonymize([]byte("alice"), masterY)

	cache := NewCache()
	calls := 0
	compute := func() (Local, error) {
		calls++
		return TranscryptTo(pp, chain)
	}

	lp1, err := cache.GetOrCompute(AccessManager, pp, compute)
	require.NoError(t, err)
	lp2, err := cache.GetOrCompute(AccessManager, pp, compute)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.True(t, lp1.Equal(lp2))
}
