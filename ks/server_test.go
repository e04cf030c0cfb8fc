package ks

import (
	"context"
	"testing"

	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pepcrypto"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/wire"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, pseudonym.Chain) {
	t.Helper()

	masterSecret := group.RandomScalar()
	masterY := group.BaseMult(masterSecret)

	hopS, hopK := group.RandomScalar(), group.RandomScalar()
	ksPrivate := masterSecret.Mul(hopK) // the scalar corresponding to masterY.Mult(hopK)

	chain := pseudonym.Chain{
		MasterY:   masterY,
		Hops:      []pseudonym.Hop{{Party: pseudonym.KeyServer, S: hopS, K: hopK}},
		TargetKey: ksPrivate,
	}
	srv := NewServer(chain)
	t.Cleanup(srv.Stop)
	return srv, chain
}

func TestResolveKeysRecoversPlaintextUnderBlind(t *testing.T) {
	srv, chain := newTestServer(t)
	ctx := context.Background()

	cellKeyPoint := group.BaseMult(group.RandomScalar())
	ek := elgamal.Encrypt(cellKeyPoint, chain.MasterY)

	pp := pseudonym.Polymorphic{B: group.BaseMult(group.RandomScalar()), C: group.BaseMult(group.RandomScalar())}
	tk := ticket.Ticket2{
		Pseudonyms: []ticket.PseudonymEntry{{Polymorphic: pp}},
	}

	meta := []byte("col-marker")
	entry := wire.KeyRequestEntry{
		Metadata:                 meta,
		PolymorphicEncryptionKey: append(append([]byte{}, ek.B.Pack()...), ek.C.Pack()...),
		BlindMode:                true,
		PseudonymIndex:           0,
	}

	keys, err := srv.ResolveKeys(ctx, tk, []wire.KeyRequestEntry{entry})
	require.NoError(t, err)
	require.Len(t, keys, 1)

	resolved, err := group.Unpack(keys[0])
	require.NoError(t, err)

	participantBlind := pepcrypto.HashToScalarBytes(blindDomain, []byte("participant"), pp.B.Pack())
	columnBlind := pepcrypto.HashToScalarBytes(blindDomain, []byte("column"), meta)
	require.True(t, resolved.Equal(cellKeyPoint.Mult(participantBlind.Mul(columnBlind)).Mult(chain.Hops[0].S)))
}

func TestResolveKeysRejectsBadPseudonymIndex(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	tk := ticket.Ticket2{}
	entry := wire.KeyRequestEntry{PseudonymIndex: 3, PolymorphicEncryptionKey: make([]byte, 64)}

	_, err := srv.ResolveKeys(ctx, tk, []wire.KeyRequestEntry{entry})
	require.Error(t, err)
}
