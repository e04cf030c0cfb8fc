package sf

import (
	"context"
	"testing"

	"github.com/pep-constellation/pep-core/cell"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pageio"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(pageio.NewMemStore())
	t.Cleanup(srv.Stop)
	return srv
}

func TestStoreAndReadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	cellKey := cell.Key{Point: group.BaseMult(group.RandomScalar())}
	pseudonymKey := []byte("lp-sf-alice")
	meta := cell.Metadata{Extras: []cell.MetadataXEntry{{Name: "fileExtension", Value: []byte(".txt"), BoundToCell: true}}}

	id, hash, err := srv.Store(ctx, "ParticipantInfo", pseudonymKey, []byte("hello"), cellKey, meta)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	payload, gotMeta, err := srv.Read(ctx, id, cellKey)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), payload)
	require.Equal(t, meta.Extras, gotMeta.Extras)
}

func TestStoreReplacesTombstonesPrior(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	cellKey := cell.Key{Point: group.BaseMult(group.RandomScalar())}
	pseudonymKey := []byte("lp-sf-alice")

	id1, _, err := srv.Store(ctx, "col", pseudonymKey, []byte("v1"), cellKey, cell.Metadata{})
	require.NoError(t, err)
	id2, _, err := srv.Store(ctx, "col", pseudonymKey, []byte("v2"), cellKey, cell.Metadata{})
	require.NoError(t, err)

	require.False(t, srv.IsCurrent(id1))
	require.True(t, srv.IsCurrent(id2))

	payload, _, err := srv.Read(ctx, id2, cellKey)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), payload)
}

func TestUpdateMetadataInheritsPayload(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	cellKey := cell.Key{Point: group.BaseMult(group.RandomScalar())}
	pseudonymKey := []byte("lp-sf-alice")

	id, _, err := srv.Store(ctx, "col", pseudonymKey, []byte("hello"), cellKey, cell.Metadata{})
	require.NoError(t, err)

	newID, err := srv.UpdateMetadata(ctx, id, cell.Metadata{Tag: []byte("updated")})
	require.NoError(t, err)
	require.False(t, srv.IsCurrent(id))
	require.True(t, srv.IsCurrent(newID))

	payload, meta, err := srv.Read(ctx, newID, cellKey)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), payload)
	require.Equal(t, []byte("updated"), meta.Tag)
}

func TestEnumerateAndHistoryFilters(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	cellKey := cell.Key{Point: group.BaseMult(group.RandomScalar())}

	_, _, err := srv.Store(ctx, "colA", []byte("p1"), []byte("x"), cellKey, cell.Metadata{})
	require.NoError(t, err)
	_, _, err = srv.Store(ctx, "colB", []byte("p2"), []byte("y"), cellKey, cell.Metadata{})
	require.NoError(t, err)

	entries := srv.Enumerate([]string{"colA"}, nil)
	require.Len(t, entries, 1)
	require.Equal(t, "colA", entries[0].Column)

	require.NoError(t, srv.Delete(ctx, []string{entries[0].ID}, entries[0].Timestamp))
	require.Empty(t, srv.Enumerate([]string{"colA"}, nil))
	require.NotEmpty(t, srv.History([]string{"colA"}, nil))
}
