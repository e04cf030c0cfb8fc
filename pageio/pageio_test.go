package pageio

import (
	"context"
	"testing"
	"time"

	"github.com/pep-constellation/pep-core/peperr"
	"github.com/stretchr/testify/require"
)

func TestMemStorePutGetRoundTrip(t *testing.T) {
	s := NewMemStore()
	id, hash, err := s.Put(context.Background(), []byte("hello"))
	require.NoError(t, err)

	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
	require.Equal(t, hash, contentHash([]byte("hello")))
}

func TestFileStoreContentAddressedIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	id1, hash1, err := s.Put(context.Background(), []byte("payload"))
	require.NoError(t, err)
	id2, hash2, err := s.Put(context.Background(), []byte("payload"))
	require.NoError(t, err)

	require.Equal(t, id1, id2)
	require.Equal(t, hash1, hash2)
}

func TestBackoffRetriesOnThrottled(t *testing.T) {
	attempts := 0
	err := DefaultBackoff().Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return peperr.Throttled(time.Millisecond)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestBackoffSurfacesNonThrottledImmediately(t *testing.T) {
	attempts := 0
	err := DefaultBackoff().Do(context.Background(), func() error {
		attempts++
		return peperr.New(peperr.KindInternal, "boom")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
