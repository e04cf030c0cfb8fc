// Package pageio abstracts the external, hash-backed object store that
// persists cell pages. No concrete object-store SDK is wired here by
// design (see DESIGN.md's stdlib-justification note).
package pageio

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/pep-constellation/pep-core/peperr"
	"github.com/zeebo/blake3"
)

// PageStore persists opaque ciphertext blobs keyed by a content-addressed
// id, returning the stored object's hash so callers can detect corruption
// in transit.
type PageStore interface {
	// Put stores data and returns its content-addressed id plus the hash
	// the store computed over it.
	Put(ctx context.Context, data []byte) (id string, hash []byte, err error)
	// Get retrieves previously stored data by id.
	Get(ctx context.Context, id string) ([]byte, error)
}

func contentHash(data []byte) []byte {
	h := blake3.New()
	h.Write(data)
	return h.Sum(nil)
}

func randomID() string {
	return RandomID()
}

// RandomID returns a fresh random identifier, the same generator MemStore
// uses for its object ids. Exported so callers needing unrelated unique
// ids (e.g. sf's head record ids) don't need their own generator.
func RandomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("pageio: could not read entropy")
	}
	return hex.EncodeToString(b)
}

// MemStore is an in-memory PageStore, used by tests and the in-process
// demo driver.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Put(ctx context.Context, data []byte) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, peperr.Wrap(peperr.KindCancelled, err, "pageio: put cancelled")
	}
	id := randomID()
	hash := contentHash(data)

	m.mu.Lock()
	m.data[id] = append([]byte(nil), data...)
	m.mu.Unlock()
	return id, hash, nil
}

func (m *MemStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, peperr.Wrap(peperr.KindCancelled, err, "pageio: get cancelled")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, peperr.New(peperr.KindNotFound, "pageio: no object for id "+id)
	}
	return append([]byte(nil), data...), nil
}

// FileStore is a content-addressed directory PageStore. The id is the
// object's content hash, so Put is naturally idempotent.
type FileStore struct {
	dir string
}

// NewFileStore constructs a FileStore rooted at dir, creating it if
// necessary.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, peperr.Wrap(peperr.KindInternal, err, "pageio: could not create store directory")
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id)
}

func (f *FileStore) Put(ctx context.Context, data []byte) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, peperr.Wrap(peperr.KindCancelled, err, "pageio: put cancelled")
	}
	hash := contentHash(data)
	id := hex.EncodeToString(hash)

	if existing, err := os.ReadFile(f.path(id)); err == nil {
		if !bytes.Equal(existing, data) {
			return "", nil, peperr.New(peperr.KindPersistenceIntegrityFailure, "pageio: id collision with differing content")
		}
		return id, hash, nil
	}

	if err := os.WriteFile(f.path(id), data, 0o600); err != nil {
		return "", nil, peperr.Wrap(peperr.KindInternal, err, "pageio: write failed")
	}
	return id, hash, nil
}

func (f *FileStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, peperr.Wrap(peperr.KindCancelled, err, "pageio: get cancelled")
	}
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		return nil, peperr.New(peperr.KindNotFound, "pageio: no object for id "+id)
	}
	return data, nil
}
