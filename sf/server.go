// Package sf implements the Storage Facility party façade: the cell head
// index plus the page codec and page store, composed behind a
// single-goroutine reactor.
package sf

import (
	"context"
	"sync"
	"time"

	"github.com/pep-constellation/pep-core/cell"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pageio"
	"github.com/pep-constellation/pep-core/pepcontext"
	"github.com/pep-constellation/pep-core/peperr"
	"go.uber.org/zap"
)

// pageRef is how a head record remembers where its pages live in Pages,
// without keeping the ciphertext itself resident in the head index.
type pageRef struct {
	StoreID    string
	Nonce      []byte
	PageNumber int
}

// record is one version of a cell: either a fresh payload write or a
// metadata-only update pointing at a prior record's payload.
type record struct {
	ID           string
	Column       string
	PseudonymKey string // string(LP@SF.Pack())
	Metadata     cell.Metadata
	PageRefs     []pageRef
	Tombstone    bool
	Timestamp    time.Time
}

func naturalKey(column, pseudonymKey string) string {
	return column + "\x00" + pseudonymKey
}

// Server is the Storage Facility: a page store plus an in-memory head
// index. Every mutation runs on the reactor goroutine, so a read never
// observes a write half-applied.
type Server struct {
	Pages pageio.PageStore

	// IssuerChain is the Access Manager's ticket-signing public key chain,
	// used by Serve to validate a presented ticket before acting on it.
	// Unset for callers (tests, cmd/pepdemo) that invoke Store/Read/etc.
	// directly with an already-authorised column/pseudonym pair.
	IssuerChain []*group.Point

	mu      sync.RWMutex // guards heads/current for the cheap read paths (Head/IsCurrent)
	heads   map[string]record
	current map[string]string // naturalKey -> current record id

	reactor *pepcontext.Reactor
	log     *zap.Logger
}

// NewServer constructs a Storage Facility server backed by pages.
func NewServer(pages pageio.PageStore) *Server {
	return &Server{
		Pages:   pages,
		heads:   make(map[string]record),
		current: make(map[string]string),
		reactor: pepcontext.NewReactor(64),
		log:     pepcontext.Log().Named("sf"),
	}
}

// Stop shuts down the server's reactor goroutine.
func (s *Server) Stop() {
	s.reactor.Stop()
}

// Store encrypts payload under cellKey and persists its pages, tombstoning
// any prior current record for (column, pseudonymKey): replacing a cell
// writes new pages and then tombstones the old head.
func (s *Server) Store(ctx context.Context, column string, pseudonymKey []byte, payload []byte, cellKey cell.Key, meta cell.Metadata) (id string, hash []byte, err error) {
	runErr := s.reactor.Submit(ctx, func() {
		id, hash, err = s.storeLocked(ctx, column, pseudonymKey, payload, cellKey, meta)
	})
	if runErr != nil {
		return "", nil, peperr.Wrap(peperr.KindCancelled, runErr, "sf: store cancelled")
	}
	return id, hash, err
}

func (s *Server) storeLocked(ctx context.Context, column string, pseudonymKey []byte, payload []byte, cellKey cell.Key, meta cell.Metadata) (string, []byte, error) {
	newID := pageio.RandomID()
	pages, err := cell.EncryptPayload(payload, cellKey, column, pseudonymKey, newID, meta)
	if err != nil {
		return "", nil, err
	}

	refs := make([]pageRef, 0, len(pages))
	for _, p := range pages {
		storeID, _, err := s.Pages.Put(ctx, p.Ciphertext)
		if err != nil {
			return "", nil, err
		}
		refs = append(refs, pageRef{StoreID: storeID, Nonce: p.Nonce, PageNumber: p.PageNumber})
	}
	hash := cell.ETag(pages)

	s.mu.Lock()
	defer s.mu.Unlock()
	key := naturalKey(column, string(pseudonymKey))
	if priorID, ok := s.current[key]; ok {
		prior := s.heads[priorID]
		prior.Tombstone = true
		s.heads[priorID] = prior
	}
	s.heads[newID] = record{
		ID:           newID,
		Column:       column,
		PseudonymKey: string(pseudonymKey),
		Metadata:     meta,
		PageRefs:     refs,
		Timestamp:    time.Now(),
	}
	s.current[key] = newID

	return newID, hash, nil
}

// Read resolves id's payload, walking a metadata-only-update chain to its
// original pages per cell.ResolvePages, then decrypts under cellKey.
func (s *Server) Read(ctx context.Context, id string, cellKey cell.Key) ([]byte, cell.Metadata, error) {
	head, err := s.resolveHead(ctx, id)
	if err != nil {
		return nil, cell.Metadata{}, err
	}
	pages, err := cell.ResolvePages(s, head)
	if err != nil {
		return nil, cell.Metadata{}, err
	}

	rec, _ := s.getRecord(id)
	var originRec record
	if rec.Metadata.OriginalPayloadEntry != "" {
		originRec, _ = s.resolveRecord(rec.Metadata.OriginalPayloadEntry)
	} else {
		originRec = rec
	}

	payload, err := cell.DecryptPayload(pages, cellKey, originRec.Column, []byte(originRec.PseudonymKey), originRec.Metadata)
	if err != nil {
		return nil, cell.Metadata{}, err
	}
	return payload, head.Metadata, nil
}

func (s *Server) resolveRecord(id string) (record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.heads[id]
	if !ok {
		return record{}, peperr.New(peperr.KindNotFound, "sf: no such head: "+id)
	}
	if rec.Metadata.OriginalPayloadEntry != "" {
		return s.resolveRecordLocked(rec.Metadata.OriginalPayloadEntry)
	}
	return rec, nil
}

func (s *Server) resolveRecordLocked(id string) (record, error) {
	rec, ok := s.heads[id]
	if !ok {
		return record{}, peperr.New(peperr.KindNotFound, "sf: no such head: "+id)
	}
	if rec.Metadata.OriginalPayloadEntry != "" {
		return s.resolveRecordLocked(rec.Metadata.OriginalPayloadEntry)
	}
	return rec, nil
}

func (s *Server) getRecord(id string) (record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.heads[id]
	return rec, ok
}

func (s *Server) resolveHead(ctx context.Context, id string) (cell.Head, error) {
	rec, ok := s.getRecord(id)
	if !ok {
		return cell.Head{}, peperr.New(peperr.KindNotFound, "sf: no such head: "+id)
	}
	return s.toHead(ctx, rec), nil
}

func (s *Server) toHead(ctx context.Context, rec record) cell.Head {
	if rec.Metadata.OriginalPayloadEntry != "" {
		return cell.Head{ID: rec.ID, Metadata: rec.Metadata}
	}
	pages := make([]cell.Page, 0, len(rec.PageRefs))
	for _, ref := range rec.PageRefs {
		data, err := s.Pages.Get(ctx, ref.StoreID)
		if err != nil {
			continue
		}
		pages = append(pages, cell.Page{Nonce: ref.Nonce, Ciphertext: data, PageNumber: ref.PageNumber, CellIndex: rec.ID})
	}
	return cell.Head{ID: rec.ID, Metadata: rec.Metadata, Pages: pages}
}

// Head implements cell.Store.
func (s *Server) Head(id string) (cell.Head, bool) {
	rec, ok := s.getRecord(id)
	if !ok {
		return cell.Head{}, false
	}
	return s.toHead(context.Background(), rec), true
}

// IsCurrent implements cell.Store.
func (s *Server) IsCurrent(id string) bool {
	rec, ok := s.getRecord(id)
	return ok && !rec.Tombstone
}

// UpdateMetadata writes a metadata-only head inheriting originalID's
// payload.
func (s *Server) UpdateMetadata(ctx context.Context, originalID string, newMeta cell.Metadata) (id string, err error) {
	runErr := s.reactor.Submit(ctx, func() {
		id, err = s.updateMetadataLocked(originalID, newMeta)
	})
	if runErr != nil {
		return "", peperr.Wrap(peperr.KindCancelled, runErr, "sf: metadata update cancelled")
	}
	return id, err
}

func (s *Server) updateMetadataLocked(originalID string, newMeta cell.Metadata) (string, error) {
	if err := cell.ValidateMetadataOnlyUpdate(s, originalID); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	orig, ok := s.heads[originalID]
	if !ok {
		return "", peperr.New(peperr.KindNotFound, "sf: no such head: "+originalID)
	}

	newMeta.OriginalPayloadEntry = originalID
	newID := pageio.RandomID()
	orig.Tombstone = true
	s.heads[originalID] = orig

	s.heads[newID] = record{
		ID:           newID,
		Column:       orig.Column,
		PseudonymKey: orig.PseudonymKey,
		Metadata:     newMeta,
		Timestamp:    time.Now(),
	}
	s.current[naturalKey(orig.Column, orig.PseudonymKey)] = newID
	return newID, nil
}

// Delete tombstones a batch of cell ids.
func (s *Server) Delete(ctx context.Context, ids []string, now time.Time) error {
	return s.reactor.Submit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range ids {
			rec, ok := s.heads[id]
			if !ok {
				continue
			}
			rec.Tombstone = true
			s.heads[id] = rec
		}
	})
}

// Entry describes one current or historical cell, for enumeration/history
// listing.
type Entry struct {
	ID        string
	Column    string
	Pseudonym []byte
	Timestamp time.Time
	Tombstone bool
	Metadata  cell.Metadata
}

// Enumerate lists every current (non-tombstoned) cell, optionally filtered
// by column/pseudonym.
func (s *Server) Enumerate(columns []string, pseudonyms [][]byte) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, id := range s.current {
		rec := s.heads[id]
		if rec.Tombstone {
			continue
		}
		if !matchFilter(rec, columns, pseudonyms) {
			continue
		}
		out = append(out, Entry{ID: rec.ID, Column: rec.Column, Pseudonym: []byte(rec.PseudonymKey), Timestamp: rec.Timestamp, Metadata: rec.Metadata})
	}
	return out
}

// History lists every version (including tombstoned) of cells matching
// the given filters.
func (s *Server) History(columns []string, pseudonyms [][]byte) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, rec := range s.heads {
		if !matchFilter(rec, columns, pseudonyms) {
			continue
		}
		out = append(out, Entry{ID: rec.ID, Column: rec.Column, Pseudonym: []byte(rec.PseudonymKey), Timestamp: rec.Timestamp, Tombstone: rec.Tombstone, Metadata: rec.Metadata})
	}
	return out
}

func matchFilter(rec record, columns []string, pseudonyms [][]byte) bool {
	if len(columns) > 0 && !containsString(columns, rec.Column) {
		return false
	}
	if len(pseudonyms) > 0 && !containsBytes(pseudonyms, []byte(rec.PseudonymKey)) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func containsBytes(haystack [][]byte, needle []byte) bool {
	for _, h := range haystack {
		if string(h) == string(needle) {
			return true
		}
	}
	return false
}
