package ledger

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/pep-constellation/pep-core/peperr"
)

// NaturalKeyed is implemented by every record family; it exposes the key
// that groups a family's rows for "current state at time t" projection.
type NaturalKeyed interface {
	NaturalKey() string
}

// recordAccessor is satisfied by every record type via the header()/
// withHeader() accessors defined in records_header.go. withHeader returns
// T (not *T) so Log[T] can store and copy rows by value, keeping the
// append-only, never-mutated-in-place discipline every record family
// follows.
type recordAccessor[T any] interface {
	NaturalKeyed
	header() Header
	withHeader(Header) T
}

// Log is an append-only, tombstoned record family. Writes are serialised
// through a single mutex (a single-writer discipline); reads copy a
// snapshot slice under that same mutex and then operate lock-free, so
// readers never block writers for long.
type Log[T recordAccessor[T]] struct {
	mu      sync.Mutex
	rows    []T
	nextSeq uint64
}

// NewLog constructs an empty record log.
func NewLog[T recordAccessor[T]]() *Log[T] {
	return &Log[T]{}
}

// Append assigns the next seqno and checksum nonce to row, stamps its
// timestamp with now, and appends it durably. It returns the finalised
// row.
func (l *Log[T]) Append(row T, tombstone bool, now time.Time) T {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	h := row.header()
	h.Seqno = l.nextSeq
	h.Timestamp = now
	h.Tombstone = tombstone
	if _, err := rand.Read(h.ChecksumNonce[:]); err != nil {
		panic("ledger: could not read entropy for checksum nonce")
	}
	finalized := row.withHeader(h)
	l.rows = append(l.rows, finalized)
	return finalized
}

// snapshot returns a copy of the current rows slice, safe to range over
// without holding the lock.
func (l *Log[T]) snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.rows))
	copy(out, l.rows)
	return out
}

// Current returns, for each natural key, the latest non-tombstoned row
// with Timestamp <= at. Spec invariant (iii).
func (l *Log[T]) Current(at time.Time) map[string]T {
	rows := l.snapshot()
	best := make(map[string]T)
	bestHeader := make(map[string]Header)

	for _, row := range rows {
		h := row.header()
		if h.Timestamp.After(at) {
			continue
		}
		key := row.NaturalKey()
		if prev, ok := bestHeader[key]; !ok || h.Seqno > prev.Seqno {
			bestHeader[key] = h
			best[key] = row
		}
	}
	for key, h := range bestHeader {
		if h.Tombstone {
			delete(best, key)
		}
	}
	return best
}

// Get returns the current row for key at time at, or peperr.NotFound.
func (l *Log[T]) Get(key string, at time.Time) (T, error) {
	cur := l.Current(at)
	row, ok := cur[key]
	if !ok {
		var zero T
		return zero, peperr.New(peperr.KindNotFound, "no current record for key "+key)
	}
	return row, nil
}

// All returns every row ever appended, tombstones included, ordered by
// seqno. Used by Checksum.
func (l *Log[T]) All() []T {
	rows := l.snapshot()
	return rows
}

// Len returns the number of rows appended so far (the highest seqno).
func (l *Log[T]) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq
}
