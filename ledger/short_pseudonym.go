package ledger

import (
	"sync"

	"github.com/pep-constellation/pep-core/peperr"
)

// ShortPseudonymIndex truncates a local pseudonym to a configured prefix
// length for display and lookup. Insertion explicitly checks for an
// existing entry sharing the prefix and refuses the collision rather than
// silently overwriting it.
type ShortPseudonymIndex struct {
	mu     sync.Mutex
	byShort map[string]string // short prefix -> full local pseudonym encoding
}

// NewShortPseudonymIndex constructs an empty index.
func NewShortPseudonymIndex() *ShortPseudonymIndex {
	return &ShortPseudonymIndex{byShort: make(map[string]string)}
}

// Insert records that full's prefix of length prefixLen maps to full.
// Returns peperr.RecordConflict if a different full pseudonym already
// claims the same prefix.
func (idx *ShortPseudonymIndex) Insert(full string, prefixLen int) (string, error) {
	if prefixLen <= 0 || prefixLen > len(full) {
		prefixLen = len(full)
	}
	short := full[:prefixLen]

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byShort[short]; ok {
		if existing != full {
			return "", peperr.New(peperr.KindRecordConflict, "short pseudonym collision at prefix length "+itoa(prefixLen))
		}
		return short, nil
	}
	idx.byShort[short] = full
	return short, nil
}

// Resolve looks up the full pseudonym for a short prefix.
func (idx *ShortPseudonymIndex) Resolve(short string) (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	full, ok := idx.byShort[short]
	if !ok {
		return "", peperr.New(peperr.KindNotFound, "no participant for short pseudonym")
	}
	return full, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
