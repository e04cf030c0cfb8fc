package cell

import "github.com/pep-constellation/pep-core/peperr"

// Head is the physical head record for a cell: Metadata plus the id of
// this head (used by later metadata-only updates) and, for metadata-only
// updates, a pointer to the prior head supplying the payload.
type Head struct {
	ID       string
	Metadata Metadata
	Pages    []Page // empty for a metadata-only update
}

// IsMetadataOnly reports whether this head inherits payload from a prior
// head rather than carrying its own pages.
func (h Head) IsMetadataOnly() bool {
	return h.Metadata.OriginalPayloadEntry != ""
}

// Store is the minimal head-record store cell needs to resolve a
// metadata-only update's payload pointer; sf.Server implements it over
// its head index.
type Store interface {
	Head(id string) (Head, bool)
	IsCurrent(id string) bool
}

// ResolvePages returns the pages a reader should fetch for head: its own
// pages, or, if head is a metadata-only update, the prior head's pages,
// walked recursively in case of a chain of metadata-only updates.
func ResolvePages(store Store, head Head) ([]Page, error) {
	seen := map[string]bool{}
	current := head
	for current.IsMetadataOnly() {
		if seen[current.ID] {
			return nil, peperr.New(peperr.KindInternal, "cell: cyclic original_payload_entry_id chain")
		}
		seen[current.ID] = true

		prior, ok := store.Head(current.Metadata.OriginalPayloadEntry)
		if !ok {
			return nil, peperr.New(peperr.KindNotFound, "cell: original payload entry not found")
		}
		current = prior
	}
	return current.Pages, nil
}

// ValidateMetadataOnlyUpdate checks that the prior head a metadata-only
// update points to is still current (not tombstoned).
func ValidateMetadataOnlyUpdate(store Store, originalID string) error {
	if !store.IsCurrent(originalID) {
		return peperr.New(peperr.KindNotFound, "cell: original payload entry is not current")
	}
	return nil
}
