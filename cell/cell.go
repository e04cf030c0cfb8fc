// Package cell implements per-cell key derivation and the AEAD page codec
// that turns plaintext payload and metadata into the artifacts an external
// page store persists.
package cell

import (
	"time"

	"github.com/pep-constellation/pep-core/group"
)

// MetadataXEntry is one named metadata extra. BoundToCell mixes Value into
// the per-page AEAD key derivation, so tampering with the extra invalidates
// decryption; KnownByAccessManager lets read-meta callers see the value
// without payload access; StoredEncrypted governs whether Value itself is
// encrypted at rest (handled by the caller, not this package).
type MetadataXEntry struct {
	Name                 string
	Value                []byte
	StoredEncrypted      bool
	BoundToCell          bool
	KnownByAccessManager bool
}

// Metadata is the head record's non-payload content.
type Metadata struct {
	Tag                 []byte
	BlindingTimestamp    time.Time
	OriginalPayloadEntry string // id of a prior head, set for metadata-only updates
	Extras               []MetadataXEntry
}

// BoundExtrasDigest hashes, in order, every extra whose BoundToCell flag is
// set: the "bound_extras_digest" mixed into the per-page AEAD key.
func (m Metadata) BoundExtrasDigest() []byte {
	h := newBlake3()
	for _, e := range m.Extras {
		if !e.BoundToCell {
			continue
		}
		h.Write([]byte(e.Name))
		h.Write(e.Value)
	}
	return h.Sum(nil)
}

// Key is the per-cell data-encryption key: the Point obtained by
// decrypting the transcrypted EncryptedKey delivered by the
// pseudonymisation protocol.
type Key struct {
	Point *group.Point
}
