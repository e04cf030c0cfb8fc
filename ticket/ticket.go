// Package ticket implements issuance and validation of the signed,
// timestamped authorisation artifact that binds a requester to a set of
// pseudonyms, columns and access modes.
package ticket

import (
	"time"

	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/pseudonym"
)

// Mode re-exports ledger.Mode so callers needn't import ledger directly
// just to name a mode.
type Mode = ledger.Mode

const (
	ModeRead      = ledger.ModeRead
	ModeWrite     = ledger.ModeWrite
	ModeReadMeta  = ledger.ModeReadMeta
	ModeWriteMeta = ledger.ModeWriteMeta
	ModeAccess    = ledger.ModeAccess
	ModeEnumerate = ledger.ModeEnumerate
)

// Requester identifies the caller as presented by the transport
// certificate: CN=user, OU=user_group.
type Requester struct {
	User      string
	UserGroup string
}

// PseudonymEntry holds one participant's identifier in its three
// representations, as carried by a ticket.
type PseudonymEntry struct {
	Polymorphic       pseudonym.Polymorphic
	LocalAtAM         *group.Point
	LocalAtSF         *group.Point
	LocalAtAccessGroup *group.Point // optional, set iff IncludeAccessGroupPseudonyms
}

// Ticket2 is the immutable authorisation artifact a ticket request issues.
type Ticket2 struct {
	Requester   Requester
	Columns     []string
	Modes       []Mode
	Pseudonyms  []PseudonymEntry
	IssuedAt    time.Time
	Validity    time.Duration
	Signatures  [][]byte // one signature per issuing party, concatenated order = chain
}

// ExpiresAt returns the instant after which the ticket is no longer valid.
func (t Ticket2) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.Validity)
}

// HasMode reports whether mode is among the ticket's granted modes.
// read implies read-meta.
func (t Ticket2) HasMode(mode Mode) bool {
	for _, m := range t.Modes {
		if m == mode {
			return true
		}
		if mode == ModeReadMeta && m == ModeRead {
			return true
		}
	}
	return false
}

// HasColumn reports whether column is among the ticket's granted columns.
func (t Ticket2) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// IndexedTicket2 additionally carries, per column-group and
// participant-group, the indices into the pseudonym/column vectors the
// group expanded to, so clients can re-apply group semantics without
// re-resolving names.
type IndexedTicket2 struct {
	Ticket2
	ColumnGroupIndices      map[string][]int
	ParticipantGroupIndices map[string][]int
}
