package ticket

import (
	"time"

	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pseudonym"
)

// RequestTicket2Opts carries everything IssueTicket2 needs beyond the
// ledger snapshot itself: the resolved identity of the caller, the
// column/participant groups it is requesting, and the transcryption
// material needed to compute each participant's local pseudonyms.
type RequestTicket2Opts struct {
	Requester        Requester
	ColumnGroup      string
	ParticipantGroup string
	Modes            []Mode
	Validity         time.Duration

	// Participants supplies the polymorphic pseudonyms of ParticipantGroup's
	// members, so callers needn't re-resolve them to transcrypt
	// (IssueTicket2 still checks the group membership against the ledger
	// via state.ParticipantsInGroup and skips entries that are not members).
	Participants map[string]pseudonym.Polymorphic // keyed by LP@AM string

	AMChain pseudonym.Chain
	SFChain pseudonym.Chain

	// If IncludeAccessGroupPseudonyms is set, AccessGroupChain additionally
	// computes an optional third pseudonym, LP@AccessGroup, for each
	// participant.
	IncludeAccessGroupPseudonyms bool
	AccessGroupChain             pseudonym.Chain

	// Issuers lists the signing keypairs of every party in the issuance
	// chain, applied to the ticket in order.
	Issuers []KeyPair
}

// IssueTicket2 runs the ticket issuance algorithm: resolve the requested
// column/participant groups against state as of now, check that
// Requester.UserGroup holds every requested mode over both groups,
// transcrypt each participant's pseudonym into its party-local
// representations, then assemble and sign the ticket.
func IssueTicket2(state *ledger.State, opts RequestTicket2Opts, now time.Time, cache *pseudonym.Cache) (IndexedTicket2, error) {
	columns := state.ColumnsInGroup(opts.ColumnGroup, now)
	participantKeys := state.ParticipantsInGroup(opts.ParticipantGroup, now)

	for _, mode := range opts.Modes {
		if !state.HasColumnGroupAccess(opts.ColumnGroup, opts.Requester.UserGroup, mode, now) {
			return IndexedTicket2{}, peperr.AccessDenied(opts.ColumnGroup, string(mode), opts.Requester.UserGroup)
		}
		if !state.HasParticipantGroupAccess(opts.ParticipantGroup, opts.Requester.UserGroup, mode, now) {
			return IndexedTicket2{}, peperr.AccessDenied(opts.ParticipantGroup, string(mode), opts.Requester.UserGroup)
		}
	}

	entries := make([]PseudonymEntry, 0, len(participantKeys))
	participantIndices := make([]int, 0, len(participantKeys))
	for _, lpAM := range participantKeys {
		pp, ok := opts.Participants[lpAM]
		if !ok {
			continue
		}

		lpAtAM, err := cache.GetOrCompute(pseudonym.AccessManager, pp, func() (pseudonym.Local, error) {
			return pseudonym.TranscryptTo(pp, opts.AMChain)
		})
		if err != nil {
			return IndexedTicket2{}, err
		}
		lpAtSF, err := cache.GetOrCompute(pseudonym.StorageFacility, pp, func() (pseudonym.Local, error) {
			return pseudonym.TranscryptTo(pp, opts.SFChain)
		})
		if err != nil {
			return IndexedTicket2{}, err
		}

		entry := PseudonymEntry{
			Polymorphic: pp,
			LocalAtAM:   lpAtAM.Point,
			LocalAtSF:   lpAtSF.Point,
		}
		if opts.IncludeAccessGroupPseudonyms {
			lpAtAG, err := pseudonym.TranscryptTo(pp, opts.AccessGroupChain)
			if err != nil {
				return IndexedTicket2{}, err
			}
			entry.LocalAtAccessGroup = lpAtAG.Point
		}

		participantIndices = append(participantIndices, len(entries))
		entries = append(entries, entry)
	}

	t := Ticket2{
		Requester:  opts.Requester,
		Columns:    columns,
		Modes:      opts.Modes,
		Pseudonyms: entries,
		IssuedAt:   now,
		Validity:   opts.Validity,
	}
	for _, kp := range opts.Issuers {
		t = Sign(t, kp)
	}

	columnIndices := make([]int, len(columns))
	for i := range columns {
		columnIndices[i] = i
	}

	return IndexedTicket2{
		Ticket2: t,
		ColumnGroupIndices: map[string][]int{
			opts.ColumnGroup: columnIndices,
		},
		ParticipantGroupIndices: map[string][]int{
			opts.ParticipantGroup: participantIndices,
		},
	}, nil
}
