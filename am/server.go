// Package am implements the Access Manager party façade: the ledger of
// record, ticket issuance, and the administrative operations, composed
// behind a single-goroutine reactor.
package am

import (
	"context"
	"time"

	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/pepcontext"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/wire"
	"go.uber.org/zap"
)

// Server is the Access Manager: the ledger plus everything needed to
// issue tickets against it.
type Server struct {
	State   *ledger.State
	Cache   *pseudonym.Cache
	Issuers []ticket.KeyPair // this party's signing keypair(s), order matters
	AMChain pseudonym.Chain
	SFChain pseudonym.Chain
	ACChain pseudonym.Chain // access-group chain, used only if requested

	// DefaultValidity is the ticket lifetime Serve issues tickets with,
	// configured per-party (partyconfig.Config.TicketValidity).
	DefaultValidity time.Duration

	// TokenSigningKey authenticates bearer tokens minted by IssueToken.
	// Falls back to a fixed default if unset, which is only acceptable
	// for the in-process demo driver.
	TokenSigningKey []byte

	reactor *pepcontext.Reactor
	log     *zap.Logger
}

// NewServer constructs an Access Manager server over an existing ledger
// state and transcryption chains, starting its reactor goroutine.
func NewServer(state *ledger.State, issuers []ticket.KeyPair, amChain, sfChain pseudonym.Chain) *Server {
	return &Server{
		State:           state,
		Cache:           pseudonym.NewCache(),
		Issuers:         issuers,
		AMChain:         amChain,
		SFChain:         sfChain,
		DefaultValidity: time.Hour,
		reactor:         pepcontext.NewReactor(64),
		log:             pepcontext.Log().Named("am"),
	}
}

// Stop shuts down the server's reactor goroutine.
func (s *Server) Stop() {
	s.reactor.Stop()
}

// IssueTicket resolves and signs a ticket for requester over req's column
// and participant groups, running every step on the reactor goroutine so
// ledger reads/writes within a single issuance never race a concurrent
// admin mutation.
func (s *Server) IssueTicket(ctx context.Context, requester ticket.Requester, req wire.TicketIssueRequest, participants map[string]pseudonym.Polymorphic, now time.Time, validity time.Duration) (ticket.IndexedTicket2, error) {
	var (
		out ticket.IndexedTicket2
		err error
	)
	runErr := s.reactor.Submit(ctx, func() {
		opts := ticket.RequestTicket2Opts{
			Requester:                     requester,
			ColumnGroup:                   req.ColumnGroup,
			ParticipantGroup:              req.ParticipantGroup,
			Modes:                         req.Modes,
			Validity:                      validity,
			Participants:                  participants,
			AMChain:                       s.AMChain,
			SFChain:                       s.SFChain,
			IncludeAccessGroupPseudonyms:  req.IncludeAccessGroupPseudonyms,
			AccessGroupChain:              s.ACChain,
			Issuers:                       s.Issuers,
		}
		out, err = ticket.IssueTicket2(s.State, opts, now, s.Cache)
	})
	if runErr != nil {
		return ticket.IndexedTicket2{}, peperr.Wrap(peperr.KindCancelled, runErr, "am: issue ticket cancelled")
	}
	if err != nil {
		s.log.Debug("ticket issuance denied", zap.Error(err), zap.String("user", requester.User))
	}
	return out, err
}

// ColumnAccess answers a ColumnAccessRequest for userGroup, listing every
// column group it holds any of requireModes over (or every rule if
// requireModes is empty).
func (s *Server) ColumnAccess(userGroup string, requireModes []ledger.Mode, now time.Time) wire.ColumnAccessResponse {
	resp := wire.ColumnAccessResponse{ColumnGroups: map[string]wire.ColumnGroupAccess{}}
	seen := map[string]bool{}

	for _, g := range s.State.ColumnGroups.Current(now) {
		var granted []ledger.Mode
		for _, m := range allModes() {
			if s.State.HasColumnGroupAccess(g.Name, userGroup, m, now) {
				granted = append(granted, m)
			}
		}
		if len(granted) == 0 {
			continue
		}
		if len(requireModes) > 0 && !anyModeIn(granted, requireModes) {
			continue
		}
		columns := s.State.ColumnsInGroup(g.Name, now)
		resp.ColumnGroups[g.Name] = wire.ColumnGroupAccess{Modes: granted, Columns: columns}
		for _, c := range columns {
			if !seen[c] {
				seen[c] = true
				resp.Columns = append(resp.Columns, c)
			}
		}
	}
	return resp
}

// ParticipantGroupAccess answers a ParticipantGroupAccessRequest for
// userGroup.
func (s *Server) ParticipantGroupAccess(userGroup string, now time.Time) wire.ParticipantGroupAccessResponse {
	resp := wire.ParticipantGroupAccessResponse{Groups: map[string][]ledger.Mode{}}
	for _, g := range s.State.ParticipantGroups.Current(now) {
		var granted []ledger.Mode
		for _, m := range allModes() {
			if s.State.HasParticipantGroupAccess(g.Name, userGroup, m, now) {
				granted = append(granted, m)
			}
		}
		if len(granted) > 0 {
			resp.Groups[g.Name] = granted
		}
	}
	return resp
}

func allModes() []ledger.Mode {
	return []ledger.Mode{
		ledger.ModeRead, ledger.ModeWrite, ledger.ModeReadMeta,
		ledger.ModeWriteMeta, ledger.ModeAccess, ledger.ModeEnumerate,
	}
}

func anyModeIn(haystack, needles []ledger.Mode) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if h == n {
				return true
			}
		}
	}
	return false
}
