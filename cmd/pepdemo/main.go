// Command pepdemo wires up all four PEP parties against in-memory state
// and runs through a set of end-to-end scenarios: the seed list a
// production test suite would build on. It logs each scenario's outcome
// and exits non-zero on the first failure.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pep-constellation/pep-core/am"
	"github.com/pep-constellation/pep-core/cell"
	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/ks"
	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/pageio"
	"github.com/pep-constellation/pep-core/pepcontext"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/sf"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/ts"
	"github.com/pep-constellation/pep-core/wire"
	"go.uber.org/zap"
)

// deployment bundles the four party servers and the shared chains a real
// process would load from partyconfig.Config, all built with identity
// (S=K=1) single-hop chains for readability.
type deployment struct {
	state *ledger.State

	amSrv *am.Server
	sfSrv *sf.Server
	ksSrv *ks.Server

	amChain pseudonym.Chain
	sfChain pseudonym.Chain
	ksChain pseudonym.Chain

	masterY *group.Point
}

func identityChain(party pseudonym.Party, priv *group.Scalar, pub *group.Point) pseudonym.Chain {
	return pseudonym.Chain{
		MasterY:   pub,
		Hops:      []pseudonym.Hop{{Party: party, S: group.OneScalar(), K: group.OneScalar()}},
		TargetKey: priv,
	}
}

func newDeployment(now time.Time) *deployment {
	st := ledger.NewState()

	st.CreateColumn("ParticipantInfo", now)
	st.CreateColumn("SecretColumn", now)
	st.CreateColumnGroup("assessor-columns", now)
	st.AddColumnToGroup("assessor-columns", "ParticipantInfo", now)
	st.GrantColumnGroupAccess("assessor-columns", "ResearchAssessor", ledger.ModeRead, now)
	st.GrantColumnGroupAccess("assessor-columns", "ResearchAssessor", ledger.ModeWrite, now)

	st.CreateParticipantGroup("assessed-participants", now)
	st.GrantParticipantGroupAccess("assessed-participants", "ResearchAssessor", ledger.ModeRead, now)
	st.GrantParticipantGroupAccess("assessed-participants", "ResearchAssessor", ledger.ModeWrite, now)

	amKey := group.RandomScalar()
	masterY := group.BaseMult(amKey)
	sfKey := group.RandomScalar()
	sfMaster := group.BaseMult(sfKey)
	ksKey := group.RandomScalar()
	ksMaster := group.BaseMult(ksKey)

	amChain := identityChain(pseudonym.AccessManager, amKey, masterY)
	sfChain := identityChain(pseudonym.StorageFacility, sfKey, sfMaster)
	ksChain := identityChain(pseudonym.KeyServer, ksKey, ksMaster)

	amSrv := am.NewServer(st, []ticket.KeyPair{ticket.GenerateKeyPair()}, amChain, sfChain)
	sfSrv := sf.NewServer(pageio.NewMemStore())
	ksSrv := ks.NewServer(ksChain)

	return &deployment{
		state:   st,
		amSrv:   amSrv,
		sfSrv:   sfSrv,
		ksSrv:   ksSrv,
		amChain: amChain,
		sfChain: sfChain,
		ksChain: ksChain,
		masterY: masterY,
	}
}

func (d *deployment) stop() {
	d.amSrv.Stop()
	d.sfSrv.Stop()
	d.ksSrv.Stop()
}

// enrollParticipant adds identifier to assessed-participants and returns
// its Polymorphic Pseudonym plus its local-pseudonym-at-AM key used as the
// ledger's membership handle.
func (d *deployment) enrollParticipant(identifier string, now time.Time) (pseudonym.Polymorphic, string) {
	pp := pseudonym.Pseudonymize([]byte(identifier), d.masterY)
	lpAM := "lp-am-" + identifier
	d.state.AddParticipantToGroup("assessed-participants", lpAM, now)
	return pp, lpAM
}

// issueTicket runs am.Server.IssueTicket the way a resolved client request
// would, for the fixed assessor-columns/assessed-participants groups.
func (d *deployment) issueTicket(ctx context.Context, requester ticket.Requester, participants map[string]pseudonym.Polymorphic, modes []ledger.Mode, now time.Time) (ticket.Ticket2, error) {
	req := wire.TicketIssueRequest{ColumnGroup: "assessor-columns", ParticipantGroup: "assessed-participants", Modes: modes}
	idx, err := d.amSrv.IssueTicket(ctx, requester, req, participants, now, time.Hour)
	if err != nil {
		return ticket.Ticket2{}, err
	}
	return idx.Ticket2, nil
}

// resolveCellKey blinds rawKey for (pseudonymIndex, column) through the Key
// Server, returning the key actually used to encrypt/decrypt that cell.
func (d *deployment) resolveCellKey(ctx context.Context, t ticket.Ticket2, pseudonymIndex int, column string, rawKey *group.Point) (cell.Key, error) {
	ek := elgamal.Encrypt(rawKey, d.ksChain.MasterY)
	entry := wire.KeyRequestEntry{
		PolymorphicEncryptionKey: append(append([]byte{}, ek.B.Pack()...), ek.C.Pack()...),
		BlindMode:                true,
		Metadata:                 []byte(column),
		PseudonymIndex:           pseudonymIndex,
	}
	keys, err := d.ksSrv.ResolveKeys(ctx, t, []wire.KeyRequestEntry{entry})
	if err != nil {
		return cell.Key{}, err
	}
	p, err := group.Unpack(keys[0])
	if err != nil {
		return cell.Key{}, err
	}
	return cell.Key{Point: p}, nil
}

func scenarioHappyPathStoreAndRetrieve(ctx context.Context, log *zap.Logger) error {
	now := time.Now()
	d := newDeployment(now)
	defer d.stop()

	pp, lpAM := d.enrollParticipant("Alice", now)
	requester := ticket.Requester{User: "alice-assessor", UserGroup: "ResearchAssessor"}

	t, err := d.issueTicket(ctx, requester, map[string]pseudonym.Polymorphic{lpAM: pp}, []ledger.Mode{ledger.ModeRead, ledger.ModeWrite}, now)
	if err != nil {
		return fmt.Errorf("issuing ticket: %w", err)
	}
	if len(t.Pseudonyms) != 1 {
		return fmt.Errorf("expected one resolved pseudonym, got %d", len(t.Pseudonyms))
	}

	rawKey := group.BaseMult(group.RandomScalar())
	cellKey, err := d.resolveCellKey(ctx, t, 0, "ParticipantInfo", rawKey)
	if err != nil {
		return fmt.Errorf("resolving cell key: %w", err)
	}

	meta := cell.Metadata{Extras: []cell.MetadataXEntry{{Name: "fileExtension", Value: []byte(".txt")}}}
	lpSF := t.Pseudonyms[0].LocalAtSF.Pack()
	id, hash, err := d.sfSrv.Store(ctx, "ParticipantInfo", lpSF, []byte("hello"), cellKey, meta)
	if err != nil {
		return fmt.Errorf("storing cell: %w", err)
	}

	payload, gotMeta, err := d.sfSrv.Read(ctx, id, cellKey)
	if err != nil {
		return fmt.Errorf("reading cell: %w", err)
	}
	if string(payload) != "hello" {
		return fmt.Errorf("expected payload %q, got %q", "hello", payload)
	}
	if ext := extraValue(gotMeta, "fileExtension"); ext != ".txt" {
		return fmt.Errorf("expected fileExtension .txt, got %q", ext)
	}
	head, ok := d.sfSrv.Head(id)
	if !ok {
		return fmt.Errorf("missing head for %s", id)
	}
	wantHash := cell.ETag(head.Pages)
	if string(hash) != string(wantHash) {
		return fmt.Errorf("store hash does not match ETag(pages)")
	}

	log.Info("scenario 1 ok: happy-path store + retrieve", zap.String("id", id))
	return nil
}

func scenarioAccessDeniedOnUnauthorisedColumn(ctx context.Context, log *zap.Logger) error {
	now := time.Now()
	d := newDeployment(now)
	defer d.stop()

	pp, lpAM := d.enrollParticipant("Alice", now)
	requester := ticket.Requester{User: "alice-assessor", UserGroup: "ResearchAssessor"}

	req := wire.TicketIssueRequest{ColumnGroup: "assessor-columns", ParticipantGroup: "assessed-participants", Modes: []ledger.Mode{ledger.ModeRead}}
	// SecretColumn was never added to assessor-columns, so requesting a
	// ticket over the group still excludes it; demonstrate the direct
	// per-column denial instead by checking the rule lookup itself.
	if d.state.HasColumnGroupAccess("assessor-columns", "ResearchAssessor", ledger.ModeRead, now) {
		if containsColumn(d.state.ColumnsInGroup("assessor-columns", now), "SecretColumn") {
			return fmt.Errorf("SecretColumn unexpectedly reachable via assessor-columns")
		}
	}

	st2 := ledger.NewState()
	st2.CreateColumn("SecretColumn", now)
	st2.CreateColumnGroup("secret-columns", now)
	st2.AddColumnToGroup("secret-columns", "SecretColumn", now)
	// No access rule granted for ResearchAssessor over secret-columns.
	amSrv := am.NewServer(st2, []ticket.KeyPair{ticket.GenerateKeyPair()}, d.amChain, d.sfChain)
	defer amSrv.Stop()

	secretReq := wire.TicketIssueRequest{ColumnGroup: "secret-columns", ParticipantGroup: "assessed-participants", Modes: []ledger.Mode{ledger.ModeRead}}
	_, err := amSrv.IssueTicket(ctx, requester, secretReq, map[string]pseudonym.Polymorphic{lpAM: pp}, now, time.Hour)
	if err == nil {
		return fmt.Errorf("expected AccessDenied issuing a ticket over an ungranted column group")
	}

	_, err = d.issueTicket(ctx, requester, map[string]pseudonym.Polymorphic{lpAM: pp}, req.Modes, now)
	if err != nil {
		return fmt.Errorf("expected the granted ticket to still issue: %w", err)
	}

	log.Info("scenario 2 ok: access denied on unauthorised column")
	return nil
}

func scenarioChecksumTamperDetection(log *zap.Logger) error {
	now := time.Now()
	st := ledger.NewState()
	st.CreateColumn("ParticipantInfo", now)
	st.CreateColumn("SecretColumn", now.Add(time.Second))

	chk1, cp1, err := st.Compute("columns", 0)
	if err != nil {
		return err
	}

	tampered, err := st.Columns.Get("SecretColumn", now.Add(time.Second))
	if err != nil {
		return err
	}
	tampered.Name = "Tampered"
	st.Columns.Append(tampered, false, now.Add(2*time.Second))

	chk2, _, err := st.Compute("columns", 0)
	if err != nil {
		return err
	}
	if chk1 == chk2 {
		return fmt.Errorf("expected tamper to change the checksum")
	}

	chk3, _, err := st.Compute("columns", cp1-1)
	if err != nil {
		return err
	}
	chk1Again, _, err := st.Compute("columns", cp1-1)
	if err != nil {
		return err
	}
	if chk3 != chk1Again {
		return fmt.Errorf("checksum computed at an earlier checkpoint should be stable")
	}

	log.Info("scenario 3 ok: checksum-chain tamper detection")
	return nil
}

func scenarioGroupMembershipSnapshot(ctx context.Context, log *zap.Logger) error {
	t0 := time.Now()
	d := newDeployment(t0)
	defer d.stop()

	pp, lpAM := d.enrollParticipant("Alice", t0)
	requester := ticket.Requester{User: "alice-assessor", UserGroup: "ResearchAssessor"}

	ticketAtT0, err := d.issueTicket(ctx, requester, map[string]pseudonym.Polymorphic{lpAM: pp}, []ledger.Mode{ledger.ModeRead}, t0)
	if err != nil {
		return fmt.Errorf("issuing ticket at t0: %w", err)
	}
	if len(ticketAtT0.Pseudonyms) != 1 {
		return fmt.Errorf("expected P resolved at t0")
	}

	t1 := t0.Add(time.Second)
	if err := d.state.RemoveParticipantFromGroup("assessed-participants", lpAM, t1); err != nil {
		return fmt.Errorf("removing participant: %w", err)
	}

	t2 := t1.Add(time.Second)
	ticketAtT2, err := d.issueTicket(ctx, requester, map[string]pseudonym.Polymorphic{lpAM: pp}, []ledger.Mode{ledger.ModeRead}, t2)
	if err != nil {
		return fmt.Errorf("issuing ticket at t2: %w", err)
	}
	if len(ticketAtT2.Pseudonyms) != 0 {
		return fmt.Errorf("expected P excluded from a ticket requested after removal")
	}

	log.Info("scenario 4 ok: group membership snapshot")
	return nil
}

func scenarioMetadataOnlyUpdate(ctx context.Context, log *zap.Logger) error {
	now := time.Now()
	d := newDeployment(now)
	defer d.stop()

	pp, lpAM := d.enrollParticipant("Alice", now)
	requester := ticket.Requester{User: "alice-assessor", UserGroup: "ResearchAssessor"}
	t, err := d.issueTicket(ctx, requester, map[string]pseudonym.Polymorphic{lpAM: pp}, []ledger.Mode{ledger.ModeRead, ledger.ModeWrite}, now)
	if err != nil {
		return fmt.Errorf("issuing ticket: %w", err)
	}

	rawKey := group.BaseMult(group.RandomScalar())
	cellKey, err := d.resolveCellKey(ctx, t, 0, "ParticipantInfo", rawKey)
	if err != nil {
		return fmt.Errorf("resolving cell key: %w", err)
	}

	lpSF := t.Pseudonyms[0].LocalAtSF.Pack()
	meta := cell.Metadata{Extras: []cell.MetadataXEntry{{Name: "fileExtension", Value: []byte(".txt")}}}
	originalID, _, err := d.sfSrv.Store(ctx, "ParticipantInfo", lpSF, []byte("v1"), cellKey, meta)
	if err != nil {
		return fmt.Errorf("storing cell: %w", err)
	}

	newMeta := cell.Metadata{Extras: []cell.MetadataXEntry{{Name: "fileExtension", Value: []byte(".csv")}}, OriginalPayloadEntry: originalID}
	updatedID, err := d.sfSrv.UpdateMetadata(ctx, originalID, newMeta)
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}

	payload, gotMeta, err := d.sfSrv.Read(ctx, updatedID, cellKey)
	if err != nil {
		return fmt.Errorf("reading updated cell: %w", err)
	}
	if string(payload) != "v1" {
		return fmt.Errorf("expected payload to survive the metadata-only update, got %q", payload)
	}
	if ext := extraValue(gotMeta, "fileExtension"); ext != ".csv" {
		return fmt.Errorf("expected fileExtension .csv, got %q", ext)
	}

	log.Info("scenario 5 ok: metadata-only update")
	return nil
}

func scenarioTokenBlocklist(now time.Time, log *zap.Logger) error {
	d := newDeployment(now)
	defer d.stop()
	admin := ticket.Requester{User: "root", UserGroup: am.AdminGroup}

	token, err := d.amSrv.IssueToken("bob", "ResearchAssessor", now.Add(time.Hour), now)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	if _, _, err := d.amSrv.AuthenticateToken(token, now); err != nil {
		return fmt.Errorf("expected a fresh token to authenticate: %w", err)
	}

	tokenID, err := d.amSrv.TokenID(token)
	if err != nil {
		return fmt.Errorf("computing token id: %w", err)
	}

	t1 := now.Add(time.Minute)
	if err := d.amSrv.BlocklistToken(admin, tokenID, "compromised", t1); err != nil {
		return fmt.Errorf("blocklisting token: %w", err)
	}
	if _, _, err := d.amSrv.AuthenticateToken(token, t1); err == nil {
		return fmt.Errorf("expected a blocklisted token to be refused")
	}

	t2 := t1.Add(time.Minute)
	if err := d.amSrv.RemoveTokenBlocklistEntry(admin, tokenID, t2); err != nil {
		return fmt.Errorf("removing blocklist entry: %w", err)
	}
	if _, _, err := d.amSrv.AuthenticateToken(token, t2); err != nil {
		return fmt.Errorf("expected acceptance restored after removal: %w", err)
	}

	log.Info("scenario 6 ok: token blocklist")
	return nil
}

// transcryptorHopOverWire exercises ts.Server standalone, independent of
// the scenarios above: a Transcryptor dialed over an in-process pipe
// applies its reshuffle/rekey share to one ciphertext.
func transcryptorHopOverWire(ctx context.Context, log *zap.Logger) error {
	share := pseudonym.Hop{Party: pseudonym.Transcryptor, S: group.RandomScalar(), K: group.RandomScalar()}
	tsSrv := ts.NewServer(share)
	defer tsSrv.Stop()

	client, server := net.Pipe()
	defer client.Close()
	go tsSrv.Serve(ctx, server)

	conn := wire.NewConn(client)

	yPriv := group.RandomScalar()
	y := group.BaseMult(yPriv)
	priv := group.RandomScalar()
	plain := group.BaseMult(priv)
	ct := elgamal.Encrypt(plain, y)

	req := wire.TranscryptHopRequest{B: ct.B.Pack(), C: ct.C.Pack(), CurrentY: y.Pack()}
	if err := conn.Send(wire.TypeTranscryptHopRequest, req); err != nil {
		return err
	}
	var resp wire.TranscryptHopResponse
	typ, err := conn.Recv(&resp)
	if err != nil {
		return err
	}
	if typ != wire.TypeTranscryptHopResponse {
		return fmt.Errorf("unexpected response type %v", typ)
	}

	newB, err := group.Unpack(resp.B)
	if err != nil {
		return err
	}
	newC, err := group.Unpack(resp.C)
	if err != nil {
		return err
	}
	newY, err := group.Unpack(resp.NewY)
	if err != nil {
		return err
	}

	decryptKey := yPriv.Mul(share.K)
	got := elgamal.Decrypt(elgamal.Ciphertext{B: newB, C: newC}, decryptKey)
	want := plain.Mult(share.S)
	if !got.Equal(want) {
		return fmt.Errorf("transcrypted hop did not rewrite under the expected rekey/reshuffle")
	}
	if !newY.Equal(y.Mult(share.K)) {
		return fmt.Errorf("transcrypted hop returned an unexpected effective key")
	}

	log.Info("bonus ok: transcryptor hop over wire")
	return nil
}

func extraValue(m cell.Metadata, key string) string {
	for _, e := range m.Extras {
		if e.Name == key {
			return string(e.Value)
		}
	}
	return ""
}

func containsColumn(columns []string, target string) bool {
	for _, c := range columns {
		if c == target {
			return true
		}
	}
	return false
}

func run() error {
	if err := pepcontext.Init(pepcontext.Config{}); err != nil {
		return err
	}
	defer pepcontext.Shutdown()
	log := pepcontext.Log().Named("pepdemo")

	ctx := context.Background()
	scenarios := []func() error{
		func() error { return scenarioHappyPathStoreAndRetrieve(ctx, log) },
		func() error { return scenarioAccessDeniedOnUnauthorisedColumn(ctx, log) },
		func() error { return scenarioChecksumTamperDetection(log) },
		func() error { return scenarioGroupMembershipSnapshot(ctx, log) },
		func() error { return scenarioMetadataOnlyUpdate(ctx, log) },
		func() error { return scenarioTokenBlocklist(time.Now(), log) },
		func() error { return transcryptorHopOverWire(ctx, log) },
	}

	for _, scenario := range scenarios {
		if err := scenario(); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pepdemo: ", err)
		os.Exit(1)
	}
}
