package ticket

import (
	"testing"
	"time"

	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/stretchr/testify/require"
)

func identityChain(targetParty pseudonym.Party, y *group.Scalar, masterY *group.Point) pseudonym.Chain {
	return pseudonym.Chain{
		MasterY:   masterY,
		Hops:      []pseudonym.Hop{{Party: targetParty, S: group.OneScalar(), K: group.OneScalar()}},
		TargetKey: y,
	}
}

func setupLedger(t *testing.T, now time.Time) (*ledger.State, pseudonym.Polymorphic, string) {
	t.Helper()
	st := ledger.NewState()

	_, err := st.CreateColumn("salary", now)
	require.NoError(t, err)
	_, err = st.CreateColumnGroup("hr-columns", now)
	require.NoError(t, err)
	st.AddColumnToGroup("hr-columns", "salary", now)

	_, err = st.CreateParticipantGroup("employees", now)
	require.NoError(t, err)

	y := group.RandomScalar()
	masterY := group.BaseMult(y)
	pp := pseudonym.Pseudonymize([]byte("alice@example.com"), masterY)

	lpAM := "lp-am-alice"
	st.AddParticipantToGroup("employees", lpAM, now)

	st.GrantColumnGroupAccess("hr-columns", "hr-staff", ledger.ModeRead, now)
	st.GrantParticipantGroupAccess("employees", "hr-staff", ledger.ModeRead, now)

	return st, pp, lpAM
}

func TestIssueTicket2HappyPath(t *testing.T) {
	now := time.Now()
	st, pp, lpAM := setupLedger(t, now)

	amKey := group.RandomScalar()
	amMaster := group.BaseMult(amKey)
	sfKey := group.RandomScalar()
	sfMaster := group.BaseMult(sfKey)

	amIssuer := GenerateKeyPair()
	cache := pseudonym.NewCache()

	opts := RequestTicket2Opts{
		Requester:        Requester{User: "bob", UserGroup: "hr-staff"},
		ColumnGroup:      "hr-columns",
		ParticipantGroup: "employees",
		Modes:            []Mode{ModeRead},
		Validity:         time.Hour,
		Participants:     map[string]pseudonym.Polymorphic{lpAM: pp},
		AMChain:          identityChain(pseudonym.AccessManager, amKey, amMaster),
		SFChain:          identityChain(pseudonym.StorageFacility, sfKey, sfMaster),
		Issuers:          []KeyPair{amIssuer},
	}

	it, err := IssueTicket2(st, opts, now, cache)
	require.NoError(t, err)
	require.Len(t, it.Pseudonyms, 1)
	require.Equal(t, []string{"salary"}, it.Columns)
	require.True(t, it.HasMode(ModeRead))
	require.True(t, it.HasColumn("salary"))

	err = Validate(it.Ticket2, now.Add(time.Minute), []*group.Point{amIssuer.Public})
	require.NoError(t, err)
}

func TestIssueTicket2AccessDenied(t *testing.T) {
	now := time.Now()
	st, pp, lpAM := setupLedger(t, now)

	amKey := group.RandomScalar()
	amMaster := group.BaseMult(amKey)
	sfKey := group.RandomScalar()
	sfMaster := group.BaseMult(sfKey)
	cache := pseudonym.NewCache()

	opts := RequestTicket2Opts{
		Requester:        Requester{User: "eve", UserGroup: "outsiders"},
		ColumnGroup:      "hr-columns",
		ParticipantGroup: "employees",
		Modes:            []Mode{ModeRead},
		Validity:         time.Hour,
		Participants:     map[string]pseudonym.Polymorphic{lpAM: pp},
		AMChain:          identityChain(pseudonym.AccessManager, amKey, amMaster),
		SFChain:          identityChain(pseudonym.StorageFacility, sfKey, sfMaster),
	}

	_, err := IssueTicket2(st, opts, now, cache)
	require.Error(t, err)
	require.True(t, peperr.Is(err, peperr.KindAccessDenied))
}

func TestSignVerifyChainRejectsTamper(t *testing.T) {
	now := time.Now()
	kp1 := GenerateKeyPair()
	kp2 := GenerateKeyPair()

	tk := Ticket2{
		Requester: Requester{User: "bob", UserGroup: "hr-staff"},
		Columns:   []string{"salary"},
		Modes:     []Mode{ModeRead},
		IssuedAt:  now,
		Validity:  time.Hour,
	}
	tk = Sign(tk, kp1)
	tk = Sign(tk, kp2)

	require.NoError(t, Validate(tk, now, []*group.Point{kp1.Public, kp2.Public}))

	tampered := tk
	tampered.Columns = []string{"ssn"}
	require.Error(t, Validate(tampered, now, []*group.Point{kp1.Public, kp2.Public}))
}

func TestValidateRejectsExpiredTicket(t *testing.T) {
	now := time.Now()
	kp := GenerateKeyPair()
	tk := Ticket2{IssuedAt: now, Validity: time.Minute}
	tk = Sign(tk, kp)

	err := Validate(tk, now.Add(2*time.Hour), []*group.Point{kp.Public})
	require.Error(t, err)
	require.True(t, peperr.Is(err, peperr.KindTicketExpired))
}
