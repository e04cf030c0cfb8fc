package am

import (
	"testing"
	"time"

	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/stretchr/testify/require"
)

func TestIssueTokenAuthenticatesThenBlocklistRefuses(t *testing.T) {
	now := time.Now()
	srv, _, _ := newTestServer(t, now)
	admin := ticket.Requester{User: "root", UserGroup: AdminGroup}

	token, err := srv.IssueToken("bob", "ResearchAssessor", now.Add(time.Hour), now)
	require.NoError(t, err)

	subject, group, err := srv.AuthenticateToken(token, now)
	require.NoError(t, err)
	require.Equal(t, "bob", subject)
	require.Equal(t, "ResearchAssessor", group)

	tokenID, err := srv.TokenID(token)
	require.NoError(t, err)

	t1 := now.Add(time.Minute)
	require.NoError(t, srv.BlocklistToken(admin, tokenID, "compromised", t1))

	_, _, err = srv.AuthenticateToken(token, t1)
	require.Error(t, err)
	require.True(t, peperr.Is(err, peperr.KindAccessDenied))

	t2 := t1.Add(time.Minute)
	require.NoError(t, srv.RemoveTokenBlocklistEntry(admin, tokenID, t2))
	_, _, err = srv.AuthenticateToken(token, t2)
	require.NoError(t, err)
}

func TestAuthenticateTokenRejectsExpired(t *testing.T) {
	now := time.Now()
	srv, _, _ := newTestServer(t, now)

	token, err := srv.IssueToken("bob", "ResearchAssessor", now.Add(time.Second), now)
	require.NoError(t, err)

	_, _, err = srv.AuthenticateToken(token, now.Add(time.Hour))
	require.Error(t, err)
	require.True(t, peperr.Is(err, peperr.KindTicketExpired))
}

func TestBlocklistTokenRequiresAdmin(t *testing.T) {
	now := time.Now()
	srv, _, _ := newTestServer(t, now)
	nonAdmin := ticket.Requester{User: "bob", UserGroup: "hr-staff"}

	token, err := srv.IssueToken("bob", "ResearchAssessor", now.Add(time.Hour), now)
	require.NoError(t, err)
	tokenID, err := srv.TokenID(token)
	require.NoError(t, err)

	err = srv.BlocklistToken(nonAdmin, tokenID, "nope", now)
	require.Error(t, err)
	require.True(t, peperr.Is(err, peperr.KindAccessDenied))
}
