package am

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/wire"
	"github.com/stretchr/testify/require"
)

func TestServeAnswersColumnAccessRequest(t *testing.T) {
	now := time.Now()
	srv, _, _ := newTestServer(t, now)

	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, server, ticket.Requester{User: "bob", UserGroup: "hr-staff"}) }()

	conn := wire.NewConn(client)
	require.NoError(t, conn.Send(wire.TypeColumnAccessRequest, wire.ColumnAccessRequest{}))

	var resp wire.ColumnAccessResponse
	typ, err := conn.Recv(&resp)
	require.NoError(t, err)
	require.Equal(t, wire.TypeColumnAccessResponse, typ)
	require.Contains(t, resp.ColumnGroups, "hr-columns")
}

func TestServeAnswersParticipantGroupAccessRequestForUnauthorisedGroup(t *testing.T) {
	now := time.Now()
	srv, _, _ := newTestServer(t, now)

	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, server, ticket.Requester{User: "eve", UserGroup: "outsiders"}) }()

	conn := wire.NewConn(client)
	require.NoError(t, conn.Send(wire.TypeParticipantGroupAccessRequest, wire.ParticipantGroupAccessRequest{}))

	var resp wire.ParticipantGroupAccessResponse
	typ, err := conn.Recv(&resp)
	require.NoError(t, err)
	require.Equal(t, wire.TypeParticipantGroupAccessResponse, typ)
	require.Empty(t, resp.Groups)
}

func TestServeAnswersFindUserRequest(t *testing.T) {
	now := time.Now()
	srv, _, _ := newTestServer(t, now)
	_, err := srv.State.CreateUser("alice@example.com", now)
	require.NoError(t, err)

	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, server, ticket.Requester{User: "bob", UserGroup: "hr-staff"}) }()

	conn := wire.NewConn(client)
	require.NoError(t, conn.Send(wire.TypeFindUserRequest, wire.FindUserRequest{Identifier: "alice@example.com"}))

	var resp wire.FindUserResponse
	typ, err := conn.Recv(&resp)
	require.NoError(t, err)
	require.Equal(t, wire.TypeFindUserResponse, typ)
	require.Contains(t, resp.Identifiers, "alice@example.com")
}
