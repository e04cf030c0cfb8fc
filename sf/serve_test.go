package sf

import (
	"context"
	"net"
	"testing"

	"github.com/pep-constellation/pep-core/cell"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/wire"
	"github.com/stretchr/testify/require"
)

func buildTestTicket(t *testing.T, column string, lpSF *group.Point) ticket.Ticket2 {
	t.Helper()
	return ticket.Ticket2{
		Requester: ticket.Requester{User: "bob", UserGroup: "hr-staff"},
		Columns:   []string{column},
		Modes:     []ticket.Mode{ticket.ModeRead, ticket.ModeWrite},
		Pseudonyms: []ticket.PseudonymEntry{
			{Polymorphic: pseudonym.Polymorphic{B: group.BaseMult(group.RandomScalar()), C: group.BaseMult(group.RandomScalar())}, LocalAtSF: lpSF},
		},
	}
}

func TestServeStoreAndReadRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, server) }()

	conn := wire.NewConn(client)

	lpSF := group.BaseMult(group.RandomScalar())
	tk := buildTestTicket(t, "notes", lpSF)
	ticketBytes, err := ticket.Marshal(tk)
	require.NoError(t, err)

	cellKeyPoint := group.BaseMult(group.RandomScalar())
	storeReq := wire.DataStoreRequest{
		Ticket: ticketBytes,
		Entries: []wire.DataStoreEntry{
			{ColumnIndex: 0, PseudonymIndex: 0, PolymorphicKey: cellKeyPoint.Pack(), Payload: []byte("hello sf")},
		},
	}
	require.NoError(t, conn.Send(wire.TypeDataStoreRequest, storeReq))

	var storeResp wire.DataStoreResponse
	typ, err := conn.Recv(&storeResp)
	require.NoError(t, err)
	require.Equal(t, wire.TypeDataStoreResponse, typ)
	require.Len(t, storeResp.IDs, 1)

	readReq := wire.DataReadRequest{Ticket: ticketBytes, IDs: storeResp.IDs}
	require.NoError(t, conn.Send(wire.TypeDataReadRequest, readReq))

	var page wire.DataPayloadPage
	typ, err = conn.Recv(&page)
	require.NoError(t, err)
	require.Equal(t, wire.TypeDataPayloadPage, typ)
	require.Equal(t, storeResp.IDs[0], page.ID)

	typ, err = conn.Recv(nil)
	require.NoError(t, err)
	require.Equal(t, wire.TypeStreamEnd, typ)

	payload, _, err := srv.Read(ctx, storeResp.IDs[0], cell.Key{Point: cellKeyPoint})
	require.NoError(t, err)
	require.Equal(t, []byte("hello sf"), payload)
}

func TestServeRejectsStoreWithoutWriteMode(t *testing.T) {
	srv := newTestServer(t)

	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, server) }()

	conn := wire.NewConn(client)

	tk := buildTestTicket(t, "notes", group.BaseMult(group.RandomScalar()))
	tk.Modes = []ticket.Mode{ticket.ModeRead}
	ticketBytes, err := ticket.Marshal(tk)
	require.NoError(t, err)

	storeReq := wire.DataStoreRequest{
		Ticket: ticketBytes,
		Entries: []wire.DataStoreEntry{
			{ColumnIndex: 0, PseudonymIndex: 0, PolymorphicKey: group.BaseMult(group.RandomScalar()).Pack(), Payload: []byte("x")},
		},
	}
	require.NoError(t, conn.Send(wire.TypeDataStoreRequest, storeReq))

	var resp wire.DataStoreResponse
	_, err = conn.Recv(&resp)
	require.Error(t, err)
}
