package ts

import (
	"context"
	"net"
	"testing"

	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/wire"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, pseudonym.Hop) {
	t.Helper()
	hop := pseudonym.Hop{Party: pseudonym.Transcryptor, S: group.RandomScalar(), K: group.RandomScalar()}
	srv := NewServer(hop)
	t.Cleanup(srv.Stop)
	return srv, hop
}

func TestApplyHopRewritesUnderNewKey(t *testing.T) {
	srv, hop := newTestServer(t)
	ctx := context.Background()

	priv := group.RandomScalar()
	y := group.BaseMult(priv)
	plain := group.BaseMult(group.RandomScalar())
	ct := elgamal.Encrypt(plain, y)

	out, newY, err := srv.ApplyHop(ctx, ct, y)
	require.NoError(t, err)
	require.True(t, newY.Equal(y.Mult(hop.K)))

	decrypted := elgamal.Decrypt(out, priv.Mul(hop.K))
	require.True(t, decrypted.Equal(plain.Mult(hop.S)))
}

func TestServeRoundTripsOverPipe(t *testing.T) {
	srv, hop := newTestServer(t)
	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, server) }()

	conn := wire.NewConn(client)

	priv := group.RandomScalar()
	y := group.BaseMult(priv)
	m := group.RandomScalar()
	plain := group.BaseMult(m)
	ct := elgamal.Encrypt(plain, y)

	req := wire.TranscryptHopRequest{B: ct.B.Pack(), C: ct.C.Pack(), CurrentY: y.Pack()}
	require.NoError(t, conn.Send(wire.TypeTranscryptHopRequest, req))

	var resp wire.TranscryptHopResponse
	typ, err := conn.Recv(&resp)
	require.NoError(t, err)
	require.Equal(t, wire.TypeTranscryptHopResponse, typ)

	newY, err := group.Unpack(resp.NewY)
	require.NoError(t, err)
	require.True(t, newY.Equal(y.Mult(hop.K)))
}
