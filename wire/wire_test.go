package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/pep-constellation/pep-core/ledger"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := EncryptionKeyRequest{
		Ticket: TicketBytes("ticket-bytes"),
		Entries: []KeyRequestEntry{
			{Metadata: []byte("m"), PolymorphicEncryptionKey: []byte("k"), PseudonymIndex: 3},
		},
	}
	f, err := Encode(TypeEncryptionKeyRequest, req)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, TypeEncryptionKeyRequest, got.Type)

	var decoded EncryptionKeyRequest
	require.NoError(t, Decode(got, &decoded))
	require.Equal(t, req, decoded)
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0})
	_, err := ReadFrame(buf)
	require.Error(t, err)
}

func TestConnSendRecvRoundTrip(t *testing.T) {
	var pipe bytes.Buffer
	conn := NewConn(&pipe)

	resp := ColumnAccessResponse{
		ColumnGroups: map[string]ColumnGroupAccess{
			"hr-columns": {Modes: []Mode{ledger.ModeRead}, Columns: []string{"salary"}},
		},
		Columns: []string{"salary"},
	}
	require.NoError(t, conn.Send(TypeColumnAccessResponse, resp))

	var got ColumnAccessResponse
	typ, err := conn.Recv(&got)
	require.NoError(t, err)
	require.Equal(t, TypeColumnAccessResponse, typ)
	require.Equal(t, resp, got)
}

func TestConnSendErrorSurfacesKindOnRecv(t *testing.T) {
	var pipe bytes.Buffer
	conn := NewConn(&pipe)

	require.NoError(t, conn.SendError(peperr.AccessDenied("hr-columns", "read", "outsiders")))

	_, err := conn.Recv(nil)
	require.Error(t, err)
	require.True(t, peperr.Is(err, peperr.KindAccessDenied))
}

func TestDataDeleteResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	resp := DataDeleteResponse{Timestamp: time.Now().UTC().Truncate(time.Second), Entries: []string{"a", "b"}}
	f, err := Encode(TypeDataDeleteResponse, resp)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	var decoded DataDeleteResponse
	require.NoError(t, Decode(got, &decoded))
	require.True(t, resp.Timestamp.Equal(decoded.Timestamp))
	require.Equal(t, resp.Entries, decoded.Entries)
}
