// Package wire implements the length-prefixed, magic-tagged message
// framing used over any io.ReadWriter, plus the full request taxonomy
// every party exchanges.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pep-constellation/pep-core/peperr"
)

// magic disambiguates a PEP wire frame from stray bytes on a misconfigured
// connection; version lets a future incompatible framing change coexist
// during a rolling upgrade.
const (
	magic          uint32 = 0x50455032 // "PEP2"
	version        uint16 = 1
	maxFrameLength        = 64 << 20 // 64 MiB, generous for a metadata page batch
)

// Type discriminates the concrete message carried by a frame's body.
type Type uint16

const (
	TypeTicketIssueRequest Type = iota + 1
	TypeTicketIssueResponse
	TypeEncryptionKeyRequest
	TypeEncryptionKeyResponse
	TypeColumnAccessRequest
	TypeColumnAccessResponse
	TypeParticipantGroupAccessRequest
	TypeParticipantGroupAccessResponse
	TypeDataStoreRequest
	TypeDataStoreResponse
	TypeDataReadRequest
	TypeDataPayloadPage
	TypeDataEnumerationRequest
	TypeDataEnumerationEntry
	TypeDataHistoryRequest
	TypeDataHistoryEntry
	TypeDataDeleteRequest
	TypeDataDeleteResponse
	TypeMetadataReadRequest
	TypeMetadataReadResponse
	TypeMetadataUpdateRequest
	TypeMetadataUpdateResponse
	TypeColumnNameMappingRequest
	TypeColumnNameMappingResponse
	TypeStructureMetadataRequest
	TypeStructureMetadataResponse
	TypeSetStructureMetadataRequest
	TypeUserMutationRequest
	TypeUserMutationResponse
	TypeUserQuery
	TypeUserQueryResponse
	TypeFindUserRequest
	TypeFindUserResponse
	TypeAsaTokenRequest
	TypeAsaTokenResponse
	TypeTokenBlocklistListRequest
	TypeTokenBlocklistListResponse
	TypeTokenBlocklistCreateRequest
	TypeTokenBlocklistCreateResponse
	TypeTokenBlocklistRemoveRequest
	TypeTokenBlocklistRemoveResponse
	TypeErrorResponse
	TypeStreamEnd
	TypeTranscryptHopRequest
	TypeTranscryptHopResponse
)

// Frame is one length-prefixed message: a 4-byte magic, 2-byte version,
// 2-byte type, 4-byte body length, then the JSON body.
type Frame struct {
	Type Type
	Body []byte
}

// WriteFrame serialises and writes a single frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Body) > maxFrameLength {
		return peperr.New(peperr.KindInvalidEncoding, "wire: frame body exceeds maximum length")
	}
	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], magic)
	binary.BigEndian.PutUint16(header[4:6], version)
	binary.BigEndian.PutUint16(header[6:8], uint16(f.Type))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(f.Body)))

	if _, err := w.Write(header); err != nil {
		return peperr.Wrap(peperr.KindCancelled, err, "wire: writing frame header")
	}
	if _, err := w.Write(f.Body); err != nil {
		return peperr.Wrap(peperr.KindCancelled, err, "wire: writing frame body")
	}
	return nil
}

// ReadFrame reads and validates a single frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, peperr.Wrap(peperr.KindCancelled, err, "wire: reading frame header")
	}
	if got := binary.BigEndian.Uint32(header[0:4]); got != magic {
		return Frame{}, peperr.New(peperr.KindInvalidEncoding, "wire: bad magic")
	}
	if got := binary.BigEndian.Uint16(header[4:6]); got != version {
		return Frame{}, peperr.New(peperr.KindInvalidEncoding, "wire: unsupported frame version")
	}
	typ := Type(binary.BigEndian.Uint16(header[6:8]))
	length := binary.BigEndian.Uint32(header[8:12])
	if length > maxFrameLength {
		return Frame{}, peperr.New(peperr.KindInvalidEncoding, "wire: frame body exceeds maximum length")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, peperr.Wrap(peperr.KindCancelled, err, "wire: reading frame body")
	}
	return Frame{Type: typ, Body: body}, nil
}

// Encode marshals msg as JSON into a Frame of the given type.
func Encode(typ Type, msg any) (Frame, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Frame{}, peperr.Wrap(peperr.KindInternal, err, "wire: encoding message")
	}
	return Frame{Type: typ, Body: body}, nil
}

// Decode unmarshals f's body into out, which must be a pointer.
func Decode(f Frame, out any) error {
	if err := json.Unmarshal(f.Body, out); err != nil {
		return peperr.Wrap(peperr.KindInvalidEncoding, err, "wire: decoding message")
	}
	return nil
}

// ErrorBody is the body of a TypeErrorResponse frame.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteError encodes err as a TypeErrorResponse frame and writes it.
func WriteError(w io.Writer, err error) error {
	kind := "Internal"
	for k := peperr.KindInvalidEncoding; k <= peperr.KindInternal; k++ {
		if peperr.Is(err, k) {
			kind = k.String()
			break
		}
	}
	frame, encErr := Encode(TypeErrorResponse, ErrorBody{Kind: kind, Message: err.Error()})
	if encErr != nil {
		return encErr
	}
	return WriteFrame(w, frame)
}

// decodedError reconstructs a *peperr.Error from a wire ErrorBody, losing
// only the cause chain (which never crosses the wire).
func decodedError(eb ErrorBody) error {
	for k := peperr.KindInvalidEncoding; k <= peperr.KindInternal; k++ {
		if k.String() == eb.Kind {
			return peperr.New(k, eb.Message)
		}
	}
	return peperr.New(peperr.KindInternal, eb.Message)
}
