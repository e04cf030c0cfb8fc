package sf

import (
	"context"
	"time"

	"github.com/pep-constellation/pep-core/cell"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/wire"
	"go.uber.org/zap"
)

// Serve decodes one request at a time off t, dispatching data-path
// operations (store/read/enumerate/history/delete/metadata) against a
// presented ticket, replying in arrival order, until t is closed or ctx is
// cancelled.
//
// Every request entry's resolved key is carried pre-transcrypted by the
// Key Server (this reference deployment has the client call ks.Server
// directly before storing or reading, rather than having sf dial out to ks
// mid-request); the wire field named PolymorphicKey therefore already
// holds a resolved 32-byte point by the time it reaches here.
func (s *Server) Serve(ctx context.Context, t wire.Transport) error {
	conn := wire.NewConn(t)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := wire.ReadFrame(t)
		if err != nil {
			return err
		}

		if err := s.handle(ctx, conn, f); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, conn *wire.Conn, f wire.Frame) error {
	switch f.Type {
	case wire.TypeDataStoreRequest:
		var req wire.DataStoreRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		resp, err := s.handleStore(ctx, req)
		if err != nil {
			s.log.Debug("store failed", zap.Error(err))
			return conn.SendError(err)
		}
		return conn.Send(wire.TypeDataStoreResponse, resp)

	case wire.TypeDataReadRequest:
		var req wire.DataReadRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		return s.handleRead(ctx, conn, req)

	case wire.TypeDataEnumerationRequest:
		var req wire.DataEnumerationRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		return s.streamEnumerate(conn, req)

	case wire.TypeDataHistoryRequest:
		var req wire.DataHistoryRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		return s.streamHistory(conn, req)

	case wire.TypeDataDeleteRequest:
		var req wire.DataDeleteRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		now := time.Now()
		if err := s.Delete(ctx, req.Entries, now); err != nil {
			return conn.SendError(err)
		}
		return conn.Send(wire.TypeDataDeleteResponse, wire.DataDeleteResponse{Timestamp: now, Entries: req.Entries})

	case wire.TypeMetadataReadRequest:
		var req wire.MetadataReadRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		resp := wire.MetadataReadResponse{Metadata: map[string][]byte{}}
		for _, id := range req.IDs {
			head, ok := s.Head(id)
			if !ok {
				return conn.SendError(peperr.New(peperr.KindNotFound, "sf: no such head: "+id))
			}
			resp.Metadata[id] = head.Metadata.Tag
		}
		return conn.Send(wire.TypeMetadataReadResponse, resp)

	case wire.TypeMetadataUpdateRequest:
		var req wire.MetadataUpdateRequest
		if err := wire.Decode(f, &req); err != nil {
			return conn.SendError(err)
		}
		meta, err := decodeMetadata(req.Metadata)
		if err != nil {
			return conn.SendError(err)
		}
		id, err := s.UpdateMetadata(ctx, req.OriginalID, meta)
		if err != nil {
			return conn.SendError(err)
		}
		return conn.Send(wire.TypeMetadataUpdateResponse, wire.MetadataUpdateResponse{ID: id})

	default:
		return conn.SendError(peperr.New(peperr.KindInvalidEncoding, "sf: unsupported request type over Serve"))
	}
}

func (s *Server) validateTicket(raw wire.TicketBytes) (ticket.Ticket2, error) {
	t, err := ticket.Unmarshal(raw)
	if err != nil {
		return ticket.Ticket2{}, err
	}
	if len(s.IssuerChain) == 0 {
		return t, nil
	}
	if err := ticket.Validate(t, time.Now(), s.IssuerChain); err != nil {
		return ticket.Ticket2{}, err
	}
	return t, nil
}

func (s *Server) handleStore(ctx context.Context, req wire.DataStoreRequest) (wire.DataStoreResponse, error) {
	t, err := s.validateTicket(req.Ticket)
	if err != nil {
		return wire.DataStoreResponse{}, err
	}
	if !t.HasMode(ticket.ModeWrite) {
		return wire.DataStoreResponse{}, peperr.AccessDenied("data", string(ticket.ModeWrite), t.Requester.UserGroup)
	}

	ids := make([]string, 0, len(req.Entries))
	for _, e := range req.Entries {
		column, pseudonymKey, err := resolveColumnAndPseudonym(t, e.ColumnIndex, e.PseudonymIndex)
		if err != nil {
			return wire.DataStoreResponse{}, err
		}
		key, err := unpackCellKey(e.PolymorphicKey)
		if err != nil {
			return wire.DataStoreResponse{}, err
		}
		meta, err := decodeMetadata(e.Metadata)
		if err != nil {
			return wire.DataStoreResponse{}, err
		}

		id, _, err := s.Store(ctx, column, pseudonymKey, e.Payload, key, meta)
		if err != nil {
			return wire.DataStoreResponse{}, err
		}
		ids = append(ids, id)
	}
	return wire.DataStoreResponse{IDs: ids}, nil
}

func (s *Server) handleRead(ctx context.Context, conn *wire.Conn, req wire.DataReadRequest) error {
	t, err := s.validateTicket(req.Ticket)
	if err != nil {
		return conn.SendError(err)
	}
	if !t.HasMode(ticket.ModeRead) {
		return conn.SendError(peperr.AccessDenied("data", string(ticket.ModeRead), t.Requester.UserGroup))
	}

	for _, id := range req.IDs {
		head, ok := s.Head(id)
		if !ok {
			return conn.SendError(peperr.New(peperr.KindNotFound, "sf: no such head: "+id))
		}
		for i, p := range head.Pages {
			page := wire.DataPayloadPage{
				ID:         id,
				PageIndex:  i,
				PageCount:  len(head.Pages),
				Ciphertext: p.Ciphertext,
				Nonce:      p.Nonce,
			}
			if err := conn.Send(wire.TypeDataPayloadPage, page); err != nil {
				return err
			}
		}
	}
	return conn.Send(wire.TypeStreamEnd, struct{}{})
}

func (s *Server) streamEnumerate(conn *wire.Conn, req wire.DataEnumerationRequest) error {
	for _, e := range s.Enumerate(req.Columns, req.Pseudonyms) {
		entry := wire.DataEnumerationEntry{ID: e.ID, Column: e.Column, Pseudonym: e.Pseudonym}
		if err := conn.Send(wire.TypeDataEnumerationEntry, entry); err != nil {
			return err
		}
	}
	return conn.Send(wire.TypeStreamEnd, struct{}{})
}

func (s *Server) streamHistory(conn *wire.Conn, req wire.DataHistoryRequest) error {
	for _, e := range s.History(req.Columns, req.Pseudonyms) {
		entry := wire.DataHistoryEntry{ID: e.ID, Column: e.Column, Pseudonym: e.Pseudonym, Timestamp: e.Timestamp, Tombstone: e.Tombstone}
		if err := conn.Send(wire.TypeDataHistoryEntry, entry); err != nil {
			return err
		}
	}
	return conn.Send(wire.TypeStreamEnd, struct{}{})
}

func resolveColumnAndPseudonym(t ticket.Ticket2, columnIndex, pseudonymIndex int) (string, []byte, error) {
	if columnIndex < 0 || columnIndex >= len(t.Columns) {
		return "", nil, peperr.New(peperr.KindInvalidEncoding, "sf: column index out of range")
	}
	if pseudonymIndex < 0 || pseudonymIndex >= len(t.Pseudonyms) {
		return "", nil, peperr.New(peperr.KindInvalidEncoding, "sf: pseudonym index out of range")
	}
	return t.Columns[columnIndex], t.Pseudonyms[pseudonymIndex].LocalAtSF.Pack(), nil
}

func unpackCellKey(b []byte) (cell.Key, error) {
	p, err := group.Unpack(b)
	if err != nil {
		return cell.Key{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "sf: decoding cell key")
	}
	return cell.Key{Point: p}, nil
}

func decodeMetadata(b []byte) (cell.Metadata, error) {
	if len(b) == 0 {
		return cell.Metadata{}, nil
	}
	return cell.Metadata{Tag: b}, nil
}
