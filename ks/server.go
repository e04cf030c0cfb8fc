// Package ks implements the Key Server party façade: the final hop of a
// per-cell key's transcryption chain, which blinds an EncryptedKey by the
// requesting participant and column, walks it through the chain, and
// decrypts the result with its own private key share so the caller
// receives a usable cell.Key.
package ks

import (
	"context"

	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pepcontext"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pepcrypto"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/ticket"
	"github.com/pep-constellation/pep-core/wire"
	"go.uber.org/zap"
)

const blindDomain = "pep-key-blind-v1"

// Server is the Key Server: a transcryption Chain ending at this party
// plus the single-goroutine reactor every party runs on. It holds no
// ledger state of its own.
type Server struct {
	Chain pseudonym.Chain

	reactor *pepcontext.Reactor
	log     *zap.Logger
}

// NewServer constructs a Key Server over chain, whose final hop and
// TargetKey belong to this party.
func NewServer(chain pseudonym.Chain) *Server {
	return &Server{
		Chain:   chain,
		reactor: pepcontext.NewReactor(64),
		log:     pepcontext.Log().Named("ks"),
	}
}

// Stop shuts down the server's reactor goroutine.
func (s *Server) Stop() {
	s.reactor.Stop()
}

// ResolveKeys transcrypts each entry's blinded polymorphic encryption key
// through the chain and decrypts it, returning one resolved key point per
// entry in the same order. t identifies the requester's pseudonyms so the
// participant-specific blinding factor can be derived consistently with
// however the key was originally blinded at write time.
func (s *Server) ResolveKeys(ctx context.Context, t ticket.Ticket2, entries []wire.KeyRequestEntry) (keys [][]byte, err error) {
	runErr := s.reactor.Submit(ctx, func() {
		keys, err = s.resolveLocked(t, entries)
	})
	if runErr != nil {
		return nil, peperr.Wrap(peperr.KindCancelled, runErr, "ks: resolve keys cancelled")
	}
	return keys, err
}

func (s *Server) resolveLocked(t ticket.Ticket2, entries []wire.KeyRequestEntry) ([][]byte, error) {
	out := make([][]byte, len(entries))
	for i, e := range entries {
		key, err := s.resolveOne(t, e)
		if err != nil {
			return nil, err
		}
		out[i] = key
	}
	return out, nil
}

func (s *Server) resolveOne(t ticket.Ticket2, e wire.KeyRequestEntry) ([]byte, error) {
	if e.PseudonymIndex < 0 || e.PseudonymIndex >= len(t.Pseudonyms) {
		return nil, peperr.New(peperr.KindInvalidEncoding, "ks: pseudonym index out of range")
	}
	if len(e.PolymorphicEncryptionKey) != 64 {
		return nil, peperr.New(peperr.KindInvalidEncoding, "ks: malformed polymorphic encryption key")
	}
	b, err := group.Unpack(e.PolymorphicEncryptionKey[:32])
	if err != nil {
		return nil, peperr.Wrap(peperr.KindInvalidEncoding, err, "ks: decoding encrypted key B")
	}
	c, err := group.Unpack(e.PolymorphicEncryptionKey[32:])
	if err != nil {
		return nil, peperr.Wrap(peperr.KindInvalidEncoding, err, "ks: decoding encrypted key C")
	}
	ek := elgamal.Ciphertext{B: b, C: c}

	participantBlind := pepcrypto.HashToScalarBytes(blindDomain, []byte("participant"), t.Pseudonyms[e.PseudonymIndex].Polymorphic.B.Pack())
	columnBlind := group.OneScalar()
	if e.BlindMode {
		columnBlind = pepcrypto.HashToScalarBytes(blindDomain, []byte("column"), e.Metadata)
	}

	transcrypted, err := pseudonym.TranscryptKey(ek, s.Chain, participantBlind, columnBlind)
	if err != nil {
		return nil, err
	}
	plain := elgamal.Decrypt(transcrypted, s.Chain.TargetKey)
	return plain.Pack(), nil
}

// Serve reads one EncryptionKeyRequest at a time off t and replies with an
// EncryptionKeyResponse (or an ErrorResponse), in arrival order, until t is
// closed or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, t wire.Transport) error {
	conn := wire.NewConn(t)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req wire.EncryptionKeyRequest
		_, err := conn.Recv(&req)
		if err != nil {
			return err
		}

		tk, err := ticket.Unmarshal(req.Ticket)
		if err != nil {
			if sendErr := conn.SendError(err); sendErr != nil {
				return sendErr
			}
			continue
		}

		keys, err := s.ResolveKeys(ctx, tk, req.Entries)
		if err != nil {
			s.log.Debug("key resolution failed", zap.Error(err))
			if sendErr := conn.SendError(err); sendErr != nil {
				return sendErr
			}
			continue
		}
		if err := conn.Send(wire.TypeEncryptionKeyResponse, wire.EncryptionKeyResponse{Keys: keys}); err != nil {
			return err
		}
	}
}
