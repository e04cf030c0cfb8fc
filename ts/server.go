// Package ts implements the Transcryptor party façade: a single hop of
// every pseudonymisation and key-transcryption chain, applying its own
// reshuffle/rekey secret share to whatever ciphertext it is handed. It
// holds no ledger state of its own.
package ts

import (
	"context"

	"github.com/pep-constellation/pep-core/elgamal"
	"github.com/pep-constellation/pep-core/group"
	"github.com/pep-constellation/pep-core/pepcontext"
	"github.com/pep-constellation/pep-core/peperr"
	"github.com/pep-constellation/pep-core/pseudonym"
	"github.com/pep-constellation/pep-core/wire"
	"go.uber.org/zap"
)

// Server is the Transcryptor: this party's RSK secret share plus the
// single-goroutine reactor every hop runs on, matching am/sf's concurrency
// model.
type Server struct {
	Share pseudonym.Hop

	reactor *pepcontext.Reactor
	log     *zap.Logger
}

// NewServer constructs a Transcryptor server holding share.
func NewServer(share pseudonym.Hop) *Server {
	return &Server{
		Share:   share,
		reactor: pepcontext.NewReactor(64),
		log:     pepcontext.Log().Named("ts"),
	}
}

// Stop shuts down the server's reactor goroutine.
func (s *Server) Stop() {
	s.reactor.Stop()
}

// ApplyHop rewrites c, currently encrypted under currentY, applying this
// party's (S, K) share and fresh randomness, returning the ciphertext's
// new effective public key alongside it. This is the single operation a
// remote Transcryptor performs for each hop of a pseudonym.Chain walk.
func (s *Server) ApplyHop(ctx context.Context, c elgamal.Ciphertext, currentY *group.Point) (elgamal.Ciphertext, *group.Point, error) {
	var (
		out  elgamal.Ciphertext
		newY *group.Point
		err  error
	)
	runErr := s.reactor.Submit(ctx, func() {
		r := group.RandomScalar()
		out, err = elgamal.RSK(c, currentY, s.Share.S, s.Share.K, r)
		if err == nil {
			newY = currentY.Mult(s.Share.K)
		}
	})
	if runErr != nil {
		return elgamal.Ciphertext{}, nil, peperr.Wrap(peperr.KindCancelled, runErr, "ts: apply hop cancelled")
	}
	if err != nil {
		return elgamal.Ciphertext{}, nil, peperr.Wrap(peperr.KindTranscryptionRefused, err, "ts: rsk hop failed")
	}
	return out, newY, nil
}

// Serve reads one TranscryptHopRequest at a time off t and replies with a
// TranscryptHopResponse (or an ErrorResponse), in arrival order, until t is
// closed or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, t wire.Transport) error {
	conn := wire.NewConn(t)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req wire.TranscryptHopRequest
		_, err := conn.Recv(&req)
		if err != nil {
			return err
		}

		resp, err := s.handleHop(ctx, req)
		if err != nil {
			s.log.Debug("transcrypt hop failed", zap.Error(err))
			if sendErr := conn.SendError(err); sendErr != nil {
				return sendErr
			}
			continue
		}
		if err := conn.Send(wire.TypeTranscryptHopResponse, resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleHop(ctx context.Context, req wire.TranscryptHopRequest) (wire.TranscryptHopResponse, error) {
	b, err := group.Unpack(req.B)
	if err != nil {
		return wire.TranscryptHopResponse{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ts: decoding B")
	}
	c, err := group.Unpack(req.C)
	if err != nil {
		return wire.TranscryptHopResponse{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ts: decoding C")
	}
	y, err := group.Unpack(req.CurrentY)
	if err != nil {
		return wire.TranscryptHopResponse{}, peperr.Wrap(peperr.KindInvalidEncoding, err, "ts: decoding current Y")
	}

	out, newY, err := s.ApplyHop(ctx, elgamal.Ciphertext{B: b, C: c}, y)
	if err != nil {
		return wire.TranscryptHopResponse{}, err
	}
	return wire.TranscryptHopResponse{B: out.B.Pack(), C: out.C.Pack(), NewY: newY.Pack()}, nil
}
