package wire

import "io"

// Transport is the minimal surface am/ts/ks/sf need to speak the framing
// protocol: a reliable, ordered byte stream. A *tls.Conn or an in-process
// net.Pipe both satisfy it; wire never constructs the connection itself,
// since TLS/mutual-auth setup is the caller's responsibility.
type Transport interface {
	io.Reader
	io.Writer
}

// Conn wraps a Transport with frame-level Send/Recv helpers, so party
// façades work in terms of typed messages rather than raw frames.
type Conn struct {
	t Transport
}

// NewConn wraps t.
func NewConn(t Transport) *Conn {
	return &Conn{t: t}
}

// Send encodes msg as typ and writes it.
func (c *Conn) Send(typ Type, msg any) error {
	f, err := Encode(typ, msg)
	if err != nil {
		return err
	}
	return WriteFrame(c.t, f)
}

// Recv reads the next frame and decodes its body into out.
func (c *Conn) Recv(out any) (Type, error) {
	f, err := ReadFrame(c.t)
	if err != nil {
		return 0, err
	}
	if f.Type == TypeErrorResponse {
		var eb ErrorBody
		if decErr := Decode(f, &eb); decErr == nil {
			return f.Type, decodedError(eb)
		}
	}
	if out != nil {
		if err := Decode(f, out); err != nil {
			return f.Type, err
		}
	}
	return f.Type, nil
}

// SendError writes err as a TypeErrorResponse frame.
func (c *Conn) SendError(err error) error {
	return WriteError(c.t, err)
}
