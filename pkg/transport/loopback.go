package transport

import "errors"

var ErrNoResponse = errors.New("no response pending")

// Handler turns one request frame into one response frame.
type Handler interface {
	HandleFrame(req []byte) []byte
}

type HandlerFunc func(req []byte) []byte

func (f HandlerFunc) HandleFrame(req []byte) []byte {
	return f(req)
}

// Loopback is an in-process Transport that hands every frame straight to a Handler.
// Receive never blocks: with nothing queued it fails with ErrNoResponse.
type Loopback struct {
	handler Handler
	pending [][]byte
	closed  bool
}

func NewLoopback(h Handler) *Loopback {
	return &Loopback{handler: h}
}

func (l *Loopback) Send(frame []byte) error {
	if l.closed {
		return ErrClosed
	}
	req := make([]byte, len(frame))
	copy(req, frame)
	l.pending = append(l.pending, l.handler.HandleFrame(req))
	return nil
}

func (l *Loopback) Receive() ([]byte, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if len(l.pending) == 0 {
		return nil, ErrNoResponse
	}
	resp := l.pending[0]
	l.pending = l.pending[1:]
	return resp, nil
}

func (l *Loopback) Close() error {
	l.closed = true
	l.pending = nil
	return nil
}

func (l *Loopback) Closed() bool {
	return l.closed
}
