package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/downfa11-org/go-backup/util"
)

const defaultMaxFrameSize = 64 * 1024 * 1024

var ErrClosed = errors.New("transport closed")

// Transport is a synchronous channel to one remote endpoint. Each Send carries
// exactly one logical frame and each Receive blocks until one full frame arrives.
type Transport interface {
	Send(frame []byte) error
	Receive() ([]byte, error)
	Close() error
}

type Options struct {
	DialTimeout  time.Duration
	IOTimeout    time.Duration // per Send/Receive deadline, 0 disables
	MaxFrameSize int
}

func (o Options) maxFrame() int {
	if o.MaxFrameSize <= 0 {
		return defaultMaxFrameSize
	}
	return o.MaxFrameSize
}

// TCPTransport delimits frames on a stream connection with a 4-byte big-endian length prefix.
type TCPTransport struct {
	conn      net.Conn
	maxFrame  int
	ioTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func Dial(addr string, opts Options) (*TCPTransport, error) {
	util.Debug("Dialing backup %s (timeout: %v)", addr, opts.DialTimeout)

	conn, err := net.DialTimeout("tcp", addr, opts.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConnTransport(conn, opts), nil
}

// NewConnTransport wraps an established connection, typically one accepted by a server.
func NewConnTransport(conn net.Conn, opts Options) *TCPTransport {
	return &TCPTransport{
		conn:      conn,
		maxFrame:  opts.maxFrame(),
		ioTimeout: opts.IOTimeout,
	}
}

func (t *TCPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *TCPTransport) Send(frame []byte) error {
	if len(frame) > t.maxFrame {
		return fmt.Errorf("frame size %d exceeds maximum %d", len(frame), t.maxFrame)
	}
	if t.ioTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.ioTimeout)); err != nil {
			return err
		}
	}

	// length prefix and frame go out in a single Write
	buf := make([]byte, 4+len(frame))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(frame)))
	copy(buf[4:], frame)
	if _, err := t.conn.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	util.Debug("Sent %d bytes to %s", len(frame), t.conn.RemoteAddr())
	return nil
}

func (t *TCPTransport) Receive() ([]byte, error) {
	if t.ioTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.ioTimeout)); err != nil {
			return nil, err
		}
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(t.conn, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read length: %w", err)
	}

	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if int64(frameLen) > int64(t.maxFrame) {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", frameLen, t.maxFrame)
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(t.conn, frame); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	util.Debug("Received %d bytes from %s", frameLen, t.conn.RemoteAddr())
	return frame, nil
}

func (t *TCPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
