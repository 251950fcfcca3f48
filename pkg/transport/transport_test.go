package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

// MockServer answers a single frame on a random local port and returns its address.
func MockServer(t *testing.T, response []byte, closeAfter bool) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			t.Errorf("Mock server: Failed to read frame length: %v", err)
			return
		}

		msgBuf := make([]byte, binary.BigEndian.Uint32(lenBuf))
		if _, err := io.ReadFull(conn, msgBuf); err != nil {
			t.Errorf("Mock server: Failed to read frame body: %v", err)
			return
		}
		t.Logf("Mock server received %d bytes", len(msgBuf))

		if closeAfter {
			return
		}

		respLenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(respLenBuf, uint32(len(response)))
		if _, err := conn.Write(append(respLenBuf, response...)); err != nil {
			t.Errorf("Mock server: Failed to send response: %v", err)
		}
	}()

	return listener.Addr().String()
}

func TestTCPTransportRoundTrip(t *testing.T) {
	want := []byte("pong-frame")
	addr := MockServer(t, want, false)

	tr, err := Dial(addr, Options{DialTimeout: time.Second, IOTimeout: time.Second})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Send([]byte("ping-frame")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got, err := tr.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestTCPTransportPeerClosed(t *testing.T) {
	addr := MockServer(t, nil, true)

	tr, err := Dial(addr, Options{DialTimeout: time.Second, IOTimeout: time.Second})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Send([]byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := tr.Receive(); err == nil {
		t.Fatal("Receive expected to fail after peer closed")
	}
}

func TestTCPTransportRejectsOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tr := NewConnTransport(client, Options{MaxFrameSize: 8})
	defer tr.Close()

	err := tr.Send(make([]byte, 9))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("Expected size error, got %v", err)
	}

	go func() {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], 1024)
		server.Write(lenBuf[:])
	}()
	if _, err := tr.Receive(); err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("Expected size error on receive, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	if _, err := Dial(addr, Options{DialTimeout: 100 * time.Millisecond}); err == nil {
		t.Fatal("Dial expected to fail against a closed port")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tr := NewConnTransport(client, Options{})
	if err := tr.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLoopback(t *testing.T) {
	calls := 0
	lb := NewLoopback(HandlerFunc(func(req []byte) []byte {
		calls++
		return append([]byte("echo:"), req...)
	}))

	if _, err := lb.Receive(); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Expected ErrNoResponse, got %v", err)
	}

	if err := lb.Send([]byte("a")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := lb.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != "echo:a" || calls != 1 {
		t.Errorf("unexpected response %q after %d calls", got, calls)
	}

	lb.Close()
	if !lb.Closed() {
		t.Error("Closed() should report true")
	}
	if err := lb.Send([]byte("b")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}
