package client_test

import (
	"testing"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/downfa11-org/go-backup/pkg/transport"
)

// MockTransport records sent frames and answers with the configured funcs.
type MockTransport struct {
	SendFunc    func(frame []byte) error
	ReceiveFunc func() ([]byte, error)
	CloseFunc   func() error

	Sent   [][]byte
	Closed bool
}

func (m *MockTransport) Send(frame []byte) error {
	m.Sent = append(m.Sent, frame)
	if m.SendFunc != nil {
		return m.SendFunc(frame)
	}
	return nil
}

func (m *MockTransport) Receive() ([]byte, error) {
	if m.ReceiveFunc != nil {
		return m.ReceiveFunc()
	}
	return nil, transport.ErrNoResponse
}

func (m *MockTransport) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func respondWith(t *testing.T, resp *protocol.Response) func() ([]byte, error) {
	t.Helper()
	frame, err := protocol.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("failed to encode canned response: %v", err)
	}
	return func() ([]byte, error) { return frame, nil }
}

// newBackup returns a loopback transport served by an in-memory backup.
func newBackup() (*transport.Loopback, backup.Store) {
	store := backup.NewMemoryStore(segment.MaxSegmentLen)
	return transport.NewLoopback(backup.NewService(store)), store
}
