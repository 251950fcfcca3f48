package controller_test

import (
	"strings"
	"testing"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/pkg/client"
	"github.com/downfa11-org/go-backup/pkg/controller"
	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/downfa11-org/go-backup/pkg/session"
	"github.com/downfa11-org/go-backup/pkg/transport"
)

func newHandler(t *testing.T) (*controller.CommandHandler, backup.Store) {
	t.Helper()
	store := backup.NewMemoryStore(1 << 16)
	c := client.NewMultiBackupClient(1)
	if err := c.AddHost(transport.NewLoopback(backup.NewService(store)), "loopback"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	s := session.New(c, 8)
	t.Cleanup(s.Close)
	return controller.NewCommandHandler(s), store
}

func TestHandleCommand_WriteCommitListRetrieve(t *testing.T) {
	ch, _ := newHandler(t)

	steps := []struct {
		cmd  string
		want string
	}{
		{"HEARTBEAT", "alive [rpc=1 ack=1]"},
		{"WRITE 5 0 hello   backup world", "wrote 20 bytes to segment 5 at offset 0"},
		{"commit 5", "segment 5 committed"},
		{"LIST", "segments: 5"},
		{"RETRIEVE 5 64", `segment 5 (20 bytes): "hello   backup world"`},
		{"FREE 5", "segment 5 freed [rpc=6 ack=6]"},
		{"LIST", "no segments"},
	}

	for _, s := range steps {
		got := ch.HandleCommand(s.cmd)
		if !strings.Contains(got, s.want) {
			t.Errorf("%s: got %q, want it to contain %q", s.cmd, got, s.want)
		}
	}
}

func TestHandleCommand_Errors(t *testing.T) {
	ch, _ := newHandler(t)

	tests := []struct {
		cmd  string
		want string
	}{
		{"WRITE 1", "ERROR: expected WRITE"},
		{"WRITE x 0 data", "ERROR: invalid segment"},
		{"COMMIT", "ERROR: expected COMMIT"},
		{"COMMIT 9", "ERROR:"},
		{"RETRIEVE 9 -1", "ERROR: invalid size"},
		{"BOGUS", "ERROR: unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if got := ch.HandleCommand(tt.cmd); !strings.HasPrefix(got, tt.want) {
				t.Errorf("got %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestHandleCommand_RetrieveBufferTooSmall(t *testing.T) {
	ch, _ := newHandler(t)
	ch.HandleCommand("WRITE 2 0 0123456789")

	got := ch.HandleCommand("RETRIEVE 2 4")
	if !strings.Contains(got, client.ErrBufferTooSmall.Error()) {
		t.Errorf("expected buffer too small, got %q", got)
	}
}

func TestHandleCommand_Meta(t *testing.T) {
	ch, store := newHandler(t)
	data := segment.EncodeEntry(segment.Entry{Type: segment.EntryObject, TableID: 1, Key: 2, Version: 3, Data: []byte("v")})
	if err := store.Write(6, 0, data); err != nil {
		t.Fatal(err)
	}

	got := ch.HandleCommand("META 6")
	if !strings.HasPrefix(got, "1 live objects in segment 6") {
		t.Errorf("unexpected META output %q", got)
	}
}

func TestHandleCommand_Empty(t *testing.T) {
	ch, _ := newHandler(t)
	if got := ch.HandleCommand("   "); got != "" {
		t.Errorf("expected empty response, got %q", got)
	}
}
