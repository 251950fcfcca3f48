package client_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/downfa11-org/go-backup/pkg/client"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/types"
)

func TestAddHostLimit(t *testing.T) {
	c := client.NewMultiBackupClient(client.DefaultMaxHosts)
	defer c.Close()

	first, _ := newBackup()
	if err := c.AddHost(first, "backup-1"); err != nil {
		t.Fatalf("first AddHost: %v", err)
	}

	rejected := &MockTransport{}
	err := c.AddHost(rejected, "backup-2")
	if !errors.Is(err, client.ErrTooManyHosts) {
		t.Fatalf("expected ErrTooManyHosts, got %v", err)
	}
	if !rejected.Closed {
		t.Error("rejected transport should be closed")
	}
	if c.Hosts() != 1 {
		t.Fatalf("hosts = %d, want 1", c.Hosts())
	}

	if err := c.Heartbeat(); err != nil {
		t.Fatalf("first host should keep working: %v", err)
	}
	if first.Closed() {
		t.Error("first host transport closed by rejected AddHost")
	}
}

func TestNoHostsIsNoop(t *testing.T) {
	c := client.NewMultiBackupClient(2)

	if err := c.Heartbeat(); err != nil {
		t.Errorf("Heartbeat: %v", err)
	}
	if err := c.WriteSegment(1, 0, []byte("x")); err != nil {
		t.Errorf("WriteSegment: %v", err)
	}
	if err := c.CommitSegment(1); err != nil {
		t.Errorf("CommitSegment: %v", err)
	}
	if err := c.FreeSegment(1); err != nil {
		t.Errorf("FreeSegment: %v", err)
	}
	if n, err := c.GetSegmentList(make([]uint64, 1)); n != 0 || err != nil {
		t.Errorf("GetSegmentList = %d, %v", n, err)
	}
	if n, err := c.RetrieveSegment(1, make([]byte, 1)); n != 0 || err != nil {
		t.Errorf("RetrieveSegment = %d, %v", n, err)
	}
}

func TestMutationsReachEveryHost(t *testing.T) {
	c := client.NewMultiBackupClient(2)
	defer c.Close()

	a, storeA := newBackup()
	b, storeB := newBackup()
	if err := c.AddHost(a, "a"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddHost(b, "b"); err != nil {
		t.Fatal(err)
	}

	if err := c.WriteSegment(8, 0, []byte("replica")); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if err := c.CommitSegment(8); err != nil {
		t.Fatalf("CommitSegment: %v", err)
	}

	for name, s := range map[string]interface{ List() []uint64 }{"a": storeA, "b": storeB} {
		if ids := s.List(); len(ids) != 1 || ids[0] != 8 {
			t.Errorf("backup %s holds %v, want [8]", name, ids)
		}
	}
}

func TestMutationFailureNamesHost(t *testing.T) {
	c := client.NewMultiBackupClient(2)
	defer c.Close()

	good, store := newBackup()
	bad := &MockTransport{SendFunc: func([]byte) error { return io.ErrClosedPipe }}
	if err := c.AddHost(bad, "broken:9000"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddHost(good, "healthy:9000"); err != nil {
		t.Fatal(err)
	}

	err := c.WriteSegment(1, 0, []byte("data"))
	if !errors.Is(err, client.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken:9000") {
		t.Errorf("error should name the failing host: %v", err)
	}
	if ids := store.List(); len(ids) != 1 {
		t.Errorf("healthy host should still receive the write, holds %v", ids)
	}
}

func TestSegmentListMerge(t *testing.T) {
	c := client.NewMultiBackupClient(2)
	defer c.Close()

	a, storeA := newBackup()
	b, storeB := newBackup()
	for _, seg := range []uint64{9, 2, 5} {
		storeA.Write(seg, 0, []byte{1})
	}
	for _, seg := range []uint64{5, 1, 9} {
		storeB.Write(seg, 0, []byte{1})
	}
	c.AddHost(a, "a")
	c.AddHost(b, "b")

	out := make([]uint64, 8)
	n, err := c.GetSegmentList(out)
	if err != nil {
		t.Fatalf("GetSegmentList: %v", err)
	}
	want := []uint64{1, 2, 5, 9}
	if n != len(want) {
		t.Fatalf("n = %d, want %d (%v)", n, len(want), out[:n])
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("merged list = %v, want %v", out[:n], want)
		}
	}

	small := make([]uint64, 3)
	if _, err := c.GetSegmentList(small); !errors.Is(err, client.ErrBufferTooSmall) {
		t.Fatalf("expected ErrBufferTooSmall for merged list, got %v", err)
	}
}

func TestReadsFallBackToNextHost(t *testing.T) {
	c := client.NewMultiBackupClient(2)
	defer c.Close()

	down := &MockTransport{ReceiveFunc: func() ([]byte, error) { return nil, io.EOF }}
	up, store := newBackup()
	store.Write(4, 0, []byte("recovered"))
	c.AddHost(down, "down")
	c.AddHost(up, "up")

	buf := make([]byte, 32)
	n, err := c.RetrieveSegment(4, buf)
	if err != nil {
		t.Fatalf("RetrieveSegment: %v", err)
	}
	if string(buf[:n]) != "recovered" {
		t.Errorf("retrieved %q", buf[:n])
	}

	objs := make([]types.RecoveryObjectMetadata, 1)
	if _, err := c.GetSegmentMetadata(99, objs); err == nil {
		t.Fatal("expected error when no host has the segment")
	} else {
		var be *protocol.BackupError
		if !errors.As(err, &be) || !errors.Is(err, client.ErrConnectionLost) {
			t.Errorf("expected both host failures joined, got %v", err)
		}
	}
}

func TestCloseReleasesEveryHost(t *testing.T) {
	c := client.NewMultiBackupClient(2)
	a, b := &MockTransport{}, &MockTransport{}
	c.AddHost(a, "a")
	c.AddHost(b, "b")

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.Closed || !b.Closed {
		t.Error("every transport should be closed")
	}
	if c.Hosts() != 0 {
		t.Errorf("hosts = %d after close", c.Hosts())
	}
}
