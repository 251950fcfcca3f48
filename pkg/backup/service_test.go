package backup_test

import (
	"errors"
	"testing"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, svc *backup.Service, req *protocol.Request) (*protocol.Response, error) {
	t.Helper()
	frame, err := protocol.EncodeRequest(req)
	require.NoError(t, err)
	return protocol.DecodeResponse(svc.HandleFrame(frame), req.Op)
}

func TestServiceWriteCommitRetrieve(t *testing.T) {
	svc := backup.NewService(backup.NewMemoryStore(1 << 16))

	_, err := call(t, svc, &protocol.Request{Op: protocol.OpHeartbeat})
	require.NoError(t, err)

	_, err = call(t, svc, &protocol.Request{Op: protocol.OpWrite, SegNum: 12, Offset: 0, Data: []byte("abc")})
	require.NoError(t, err)
	_, err = call(t, svc, &protocol.Request{Op: protocol.OpWrite, SegNum: 12, Offset: 3, Data: []byte("def")})
	require.NoError(t, err)
	_, err = call(t, svc, &protocol.Request{Op: protocol.OpCommit, SegNum: 12})
	require.NoError(t, err)

	resp, err := call(t, svc, &protocol.Request{Op: protocol.OpGetSegmentList})
	require.NoError(t, err)
	assert.Equal(t, []uint64{12}, resp.SegmentIDs)

	resp, err = call(t, svc, &protocol.Request{Op: protocol.OpRetrieve, SegNum: 12})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(resp.Data))

	_, err = call(t, svc, &protocol.Request{Op: protocol.OpFree, SegNum: 12})
	require.NoError(t, err)
	resp, err = call(t, svc, &protocol.Request{Op: protocol.OpGetSegmentList})
	require.NoError(t, err)
	assert.Empty(t, resp.SegmentIDs)
}

func TestServiceReportsStoreErrors(t *testing.T) {
	svc := backup.NewService(backup.NewMemoryStore(16))

	tests := []struct {
		name string
		req  *protocol.Request
		want string
	}{
		{"CommitUnknown", &protocol.Request{Op: protocol.OpCommit, SegNum: 1}, backup.ErrSegmentNotFound.Error()},
		{"RetrieveUnknown", &protocol.Request{Op: protocol.OpRetrieve, SegNum: 1}, backup.ErrSegmentNotFound.Error()},
		{"WriteGap", &protocol.Request{Op: protocol.OpWrite, SegNum: 1, Offset: 4, Data: []byte("x")}, backup.ErrWriteGap.Error()},
		{"WriteTooLarge", &protocol.Request{Op: protocol.OpWrite, SegNum: 1, Data: make([]byte, 17)}, backup.ErrSegmentFull.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, svc, tt.req)
			var be *protocol.BackupError
			require.True(t, errors.As(err, &be), "expected BackupError, got %v", err)
			assert.Equal(t, tt.req.Op, be.Op)
			assert.Contains(t, be.Message, tt.want)
		})
	}
}

func TestServiceMalformedRequest(t *testing.T) {
	svc := backup.NewService(backup.NewMemoryStore(16))

	resp := svc.HandleFrame([]byte{0, 0, 0, 1})
	_, err := protocol.DecodeResponse(resp, protocol.OpHeartbeat)
	var be *protocol.BackupError
	require.True(t, errors.As(err, &be), "expected BackupError, got %v", err)
}

func TestServiceSegmentMetadata(t *testing.T) {
	svc := backup.NewService(backup.NewMemoryStore(1 << 16))

	var seg []byte
	seg = segment.AppendEntry(seg, segment.Entry{Type: segment.EntryObject, TableID: 3, Key: 1, Version: 1, Data: []byte("old")})
	seg = segment.AppendEntry(seg, segment.Entry{Type: segment.EntryObject, TableID: 3, Key: 1, Version: 2, Data: []byte("new")})
	seg = segment.AppendEntry(seg, segment.Entry{Type: segment.EntryObject, TableID: 3, Key: 2, Version: 1, Data: []byte("x")})

	_, err := call(t, svc, &protocol.Request{Op: protocol.OpWrite, SegNum: 4, Data: seg})
	require.NoError(t, err)

	resp, err := call(t, svc, &protocol.Request{Op: protocol.OpGetSegmentMetadata, SegNum: 4})
	require.NoError(t, err)
	require.Len(t, resp.Objects, 2)
	assert.Equal(t, uint64(2), resp.Objects[0].Version)
	assert.Equal(t, uint64(2), resp.Objects[1].Key)

	// a half-written trailing entry does not hide the objects before it
	_, err = call(t, svc, &protocol.Request{Op: protocol.OpWrite, SegNum: 4, Offset: uint32(len(seg)), Data: []byte{1, 0, 0}})
	require.NoError(t, err)
	resp, err = call(t, svc, &protocol.Request{Op: protocol.OpGetSegmentMetadata, SegNum: 4})
	require.NoError(t, err)
	assert.Len(t, resp.Objects, 2)
}

func TestServiceHasInstanceID(t *testing.T) {
	a := backup.NewService(backup.NewMemoryStore(16))
	b := backup.NewService(backup.NewMemoryStore(16))
	assert.NotEqual(t, a.ID(), b.ID())
}
