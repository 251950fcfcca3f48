// Package client implements the master-side stubs that replicate log segments to
// backup servers.
//
// A BackupHost issues one blocking RPC at a time over a transport it owns.
// Neither BackupHost nor MultiBackupClient lock internally; callers that share
// one across goroutines must serialize access themselves.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/downfa11-org/go-backup/pkg/metrics"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/transport"
	"github.com/downfa11-org/go-backup/pkg/types"
	"github.com/downfa11-org/go-backup/util"
)

// BackupHost is the stub for a single backup server. It takes ownership of the
// transport it is built with; Close releases it.
type BackupHost struct {
	addr string
	t    transport.Transport
}

func NewBackupHost(t transport.Transport, addr string) *BackupHost {
	return &BackupHost{addr: addr, t: t}
}

func (h *BackupHost) Addr() string {
	return h.addr
}

func (h *BackupHost) Close() error {
	return h.t.Close()
}

func (h *BackupHost) call(req *protocol.Request) (*protocol.Response, error) {
	start := time.Now()
	resp, err := h.roundTrip(req)
	metrics.ObserveRPC(req.Op.String(), resultLabel(err), time.Since(start))
	return resp, err
}

func (h *BackupHost) roundTrip(req *protocol.Request) (*protocol.Response, error) {
	frame, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	util.Debug("Sending %s to backup %s", req.Op, h.addr)
	if err := h.t.Send(frame); err != nil {
		return nil, connectionLost(h.addr, req.Op, err)
	}

	raw, err := h.t.Receive()
	if err != nil {
		return nil, connectionLost(h.addr, req.Op, err)
	}

	resp, err := protocol.DecodeResponse(raw, req.Op)
	if err != nil {
		var be *protocol.BackupError
		if errors.As(err, &be) {
			util.Warn("Exception on backup %s operation %s >>> %s", h.addr, req.Op, be.Message)
		} else {
			util.Error("Malformed %s response from backup %s: %v", req.Op, h.addr, err)
		}
		return nil, err
	}

	util.Debug("%s ok from backup %s", req.Op, h.addr)
	return resp, nil
}

// Heartbeat is a liveness probe.
func (h *BackupHost) Heartbeat() error {
	_, err := h.call(&protocol.Request{Op: protocol.OpHeartbeat})
	return err
}

// WriteSegment stores data at offset inside segment segNum, creating the segment
// on its first write. A write whose frame would exceed protocol.MaxRPCLen fails with
// protocol.ErrPayloadTooLarge before anything is sent; callers chunk larger writes
// at increasing offsets.
func (h *BackupHost) WriteSegment(segNum uint64, offset uint32, data []byte) error {
	if protocol.WriteReqLenWithoutData+len(data) > protocol.MaxRPCLen {
		err := fmt.Errorf("%w: write of %d bytes to segment %d", protocol.ErrPayloadTooLarge, len(data), segNum)
		metrics.ObserveRPC(protocol.OpWrite.String(), resultLabel(err), 0)
		return err
	}

	if _, err := h.call(&protocol.Request{Op: protocol.OpWrite, SegNum: segNum, Offset: offset, Data: data}); err != nil {
		return err
	}
	metrics.BackupBytesWritten.Add(float64(len(data)))
	return nil
}

// CommitSegment makes the segment durable and immutable on the backup.
func (h *BackupHost) CommitSegment(segNum uint64) error {
	_, err := h.call(&protocol.Request{Op: protocol.OpCommit, SegNum: segNum})
	return err
}

// FreeSegment releases the backup's storage for the segment.
func (h *BackupHost) FreeSegment(segNum uint64) error {
	_, err := h.call(&protocol.Request{Op: protocol.OpFree, SegNum: segNum})
	return err
}

func (h *BackupHost) listSegments() ([]uint64, error) {
	resp, err := h.call(&protocol.Request{Op: protocol.OpGetSegmentList})
	if err != nil {
		return nil, err
	}
	util.Debug("Backup %s wants to restore %d segments", h.addr, len(resp.SegmentIDs))
	return resp.SegmentIDs, nil
}

// GetSegmentList copies the ids of every segment the backup holds into out, in the
// order the backup reported them, and returns how many were copied. If the backup
// holds more than len(out) ids it fails with ErrBufferTooSmall and out is untouched.
func (h *BackupHost) GetSegmentList(out []uint64) (int, error) {
	ids, err := h.listSegments()
	if err != nil {
		return 0, err
	}
	if len(ids) > len(out) {
		return 0, fmt.Errorf("%w: backup %s reported %d segment ids, buffer holds %d",
			ErrBufferTooSmall, h.addr, len(ids), len(out))
	}
	return copy(out, ids), nil
}

// GetSegmentMetadata copies the live object descriptors of one segment into out.
// Same size contract as GetSegmentList.
func (h *BackupHost) GetSegmentMetadata(segNum uint64, out []types.RecoveryObjectMetadata) (int, error) {
	resp, err := h.call(&protocol.Request{Op: protocol.OpGetSegmentMetadata, SegNum: segNum})
	if err != nil {
		return 0, err
	}

	util.Debug("Backup %s wants to restore %d objects from segment %d", h.addr, len(resp.Objects), segNum)
	if len(resp.Objects) > len(out) {
		return 0, fmt.Errorf("%w: backup %s reported %d objects for segment %d, buffer holds %d",
			ErrBufferTooSmall, h.addr, len(resp.Objects), segNum, len(out))
	}
	return copy(out, resp.Objects), nil
}

// RetrieveSegment copies the full segment into buf. There is no size negotiation:
// the caller sizes buf from earlier list/metadata calls, and a segment larger than
// buf fails with ErrBufferTooSmall without copying.
func (h *BackupHost) RetrieveSegment(segNum uint64, buf []byte) (int, error) {
	resp, err := h.call(&protocol.Request{Op: protocol.OpRetrieve, SegNum: segNum})
	if err != nil {
		return 0, err
	}

	util.Debug("Retrieved segment %d of length %d from backup %s", segNum, len(resp.Data), h.addr)
	if len(resp.Data) > len(buf) {
		return 0, fmt.Errorf("%w: segment %d is %d bytes, buffer holds %d",
			ErrBufferTooSmall, segNum, len(resp.Data), len(buf))
	}
	return copy(buf, resp.Data), nil
}
