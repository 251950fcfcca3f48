package bench

import (
	"fmt"
	"time"

	"github.com/downfa11-org/go-backup/pkg/client"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/downfa11-org/go-backup/pkg/transport"
)

const DialTimeout = 5 * time.Second

// BenchClient plays one master: it fills, commits and frees its own segments.
type BenchClient struct {
	Addr        string
	MasterID    int
	Segments    int
	SegmentSize int
	ChunkSize   int
	ObjectSize  int
	KeepData    bool
}

// segmentID keeps every master in its own id range.
func (c *BenchClient) segmentID(n int) uint64 {
	return uint64(c.MasterID)<<32 | uint64(n)
}

// buildSegment packs objects until the next one would not fit.
func (c *BenchClient) buildSegment(seg uint64) []byte {
	payload := make([]byte, c.ObjectSize)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	var buf []byte
	for key := uint64(0); len(buf)+segment.EntryHeaderLen+c.ObjectSize <= c.SegmentSize; key++ {
		buf = segment.AppendEntry(buf, segment.Entry{
			Type:    segment.EntryObject,
			TableID: seg,
			Key:     key,
			Version: 1,
			Data:    payload,
		})
	}
	return buf
}

// Run replicates c.Segments segments and returns the number of bytes written.
func (c *BenchClient) Run() (int64, error) {
	t, err := transport.Dial(c.Addr, transport.Options{DialTimeout: DialTimeout, IOTimeout: DialTimeout})
	if err != nil {
		return 0, fmt.Errorf("[M%d] connection failed: %w", c.MasterID, err)
	}
	h := client.NewBackupHost(t, c.Addr)
	defer h.Close()

	chunk := c.ChunkSize
	if chunk <= 0 || chunk > protocol.MaxWritePayload {
		chunk = protocol.MaxWritePayload
	}

	var written int64
	for n := 0; n < c.Segments; n++ {
		seg := c.segmentID(n)
		data := c.buildSegment(seg)

		for off := 0; off < len(data); off += chunk {
			end := min(off+chunk, len(data))
			if err := h.WriteSegment(seg, uint32(off), data[off:end]); err != nil {
				return written, fmt.Errorf("[M%d/S%d] write at %d failed: %w", c.MasterID, n, off, err)
			}
			written += int64(end - off)
		}

		if err := h.CommitSegment(seg); err != nil {
			return written, fmt.Errorf("[M%d/S%d] commit failed: %w", c.MasterID, n, err)
		}
		if !c.KeepData {
			if err := h.FreeSegment(seg); err != nil {
				return written, fmt.Errorf("[M%d/S%d] free failed: %w", c.MasterID, n, err)
			}
		}
	}
	return written, nil
}
