// Package backup is the server side of the replication protocol: it keeps the segment
// replicas masters write and hands them back during recovery.
package backup

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrSegmentCommitted = errors.New("segment already committed")
	ErrWriteGap         = errors.New("write would leave a gap in the segment")
	ErrSegmentFull      = errors.New("write exceeds segment size")
	ErrChecksumMismatch = errors.New("segment checksum mismatch")
)

// Store holds segment replicas. A segment is open until Commit and immutable after it.
type Store interface {
	Write(seg uint64, off uint32, data []byte) error
	Commit(seg uint64) error
	Free(seg uint64) error
	List() []uint64
	Read(seg uint64) ([]byte, error)
	Stats() Stats
	Close() error
}

type Stats struct {
	Segments int
	Bytes    int64
}

// applyWrite copies data into buf at off. Rewriting bytes that are already present is
// allowed so a retried chunk lands in the same place.
func applyWrite(buf []byte, off uint32, data []byte, limit uint32) ([]byte, error) {
	if int64(off) > int64(len(buf)) {
		return buf, fmt.Errorf("%w: offset %d, segment length %d", ErrWriteGap, off, len(buf))
	}
	end := int64(off) + int64(len(data))
	if end > int64(limit) {
		return buf, fmt.Errorf("%w: %d > %d", ErrSegmentFull, end, limit)
	}
	if end > int64(len(buf)) {
		buf = append(buf, make([]byte, end-int64(len(buf)))...)
	}
	copy(buf[off:], data)
	return buf, nil
}

func notFound(seg uint64) error {
	return fmt.Errorf("%w: %d", ErrSegmentNotFound, seg)
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
