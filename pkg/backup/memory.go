package backup

import (
	"fmt"
	"sync"

	"github.com/downfa11-org/go-backup/pkg/segment"
)

type memSegment struct {
	data      []byte
	committed bool
}

// MemoryStore keeps every segment in memory. Nothing survives a restart.
type MemoryStore struct {
	mu          sync.Mutex
	segmentSize uint32
	segments    map[uint64]*memSegment
}

func NewMemoryStore(segmentSize uint32) *MemoryStore {
	return &MemoryStore{
		segmentSize: min(segmentSize, segment.MaxSegmentLen),
		segments:    make(map[uint64]*memSegment),
	}
}

func (s *MemoryStore) Write(seg uint64, off uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.segments[seg]
	if !ok {
		m = &memSegment{}
	}
	if m.committed {
		return fmt.Errorf("%w: %d", ErrSegmentCommitted, seg)
	}

	buf, err := applyWrite(m.data, off, data, s.segmentSize)
	if err != nil {
		return err
	}
	m.data = buf
	s.segments[seg] = m
	return nil
}

func (s *MemoryStore) Commit(seg uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.segments[seg]
	if !ok {
		return notFound(seg)
	}
	m.committed = true
	return nil
}

func (s *MemoryStore) Free(seg uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.segments[seg]; !ok {
		return notFound(seg)
	}
	delete(s.segments, seg)
	return nil
}

func (s *MemoryStore) List() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.segments)
}

func (s *MemoryStore) Read(seg uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.segments[seg]
	if !ok {
		return nil, notFound(seg)
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Segments: len(s.segments)}
	for _, m := range s.segments {
		st.Bytes += int64(len(m.data))
	}
	return st
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = make(map[uint64]*memSegment)
	return nil
}
