package backup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/downfa11-org/go-backup/util"
	"golang.org/x/exp/mmap"
)

const (
	segmentMagic     uint32 = 0x42534547 // "BSEG"
	segmentHeaderLen        = 4 + 1 + 4 + 8
	segmentPrefix           = "segment_"
	segmentSuffix           = ".seg"
	tmpSuffix               = ".tmp"
)

// DiskStore buffers open segments in memory and writes each one to its own file on
// Commit. Committed segments are read back through mmap and verified against the
// checksum stored in the file header.
type DiskStore struct {
	mu          sync.Mutex
	dir         string
	segmentSize uint32
	codec       util.Codec
	open        map[uint64][]byte
	committed   map[uint64]int64 // raw length
}

func NewDiskStore(dir string, segmentSize uint32, codec util.Codec) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	s := &DiskStore{
		dir:         dir,
		segmentSize: min(segmentSize, segment.MaxSegmentLen),
		codec:       codec,
		open:        make(map[uint64][]byte),
		committed:   make(map[uint64]int64),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) segmentPath(seg uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", segmentPrefix, seg, segmentSuffix))
}

// load registers the committed segments already present in dir.
func (s *DiskStore) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to scan data directory %s: %w", s.dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, segmentPrefix) {
			continue
		}
		if strings.HasSuffix(name, tmpSuffix) {
			util.Warn("removing partial segment file %s", name)
			_ = os.Remove(filepath.Join(s.dir, name))
			continue
		}
		if !strings.HasSuffix(name, segmentSuffix) {
			continue
		}

		idStr := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
		seg, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			util.Warn("skipping unrecognized file %s", name)
			continue
		}

		rawLen, err := readSegmentHeaderFile(filepath.Join(s.dir, name))
		if err != nil {
			util.Warn("skipping segment file %s: %v", name, err)
			continue
		}
		s.committed[seg] = int64(rawLen)
	}

	util.Info("loaded %d committed segments from %s", len(s.committed), s.dir)
	return nil
}

func (s *DiskStore) Write(seg uint64, off uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.committed[seg]; ok {
		return fmt.Errorf("%w: %d", ErrSegmentCommitted, seg)
	}
	buf, err := applyWrite(s.open[seg], off, data, s.segmentSize)
	if err != nil {
		return err
	}
	s.open[seg] = buf
	return nil
}

func (s *DiskStore) Commit(seg uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.committed[seg]; ok {
		return nil
	}
	data, ok := s.open[seg]
	if !ok {
		return notFound(seg)
	}

	if err := s.writeSegmentFile(seg, data); err != nil {
		return err
	}
	delete(s.open, seg)
	s.committed[seg] = int64(len(data))
	util.Debug("committed segment %d (%d bytes, codec %s)", seg, len(data), s.codec)
	return nil
}

func (s *DiskStore) writeSegmentFile(seg uint64, data []byte) error {
	body, err := util.Compress(data, s.codec)
	if err != nil {
		return fmt.Errorf("failed to compress segment %d: %w", seg, err)
	}

	var hdr [segmentHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], segmentMagic)
	hdr[4] = byte(s.codec)
	binary.BigEndian.PutUint32(hdr[5:9], uint32(len(data)))
	binary.BigEndian.PutUint64(hdr[9:17], util.Checksum(data))

	path := s.segmentPath(seg)
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}
	adviseSequential(f)

	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write segment header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write segment body: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish segment file: %w", err)
	}
	return nil
}

func (s *DiskStore) Free(seg uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[seg]; ok {
		delete(s.open, seg)
		return nil
	}
	if _, ok := s.committed[seg]; !ok {
		return notFound(seg)
	}
	if err := os.Remove(s.segmentPath(seg)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove segment %d: %w", seg, err)
	}
	delete(s.committed, seg)
	return nil
}

func (s *DiskStore) List() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append(sortedKeys(s.open), sortedKeys(s.committed)...)
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (s *DiskStore) Read(seg uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if buf, ok := s.open[seg]; ok {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out, nil
	}
	if _, ok := s.committed[seg]; !ok {
		return nil, notFound(seg)
	}
	return s.readSegmentFile(seg)
}

func (s *DiskStore) readSegmentFile(seg uint64) ([]byte, error) {
	r, err := mmap.Open(s.segmentPath(seg))
	if err != nil {
		return nil, fmt.Errorf("mmap open failed: %w", err)
	}
	defer r.Close()

	raw := make([]byte, r.Len())
	if _, err := r.ReadAt(raw, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read segment %d: %w", seg, err)
	}

	codec, rawLen, sum, err := parseSegmentHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", seg, err)
	}
	data, err := util.Decompress(raw[segmentHeaderLen:], codec)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %d: %v", ErrChecksumMismatch, seg, err)
	}
	if uint32(len(data)) != rawLen || util.Checksum(data) != sum {
		return nil, fmt.Errorf("%w: segment %d", ErrChecksumMismatch, seg)
	}
	return data, nil
}

func parseSegmentHeader(b []byte) (util.Codec, uint32, uint64, error) {
	if len(b) < segmentHeaderLen {
		return 0, 0, 0, fmt.Errorf("%w: short header", ErrChecksumMismatch)
	}
	if magic := binary.BigEndian.Uint32(b[0:4]); magic != segmentMagic {
		return 0, 0, 0, fmt.Errorf("%w: bad magic %#x", ErrChecksumMismatch, magic)
	}
	return util.Codec(b[4]), binary.BigEndian.Uint32(b[5:9]), binary.BigEndian.Uint64(b[9:17]), nil
}

func readSegmentHeaderFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var hdr [segmentHeaderLen]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, fmt.Errorf("%w: short header", ErrChecksumMismatch)
	}
	_, rawLen, _, err := parseSegmentHeader(hdr[:])
	return rawLen, err
}

func (s *DiskStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Segments: len(s.open) + len(s.committed)}
	for _, buf := range s.open {
		st.Bytes += int64(len(buf))
	}
	for _, n := range s.committed {
		st.Bytes += n
	}
	return st
}

// Close drops open segments. Committed segment files stay on disk.
func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.open); n > 0 {
		util.Warn("discarding %d uncommitted segments on close", n)
	}
	s.open = make(map[uint64][]byte)
	return nil
}
