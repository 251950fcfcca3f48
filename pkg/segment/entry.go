// Package segment defines how a master lays out objects inside a log segment, so a
// backup can describe a segment's live objects without understanding anything else.
//
// Entry layout, big-endian:
//
//	[type u8][tableID u64][key u64][version u64][len u32][data]
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/types"
)

type EntryType uint8

const (
	EntryObject EntryType = iota + 1
	EntryTombstone
)

const EntryHeaderLen = 1 + 8 + 8 + 8 + 4

// maxDescriptors is how many object descriptors fit in one metadata response.
const maxDescriptors = (protocol.MaxRPCLen - protocol.HeaderLen - 4) / types.RecoveryObjectMetadataSize

// MaxSegmentLen is the largest segment that can be both retrieved and described in a
// single rpc. A segment of empty objects yields one descriptor per EntryHeaderLen bytes.
const MaxSegmentLen = min(protocol.MaxSegmentLen, (maxDescriptors+1)*EntryHeaderLen-1)

var (
	ErrTruncatedEntry   = errors.New("truncated segment entry")
	ErrUnknownEntryType = errors.New("unknown segment entry type")
)

func (t EntryType) String() string {
	switch t {
	case EntryObject:
		return "object"
	case EntryTombstone:
		return "tombstone"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

type Entry struct {
	Type    EntryType
	TableID uint64
	Key     uint64
	Version uint64
	Data    []byte
	Offset  uint32 // position inside the segment, filled in by Iterator
}

// AppendEntry appends the encoded entry to dst.
func AppendEntry(dst []byte, e Entry) []byte {
	var hdr [EntryHeaderLen]byte
	hdr[0] = byte(e.Type)
	binary.BigEndian.PutUint64(hdr[1:9], e.TableID)
	binary.BigEndian.PutUint64(hdr[9:17], e.Key)
	binary.BigEndian.PutUint64(hdr[17:25], e.Version)
	binary.BigEndian.PutUint32(hdr[25:29], uint32(len(e.Data)))
	dst = append(dst, hdr[:]...)
	return append(dst, e.Data...)
}

func EncodeEntry(e Entry) []byte {
	return AppendEntry(make([]byte, 0, EntryHeaderLen+len(e.Data)), e)
}

// Iterator walks the entries of a segment in order. Data slices alias the segment.
type Iterator struct {
	data []byte
	pos  int
	cur  Entry
	err  error
}

func NewIterator(data []byte) *Iterator {
	return &Iterator{data: data}
}

func (it *Iterator) Next() bool {
	if it.err != nil || it.pos >= len(it.data) {
		return false
	}

	rest := it.data[it.pos:]
	if len(rest) < EntryHeaderLen {
		it.err = fmt.Errorf("%w: %d header bytes at offset %d", ErrTruncatedEntry, len(rest), it.pos)
		return false
	}

	e := Entry{
		Type:    EntryType(rest[0]),
		TableID: binary.BigEndian.Uint64(rest[1:9]),
		Key:     binary.BigEndian.Uint64(rest[9:17]),
		Version: binary.BigEndian.Uint64(rest[17:25]),
		Offset:  uint32(it.pos),
	}
	if e.Type != EntryObject && e.Type != EntryTombstone {
		it.err = fmt.Errorf("%w: %s at offset %d", ErrUnknownEntryType, e.Type, it.pos)
		return false
	}

	n := binary.BigEndian.Uint32(rest[25:29])
	if uint64(n) > uint64(len(rest)-EntryHeaderLen) {
		it.err = fmt.Errorf("%w: %d data bytes declared at offset %d, %d remain",
			ErrTruncatedEntry, n, it.pos, len(rest)-EntryHeaderLen)
		return false
	}
	e.Data = rest[EntryHeaderLen : EntryHeaderLen+int(n)]

	it.cur = e
	it.pos += EntryHeaderLen + int(n)
	return true
}

func (it *Iterator) Entry() Entry {
	return it.cur
}

func (it *Iterator) Err() error {
	return it.err
}

type objectKey struct {
	table, key uint64
}

// LiveObjects describes every live object in a segment: the newest version of each
// (table, key) that no tombstone of an equal or newer version deletes. Results are
// ordered by offset. On a malformed entry the objects before it are still returned
// together with the iterator error.
func LiveObjects(data []byte) ([]types.RecoveryObjectMetadata, error) {
	newest := make(map[objectKey]Entry)
	deleted := make(map[objectKey]uint64)

	it := NewIterator(data)
	for it.Next() {
		e := it.Entry()
		k := objectKey{e.TableID, e.Key}
		switch e.Type {
		case EntryObject:
			if cur, ok := newest[k]; !ok || e.Version >= cur.Version {
				newest[k] = e
			}
		case EntryTombstone:
			if cur, ok := deleted[k]; !ok || e.Version > cur {
				deleted[k] = e.Version
			}
		}
	}

	live := make([]types.RecoveryObjectMetadata, 0, len(newest))
	for k, e := range newest {
		if v, ok := deleted[k]; ok && v >= e.Version {
			continue
		}
		live = append(live, types.RecoveryObjectMetadata{
			TableID: e.TableID,
			Key:     e.Key,
			Version: e.Version,
			Offset:  e.Offset,
			Length:  uint32(len(e.Data)),
		})
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Offset < live[j].Offset })
	return live, it.Err()
}
