package types

import "fmt"

// RecoveryObjectMetadataSize is the encoded size of one RecoveryObjectMetadata.
const RecoveryObjectMetadataSize = 32

// RecoveryObjectMetadata describes one live object inside a segment so recovery
// knows what to replay without fetching the whole segment.
type RecoveryObjectMetadata struct {
	TableID uint64
	Key     uint64
	Version uint64
	Offset  uint32 // byte offset of the entry inside the segment
	Length  uint32 // object data length, header excluded
}

func (m RecoveryObjectMetadata) String() string {
	return fmt.Sprintf("table=%d key=%d version=%d offset=%d length=%d",
		m.TableID, m.Key, m.Version, m.Offset, m.Length)
}
