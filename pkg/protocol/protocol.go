// Package protocol defines the framed request/response format spoken between a
// master and its backups.
//
// Every frame starts with an 8-byte header, opcode then total frame length, both
// big-endian uint32. The length covers header and body and never exceeds MaxRPCLen.
package protocol

import "fmt"

type Opcode uint32

const (
	OpHeartbeat Opcode = iota + 1
	OpWrite
	OpCommit
	OpFree
	OpGetSegmentList
	OpGetSegmentMetadata
	OpRetrieve

	// OpErrorResp only appears in responses and carries a message instead of a result.
	OpErrorResp Opcode = 0xFF
)

const (
	HeaderLen = 8

	// MaxRPCLen bounds the total size of any frame in either direction.
	MaxRPCLen = 1 << 20

	segNumLen = 8

	// WriteReqLenWithoutData is the size of a write request frame carrying no data.
	WriteReqLenWithoutData = HeaderLen + segNumLen + 4 + 4

	// MaxWritePayload is the largest data chunk a single write request can carry.
	MaxWritePayload = MaxRPCLen - WriteReqLenWithoutData

	// MaxSegmentLen is the largest segment a single retrieve response can return.
	MaxSegmentLen = MaxRPCLen - HeaderLen - 4
)

var opcodeNames = map[Opcode]string{
	OpHeartbeat:          "HEARTBEAT",
	OpWrite:              "WRITE",
	OpCommit:             "COMMIT",
	OpFree:               "FREE",
	OpGetSegmentList:     "GETSEGMENTLIST",
	OpGetSegmentMetadata: "GETSEGMENTMETADATA",
	OpRetrieve:           "RETRIEVE",
	OpErrorResp:          "ERROR_RESP",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", uint32(o))
}

// Valid reports whether o is a request opcode.
func (o Opcode) Valid() bool {
	return o >= OpHeartbeat && o <= OpRetrieve
}

// Header is the fixed prefix of every frame.
type Header struct {
	Opcode Opcode
	Length uint32
}
