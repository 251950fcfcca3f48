package protocol

import (
	"unicode/utf8"

	"github.com/downfa11-org/go-backup/pkg/types"
)

// Response is the decoded form of a successful response frame.
type Response struct {
	Op         Opcode
	SegmentIDs []uint64                       // OpGetSegmentList
	Objects    []types.RecoveryObjectMetadata // OpGetSegmentMetadata
	Data       []byte                         // OpRetrieve
	Message    string                         // OpErrorResp
}

// NewErrorResponse builds the ERROR_RESP a backup sends when an operation fails.
func NewErrorResponse(msg string) *Response {
	return &Response{Op: OpErrorResp, Message: msg}
}

func responseBodyLen(resp *Response) (int, error) {
	switch resp.Op {
	case OpHeartbeat, OpWrite, OpCommit, OpFree:
		return 0, nil
	case OpGetSegmentList:
		return 4 + 8*len(resp.SegmentIDs), nil
	case OpGetSegmentMetadata:
		return 4 + types.RecoveryObjectMetadataSize*len(resp.Objects), nil
	case OpRetrieve:
		return 4 + len(resp.Data), nil
	case OpErrorResp:
		return 4 + len(resp.Message), nil
	default:
		return 0, protocolErrorf("cannot encode response with opcode %s", resp.Op)
	}
}

// EncodeResponse frames resp. Error messages too long for one frame are cut to fit.
func EncodeResponse(resp *Response) ([]byte, error) {
	if resp.Op == OpErrorResp {
		if limit := MaxRPCLen - HeaderLen - 4; len(resp.Message) > limit {
			for limit > 0 && !utf8.RuneStart(resp.Message[limit]) {
				limit--
			}
			resp = NewErrorResponse(resp.Message[:limit])
		}
	}

	bodyLen, err := responseBodyLen(resp)
	if err != nil {
		return nil, err
	}
	w, err := newFrameWriter(resp.Op, bodyLen)
	if err != nil {
		return nil, err
	}

	switch resp.Op {
	case OpGetSegmentList:
		w.putUint32(uint32(len(resp.SegmentIDs)))
		for _, id := range resp.SegmentIDs {
			w.putUint64(id)
		}
	case OpGetSegmentMetadata:
		w.putUint32(uint32(len(resp.Objects)))
		for _, m := range resp.Objects {
			w.putUint64(m.TableID)
			w.putUint64(m.Key)
			w.putUint64(m.Version)
			w.putUint32(m.Offset)
			w.putUint32(m.Length)
		}
	case OpRetrieve:
		w.putUint32(uint32(len(resp.Data)))
		w.putBytes(resp.Data)
	case OpErrorResp:
		w.putUint32(uint32(len(resp.Message)))
		w.putBytes([]byte(resp.Message))
	}
	return w.bytes(), nil
}

// DecodeResponse decodes the reply to a request with opcode expect. An ERROR_RESP
// frame comes back as a *BackupError; anything malformed wraps ErrProtocol.
func DecodeResponse(frame []byte, expect Opcode) (*Response, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}
	r := newFrameReader(h, frame)

	if h.Opcode == OpErrorResp {
		n, err := r.uint32("message length")
		if err != nil {
			return nil, err
		}
		msg, err := r.bytes(int(n), "message")
		if err != nil {
			return nil, err
		}
		if err := r.finish(); err != nil {
			return nil, err
		}
		return nil, &BackupError{Op: expect, Message: string(msg)}
	}

	if h.Opcode != expect {
		return nil, protocolErrorf("expected %s response, got %s", expect, h.Opcode)
	}

	resp := &Response{Op: h.Opcode}
	switch h.Opcode {
	case OpGetSegmentList:
		n, err := r.count(8, "segment ids")
		if err != nil {
			return nil, err
		}
		resp.SegmentIDs = make([]uint64, n)
		for i := range resp.SegmentIDs {
			if resp.SegmentIDs[i], err = r.uint64("segment id"); err != nil {
				return nil, err
			}
		}

	case OpGetSegmentMetadata:
		n, err := r.count(types.RecoveryObjectMetadataSize, "objects")
		if err != nil {
			return nil, err
		}
		resp.Objects = make([]types.RecoveryObjectMetadata, n)
		for i := range resp.Objects {
			if resp.Objects[i], err = readObjectMetadata(r); err != nil {
				return nil, err
			}
		}

	case OpRetrieve:
		n, err := r.uint32("data length")
		if err != nil {
			return nil, err
		}
		if resp.Data, err = r.bytes(int(n), "segment data"); err != nil {
			return nil, err
		}
	}

	if err := r.finish(); err != nil {
		return nil, err
	}
	return resp, nil
}

func readObjectMetadata(r *frameReader) (types.RecoveryObjectMetadata, error) {
	var (
		m   types.RecoveryObjectMetadata
		err error
	)
	if m.TableID, err = r.uint64("table id"); err != nil {
		return m, err
	}
	if m.Key, err = r.uint64("key"); err != nil {
		return m, err
	}
	if m.Version, err = r.uint64("version"); err != nil {
		return m, err
	}
	if m.Offset, err = r.uint32("object offset"); err != nil {
		return m, err
	}
	if m.Length, err = r.uint32("object length"); err != nil {
		return m, err
	}
	return m, nil
}
