package protocol

// Request is the decoded form of any request frame. Fields not used by Op are zero.
type Request struct {
	Op     Opcode
	SegNum uint64
	Offset uint32
	Data   []byte
}

func requestBodyLen(req *Request) (int, error) {
	switch req.Op {
	case OpHeartbeat, OpGetSegmentList:
		return 0, nil
	case OpCommit, OpFree, OpGetSegmentMetadata, OpRetrieve:
		return segNumLen, nil
	case OpWrite:
		return WriteReqLenWithoutData - HeaderLen + len(req.Data), nil
	default:
		return 0, protocolErrorf("cannot encode request with opcode %s", req.Op)
	}
}

// EncodeRequest frames req. A write whose frame would exceed MaxRPCLen fails with
// ErrPayloadTooLarge and nothing is allocated for it.
func EncodeRequest(req *Request) ([]byte, error) {
	bodyLen, err := requestBodyLen(req)
	if err != nil {
		return nil, err
	}

	w, err := newFrameWriter(req.Op, bodyLen)
	if err != nil {
		return nil, err
	}

	switch req.Op {
	case OpCommit, OpFree, OpGetSegmentMetadata, OpRetrieve:
		w.putUint64(req.SegNum)
	case OpWrite:
		w.putUint64(req.SegNum)
		w.putUint32(req.Offset)
		w.putUint32(uint32(len(req.Data)))
		w.putBytes(req.Data)
	}
	return w.bytes(), nil
}

// DecodeRequest is the backup-side inverse of EncodeRequest.
func DecodeRequest(frame []byte) (*Request, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}
	if !h.Opcode.Valid() {
		return nil, protocolErrorf("unknown request opcode %s", h.Opcode)
	}

	r := newFrameReader(h, frame)
	req := &Request{Op: h.Opcode}

	switch h.Opcode {
	case OpCommit, OpFree, OpGetSegmentMetadata, OpRetrieve:
		if req.SegNum, err = r.uint64("segment number"); err != nil {
			return nil, err
		}
	case OpWrite:
		if req.SegNum, err = r.uint64("segment number"); err != nil {
			return nil, err
		}
		if req.Offset, err = r.uint32("offset"); err != nil {
			return nil, err
		}
		n, err := r.uint32("data length")
		if err != nil {
			return nil, err
		}
		if req.Data, err = r.bytes(int(n), "data"); err != nil {
			return nil, err
		}
	}

	if err := r.finish(); err != nil {
		return nil, err
	}
	return req, nil
}
