package protocol

import (
	"encoding/binary"
	"fmt"
)

// frameWriter fills a frame that was sized up front, so a frame is allocated only
// after it has passed the MaxRPCLen check.
type frameWriter struct {
	buf []byte
	pos int
}

func newFrameWriter(op Opcode, bodyLen int) (*frameWriter, error) {
	total := HeaderLen + bodyLen
	if bodyLen < 0 || total > MaxRPCLen {
		return nil, fmt.Errorf("%w: %s frame of %d bytes, max %d", ErrPayloadTooLarge, op, total, MaxRPCLen)
	}

	w := &frameWriter{buf: make([]byte, total)}
	w.putUint32(uint32(op))
	w.putUint32(uint32(total))
	return w, nil
}

func (w *frameWriter) putUint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *frameWriter) putUint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

func (w *frameWriter) putBytes(b []byte) {
	w.pos += copy(w.buf[w.pos:], b)
}

func (w *frameWriter) bytes() []byte {
	return w.buf[:w.pos]
}

type frameReader struct {
	op  Opcode
	buf []byte
	pos int
}

// ParseHeader validates the header of a delivered frame against the number of
// bytes the transport actually handed over.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderLen {
		return Header{}, protocolErrorf("frame of %d bytes is shorter than header", len(frame))
	}
	if len(frame) > MaxRPCLen {
		return Header{}, protocolErrorf("frame of %d bytes exceeds max %d", len(frame), MaxRPCLen)
	}

	h := Header{
		Opcode: Opcode(binary.BigEndian.Uint32(frame[0:4])),
		Length: binary.BigEndian.Uint32(frame[4:8]),
	}
	if int(h.Length) != len(frame) {
		return Header{}, protocolErrorf("%s frame declares %d bytes, received %d", h.Opcode, h.Length, len(frame))
	}
	return h, nil
}

func newFrameReader(h Header, frame []byte) *frameReader {
	return &frameReader{op: h.Opcode, buf: frame, pos: HeaderLen}
}

func (r *frameReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *frameReader) uint32(field string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, protocolErrorf("%s frame truncated reading %s", r.op, field)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *frameReader) uint64(field string) (uint64, error) {
	if r.remaining() < 8 {
		return 0, protocolErrorf("%s frame truncated reading %s", r.op, field)
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// bytes returns a copy so decoded values never alias the transport's buffer.
func (r *frameReader) bytes(n int, field string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, protocolErrorf("%s frame declares %d bytes of %s, %d remain", r.op, n, field, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// count reads a u32 element count and checks the body can hold that many elements.
func (r *frameReader) count(elemSize int, field string) (int, error) {
	n, err := r.uint32(field + " count")
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(elemSize) > uint64(r.remaining()) {
		return 0, protocolErrorf("%s frame declares %d %s, body holds %d bytes", r.op, n, field, r.remaining())
	}
	return int(n), nil
}

func (r *frameReader) finish() error {
	if r.remaining() != 0 {
		return protocolErrorf("%s frame has %d trailing bytes", r.op, r.remaining())
	}
	return nil
}
