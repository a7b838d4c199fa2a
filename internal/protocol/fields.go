package protocol

import (
	"bytes"
	"encoding/binary"
)

// ParseHeader splits a packet into its decoded header and trailing payload.
func ParseHeader(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize {
		return Header{}, nil, ErrShortHeader
	}
	if b[0] != FamilyTag {
		return Header{}, nil, ErrBadFamily
	}
	h := Header{
		Service: Service(binary.LittleEndian.Uint16(b[1:3])),
		Type:    MessageType(binary.LittleEndian.Uint32(b[3:7])),
	}
	return h, b[HeaderSize:], nil
}

// appendHeader writes the common prefix for an outbound master packet.
func appendHeader(buf []byte, t MessageType) []byte {
	buf = append(buf, FamilyTag)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(ServiceMaster))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t))
	return append(buf, 0)
}

// fieldReader walks a payload as a positional little-endian field sequence.
// The first failure sticks; subsequent reads return zero values.
type fieldReader struct {
	buf []byte
	off int
	err error
}

func newFieldReader(payload []byte) *fieldReader {
	return &fieldReader{buf: payload}
}

func (r *fieldReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *fieldReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.fail(ErrShortPayload)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *fieldReader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *fieldReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *fieldReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *fieldReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *fieldReader) i32() int32 {
	return int32(r.u32())
}

// zstring reads bytes up to a terminating NUL, at most MaxZString bytes
// including the terminator.
func (r *fieldReader) zstring() string {
	if r.err != nil {
		return ""
	}
	rest := r.buf[r.off:]
	idx := bytes.IndexByte(rest, 0)
	if idx < 0 {
		if len(rest) >= MaxZString {
			r.fail(ErrStringTooLong)
		} else {
			r.fail(ErrShortPayload)
		}
		return ""
	}
	if idx+1 > MaxZString {
		r.fail(ErrStringTooLong)
		return ""
	}
	r.off += idx + 1
	return string(rest[:idx])
}

// lpstring reads a u32 length prefix followed by that many raw bytes.
func (r *fieldReader) lpstring() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if n > MaxLPString {
		r.fail(ErrStringTooLong)
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *fieldReader) done() error {
	return r.err
}

// fieldWriter appends little-endian fields to an outbound packet.
type fieldWriter struct {
	buf []byte
}

func newFieldWriter(t MessageType) *fieldWriter {
	return &fieldWriter{buf: appendHeader(nil, t)}
}

func (w *fieldWriter) u8(v byte)    { w.buf = append(w.buf, v) }
func (w *fieldWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *fieldWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *fieldWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *fieldWriter) i32(v int32)  { w.u32(uint32(v)) }
func (w *fieldWriter) zstring(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}
func (w *fieldWriter) lpstring(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}
func (w *fieldWriter) fixedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) bytes() []byte {
	return w.buf
}
