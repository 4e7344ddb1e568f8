package protocol

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

// Writer encodes a packet payload. All multi-byte values are little-endian.
type Writer struct {
	buf *bytes.Buffer
}

// writerPool reuses Writers across frame builds to cut GC pressure on the
// broadcast hot path, mirroring the teacher's pooled packet Writer.
var writerPool = sync.Pool{
	New: func() any {
		return &Writer{buf: bytes.NewBuffer(make([]byte, 0, 256))}
	},
}

// Get returns a reset Writer from the pool.
func Get() *Writer {
	w := writerPool.Get().(*Writer)
	w.Reset()
	return w
}

// Put returns w to the pool. Do not use w after calling Put.
func (w *Writer) Put() {
	writerPool.Put(w)
}

// NewWriter allocates a standalone writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: bytes.NewBuffer(make([]byte, 0, capacity))}
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBool writes a boolean as one byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteInt16 writes an int16 (2 bytes, LE).
func (w *Writer) WriteInt16(v int16) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
}

// WriteUint16 writes a uint16 (2 bytes, LE).
func (w *Writer) WriteUint16(v uint16) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
}

// WriteInt32 writes an int32 (4 bytes, LE).
func (w *Writer) WriteInt32(v int32) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
	w.buf.WriteByte(byte(v >> 16))
	w.buf.WriteByte(byte(v >> 24))
}

// WriteUint32 writes a uint32 (4 bytes, LE).
func (w *Writer) WriteUint32(v uint32) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
	w.buf.WriteByte(byte(v >> 16))
	w.buf.WriteByte(byte(v >> 24))
}

// WriteInt64 writes an int64 (8 bytes, LE).
func (w *Writer) WriteInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	w.buf.Write(tmp[:])
}

// WriteFloat32 writes a float32 (4 bytes, LE).
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// writeULEB128 writes an unsigned integer as ULEB128, used for string and
// list length prefixes.
func (w *Writer) writeULEB128(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// WriteString writes a presence-tagged, ULEB128-length-prefixed UTF-8
// string. An empty string is written as the single absence byte, matching
// the wire format's "don't bother with a zero-length body" convention.
func (w *Writer) WriteString(s string) {
	if s == "" {
		w.buf.WriteByte(stringAbsent)
		return
	}
	w.buf.WriteByte(stringPresent)
	w.writeULEB128(uint64(len(s)))
	w.buf.WriteString(s)
}

// WriteInt32List writes a uint16-length-prefixed list of int32 values.
func (w *Writer) WriteInt32List(vals []int32) {
	w.WriteUint16(uint16(len(vals)))
	for _, v := range vals {
		w.WriteInt32(v)
	}
}

// WriteBytes appends raw bytes verbatim.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len reports the current payload length.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reset clears the buffer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
}
