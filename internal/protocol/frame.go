package protocol

import "fmt"

// headerSize is the fixed-width header preceding every frame payload:
// [opcode u16 LE][flags u8][len u32 LE].
const headerSize = 7

// InboundFrame is one decoded client-sent frame, as handed to dispatch.
type InboundFrame struct {
	Opcode  uint16
	Flags   byte
	Payload []byte // nil when len was 0
}

// WriteFrame appends one opcode-tagged frame to w: header then payload.
// This is how every outbound server packet (stats, presence, chat,
// channel notifications) is built before being queued or broadcast.
func WriteFrame(w *Writer, opcode uint16, flags byte, payload []byte) {
	w.WriteUint16(opcode)
	w.WriteByte(flags)
	w.WriteUint32(uint32(len(payload)))
	w.WriteBytes(payload)
}

// BuildFrame is a convenience for the common case of a standalone frame,
// returning its bytes directly rather than appending to a shared Writer.
func BuildFrame(opcode uint16, payload []byte) []byte {
	w := NewWriter(headerSize + len(payload))
	WriteFrame(w, opcode, 0, payload)
	return w.Bytes()
}

// DecodeFrames splits a client request body into its constituent frames.
// Each frame is length-prefixed so a short read mid-frame is always a
// hard decode error, never a silent truncation.
func DecodeFrames(body []byte) ([]InboundFrame, error) {
	var frames []InboundFrame
	r := NewReader(body)
	for r.Remaining() > 0 {
		if r.Remaining() < headerSize {
			return nil, fmt.Errorf("DecodeFrames: truncated header (remaining=%d)", r.Remaining())
		}
		opcode, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("DecodeFrames: %w", err)
		}
		flags, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("DecodeFrames: %w", err)
		}
		length, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("DecodeFrames: %w", err)
		}
		var payload []byte
		if length > 0 {
			payload, err = r.ReadBytes(int(length))
			if err != nil {
				return nil, fmt.Errorf("DecodeFrames: opcode %d: %w", opcode, err)
			}
		}
		frames = append(frames, InboundFrame{Opcode: opcode, Flags: flags, Payload: payload})
	}
	return frames, nil
}
