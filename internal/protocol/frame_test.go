package protocol

import (
	"bytes"
	"testing"
)

func TestBuildFrameRoundTrip(t *testing.T) {
	payload := []byte("hello bancho")
	frame := BuildFrame(5, payload)

	frames, err := DecodeFrames(frame)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Opcode != 5 {
		t.Errorf("Opcode = %d, want 5", frames[0].Opcode)
	}
	if !bytes.Equal(frames[0].Payload, payload) {
		t.Errorf("Payload = %q, want %q", frames[0].Payload, payload)
	}
}

func TestDecodeFramesBatch(t *testing.T) {
	var buf []byte
	buf = append(buf, BuildFrame(1, []byte("a"))...)
	buf = append(buf, BuildFrame(2, nil)...)
	buf = append(buf, BuildFrame(3, []byte("abc"))...)

	frames, err := DecodeFrames(buf)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[1].Payload != nil {
		t.Errorf("frame with zero length should have nil payload, got %v", frames[1].Payload)
	}
	if string(frames[2].Payload) != "abc" {
		t.Errorf("frame[2].Payload = %q, want %q", frames[2].Payload, "abc")
	}
}

func TestDecodeFramesTruncatedHeader(t *testing.T) {
	buf := BuildFrame(1, []byte("abc"))
	if _, err := DecodeFrames(buf[:3]); err == nil {
		t.Fatal("DecodeFrames on truncated header should error")
	}
}

func TestDecodeFramesTruncatedPayload(t *testing.T) {
	buf := BuildFrame(1, []byte("abcdef"))
	if _, err := DecodeFrames(buf[:len(buf)-2]); err == nil {
		t.Fatal("DecodeFrames on truncated payload should error")
	}
}

func TestDecodeFramesEmptyBody(t *testing.T) {
	frames, err := DecodeFrames(nil)
	if err != nil {
		t.Fatalf("DecodeFrames(nil): %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}
