package bancho

import (
	"bytes"
	"testing"
)

func TestFrameOwned(t *testing.T) {
	f := NewFrame([]byte{1, 2, 3})
	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", f.Len())
	}
	if !bytes.Equal(f.Bytes(), []byte{1, 2, 3}) {
		t.Fatalf("Bytes() = %v", f.Bytes())
	}
}

func TestFrameSharedAcrossCopies(t *testing.T) {
	f := NewSharedFrame([]byte{9, 9, 9})
	g := f // copying the Frame struct must not copy the payload

	if !bytes.Equal(f.Bytes(), g.Bytes()) {
		t.Fatalf("shared frame copies diverged: %v vs %v", f.Bytes(), g.Bytes())
	}
}

func TestFrameEmpty(t *testing.T) {
	var f Frame
	if f.Len() != 0 {
		t.Fatalf("zero-value Frame.Len() = %d, want 0", f.Len())
	}
	if f.Bytes() != nil {
		t.Fatalf("zero-value Frame.Bytes() = %v, want nil", f.Bytes())
	}
}
