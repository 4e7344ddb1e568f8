package bancho

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	a := newErr(KindSessionNotExists, "session 1 not found", nil)
	b := newErr(KindSessionNotExists, "session 2 not found", nil)

	if !errors.Is(a, b) {
		t.Fatal("two errors of the same Kind should satisfy errors.Is")
	}
	if errors.Is(a, ErrChannelNotExists) {
		t.Fatal("errors of different Kind should not satisfy errors.Is")
	}
}

func TestErrorIsMatchesSentinel(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrSessionNotExists)
	if !errors.Is(wrapped, ErrSessionNotExists) {
		t.Fatal("wrapped sentinel should still match via errors.Is")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternal("db write failed", cause)

	var coreErr *Error
	if !errors.As(err, &coreErr) {
		t.Fatal("errors.As should find *Error")
	}
	if !errors.Is(err, cause) {
		t.Fatal("Unwrap should expose the wrapped cause to errors.Is")
	}
}

func TestErrorStringIncludesKindAndMessage(t *testing.T) {
	err := NewInvalidArgument("bad mode")
	if got := err.Error(); got != "InvalidArgument: bad mode" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestKindStringDefaultsToInternal(t *testing.T) {
	var k Kind = 999
	if k.String() != "Internal" {
		t.Fatalf("unknown Kind.String() = %q, want %q", k.String(), "Internal")
	}
}
