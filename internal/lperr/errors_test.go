package lperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfUnwrapsChain(t *testing.T) {
	base := New(CodePrecondition, "no wallet")
	wrapped := fmt.Errorf("open position: %w", base)

	if got := CodeOf(wrapped); got != CodePrecondition {
		t.Fatalf("expected precondition, got %s", got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	if got := Message(wrapped); got != "no wallet" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCodeOfUntypedIsInternal(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	if CodeOf(nil) != 0 {
		t.Fatalf("expected zero code for nil")
	}
}

func TestRetryable(t *testing.T) {
	cases := map[Code]bool{
		CodeValidation:   false,
		CodePrecondition: false,
		CodeUnavailable:  true,
		CodeExecution:    true,
		CodeInternal:     false,
	}
	for code, want := range cases {
		if got := Retryable(Wrap(code, "x", errors.New("cause"))); got != want {
			t.Fatalf("code %s: expected %v, got %v", code, want, got)
		}
	}
}
