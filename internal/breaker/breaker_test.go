package breaker

import (
	"testing"
	"time"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("tickets", Config{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("expected closed breaker to allow call %d", i)
		}
		b.RecordFailure(orcherrors.ToolExecutionError)
	}
	if b.State() != Closed {
		t.Fatalf("state = %s, want closed before threshold", b.State())
	}

	b.Allow()
	b.RecordFailure(orcherrors.ToolExecutionError)

	if b.State() != Open {
		t.Fatalf("state = %s, want open after threshold failures", b.State())
	}

	if err := b.Allow(); err == nil {
		t.Fatal("expected open breaker to reject the call")
	} else if !orcherrors.IsCode(err, orcherrors.CircuitOpen) {
		t.Errorf("expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := New("mail", Config{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: 10 * time.Millisecond})

	b.Allow()
	b.RecordFailure(orcherrors.ToolExecutionError)
	if b.State() != Open {
		t.Fatal("expected open after one failure with threshold 1")
	}

	time.Sleep(20 * time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatalf("state = %s, want half_open view after timeout elapses", b.State())
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("half-open breaker should allow a trial call: %v", err)
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("state = %s, want closed after success threshold met", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("db", Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 5 * time.Millisecond})

	b.Allow()
	b.RecordFailure(orcherrors.ToolExecutionError)
	time.Sleep(10 * time.Millisecond)
	b.Allow() // commits the half-open transition

	b.RecordFailure(orcherrors.ToolExecutionError)
	if b.State() != Open {
		t.Fatalf("state = %s, want open again after half-open failure", b.State())
	}
}

func TestBreaker_ExcludedCodeDoesNotCount(t *testing.T) {
	b := New("code-host", DefaultConfig())
	for i := 0; i < 10; i++ {
		b.RecordFailure(orcherrors.ValidationError)
	}
	if b.State() != Closed {
		t.Error("excluded error codes must never trip the breaker")
	}
}

func TestRegistry_GetIsIdempotent(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	a := r.Get("shop")
	b := r.Get("shop")
	if a != b {
		t.Error("Get should return the same breaker instance for repeated calls")
	}
}
