package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failed")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cb := New("test", Config{FailureThreshold: 3, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	if err := cb.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker ran the call: %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb := New("test", Config{FailureThreshold: 3})

	cb.Execute(context.Background(), func() error { return errUpstream })
	cb.Execute(context.Background(), func() error { return errUpstream })
	cb.Execute(context.Background(), func() error { return nil })
	cb.Execute(context.Background(), func() error { return errUpstream })
	cb.Execute(context.Background(), func() error { return errUpstream })

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after interleaved success", got)
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := New("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      2,
		Timeout:          10 * time.Millisecond,
	})

	cb.Execute(context.Background(), func() error { return errUpstream })
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after timeout", got)
	}

	cb.Execute(context.Background(), func() error { return nil })
	cb.Execute(context.Background(), func() error { return nil })
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after probes succeed", got)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := New("test", Config{FailureThreshold: 1, Timeout: 10 * time.Millisecond})

	cb.Execute(context.Background(), func() error { return errUpstream })
	time.Sleep(20 * time.Millisecond)

	cb.Execute(context.Background(), func() error { return errUpstream })
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", got)
	}
}
