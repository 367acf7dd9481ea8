package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"brawlmeta/internal/api"

	"github.com/rs/zerolog"
)

func testGuard(failureThreshold int) *Guard {
	return NewGuard(GuardConfig{
		MaxAttempts:      1, // no retries, the breaker is under test
		BaseDelay:        time.Millisecond,
		MaxDelay:         time.Millisecond,
		FailureThreshold: failureThreshold,
		SuccessThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	}, zerolog.Nop())
}

var errUpstream = errors.New("upstream down")

func TestGuardRetriesTransientErrors(t *testing.T) {
	g := NewGuard(GuardConfig{
		MaxAttempts:      3,
		BaseDelay:        time.Millisecond,
		MaxDelay:         time.Millisecond,
		FailureThreshold: 10,
		SuccessThreshold: 2,
		RecoveryTimeout:  time.Minute,
	}, zerolog.Nop())

	calls := 0
	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errUpstream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGuardDoesNotRetryDataErrors(t *testing.T) {
	g := NewGuard(GuardConfig{
		MaxAttempts:      3,
		BaseDelay:        time.Millisecond,
		MaxDelay:         time.Millisecond,
		FailureThreshold: 2,
		SuccessThreshold: 2,
		RecoveryTimeout:  time.Minute,
	}, zerolog.Nop())

	for _, sentinel := range []error{api.ErrNotFound, api.ErrInvalidTag} {
		calls := 0
		err := g.Do(context.Background(), "op", func(context.Context) error {
			calls++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("err = %v, want %v", err, sentinel)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1 for %v", calls, sentinel)
		}
	}

	// Data errors never trip the breaker.
	if g.State() != "closed" {
		t.Errorf("state = %s, want closed", g.State())
	}
}

func TestGuardOpensAfterThreshold(t *testing.T) {
	g := testGuard(3)

	fail := func(context.Context) error { return errUpstream }
	for i := 0; i < 3; i++ {
		g.Do(context.Background(), "op", fail)
	}
	if g.State() != "open" {
		t.Fatalf("state = %s, want open", g.State())
	}

	calls := 0
	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, upstream must not be touched while open", calls)
	}
}

func TestGuardRecoversThroughHalfOpen(t *testing.T) {
	g := testGuard(1)

	g.Do(context.Background(), "op", func(context.Context) error { return errUpstream })
	if g.State() != "open" {
		t.Fatalf("state = %s, want open", g.State())
	}

	time.Sleep(60 * time.Millisecond)

	ok := func(context.Context) error { return nil }
	if err := g.Do(context.Background(), "op", ok); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if g.State() != "half-open" {
		t.Fatalf("state = %s, want half-open after one success", g.State())
	}
	if err := g.Do(context.Background(), "op", ok); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if g.State() != "closed" {
		t.Errorf("state = %s, want closed after success threshold", g.State())
	}
}

func TestGuardHalfOpenFailureReopens(t *testing.T) {
	g := testGuard(1)

	g.Do(context.Background(), "op", func(context.Context) error { return errUpstream })
	time.Sleep(60 * time.Millisecond)

	g.Do(context.Background(), "op", func(context.Context) error { return errUpstream })
	if g.State() != "open" {
		t.Errorf("state = %s, want open after a failed probe", g.State())
	}
}

func TestFetchWrapsOperation(t *testing.T) {
	g := testGuard(5)

	type payload struct{ N int }
	got, err := Fetch(context.Background(), g, "fetch_op", func(context.Context) (*payload, error) {
		return &payload{N: 7}, nil
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.N != 7 {
		t.Errorf("got %d, want 7", got.N)
	}

	_, err = Fetch(context.Background(), g, "fetch_op", func(context.Context) (*payload, error) {
		return nil, api.ErrNotFound
	})
	if !errors.Is(err, api.ErrNotFound) {
		t.Errorf("err = %v, want wrapped ErrNotFound", err)
	}
}
