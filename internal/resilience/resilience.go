// Package resilience is the shared retry/circuit-breaker collaborator for
// upstream calls. Pipeline components call through a Guard instead of
// embedding their own retry logic.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"brawlmeta/internal/api"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// ErrCircuitOpen is returned without touching the upstream while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type GuardConfig struct {
	MaxAttempts      uint64
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxAttempts:      3,
		BaseDelay:        1 * time.Second,
		MaxDelay:         30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Guard combines bounded retry with a circuit breaker.
type Guard struct {
	cfg    GuardConfig
	logger zerolog.Logger

	mu          sync.Mutex
	state       state
	failures    int
	successes   int
	lastFailure time.Time
}

func NewGuard(cfg GuardConfig, logger zerolog.Logger) *Guard {
	return &Guard{
		cfg:    cfg,
		logger: logger.With().Str("component", "resilience").Logger(),
		state:  stateClosed,
	}
}

// Do executes fn with retry and breaker accounting. Not-found and invalid-tag
// errors pass straight through: they are data conditions, not upstream health.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := g.allow(); err != nil {
		g.logger.Warn().Str("op", op).Msg("call rejected, circuit open")
		return err
	}

	backoff := retry.WithJitterPercent(25,
		retry.WithCappedDuration(g.cfg.MaxDelay,
			retry.WithMaxRetries(g.cfg.MaxAttempts-1,
				retry.NewExponential(g.cfg.BaseDelay))))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		g.logger.Warn().Err(err).Str("op", op).Msg("attempt failed, will retry")
		return retry.RetryableError(err)
	})

	g.record(op, err)
	return err
}

func retryable(err error) bool {
	return !errors.Is(err, api.ErrNotFound) && !errors.Is(err, api.ErrInvalidTag)
}

func (g *Guard) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == stateOpen {
		if time.Since(g.lastFailure) < g.cfg.RecoveryTimeout {
			return ErrCircuitOpen
		}
		g.state = stateHalfOpen
		g.successes = 0
		g.logger.Info().Msg("circuit half-open, probing upstream")
	}
	return nil
}

func (g *Guard) record(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil || !retryable(err) {
		g.successes++
		g.failures = 0
		if g.state == stateHalfOpen && g.successes >= g.cfg.SuccessThreshold {
			g.state = stateClosed
			g.logger.Info().Msg("circuit closed")
		}
		return
	}

	g.failures++
	g.lastFailure = time.Now()
	if g.state == stateHalfOpen || g.failures >= g.cfg.FailureThreshold {
		if g.state != stateOpen {
			g.logger.Error().
				Err(err).
				Str("op", op).
				Int("failures", g.failures).
				Msg("circuit opened")
		}
		g.state = stateOpen
	}
}

// State reports the breaker state for logging and tests.
func (g *Guard) State() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.String()
}

// Reset force-closes the breaker.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = stateClosed
	g.failures = 0
	g.successes = 0
}

// Fetch wraps Do for calls that return a value.
func Fetch[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (*T, error)) (*T, error) {
	var result *T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
