package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

// BreakerConfig configures the completion circuit breaker.
type BreakerConfig struct {
	Name string
	// ConsecutiveFailures opens the circuit once reached.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before a half-open probe.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// BreakerCompleter rejects completion calls fast while the provider keeps failing.
type BreakerCompleter struct {
	inner domain.Completer
	cb    *gobreaker.CircuitBreaker[string]
	name  string
}

// NewBreakerCompleter wraps inner with a circuit breaker.
func NewBreakerCompleter(inner domain.Completer, cfg BreakerConfig, logger *zap.Logger) *BreakerCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "completion"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Cancellations come from callers, not the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerCompleter{inner: inner, cb: cb, name: cfg.Name}
}

// Complete implements domain.Completer.
func (b *BreakerCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	out, err := b.cb.Execute(func() (string, error) {
		return b.inner.Complete(ctx, req) //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%s breaker: %w: %w", b.name, domain.ErrCompletionProviderError, err)
		}
		return "", err //nolint:wrapcheck // inner error already carries context
	}
	return out, nil
}

// State returns the current breaker state.
func (b *BreakerCompleter) State() gobreaker.State {
	return b.cb.State()
}

// HealthCheck fails while the breaker is open.
func (b *BreakerCompleter) HealthCheck(_ context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s breaker open: %w", b.name, domain.ErrCompletionProviderError)
	}
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
