// Package guard wraps an embeddings.Embedder with a client-side rate limiter
// and a circuit breaker so a failing provider is not hammered during a
// large indexing run.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/folio/pkg/embeddings"
)

// Config tunes the guard.
type Config struct {
	// Name identifies the breaker in logs.
	Name string

	// RequestsPerSecond is the sustained request rate. Burst defaults to
	// one tenth of that, at least 1.
	RequestsPerSecond float64
	Burst             int

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

type Embedder struct {
	next    embeddings.Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func New(next embeddings.Embedder, cfg Config, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "embeddings"
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.RequestsPerSecond/10))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Embedder{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.call(ctx, func() (any, error) {
		return e.next.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.call(ctx, func() (any, error) {
		return e.next.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return out.([][]float32), nil
}

func (e *Embedder) Close() error {
	return e.next.Close()
}

// State reports the breaker state, e.g. "closed" or "open".
func (e *Embedder) State() string {
	return e.breaker.State().String()
}

func (e *Embedder) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", embeddings.ErrEmbedding, err)
	}

	out, err := e.breaker.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: provider unavailable: %v", embeddings.ErrEmbedding, err)
	case err != nil:
		return nil, err
	}
	return out, nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
