// Package resilience wraps Storage Adapter calls with a per-adapter
// circuit breaker and rate limiter, following the same
// gobreaker+golang.org/x/time/rate combination the rest of this
// codebase uses for outbound calls to unreliable dependencies.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/models"
)

// Config controls the breaker and limiter built per adapter name.
type Config struct {
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	FailureRatio  float64
	MinRequests   uint32
	RatePerSecond rate.Limit
	Burst         int
}

// DefaultConfig mirrors the breaker tuning this codebase uses for its
// other unreliable outbound dependencies.
func DefaultConfig() Config {
	return Config{
		MaxRequests:   5,
		Interval:      10 * time.Second,
		Timeout:       60 * time.Second,
		FailureRatio:  0.6,
		MinRequests:   3,
		RatePerSecond: 50,
		Burst:         10,
	}
}

type entry struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Wrapper decorates a storage.Adapter with a circuit breaker and rate
// limiter scoped to that adapter's registered name. Only
// chunkerr.StorageTransient failures count against the breaker — a
// permanent error (bad input, corrupt payload) says nothing about the
// backend's health and must not trip it.
type Wrapper struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[storage.Name]*entry
}

// NewWrapper returns a Wrapper; entries are created lazily per adapter
// name on first use.
func NewWrapper(cfg Config, logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wrapper{cfg: cfg, logger: logger, entries: map[storage.Name]*entry{}}
}

func (w *Wrapper) entryFor(name storage.Name) *entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[name]; ok {
		return e
	}
	e := &entry{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(name),
			MaxRequests: w.cfg.MaxRequests,
			Interval:    w.cfg.Interval,
			Timeout:     w.cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= w.cfg.MinRequests && ratio >= w.cfg.FailureRatio
			},
			OnStateChange: func(n string, from, to gobreaker.State) {
				w.logger.Warn("resilience: circuit breaker state change", "adapter", n, "from", from, "to", to)
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, chunkerr.StorageTransient)
			},
		}),
		limiter: rate.NewLimiter(w.cfg.RatePerSecond, w.cfg.Burst),
	}
	w.entries[name] = e
	return e
}

// Adapter returns a storage.Adapter that routes every call for name
// through that name's breaker and limiter before delegating to inner.
func (w *Wrapper) Adapter(name storage.Name, inner storage.Adapter) storage.Adapter {
	return &guardedAdapter{name: name, inner: inner, entry: w.entryFor(name)}
}

type guardedAdapter struct {
	name  storage.Name
	inner storage.Adapter
	entry *entry
}

func (g *guardedAdapter) guard(ctx context.Context, fn func() error) error {
	if err := g.entry.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("resilience: rate limit wait for %q: %w", g.name, chunkerr.StorageTransient)
	}
	_, err := g.entry.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("resilience: adapter %q circuit open: %w", g.name, chunkerr.StorageTransient)
	}
	return err
}

func (g *guardedAdapter) isCountedFailure(err error) bool {
	return err != nil && errors.Is(err, chunkerr.StorageTransient)
}

func (g *guardedAdapter) Save(ctx context.Context, chunk models.Chunk) error {
	return g.guard(ctx, func() error { return g.inner.Save(ctx, chunk) })
}

func (g *guardedAdapter) Get(ctx context.Context, id string) (models.Chunk, bool, error) {
	var chunk models.Chunk
	var found bool
	var innerErr error
	guardErr := g.guard(ctx, func() error {
		chunk, found, innerErr = g.inner.Get(ctx, id)
		if !g.isCountedFailure(innerErr) {
			return nil // permanent errors and misses don't count against the breaker
		}
		return innerErr
	})
	// guardErr is non-nil either because the breaker/limiter rejected the
	// call outright (fn never ran, innerErr is still its zero value) or
	// because fn itself reported a counted failure (innerErr already
	// equals it). Either way it must propagate, not fall through as a
	// silent miss.
	if guardErr != nil {
		return models.Chunk{}, false, guardErr
	}
	if innerErr != nil {
		return models.Chunk{}, false, innerErr
	}
	return chunk, found, nil
}

func (g *guardedAdapter) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := g.guard(ctx, func() error {
		var innerErr error
		has, innerErr = g.inner.Has(ctx, id)
		return innerErr
	})
	return has, err
}

func (g *guardedAdapter) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := g.guard(ctx, func() error {
		var innerErr error
		deleted, innerErr = g.inner.Delete(ctx, id)
		return innerErr
	})
	return deleted, err
}

func (g *guardedAdapter) List(ctx context.Context, filter models.ChunkFilter) ([]models.ChunkSummary, error) {
	var summaries []models.ChunkSummary
	err := g.guard(ctx, func() error {
		var innerErr error
		summaries, innerErr = g.inner.List(ctx, filter)
		return innerErr
	})
	return summaries, err
}

func (g *guardedAdapter) Cleanup(ctx context.Context) error {
	return g.guard(ctx, func() error { return g.inner.Cleanup(ctx) })
}

func (g *guardedAdapter) Close() error { return g.inner.Close() }
