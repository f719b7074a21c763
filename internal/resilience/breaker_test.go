package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/models"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RatePerSecond = rate.Limit(10000)
	cfg.Burst = 10000
	return cfg
}

func TestWrapperAdapterDelegatesToInner(t *testing.T) {
	fsCfg := storage.DefaultFilesystemConfig(t.TempDir())
	inner, err := storage.NewFilesystemAdapter(fsCfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := NewWrapper(fastConfig(), nil)
	guarded := w.Adapter("fs", inner)

	ctx := context.Background()
	chunk := models.Chunk{ID: "fk:node:a", FileKey: "fk", Type: models.TypeNode, Created: time.Now(), Data: map[string]any{"id": "a"}}

	if err := guarded.Save(ctx, chunk); err != nil {
		t.Fatalf("unexpected error saving through guard: %v", err)
	}
	got, found, err := guarded.Get(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("unexpected error getting through guard: %v", err)
	}
	if !found || got.ID != chunk.ID {
		t.Fatalf("expected the guarded adapter to return the saved chunk, got %+v found=%v", got, found)
	}
}

// failingAdapter is a minimal in-test double used to exercise the
// breaker's transient-vs-permanent distinction without depending on
// real backend failure injection.
type failingAdapter struct {
	err error
}

func (f *failingAdapter) Save(ctx context.Context, chunk models.Chunk) error { return f.err }
func (f *failingAdapter) Get(ctx context.Context, id string) (models.Chunk, bool, error) {
	return models.Chunk{}, false, f.err
}
func (f *failingAdapter) Has(ctx context.Context, id string) (bool, error)   { return false, f.err }
func (f *failingAdapter) Delete(ctx context.Context, id string) (bool, error) { return false, f.err }
func (f *failingAdapter) List(ctx context.Context, filter models.ChunkFilter) ([]models.ChunkSummary, error) {
	return nil, f.err
}
func (f *failingAdapter) Cleanup(ctx context.Context) error { return f.err }
func (f *failingAdapter) Close() error                      { return nil }

func TestWrapperTripsBreakerOnlyOnTransientFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MinRequests = 2
	cfg.FailureRatio = 0.5
	cfg.Timeout = time.Hour

	w := NewWrapper(cfg, nil)
	inner := &failingAdapter{err: chunkerr.StoragePermanent}
	guarded := w.Adapter("fs", inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := guarded.Get(ctx, "x"); !errors.Is(err, chunkerr.StoragePermanent) {
			t.Fatalf("expected a permanent error to pass through unchanged, got %v", err)
		}
	}
}

func TestWrapperTripsBreakerOnTransientFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MinRequests = 2
	cfg.FailureRatio = 0.5
	cfg.Timeout = time.Hour

	w := NewWrapper(cfg, nil)
	inner := &failingAdapter{err: chunkerr.StorageTransient}
	guarded := w.Adapter("fs", inner)
	ctx := context.Background()

	var lastErr error
	for i := 0; i < 10; i++ {
		_, _, lastErr = guarded.Get(ctx, "x")
	}
	if !errors.Is(lastErr, chunkerr.StorageTransient) {
		t.Fatalf("expected repeated transient failures to keep surfacing as transient, got %v", lastErr)
	}
}
