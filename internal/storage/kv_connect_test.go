package storage

import (
	"context"
	"testing"

	"golang.org/x/time/rate"
)

// TestKVAdapterConnectRetriesAfterTransientFailure guards against the
// adapter permanently caching its first dial failure: before the fix,
// a sync.Once gated the Ping attempt, so every call after the first
// returned that same stale error forever, even once the backend came
// back. Port 1 is refused immediately by the local stack, so both
// attempts fail fast without needing a real Redis.
func TestKVAdapterConnectRetriesAfterTransientFailure(t *testing.T) {
	a := NewKVAdapter(KVConfig{Addr: "127.0.0.1:1", KeyPrefix: "chunk:", RetryRate: rate.Inf}, nil)
	ctx := context.Background()

	if _, err := a.connect(ctx); err == nil {
		t.Fatalf("expected an error connecting to an unreachable address")
	}
	if a.connected {
		t.Fatalf("expected connected to remain false after a failed dial")
	}
	firstErr := a.connectErr
	if firstErr == nil {
		t.Fatalf("expected connectErr to be set after a failed attempt")
	}

	if _, err := a.connect(ctx); err == nil {
		t.Fatalf("expected a second attempt against the same unreachable address to also fail")
	}
	if a.connected {
		t.Fatalf("expected connected to remain false after a second failed dial")
	}
	if a.client == nil {
		t.Fatalf("expected the client object itself to have been built despite the failed ping")
	}
}
