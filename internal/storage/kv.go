package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/models"
)

// KVConfig configures the KVAdapter.
type KVConfig struct {
	Addr         string
	Password     string
	DB           int
	ClusterMode  bool
	ClusterAddrs []string
	KeyPrefix    string
	DefaultTTL   time.Duration
	// RetryRate bounds how often a failed connection attempt may be
	// retried, protecting a flapping Redis from a reconnect storm.
	RetryRate rate.Limit
}

// DefaultKVConfig returns the documented defaults.
func DefaultKVConfig(addr string) KVConfig {
	return KVConfig{
		Addr:       addr,
		DB:         0,
		KeyPrefix:  "chunk:",
		DefaultTTL: 24 * time.Hour,
		RetryRate:  1,
	}
}

// KVAdapter persists chunks in Redis, keyed by <prefix><id>, with three
// auxiliary index sets (<prefix>index, <prefix>type:<type>,
// <prefix>file:<fileKey>) maintained alongside every write so List can
// pick the narrowest applicable set instead of scanning every key.
type KVAdapter struct {
	cfg     KVConfig
	logger  *slog.Logger
	limiter *rate.Limiter

	connectMu  sync.Mutex
	connected  bool
	connectErr error
	client     redis.UniversalClient
}

// NewKVAdapter returns a KVAdapter. The connection is established
// lazily on first use, so constructing an adapter never blocks on
// network I/O; a failed dial is retried (rate-limited) on every later
// call rather than cached forever.
func NewKVAdapter(cfg KVConfig, logger *slog.Logger) *KVAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryRate <= 0 {
		cfg.RetryRate = 1
	}
	return &KVAdapter{cfg: cfg, logger: logger, limiter: rate.NewLimiter(cfg.RetryRate, 1)}
}

// connect returns a live Redis client, building it on first use and
// re-pinging on every call until that ping has once succeeded. A
// failed ping is never cached permanently: the client object itself is
// built only once (cheap, no I/O), but reachability is re-checked each
// time a caller is willing to pace through the retry limiter, so a
// backend that was down at startup can still be picked up once it
// comes back.
func (a *KVAdapter) connect(ctx context.Context) (redis.UniversalClient, error) {
	a.connectMu.Lock()
	defer a.connectMu.Unlock()

	if a.client == nil {
		if a.cfg.ClusterMode {
			a.client = redis.NewClusterClient(&redis.ClusterOptions{
				Addrs:    a.cfg.ClusterAddrs,
				Password: a.cfg.Password,
			})
		} else {
			a.client = redis.NewClient(&redis.Options{
				Addr:     a.cfg.Addr,
				Password: a.cfg.Password,
				DB:       a.cfg.DB,
			})
		}
	}
	if a.connected {
		return a.client, nil
	}
	if a.connectErr != nil {
		// pace reconnect attempts against a backend that's still down
		if err := a.limiter.Wait(ctx); err != nil {
			return a.client, fmt.Errorf("%w: retry wait: %v", chunkerr.StorageTransient, err)
		}
	}
	if err := a.client.Ping(ctx).Err(); err != nil {
		a.connectErr = fmt.Errorf("%w: redis ping: %v", chunkerr.StorageTransient, err)
		return a.client, a.connectErr
	}
	a.connected = true
	a.connectErr = nil
	return a.client, nil
}

func (a *KVAdapter) key(id string) string         { return a.cfg.KeyPrefix + id }
func (a *KVAdapter) indexKey() string              { return a.cfg.KeyPrefix + "index" }
func (a *KVAdapter) typeKey(t models.Type) string  { return a.cfg.KeyPrefix + "type:" + string(t) }
func (a *KVAdapter) fileKey(fileKey string) string { return a.cfg.KeyPrefix + "file:" + fileKey }

type kvPayload struct {
	Chunk models.Chunk `json:"chunk"`
	Size  int          `json:"size"`
}

// Save implements Adapter: the chunk payload and its three index-set
// memberships are written in a single pipeline.
func (a *KVAdapter) Save(ctx context.Context, chunk models.Chunk) error {
	client, err := a.connect(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(kvPayload{Chunk: chunk, Size: estimateWireSize(chunk)})
	if err != nil {
		return fmt.Errorf("%w: marshal chunk: %v", chunkerr.StoragePermanent, err)
	}

	ttl := a.cfg.DefaultTTL
	if chunk.Expires != nil {
		if remaining := time.Until(*chunk.Expires); remaining > 0 {
			ttl = remaining
		} else {
			ttl = time.Second // already expired: write with a minimal TTL, Redis expiry or Get will reap it
		}
	}

	pipe := client.Pipeline()
	pipe.Set(ctx, a.key(chunk.ID), raw, ttl)
	pipe.SAdd(ctx, a.indexKey(), chunk.ID)
	pipe.SAdd(ctx, a.typeKey(chunk.Type), chunk.ID)
	pipe.SAdd(ctx, a.fileKey(chunk.FileKey), chunk.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: pipeline exec: %v", chunkerr.StorageTransient, err)
	}
	return nil
}

func estimateWireSize(chunk models.Chunk) int {
	raw, err := json.Marshal(chunk.Data)
	if err != nil {
		return 0
	}
	return len(raw)
}

// Get implements Adapter; an expired chunk is deleted and reported
// absent, and a successful read refreshes both lastAccessed and the
// key's TTL.
func (a *KVAdapter) Get(ctx context.Context, id string) (models.Chunk, bool, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return models.Chunk{}, false, err
	}

	raw, err := client.Get(ctx, a.key(id)).Bytes()
	if err == redis.Nil {
		return models.Chunk{}, false, nil
	}
	if err != nil {
		return models.Chunk{}, false, fmt.Errorf("%w: get: %v", chunkerr.StorageTransient, err)
	}

	var payload kvPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		a.logger.Warn("kv adapter: corrupt payload, treating as absent", "id", id, "error", err)
		return models.Chunk{}, false, nil
	}
	if payload.Chunk.Expires != nil && payload.Chunk.Expires.Before(time.Now()) {
		if err := client.Del(ctx, a.key(id)).Err(); err != nil {
			a.logger.Warn("kv adapter: failed to delete expired chunk", "id", id, "error", err)
		}
		return models.Chunk{}, false, nil
	}

	payload.Chunk.LastAccessed = time.Now()
	refreshed, err := json.Marshal(payload)
	if err == nil {
		ttl := a.cfg.DefaultTTL
		if payload.Chunk.Expires != nil {
			if remaining := time.Until(*payload.Chunk.Expires); remaining > 0 {
				ttl = remaining
			}
		}
		if err := client.Set(ctx, a.key(id), refreshed, ttl).Err(); err != nil {
			a.logger.Warn("kv adapter: failed to refresh lastAccessed/ttl", "id", id, "error", err)
		}
	}

	return payload.Chunk, true, nil
}

// Has implements Adapter.
func (a *KVAdapter) Has(ctx context.Context, id string) (bool, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return false, err
	}
	n, err := client.Exists(ctx, a.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists: %v", chunkerr.StorageTransient, err)
	}
	return n > 0, nil
}

// Delete implements Adapter: the payload is read first so its type and
// fileKey are known for the three SREM calls.
func (a *KVAdapter) Delete(ctx context.Context, id string) (bool, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return false, err
	}

	raw, err := client.Get(ctx, a.key(id)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get before delete: %v", chunkerr.StorageTransient, err)
	}

	var payload kvPayload
	_ = json.Unmarshal(raw, &payload)

	pipe := client.Pipeline()
	pipe.Del(ctx, a.key(id))
	pipe.SRem(ctx, a.indexKey(), id)
	pipe.SRem(ctx, a.typeKey(payload.Chunk.Type), id)
	pipe.SRem(ctx, a.fileKey(payload.Chunk.FileKey), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: pipeline exec: %v", chunkerr.StorageTransient, err)
	}
	return true, nil
}

// List implements Adapter: picks the narrowest index set available
// (fileKey, then type, then the global index) and intersects in memory
// when both a fileKey and a type filter are given.
func (a *KVAdapter) List(ctx context.Context, filter models.ChunkFilter) ([]models.ChunkSummary, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	filter = filter.WithDefaults()

	var ids []string
	switch {
	case filter.FileKey != "":
		ids, err = client.SMembers(ctx, a.fileKey(filter.FileKey)).Result()
	case filter.HasType():
		ids, err = client.SMembers(ctx, a.typeKey(filter.Type)).Result()
	default:
		ids, err = client.SMembers(ctx, a.indexKey()).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: smembers: %v", chunkerr.StorageTransient, err)
	}

	var summaries []models.ChunkSummary
	for _, id := range ids {
		raw, err := client.Get(ctx, a.key(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get during list: %v", chunkerr.StorageTransient, err)
		}
		var payload kvPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		summary := models.ChunkSummary{
			ID: payload.Chunk.ID, FileKey: payload.Chunk.FileKey, Type: payload.Chunk.Type,
			Created: payload.Chunk.Created, Size: payload.Size,
		}
		if filter.Matches(summary) {
			summaries = append(summaries, summary)
		}
	}
	return filter.Sort(summaries), nil
}

// Cleanup implements Adapter. Redis's own TTL expiry already reaps every
// payload key this adapter writes, but index sets can accumulate
// references to keys long gone, so this removes ids whose payload key no
// longer exists from the global index set. The per-type and per-file
// sets are not swept.
func (a *KVAdapter) Cleanup(ctx context.Context) error {
	client, err := a.connect(ctx)
	if err != nil {
		return err
	}

	ids, err := client.SMembers(ctx, a.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("%w: smembers: %v", chunkerr.StorageTransient, err)
	}
	for _, id := range ids {
		exists, err := client.Exists(ctx, a.key(id)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			client.SRem(ctx, a.indexKey(), id)
		}
	}
	return nil
}

// Close implements Adapter.
func (a *KVAdapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
