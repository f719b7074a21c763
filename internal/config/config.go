package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the chunk store's full configuration surface, loaded from
// the environment (and an optional .env file) at process start.
type Config struct {
	Port    string
	GinMode string

	CORSOrigins []string

	// Chunker
	MaxChunkSize             int
	ChunkerDebug             bool
	OptimizationLevel        string // none|low|medium|high
	CollectMetrics           bool
	DetectCircularReferences bool

	// Storage backend selection
	StorageDefault string // filesystem|kv|docstore

	// Filesystem adapter
	FSBasePath       string
	FSUseLocks       bool
	FSLockTimeout    time.Duration
	FSDefaultTTL     time.Duration
	FSHashAlgorithm  string
	FSCleanupOnStart bool

	// KV (Redis) adapter
	KVAddr         string
	KVPassword     string
	KVDB           int
	KVClusterMode  bool
	KVClusterAddrs []string
	KVKeyPrefix    string
	KVDefaultTTL   time.Duration

	// Document store (MongoDB) adapter
	DocStoreURI            string
	DocStoreDatabase       string
	DocStoreCollection     string
	DocStoreDefaultTTL     time.Duration
	DocStoreBulkWriteBatch int

	// Resilience
	BreakerMaxRequests  int
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  int
	BreakerRatePerSec   float64
	BreakerBurst        int

	// Cleanup scheduler
	CleanupInterval time.Duration
	CleanupOnStart  bool

	// Async ingest worker
	AsynqRedisAddr string
	AsynqQueueName string
}

// LoadConfig reads configuration from the environment, loading a local
// .env file first when present.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		MaxChunkSize:             getEnvInt("MAX_CHUNK_SIZE", 30720),
		ChunkerDebug:             getEnvBool("CHUNKER_DEBUG", false),
		OptimizationLevel:        getEnv("OPTIMIZATION_LEVEL", "medium"),
		CollectMetrics:           getEnvBool("COLLECT_METRICS", false),
		DetectCircularReferences: getEnvBool("DETECT_CIRCULAR_REFERENCES", true),

		StorageDefault: getEnv("STORAGE_DEFAULT", "filesystem"),

		FSBasePath:       getEnv("FS_BASE_PATH", "./storage/chunks"),
		FSUseLocks:       getEnvBool("FS_USE_LOCKS", true),
		FSLockTimeout:    getEnvDuration("FS_LOCK_TIMEOUT", 30*time.Second),
		FSDefaultTTL:     getEnvDuration("FS_DEFAULT_TTL", 24*time.Hour),
		FSHashAlgorithm:  getEnv("FS_HASH_ALGORITHM", "sha256"),
		FSCleanupOnStart: getEnvBool("FS_CLEANUP_ON_START", false),

		KVAddr:         getEnv("KV_ADDR", "localhost:6379"),
		KVPassword:     getEnv("KV_PASSWORD", ""),
		KVDB:           getEnvInt("KV_DB", 0),
		KVClusterMode:  getEnvBool("KV_CLUSTER_MODE", false),
		KVClusterAddrs: splitNonEmpty(getEnv("KV_CLUSTER_ADDRS", "")),
		KVKeyPrefix:    getEnv("KV_KEY_PREFIX", "chunk:"),
		KVDefaultTTL:   getEnvDuration("KV_DEFAULT_TTL", 24*time.Hour),

		DocStoreURI:            getEnv("DOCSTORE_URI", "mongodb://localhost:27017"),
		DocStoreDatabase:       getEnv("DOCSTORE_DATABASE", "chunkstore"),
		DocStoreCollection:     getEnv("DOCSTORE_COLLECTION", "chunks"),
		DocStoreDefaultTTL:     getEnvDuration("DOCSTORE_DEFAULT_TTL", 24*time.Hour),
		DocStoreBulkWriteBatch: getEnvInt("DOCSTORE_BULK_WRITE_BATCH", 500),

		BreakerMaxRequests:  getEnvInt("BREAKER_MAX_REQUESTS", 5),
		BreakerInterval:     getEnvDuration("BREAKER_INTERVAL", 10*time.Second),
		BreakerTimeout:      getEnvDuration("BREAKER_TIMEOUT", 60*time.Second),
		BreakerFailureRatio: getEnvFloat64("BREAKER_FAILURE_RATIO", 0.6),
		BreakerMinRequests:  getEnvInt("BREAKER_MIN_REQUESTS", 3),
		BreakerRatePerSec:   getEnvFloat64("BREAKER_RATE_PER_SEC", 50),
		BreakerBurst:        getEnvInt("BREAKER_BURST", 10),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		CleanupOnStart:  getEnvBool("CLEANUP_ON_START", true),

		AsynqRedisAddr: getEnv("ASYNQ_REDIS_ADDR", "localhost:6379"),
		AsynqQueueName: getEnv("ASYNQ_QUEUE_NAME", "ingest"),
	}

	if cfg.StorageDefault != "filesystem" && cfg.StorageDefault != "kv" && cfg.StorageDefault != "docstore" {
		return nil, fmt.Errorf("STORAGE_DEFAULT must be one of filesystem|kv|docstore, got %q", cfg.StorageDefault)
	}

	return cfg, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
