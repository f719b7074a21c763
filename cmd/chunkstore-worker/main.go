// Command chunkstore-worker runs an asynq server consuming the
// "ingest" queue: each job chunks a raw document and persists the
// resulting chunks through the storage manager, for callers who want
// asynchronous ingestion instead of the admin surface's inline
// request/response path.
package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/figma-chunkstore/chunkstore/internal/config"
	"github.com/figma-chunkstore/chunkstore/internal/logger"
	"github.com/figma-chunkstore/chunkstore/internal/queue"
	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	manager := storage.NewManager(logger.Logger)
	fsAdapter, err := storage.NewFilesystemAdapter(storage.FilesystemConfig{
		BasePath:       cfg.FSBasePath,
		UseLocks:       cfg.FSUseLocks,
		LockTimeout:    cfg.FSLockTimeout,
		DefaultTTL:     cfg.FSDefaultTTL,
		HashAlgorithm:  storage.HashAlgorithm(cfg.FSHashAlgorithm),
		CleanupOnStart: cfg.FSCleanupOnStart,
	}, logger.Logger)
	if err != nil {
		log.Fatal("Failed to build filesystem adapter:", err)
	}
	manager.Register("filesystem", fsAdapter, cfg.StorageDefault == "filesystem")

	kvAdapter := storage.NewKVAdapter(storage.KVConfig{
		Addr:       cfg.KVAddr,
		Password:   cfg.KVPassword,
		DB:         cfg.KVDB,
		KeyPrefix:  cfg.KVKeyPrefix,
		DefaultTTL: cfg.KVDefaultTTL,
	}, logger.Logger)
	manager.Register("kv", kvAdapter, cfg.StorageDefault == "kv")
	defer manager.Dispose()

	chunker := services.NewChunker(services.Config{
		MaxChunkSize:             cfg.MaxChunkSize,
		Debug:                    cfg.ChunkerDebug,
		OptimizationLevel:        services.OptimizationMedium,
		CollectMetrics:           cfg.CollectMetrics,
		DetectCircularReferences: cfg.DetectCircularReferences,
	}, nil, nil, logger.Logger)

	processor := queue.NewTaskProcessor(chunker, manager, logger.Logger)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.AsynqRedisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			cfg.AsynqQueueName: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("chunkstore-worker: task failed", "type", task.Type(), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngest)

	logger.Info("chunkstore-worker: starting", "redis", cfg.AsynqRedisAddr, "queue", cfg.AsynqQueueName)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
