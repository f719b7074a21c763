// Command chunkstore-server wires configuration, logging, telemetry,
// the storage manager, and the admin HTTP surface into one process
// and blocks serving requests until it is signaled to stop.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/figma-chunkstore/chunkstore/internal/config"
	"github.com/figma-chunkstore/chunkstore/internal/logger"
	"github.com/figma-chunkstore/chunkstore/internal/resilience"
	"github.com/figma-chunkstore/chunkstore/internal/scheduler"
	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/internal/telemetry"
	"github.com/figma-chunkstore/chunkstore/routes"
	"github.com/figma-chunkstore/chunkstore/services"

	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)
	logger.Info("chunkstore-server: starting", "storageDefault", cfg.StorageDefault)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize telemetry:", err)
	}

	manager, err := buildStorageManager(cfg)
	if err != nil {
		log.Fatal("Failed to build storage manager:", err)
	}
	defer manager.Dispose()

	chunkerCfg := services.Config{
		MaxChunkSize:             cfg.MaxChunkSize,
		Debug:                    cfg.ChunkerDebug,
		OptimizationLevel:        parseOptimizationLevel(cfg.OptimizationLevel),
		CollectMetrics:           cfg.CollectMetrics,
		DetectCircularReferences: cfg.DetectCircularReferences,
	}
	chunker := services.NewChunker(chunkerCfg, nil, nil, logger.Logger)

	cleanupScheduler := scheduler.NewCleanupScheduler(scheduler.Config{
		CleanupInterval: cfg.CleanupInterval,
		CleanupOnStart:  cfg.CleanupOnStart,
	}, manager, logger.Logger)
	ctx, cancelScheduler := context.WithCancel(context.Background())
	if err := cleanupScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start cleanup scheduler:", err)
	}
	defer cleanupScheduler.Stop(ctx)
	defer cancelScheduler()

	router := routes.NewRouter(cfg, chunker, manager, metrics, logger.Logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("chunkstore-server: listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("chunkstore-server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	logger.Info("chunkstore-server: exited")
}

// buildStorageManager registers every configured adapter, wrapping the
// network-backed ones (KV, document store) in the resilience breaker
// since only they have a real round trip that can fail transiently.
func buildStorageManager(cfg *config.Config) (*storage.Manager, error) {
	manager := storage.NewManager(logger.Logger)
	breaker := resilience.NewWrapper(resilience.Config{
		MaxRequests:   uint32(cfg.BreakerMaxRequests),
		Interval:      cfg.BreakerInterval,
		Timeout:       cfg.BreakerTimeout,
		FailureRatio:  cfg.BreakerFailureRatio,
		MinRequests:   uint32(cfg.BreakerMinRequests),
		RatePerSecond: rate.Limit(cfg.BreakerRatePerSec),
		Burst:         cfg.BreakerBurst,
	}, logger.Logger)

	fsAdapter, err := storage.NewFilesystemAdapter(storage.FilesystemConfig{
		BasePath:       cfg.FSBasePath,
		UseLocks:       cfg.FSUseLocks,
		LockTimeout:    cfg.FSLockTimeout,
		DefaultTTL:     cfg.FSDefaultTTL,
		HashAlgorithm:  storage.HashAlgorithm(cfg.FSHashAlgorithm),
		CleanupOnStart: cfg.FSCleanupOnStart,
	}, logger.Logger)
	if err != nil {
		return nil, err
	}
	manager.Register("filesystem", fsAdapter, cfg.StorageDefault == "filesystem")

	kvAdapter := storage.NewKVAdapter(storage.KVConfig{
		Addr:         cfg.KVAddr,
		Password:     cfg.KVPassword,
		DB:           cfg.KVDB,
		ClusterMode:  cfg.KVClusterMode,
		ClusterAddrs: cfg.KVClusterAddrs,
		KeyPrefix:    cfg.KVKeyPrefix,
		DefaultTTL:   cfg.KVDefaultTTL,
	}, logger.Logger)
	manager.Register("kv", breaker.Adapter("kv", kvAdapter), cfg.StorageDefault == "kv")

	docAdapter := storage.NewDocumentStoreAdapter(storage.DocumentStoreConfig{
		URI:            cfg.DocStoreURI,
		Database:       cfg.DocStoreDatabase,
		Collection:     cfg.DocStoreCollection,
		DefaultTTL:     cfg.DocStoreDefaultTTL,
		BulkWriteBatch: cfg.DocStoreBulkWriteBatch,
	}, logger.Logger)
	manager.Register("docstore", breaker.Adapter("docstore", docAdapter), cfg.StorageDefault == "docstore")

	return manager, nil
}

func parseOptimizationLevel(s string) services.OptimizationLevel {
	switch s {
	case "none":
		return services.OptimizationNone
	case "low":
		return services.OptimizationLow
	case "high":
		return services.OptimizationHigh
	default:
		return services.OptimizationMedium
	}
}
