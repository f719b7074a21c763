// Package queue defines the asynchronous ingest job: given a raw
// document payload too large or too slow to chunk inline on the
// request path, a producer enqueues it here and a worker (see
// cmd/chunkstore-worker) chunks and persists it in the background.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/models"
	"github.com/figma-chunkstore/chunkstore/services"
)

// TaskIngestDocument is the asynq task type name for a document ingest job.
const TaskIngestDocument = "document:ingest"

// IngestPayload is the task payload: a raw document to chunk and store.
type IngestPayload struct {
	FileKey        string      `json:"fileKey"`
	Type           models.Type `json:"type,omitempty"` // empty: auto-detect
	Data           any         `json:"data"`
	StorageAdapter string      `json:"storageAdapter,omitempty"` // empty: manager default
}

// NewIngestTask builds the asynq.Task for an ingest job.
func NewIngestTask(payload IngestPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal ingest payload: %w", err)
	}
	return asynq.NewTask(
		TaskIngestDocument,
		raw,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// TaskProcessor chunks ingest jobs and persists the resulting chunks.
type TaskProcessor struct {
	chunker *services.Chunker
	manager *storage.Manager
	logger  *slog.Logger
}

// NewTaskProcessor returns a TaskProcessor wired to chunker and manager.
func NewTaskProcessor(chunker *services.Chunker, manager *storage.Manager, logger *slog.Logger) *TaskProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskProcessor{chunker: chunker, manager: manager, logger: logger}
}

// ProcessIngest handles TaskIngestDocument: chunk the document, then
// save every resulting chunk through the storage manager. A malformed
// payload is not retried; a storage failure is (asynq's default retry
// policy applies since this doesn't wrap asynq.SkipRetry).
func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("queue: unmarshal ingest payload: %w: %w", err, asynq.SkipRetry)
	}

	p.logger.Info("queue: ingest job started", "fileKey", payload.FileKey, "type", payload.Type)

	result, err := p.chunker.Chunk(payload.Data, payload.FileKey, payload.Type)
	if err != nil {
		return fmt.Errorf("queue: chunk document: %w", err)
	}

	adapterName := storage.Name(payload.StorageAdapter)
	for _, chunk := range result.Chunks {
		if err := p.manager.Save(ctx, adapterName, chunk); err != nil {
			return fmt.Errorf("queue: save chunk %s: %w", chunk.ID, err)
		}
	}

	p.logger.Info("queue: ingest job complete",
		"fileKey", payload.FileKey, "chunks", len(result.Chunks), "primary", result.PrimaryChunkID)
	return nil
}
