package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds every instrument the chunk store exports.
type Metrics struct {
	ChunksCreated       metric.Int64Counter
	ChunkSizeBytes      metric.Int64Histogram
	ChunkProcessTime    metric.Float64Histogram
	StorageOperations   metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	CleanupEvicted      metric.Int64Counter
	HTTPRequests        metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// InitMetrics initializes every application metric.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("chunkstore")

	chunksCreated, err := meter.Int64Counter(
		"chunks.created",
		metric.WithDescription("Total chunks produced by the chunker"),
	)
	if err != nil {
		return nil, err
	}

	chunkSizeBytes, err := meter.Int64Histogram(
		"chunk.size.bytes",
		metric.WithDescription("Estimated size of each produced chunk"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	chunkProcessTime, err := meter.Float64Histogram(
		"chunk.process.duration",
		metric.WithDescription("Time to chunk one document"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	storageOperations, err := meter.Int64Counter(
		"storage.operations.total",
		metric.WithDescription("Total storage adapter operations"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	cleanupEvicted, err := meter.Int64Counter(
		"cleanup.evicted.total",
		metric.WithDescription("Total chunks evicted by a cleanup sweep"),
	)
	if err != nil {
		return nil, err
	}

	httpRequests, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests to the admin surface"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ChunksCreated:       chunksCreated,
		ChunkSizeBytes:      chunkSizeBytes,
		ChunkProcessTime:    chunkProcessTime,
		StorageOperations:   storageOperations,
		CircuitBreakerState: circuitBreakerState,
		CleanupEvicted:      cleanupEvicted,
		HTTPRequests:        httpRequests,
		HTTPRequestDuration: httpRequestDuration,
	}, nil
}

// RecordChunkCreated records one produced chunk of the given type.
func (m *Metrics) RecordChunkCreated(chunkType string, sizeBytes int) {
	attrs := []attribute.KeyValue{attribute.String("chunk.type", chunkType)}
	m.ChunksCreated.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.ChunkSizeBytes.Record(context.Background(), int64(sizeBytes), metric.WithAttributes(attrs...))
}

// RecordChunkProcessing records the time spent chunking one document.
func (m *Metrics) RecordChunkProcessing(durationMs float64, chunkType string) {
	attrs := []attribute.KeyValue{attribute.String("chunk.type", chunkType)}
	m.ChunkProcessTime.Record(context.Background(), durationMs, metric.WithAttributes(attrs...))
}

// RecordStorageOperation records one storage adapter call.
func (m *Metrics) RecordStorageOperation(adapter, operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("storage.adapter", adapter),
		attribute.String("storage.operation", operation),
		attribute.Bool("storage.success", success),
	}
	m.StorageOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records a breaker state transition.
func (m *Metrics) RecordCircuitBreakerState(adapter, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("storage.adapter", adapter),
		attribute.String("state", state),
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCleanupEvicted records how many chunks a cleanup sweep removed.
func (m *Metrics) RecordCleanupEvicted(adapter string, count int64) {
	attrs := []attribute.KeyValue{attribute.String("storage.adapter", adapter)}
	m.CleanupEvicted.Add(context.Background(), count, metric.WithAttributes(attrs...))
}

// RecordRequest records one admin HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}
	m.HTTPRequests.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}
