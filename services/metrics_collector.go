package services

import (
	"sync"

	"github.com/figma-chunkstore/chunkstore/models"
)

var knownTypes = []models.Type{models.TypeMetadata, models.TypeNode, models.TypeGlobalVars}

type typeBucket struct {
	processingTimeMs []float64
	chunkSizeBytes   []int
	chunkCount       int
}

// MetricsCollector accumulates per-type processing time, chunk size,
// and chunk count buckets. Every method holds an internal mutex, so one
// collector can be shared across goroutines.
type MetricsCollector struct {
	mu      sync.Mutex
	buckets map[models.Type]*typeBucket
}

// NewMetricsCollector returns a collector with a dense, pre-populated
// bucket for every known chunk type.
func NewMetricsCollector() *MetricsCollector {
	c := &MetricsCollector{}
	c.Reset()
	return c
}

// RecordProcessingTime appends a processing-time sample for t.
func (c *MetricsCollector) RecordProcessingTime(t models.Type, ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucketFor(t).processingTimeMs = append(c.bucketFor(t).processingTimeMs, ms)
}

// RecordChunkSize appends a chunk-size sample for t.
func (c *MetricsCollector) RecordChunkSize(t models.Type, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucketFor(t).chunkSizeBytes = append(c.bucketFor(t).chunkSizeBytes, bytes)
}

// RecordChunkCount increments the chunk count for t by n.
func (c *MetricsCollector) RecordChunkCount(t models.Type, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucketFor(t).chunkCount += n
}

func (c *MetricsCollector) bucketFor(t models.Type) *typeBucket {
	b, ok := c.buckets[t]
	if !ok {
		b = &typeBucket{}
		c.buckets[t] = b
	}
	return b
}

// TypeStatistics summarizes one type's buckets.
type TypeStatistics struct {
	ProcessingTimeMs []float64
	ChunkSizeBytes   []int
	ChunkCount       int
	AvgProcessingMs  float64
	AvgChunkSize     float64
}

// Statistics is the full snapshot returned by Statistics().
type Statistics struct {
	ByType     map[models.Type]TypeStatistics
	TotalCount int
}

// Statistics returns raw arrays, per-type averages, per-type counts,
// and the sum of counts across every known type.
func (c *MetricsCollector) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Statistics{ByType: make(map[models.Type]TypeStatistics, len(c.buckets))}
	for t, b := range c.buckets {
		stats := TypeStatistics{
			ProcessingTimeMs: append([]float64(nil), b.processingTimeMs...),
			ChunkSizeBytes:   append([]int(nil), b.chunkSizeBytes...),
			ChunkCount:       b.chunkCount,
		}
		if len(b.processingTimeMs) > 0 {
			stats.AvgProcessingMs = average(b.processingTimeMs)
		}
		if len(b.chunkSizeBytes) > 0 {
			stats.AvgChunkSize = averageInt(b.chunkSizeBytes)
		}
		out.ByType[t] = stats
		out.TotalCount += b.chunkCount
	}
	return out
}

// Reset empties every bucket, re-seeding a dense bucket for every
// known type so Statistics() never reports a missing type.
func (c *MetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = make(map[models.Type]*typeBucket, len(knownTypes))
	for _, t := range knownTypes {
		c.buckets[t] = &typeBucket{}
	}
}

func average(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func averageInt(vs []int) float64 {
	var sum int
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}
