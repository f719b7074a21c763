package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/models"
)

// Config is the Chunker's configuration surface.
type Config struct {
	MaxChunkSize             int
	Debug                    bool
	OptimizationLevel        OptimizationLevel
	CollectMetrics           bool
	DetectCircularReferences bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:             30720,
		Debug:                    false,
		OptimizationLevel:        OptimizationMedium,
		CollectMetrics:           false,
		DetectCircularReferences: true,
	}
}

// Chunker is the orchestrator: it detects a document's type, dispatches
// to the matching strategy, updates the reference graph, optimizes
// the resulting chunks, and records metrics — without itself holding
// any mutable state shared between calls beyond the registry and the
// optional metrics/graph instances the caller chose to share.
type Chunker struct {
	cfg       Config
	registry  *StrategyRegistry
	estimator *Estimator
	optimizer *Optimizer
	graph     *ReferenceGraph
	metrics   *MetricsCollector
	logger    *slog.Logger

	// Warnings collects non-fatal issues (detected cycles, size
	// overflows on indivisible leaves) from the most recent Chunk call.
	Warnings []string
}

// NewChunker wires a Chunker from cfg. graph and metrics may be nil, in
// which case the Chunker creates its own private instances (useful
// when the caller doesn't want to share them across calls).
func NewChunker(cfg Config, graph *ReferenceGraph, metrics *MetricsCollector, logger *slog.Logger) *Chunker {
	estimator := NewEstimator()
	registry := NewStrategyRegistry(estimator)
	if graph == nil {
		graph = NewReferenceGraph()
	}
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		cfg:       cfg,
		registry:  registry,
		estimator: estimator,
		optimizer: NewOptimizer(cfg.MaxChunkSize, estimator, registry),
		graph:     graph,
		metrics:   metrics,
		logger:    logger,
	}
}

// Chunk detects data's type (unless explicitly given), dispatches to
// the matching strategy, and returns the resulting ChunkResult. A
// failed call leaves no partial state: nothing is persisted here, the
// Chunker only produces chunk values for the caller to hand to a
// Storage Adapter.
func (c *Chunker) Chunk(data any, fileKey string, explicitType models.Type) (models.ChunkResult, error) {
	start := time.Now()
	c.Warnings = nil

	t := explicitType
	if t == "" {
		t = detectType(data)
	}

	strategy, ok := c.registry.Lookup(t)
	if !ok {
		return models.ChunkResult{}, fmt.Errorf("chunker: type %q: %w", t, chunkerr.NoStrategy)
	}

	ctx := NewChunkingContext(fileKey, c.cfg.MaxChunkSize)

	result, err := strategy.Chunk(data, ctx)
	if err != nil {
		return models.ChunkResult{}, err
	}

	for _, chunk := range result.Chunks {
		c.graph.AddNode(chunk.ID, nil)
		for _, link := range chunk.Links {
			c.graph.AddReference(chunk.ID, link)
		}
	}

	if c.cfg.OptimizationLevel != OptimizationNone {
		optimized := make([]models.Chunk, len(result.Chunks))
		for i, chunk := range result.Chunks {
			optimized[i] = c.optimizer.Optimize(chunk, c.cfg.OptimizationLevel)
			if c.estimator.Over(optimized[i].Data, c.cfg.MaxChunkSize) {
				c.Warnings = append(c.Warnings, fmt.Sprintf(
					"chunk %s exceeds maxChunkSize after optimization (indivisible leaf)", optimized[i].ID))
			}
		}
		result.Chunks = optimized
	}

	if c.cfg.DetectCircularReferences {
		if cycles := c.graph.DetectCycles(); len(cycles) > 0 {
			for _, cycle := range cycles {
				msg := fmt.Sprintf("circular reference detected: %v", cycle)
				c.Warnings = append(c.Warnings, msg)
				c.logger.Warn("chunker: circular reference detected", "cycle", cycle)
			}
		}
	}

	if c.cfg.CollectMetrics {
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		c.metrics.RecordProcessingTime(t, elapsed)
		c.metrics.RecordChunkCount(t, len(result.Chunks))
		for _, chunk := range result.Chunks {
			c.metrics.RecordChunkSize(chunk.Type, c.estimator.Estimate(chunk.Data))
		}
	}

	if c.cfg.Debug {
		c.logger.Debug("chunker: chunk call complete",
			"fileKey", fileKey, "type", t, "chunks", len(result.Chunks), "primary", result.PrimaryChunkID)
	}

	return result, nil
}

// Graph returns the Chunker's reference graph.
func (c *Chunker) Graph() *ReferenceGraph { return c.graph }

// Metrics returns the Chunker's metrics collector.
func (c *Chunker) Metrics() *MetricsCollector { return c.metrics }

// detectType auto-detects a document's chunk type by structural
// heuristic, in priority order: globalVars, node, metadata (default).
func detectType(data any) models.Type {
	m, ok := data.(map[string]any)
	if !ok {
		return models.TypeMetadata
	}

	if _, ok := m["variables"]; ok {
		return models.TypeGlobalVars
	}
	if _, ok := m["localVariables"]; ok {
		return models.TypeGlobalVars
	}

	if id, hasID := m["id"]; hasID {
		if _, isString := id.(string); isString {
			if _, hasType := m["type"].(string); hasType {
				return models.TypeNode
			}
		}
	}
	if document, ok := m["document"].(map[string]any); ok {
		if _, hasID := document["id"]; hasID {
			if _, hasChildren := document["children"]; hasChildren {
				return models.TypeNode
			}
		}
	}

	if _, hasName := m["name"]; hasName {
		if _, hasSchema := m["schemaVersion"]; hasSchema {
			return models.TypeMetadata
		}
		if _, hasModified := m["lastModified"]; hasModified {
			if _, hasVersion := m["version"]; hasVersion {
				return models.TypeMetadata
			}
		}
	}

	return models.TypeMetadata
}
