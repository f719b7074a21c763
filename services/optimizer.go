package services

import (
	"fmt"
	"strings"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/models"
)

// OptimizationLevel controls how aggressively the optimizer discards
// non-essential fields. Monotone: each level is a superset of the
// previous level's trimming plus its own.
type OptimizationLevel int

const (
	OptimizationNone OptimizationLevel = iota
	OptimizationLow
	OptimizationMedium
	OptimizationHigh
)

var lowDenyList = map[string]bool{
	"thumbnailUrl":       true,
	"documentationLinks": true,
	"editorType":         true,
}

// Optimizer compresses, splits, and merges chunks. Every operation
// returns a new value; inputs are never mutated.
type Optimizer struct {
	maxSize   int
	estimator *Estimator
	registry  *StrategyRegistry
}

// NewOptimizer returns an Optimizer configured with maxSize.
func NewOptimizer(maxSize int, estimator *Estimator, registry *StrategyRegistry) *Optimizer {
	return &Optimizer{maxSize: maxSize, estimator: estimator, registry: registry}
}

// Optimize applies level's trimming rules to a deep copy of chunk.
func (o *Optimizer) Optimize(chunk models.Chunk, level OptimizationLevel) models.Chunk {
	out := chunk.Clone()
	out.Data = deepCopyAny(chunk.Data)

	switch level {
	case OptimizationNone:
		return out
	case OptimizationLow:
		out.Data = dropDenyListed(out.Data, false)
		return out
	case OptimizationMedium:
		return o.Compress(out)
	case OptimizationHigh:
		compressed := o.Compress(out)
		compressed.Data = dropDenyListed(compressed.Data, true)
		return compressed
	default:
		return out
	}
}

// dropDenyListed removes keys beginning with "_", the LOW deny-list
// fields, and null values, recursing into maps and slices. When
// highOnly is true, only the "_"-prefixed rule applies (HIGH-level's
// second pass over an already MEDIUM-compressed value).
func dropDenyListed(v any, highOnly bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if strings.HasPrefix(k, "_") {
				continue
			}
			if !highOnly {
				if lowDenyList[k] {
					continue
				}
				if val == nil {
					continue
				}
			}
			out[k] = dropDenyListed(val, highOnly)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = dropDenyListed(val, highOnly)
		}
		return out
	default:
		return v
	}
}

// Compress dispatches by chunk type to a type-specific field-retention
// rule.
func (o *Optimizer) Compress(chunk models.Chunk) models.Chunk {
	out := chunk.Clone()
	data, ok := chunk.Data.(map[string]any)
	if !ok {
		out.Data = deepCopyAny(chunk.Data)
		return out
	}

	switch chunk.Type {
	case models.TypeNode:
		out.Data = compressNode(data)
	case models.TypeMetadata:
		out.Data = compressMetadata(data)
	case models.TypeGlobalVars:
		out.Data = compressGlobalVars(data)
	default:
		out.Data = deepCopyAny(data)
	}
	return out
}

var nodeRetainedFields = []string{
	"id", "type", "name", "x", "y", "width", "height",
	"fills", "strokes", "cornerRadius", "blendMode",
}

func compressNode(data map[string]any) map[string]any {
	out := make(map[string]any, len(nodeRetainedFields)+1)
	for _, f := range nodeRetainedFields {
		if v, ok := data[f]; ok {
			out[f] = deepCopyAny(v)
		}
	}
	if _, hadChildren := data["children"]; hadChildren {
		out["children"] = []any{}
	}
	return out
}

func compressMetadata(data map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range []string{"name", "version", "schemaVersion", "lastModified"} {
		if v, ok := data[f]; ok {
			out[f] = v
		}
	}
	if components, ok := data["components"].(map[string]any); ok {
		reduced := make(map[string]any, len(components))
		for k, v := range components {
			reduced[k] = reduceToName(v)
		}
		out["components"] = reduced
	}
	if styles, ok := data["styles"].(map[string]any); ok {
		reduced := make(map[string]any, len(styles))
		for k, v := range styles {
			reduced[k] = reduceToName(v)
		}
		out["styles"] = reduced
	}
	return out
}

func reduceToName(v any) any {
	if m, ok := v.(map[string]any); ok {
		if name, ok := m["name"]; ok {
			return map[string]any{"name": name}
		}
	}
	return map[string]any{"name": nil}
}

func compressGlobalVars(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		vm, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		reduced := map[string]any{}
		if name, ok := vm["name"]; ok {
			reduced["name"] = name
		}
		if t, ok := vm["type"]; ok {
			reduced["type"] = t
		}
		if vbm, ok := vm["valuesByMode"]; ok {
			reduced["valuesByMode"] = deepCopyAny(vbm)
		}
		out[k] = reduced
	}
	return out
}

// Split re-partitions a single over-budget chunk into several chunks
// under max, dispatching by type to the strategy-specific rules. When
// no type-aware rule applies, it returns the chunk unchanged.
func (o *Optimizer) Split(chunk models.Chunk, max int) ([]models.Chunk, error) {
	strategy, ok := o.registry.Lookup(chunk.Type)
	if !ok {
		return []models.Chunk{chunk}, nil
	}

	ctx := NewChunkingContext(chunk.FileKey, max)
	result, err := strategy.Chunk(chunk.Data, ctx)
	if err != nil {
		return nil, fmt.Errorf("optimizer split: %w", err)
	}
	return result.Chunks, nil
}

// Merge reverses Split: node children are re-attached from linked
// chunks in link order; metadata core and detail objects are
// shallow-merged with core winning on collision; global-vars
// variables are merged by id. Empty input is an error.
func (o *Optimizer) Merge(chunks []models.Chunk) (models.Chunk, error) {
	if len(chunks) == 0 {
		return models.Chunk{}, fmt.Errorf("merge: no chunks given: %w", chunkerr.InvalidInput)
	}
	if len(chunks) == 1 {
		return chunks[0].Clone(), nil
	}

	switch chunks[0].Type {
	case models.TypeNode:
		return mergeNode(chunks), nil
	case models.TypeMetadata:
		return mergeMetadata(chunks), nil
	case models.TypeGlobalVars:
		return mergeGlobalVars(chunks), nil
	default:
		return chunks[0].Clone(), nil
	}
}

func mergeNode(chunks []models.Chunk) models.Chunk {
	primary := chunks[0].Clone()
	byID := make(map[string]models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	data, ok := primary.Data.(map[string]any)
	if !ok {
		return primary
	}
	data = deepCopyAny(data).(map[string]any)

	children, _ := data["children"].([]any)
	merged := make([]any, 0, len(children))
	for _, raw := range children {
		ref, ok := raw.(map[string]any)
		if !ok {
			merged = append(merged, raw)
			continue
		}
		chunkID, _ := ref["chunkId"].(string)
		if chunkID == "" {
			merged = append(merged, raw)
			continue
		}
		if child, ok := byID[chunkID]; ok {
			merged = append(merged, deepCopyAny(child.Data))
			continue
		}
		merged = append(merged, raw)
	}
	data["children"] = merged
	primary.Data = data
	return primary
}

func mergeMetadata(chunks []models.Chunk) models.Chunk {
	merged := map[string]any{}
	var coreData map[string]any
	for _, c := range chunks {
		m, ok := c.Data.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			merged[k] = v
		}
	}
	core := chunks[0].Clone()
	if cm, ok := chunks[0].Data.(map[string]any); ok {
		coreData = cm
		for k, v := range coreData {
			merged[k] = v // core wins on collision: re-apply after the general merge
		}
	}
	core.Data = merged
	return core
}

func mergeGlobalVars(chunks []models.Chunk) models.Chunk {
	merged := map[string]any{}
	for _, c := range chunks {
		m, ok := c.Data.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			merged[k] = v
		}
	}
	out := chunks[0].Clone()
	out.Data = merged
	return out
}
