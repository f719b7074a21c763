package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/figma-chunkstore/chunkstore/models"
)

func newOptimizer() *Optimizer {
	est := NewEstimator()
	return NewOptimizer(4096, est, NewStrategyRegistry(est))
}

func TestOptimizeLevelNoneReturnsUnchangedCopy(t *testing.T) {
	o := newOptimizer()
	chunk := models.Chunk{
		ID: "fk:node:a", Type: models.TypeNode,
		Data: map[string]any{"id": "a", "thumbnailUrl": "x", "_private": "y"},
	}
	out := o.Optimize(chunk, OptimizationNone)
	data := out.Data.(map[string]any)
	if data["thumbnailUrl"] != "x" || data["_private"] != "y" {
		t.Fatalf("expected OptimizationNone to leave data untouched, got %v", data)
	}
	// confirm it's a copy, not the same map
	data["thumbnailUrl"] = "changed"
	if chunk.Data.(map[string]any)["thumbnailUrl"] != "x" {
		t.Fatalf("expected Optimize to not mutate the input chunk")
	}
}

func TestOptimizeLevelLowDropsDenyListedAndNulls(t *testing.T) {
	o := newOptimizer()
	chunk := models.Chunk{
		ID: "fk:metadata:a", Type: models.TypeMetadata,
		Data: map[string]any{
			"name":         "doc",
			"thumbnailUrl": "x",
			"_internal":    "y",
			"nullable":     nil,
		},
	}
	out := o.Optimize(chunk, OptimizationLow)
	data := out.Data.(map[string]any)
	if _, ok := data["thumbnailUrl"]; ok {
		t.Errorf("expected thumbnailUrl to be dropped at LOW, got %v", data)
	}
	if _, ok := data["_internal"]; ok {
		t.Errorf("expected underscore-prefixed field to be dropped at LOW, got %v", data)
	}
	if _, ok := data["nullable"]; ok {
		t.Errorf("expected a null-valued field to be dropped at LOW, got %v", data)
	}
	if data["name"] != "doc" {
		t.Errorf("expected name to survive LOW trimming, got %v", data)
	}
}

func TestOptimizeLevelMediumCompressesNode(t *testing.T) {
	o := newOptimizer()
	chunk := models.Chunk{
		ID: "fk:node:a", Type: models.TypeNode,
		Data: map[string]any{
			"id": "a", "type": "RECTANGLE", "name": "Rect",
			"width": 10, "height": 20,
			"someUnretainedField": "drop me",
			"children":            []any{map[string]any{"id": "b"}},
		},
	}
	out := o.Optimize(chunk, OptimizationMedium)
	data := out.Data.(map[string]any)
	if _, ok := data["someUnretainedField"]; ok {
		t.Errorf("expected MEDIUM compression to drop non-retained fields, got %v", data)
	}
	if data["name"] != "Rect" {
		t.Errorf("expected name to be retained, got %v", data)
	}
	children, ok := data["children"].([]any)
	if !ok || len(children) != 0 {
		t.Errorf("expected children to be emptied by node compression, got %v", data["children"])
	}
}

func TestOptimizeLevelHighCompressesThenDropsUnderscoreFields(t *testing.T) {
	o := newOptimizer()
	chunk := models.Chunk{
		ID: "fk:node:a", Type: models.TypeNode,
		Data: map[string]any{
			"id": "a", "type": "RECTANGLE", "name": "Rect",
			"fills": []any{map[string]any{"type": "SOLID", "_cache": "x"}},
		},
	}
	out := o.Optimize(chunk, OptimizationHigh)
	data := out.Data.(map[string]any)
	if data["name"] != "Rect" {
		t.Errorf("expected HIGH to still retain compressed fields, got %v", data)
	}
	// fills survives compression, so its nested "_cache" key is left for
	// HIGH's underscore pass to drop.
	fills, ok := data["fills"].([]any)
	if !ok || len(fills) != 1 {
		t.Fatalf("expected fills to be retained, got %v", data["fills"])
	}
	fill := fills[0].(map[string]any)
	if _, ok := fill["_cache"]; ok {
		t.Errorf("expected HIGH to drop nested underscore-prefixed fields, got %v", fill)
	}
	if fill["type"] != "SOLID" {
		t.Errorf("expected non-underscore fill fields to survive HIGH, got %v", fill)
	}
}

func TestSplitThenMergeNodePreservesEssentialFields(t *testing.T) {
	o := newOptimizer()

	children := make([]any, 12)
	for i := 0; i < 12; i++ {
		children[i] = map[string]any{"id": fmt.Sprintf("r%d", i), "type": "RECTANGLE", "index": i}
	}
	chunk := models.Chunk{
		ID:      "fk:node:root",
		FileKey: "fk",
		Type:    models.TypeNode,
		Created: time.Now(),
		Data: map[string]any{
			"id": "root", "type": "FRAME", "children": children,
		},
	}

	split, err := o.Split(chunk, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(split) < 2 {
		t.Fatalf("expected Split to produce multiple chunks, got %d", len(split))
	}

	merged, err := o.Merge(split)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok := merged.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected merged data to be a map")
	}
	mergedChildren, ok := data["children"].([]any)
	if !ok || len(mergedChildren) != 12 {
		t.Fatalf("expected merge to restore all 12 children, got %v", data["children"])
	}
	for _, raw := range mergedChildren {
		child, ok := raw.(map[string]any)
		if !ok {
			t.Fatalf("expected merged child to be a map, got %T", raw)
		}
		if child["type"] != "RECTANGLE" {
			t.Errorf("expected merged child to carry its essential fields, got %v", child)
		}
	}
}

func TestMergeRejectsEmptyInput(t *testing.T) {
	o := newOptimizer()
	if _, err := o.Merge(nil); err == nil {
		t.Fatalf("expected an error for empty input")
	}
}

func TestMergeSingleChunkReturnsClone(t *testing.T) {
	o := newOptimizer()
	chunk := models.Chunk{ID: "fk:node:a", Type: models.TypeNode, Data: map[string]any{"id": "a"}}
	merged, err := o.Merge([]models.Chunk{chunk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.ID != chunk.ID {
		t.Fatalf("expected single-chunk merge to return the same chunk, got %s", merged.ID)
	}
}
