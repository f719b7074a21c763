package services

import (
	"fmt"
	"time"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/models"
)

// NodeStrategy splits a design-tree node, extracting oversized
// children into their own chunks and leaving a reference object in
// their place.
type NodeStrategy struct {
	estimator *Estimator
}

// NewNodeStrategy returns a NodeStrategy backed by estimator.
func NewNodeStrategy(estimator *Estimator) *NodeStrategy {
	return &NodeStrategy{estimator: estimator}
}

// Type implements Strategy.
func (s *NodeStrategy) Type() models.Type { return models.TypeNode }

// ShouldChunk implements Strategy.
func (s *NodeStrategy) ShouldChunk(data any, ctx *ChunkingContext) bool {
	m, ok := data.(map[string]any)
	if !ok {
		return false
	}
	return s.estimator.ShouldSplitNode(m, ctx.MaxSize)
}

// Chunk implements Strategy.
func (s *NodeStrategy) Chunk(data any, ctx *ChunkingContext) (models.ChunkResult, error) {
	if ctx.Depth > maxDepth {
		return models.ChunkResult{}, fmt.Errorf("node strategy at path %v: %w", ctx.Path, chunkerr.DepthExceeded)
	}

	node, ok := data.(map[string]any)
	if !ok {
		return models.ChunkResult{}, fmt.Errorf("node strategy: expected a node object: %w", chunkerr.InvalidInput)
	}

	sourceID, _ := node["id"].(string)

	if !s.ShouldChunk(data, ctx) {
		id, err := s.primaryID(sourceID, ctx)
		if err != nil {
			return models.ChunkResult{}, err
		}
		if sourceID != "" {
			ctx.IDMap[sourceID] = id
		}
		chunk := models.Chunk{
			ID:      id,
			FileKey: ctx.FileKey,
			Type:    models.TypeNode,
			Created: time.Now(),
			Data:    deepCopyAny(node),
		}
		chunk.LastAccessed = chunk.Created
		return models.ChunkResult{
			Chunks:         []models.Chunk{chunk},
			PrimaryChunkID: id,
			References:     nil,
		}, nil
	}

	primaryID, err := s.primaryID(sourceID, ctx)
	if err != nil {
		return models.ChunkResult{}, err
	}
	if sourceID != "" {
		ctx.IDMap[sourceID] = primaryID
	}

	primaryData := deepCopyAny(node).(map[string]any)
	var directLinks []string
	var allChunks []models.Chunk
	transitiveRefs := make(map[string]bool)

	children, _ := node["children"].([]any)
	newChildren := make([]any, len(children))

	for i, raw := range children {
		child, ok := raw.(map[string]any)
		if !ok {
			newChildren[i] = raw
			continue
		}

		if !s.ShouldChunk(child, ctx) {
			newChildren[i] = deepCopyAny(child)
			continue
		}

		childSourceID, _ := child["id"].(string)
		childName, _ := child["name"].(string)
		childType, _ := child["type"].(string)

		chunkID, seen := ctx.IDMap[childSourceID]
		if !seen || childSourceID == "" {
			chunkID, err = GenerateID(ctx.FileKey, models.TypeNode, "")
			if err != nil {
				return models.ChunkResult{}, err
			}
			if childSourceID != "" {
				ctx.IDMap[childSourceID] = chunkID
			}
		}

		newChildren[i] = map[string]any{
			"id":      childSourceID,
			"name":    childName,
			"type":    childType,
			"chunkId": chunkID,
		}
		directLinks = append(directLinks, chunkID)

		childCtx := ctx.Child(primaryID, nodePathSegment(child, i))
		childResult, err := s.chunkChild(child, chunkID, childCtx)
		if err != nil {
			return models.ChunkResult{}, err
		}
		allChunks = append(allChunks, childResult.Chunks...)
		for _, ref := range childResult.References {
			transitiveRefs[ref] = true
		}
		transitiveRefs[childResult.PrimaryChunkID] = true
	}

	primaryData["children"] = newChildren

	links := append([]string(nil), directLinks...)
	for ref := range transitiveRefs {
		if !contains(links, ref) {
			links = append(links, ref)
		}
	}

	primary := models.Chunk{
		ID:      primaryID,
		FileKey: ctx.FileKey,
		Type:    models.TypeNode,
		Created: time.Now(),
		Data:    primaryData,
		Links:   links,
	}
	primary.LastAccessed = primary.Created

	allChunks = append([]models.Chunk{primary}, allChunks...)

	references := dedupExcluding(links, primaryID)

	return models.ChunkResult{
		Chunks:         allChunks,
		PrimaryChunkID: primaryID,
		References:     references,
	}, nil
}

// chunkChild invokes Chunk on an already-extracted child, but forces
// the child's own chunk id to the one already assigned by the parent
// (looked up or freshly generated there) rather than letting Chunk
// mint a second one.
func (s *NodeStrategy) chunkChild(child map[string]any, chunkID string, ctx *ChunkingContext) (models.ChunkResult, error) {
	result, err := s.Chunk(child, ctx)
	if err != nil {
		return models.ChunkResult{}, err
	}
	oldPrimary := result.PrimaryChunkID
	if oldPrimary == chunkID {
		return result, nil
	}
	for i := range result.Chunks {
		if result.Chunks[i].ID == oldPrimary {
			result.Chunks[i].ID = chunkID
		}
	}
	result.PrimaryChunkID = chunkID
	sourceID, _ := child["id"].(string)
	if sourceID != "" {
		ctx.IDMap[sourceID] = chunkID
	}
	return result, nil
}

func (s *NodeStrategy) primaryID(sourceID string, ctx *ChunkingContext) (string, error) {
	if sourceID == "" {
		return GenerateID(ctx.FileKey, models.TypeNode, fmt.Sprintf("node-%d", time.Now().UnixNano()))
	}
	if existing, ok := ctx.IDMap[sourceID]; ok {
		return existing, nil
	}
	return GenerateID(ctx.FileKey, models.TypeNode, sourceID)
}

func nodePathSegment(node map[string]any, index int) string {
	if id, ok := node["id"].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("child[%d]", index)
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func dedupExcluding(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// deepCopyAny deep-copies a JSON-like value tree (maps, slices,
// scalars) produced by decoding arbitrary design data.
func deepCopyAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopyAny(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopyAny(val)
		}
		return out
	default:
		return v
	}
}
