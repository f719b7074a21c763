package services

import (
	"time"

	"github.com/figma-chunkstore/chunkstore/models"
)

// MetadataStrategy splits a document metadata envelope into a core
// chunk (small, frequently-read summary fields), a details chunk (the
// bulkier component/style/user collections), and an optional
// structure chunk (an abbreviation of the document tree that keeps at
// most 10 children per node, at every depth).
type MetadataStrategy struct {
	estimator *Estimator
}

// NewMetadataStrategy returns a MetadataStrategy backed by estimator.
func NewMetadataStrategy(estimator *Estimator) *MetadataStrategy {
	return &MetadataStrategy{estimator: estimator}
}

// Type implements Strategy.
func (s *MetadataStrategy) Type() models.Type { return models.TypeMetadata }

// ShouldChunk implements Strategy.
func (s *MetadataStrategy) ShouldChunk(data any, ctx *ChunkingContext) bool {
	return s.estimator.Over(data, ctx.MaxSize)
}

// Chunk implements Strategy.
func (s *MetadataStrategy) Chunk(data any, ctx *ChunkingContext) (models.ChunkResult, error) {
	envelope, _ := data.(map[string]any)

	now := time.Now()

	if !s.ShouldChunk(data, ctx) {
		id, err := GenerateID(ctx.FileKey, models.TypeMetadata, "")
		if err != nil {
			return models.ChunkResult{}, err
		}
		chunk := models.Chunk{
			ID: id, FileKey: ctx.FileKey, Type: models.TypeMetadata,
			Created: now, LastAccessed: now, Data: deepCopyAny(envelope),
		}
		return models.ChunkResult{Chunks: []models.Chunk{chunk}, PrimaryChunkID: id}, nil
	}

	coreID, err := GenerateID(ctx.FileKey, models.TypeMetadata, "core")
	if err != nil {
		return models.ChunkResult{}, err
	}
	detailsID, err := GenerateID(ctx.FileKey, models.TypeMetadata, "details")
	if err != nil {
		return models.ChunkResult{}, err
	}

	core := map[string]any{
		"name":               envelope["name"],
		"lastModified":       envelope["lastModified"],
		"version":            envelope["version"],
		"thumbnailUrl":       envelope["thumbnailUrl"],
		"schemaVersion":      envelope["schemaVersion"],
		"documentationLinks": envelope["documentationLinks"],
	}

	document, _ := envelope["document"].(map[string]any)
	if document != nil {
		if children, ok := document["children"].([]any); ok {
			pages := make([]any, 0, len(children))
			for _, c := range children {
				if cm, ok := c.(map[string]any); ok {
					pages = append(pages, map[string]any{
						"id": cm["id"], "name": cm["name"], "type": cm["type"],
					})
				}
			}
			core["pages"] = pages
		}
	}
	if components, ok := envelope["components"].(map[string]any); ok {
		core["componentCount"] = len(components)
	}
	if styles, ok := envelope["styles"].(map[string]any); ok {
		core["styleCount"] = len(styles)
	}

	details := map[string]any{
		"editorType": envelope["editorType"],
		"linkAccess": envelope["linkAccess"],
		"createdAt":  envelope["createdAt"],
		"branches":   envelope["branches"],
	}
	if v, ok := envelope["components"]; ok {
		details["components"] = v
	}
	if v, ok := envelope["styles"]; ok {
		details["styles"] = v
	}
	if v, ok := envelope["users"]; ok {
		details["users"] = v
	}
	if v, ok := envelope["lastUser"]; ok {
		details["lastUser"] = v
	}

	links := []string{detailsID}
	chunks := []models.Chunk{
		{ID: detailsID, FileKey: ctx.FileKey, Type: models.TypeMetadata, Created: now, LastAccessed: now, Data: details},
	}

	if document != nil {
		structureID, err := GenerateID(ctx.FileKey, models.TypeMetadata, "structure")
		if err != nil {
			return models.ChunkResult{}, err
		}
		structure := abbreviateNode(document, 0)
		chunks = append(chunks, models.Chunk{
			ID: structureID, FileKey: ctx.FileKey, Type: models.TypeMetadata,
			Created: now, LastAccessed: now, Data: structure,
		})
		links = append(links, structureID)
	}

	chunks = append([]models.Chunk{{
		ID: coreID, FileKey: ctx.FileKey, Type: models.TypeMetadata,
		Created: now, LastAccessed: now, Data: core, Links: links,
	}}, chunks...)

	return models.ChunkResult{
		Chunks:         chunks,
		PrimaryChunkID: coreID,
		References:     dedupExcluding(links, coreID),
	}, nil
}

// abbreviateNode keeps {id, name, type} and at most the first 10
// children (recursively); when truncated, the original child count is
// recorded under childrenCount.
func abbreviateNode(node map[string]any, depth int) map[string]any {
	out := map[string]any{
		"id":   node["id"],
		"name": node["name"],
		"type": node["type"],
	}
	children, _ := node["children"].([]any)
	if len(children) == 0 {
		return out
	}

	limit := len(children)
	truncated := false
	if limit > 10 {
		limit = 10
		truncated = true
	}

	abbreviated := make([]any, 0, limit)
	for i := 0; i < limit; i++ {
		if cm, ok := children[i].(map[string]any); ok {
			abbreviated = append(abbreviated, abbreviateNode(cm, depth+1))
		}
	}
	out["children"] = abbreviated
	if truncated {
		out["childrenCount"] = len(children)
	}
	return out
}
