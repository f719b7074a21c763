package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/figma-chunkstore/chunkstore/models"
)

// GlobalVarsStrategy splits a global-variable dictionary (or array of
// variables) into one chunk per variant tag, further splitting any
// tag whose entries don't fit the budget, and emits an index chunk
// that maps each tag to its first chunk.
type GlobalVarsStrategy struct {
	estimator *Estimator
}

// NewGlobalVarsStrategy returns a GlobalVarsStrategy backed by estimator.
func NewGlobalVarsStrategy(estimator *Estimator) *GlobalVarsStrategy {
	return &GlobalVarsStrategy{estimator: estimator}
}

// Type implements Strategy.
func (s *GlobalVarsStrategy) Type() models.Type { return models.TypeGlobalVars }

// ShouldChunk implements Strategy.
func (s *GlobalVarsStrategy) ShouldChunk(data any, ctx *ChunkingContext) bool {
	return s.estimator.Over(data, ctx.MaxSize)
}

type varEntry struct {
	key   string
	value any
}

// Chunk implements Strategy.
func (s *GlobalVarsStrategy) Chunk(data any, ctx *ChunkingContext) (models.ChunkResult, error) {
	entries := toVarEntries(data)
	now := time.Now()

	if !s.ShouldChunk(data, ctx) {
		id, err := GenerateID(ctx.FileKey, models.TypeGlobalVars, "")
		if err != nil {
			return models.ChunkResult{}, err
		}
		chunk := models.Chunk{
			ID: id, FileKey: ctx.FileKey, Type: models.TypeGlobalVars,
			Created: now, LastAccessed: now, Data: deepCopyAny(data),
		}
		return models.ChunkResult{Chunks: []models.Chunk{chunk}, PrimaryChunkID: id}, nil
	}

	groups := partitionByTag(entries)

	tags := make([]string, 0, len(groups))
	for tag := range groups {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	index := map[string]any{}
	var allLinks []string
	var chunks []models.Chunk

	for _, tag := range tags {
		group := groups[tag]
		if len(group) == 0 {
			continue
		}

		asMap := entriesToMap(group)
		if !s.estimator.Over(asMap, ctx.MaxSize) {
			id, err := GenerateID(ctx.FileKey, models.TypeGlobalVars, tag)
			if err != nil {
				return models.ChunkResult{}, err
			}
			chunks = append(chunks, models.Chunk{
				ID: id, FileKey: ctx.FileKey, Type: models.TypeGlobalVars,
				Created: now, LastAccessed: now, Data: asMap,
			})
			allLinks = append(allLinks, id)
			index[tag] = id
			continue
		}

		subGroups := splitGreedy(group, ctx.MaxSize, s.estimator)
		first := ""
		for i, sub := range subGroups {
			subMap := entriesToMap(sub)
			identifier := fmt.Sprintf("%s-%d", tag, i)
			id, err := GenerateID(ctx.FileKey, models.TypeGlobalVars, identifier)
			if err != nil {
				return models.ChunkResult{}, err
			}
			chunks = append(chunks, models.Chunk{
				ID: id, FileKey: ctx.FileKey, Type: models.TypeGlobalVars,
				Created: now, LastAccessed: now, Data: subMap,
			})
			allLinks = append(allLinks, id)
			if i == 0 {
				first = id
			}
		}
		index[tag] = first
	}

	indexID, err := GenerateID(ctx.FileKey, models.TypeGlobalVars, "index")
	if err != nil {
		return models.ChunkResult{}, err
	}
	indexChunk := models.Chunk{
		ID: indexID, FileKey: ctx.FileKey, Type: models.TypeGlobalVars,
		Created: now, LastAccessed: now, Data: index, Links: allLinks,
	}
	chunks = append([]models.Chunk{indexChunk}, chunks...)

	return models.ChunkResult{
		Chunks:         chunks,
		PrimaryChunkID: indexID,
		References:     dedupExcluding(allLinks, indexID),
	}, nil
}

// splitGreedy accumulates entries into sub-groups until the next entry
// would exceed max, using the estimator to decide. A single entry that
// still exceeds max on its own is emitted alone.
func splitGreedy(entries []varEntry, max int, estimator *Estimator) [][]varEntry {
	var groups [][]varEntry
	var current []varEntry

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
	}

	for _, e := range entries {
		candidate := append(append([]varEntry(nil), current...), e)
		if estimator.Over(entriesToMap(candidate), max) && len(current) > 0 {
			flush()
			candidate = []varEntry{e}
		}
		current = candidate
	}
	flush()
	return groups
}

func entriesToMap(entries []varEntry) map[string]any {
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.key] = e.value
	}
	return out
}

func toVarEntries(data any) []varEntry {
	switch t := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]varEntry, 0, len(t))
		for _, k := range keys {
			entries = append(entries, varEntry{key: k, value: t[k]})
		}
		return entries
	case []any:
		entries := make([]varEntry, 0, len(t))
		for i, v := range t {
			key := fmt.Sprintf("%d", i)
			if vm, ok := v.(map[string]any); ok {
				if id, ok := vm["id"].(string); ok && id != "" {
					key = id
				}
			}
			entries = append(entries, varEntry{key: key, value: v})
		}
		return entries
	default:
		return nil
	}
}

var knownVariantTags = map[string]bool{
	"COLOR": true, "FLOAT": true, "STRING": true, "BOOLEAN": true,
	"TEXT_STYLE": true, "EFFECT_STYLE": true, "OTHER": true,
}

// classifyVariant determines the variant tag for a single variable
// value: prefer an explicit, recognized value.type; otherwise infer
// from shape.
func classifyVariant(value any) string {
	vm, ok := value.(map[string]any)
	if !ok {
		return "OTHER"
	}
	if t, ok := vm["type"].(string); ok {
		upper := upperASCII(t)
		if knownVariantTags[upper] {
			return upper
		}
	}
	if _, hasR := vm["r"]; hasR {
		if _, hasG := vm["g"]; hasG {
			if _, hasB := vm["b"]; hasB {
				return "COLOR"
			}
		}
	}
	if _, ok := vm["fontFamily"]; ok {
		return "TEXT_STYLE"
	}
	if _, ok := vm["fontSize"]; ok {
		return "TEXT_STYLE"
	}
	if effects, ok := vm["effects"].([]any); ok && effects != nil {
		return "EFFECT_STYLE"
	}
	return "OTHER"
}

func partitionByTag(entries []varEntry) map[string][]varEntry {
	groups := make(map[string][]varEntry)
	for _, e := range entries {
		tag := classifyVariant(e.value)
		groups[tag] = append(groups[tag], e)
	}
	return groups
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
