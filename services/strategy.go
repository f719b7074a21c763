package services

import (
	"github.com/figma-chunkstore/chunkstore/models"
)

// Strategy is the shared contract every type-specific splitting
// algorithm implements. Implementations must: register every source id
// they process into ctx.IDMap, emit Links only to chunk ids they or
// siblings in the same call produced, and bound their own recursion
// via an explicit depth cap rather than blocking indefinitely.
type Strategy interface {
	Chunk(data any, ctx *ChunkingContext) (models.ChunkResult, error)
	ShouldChunk(data any, ctx *ChunkingContext) bool
	Type() models.Type
}

// StrategyRegistry is a tagged-dispatch registry keyed by Type,
// preferred over a class hierarchy per the design notes: strategies,
// contexts, and results are plain data, dispatch is a map lookup.
type StrategyRegistry struct {
	strategies map[models.Type]Strategy
}

// NewStrategyRegistry returns a registry pre-populated with the three
// built-in strategies.
func NewStrategyRegistry(estimator *Estimator) *StrategyRegistry {
	r := &StrategyRegistry{strategies: make(map[models.Type]Strategy)}
	r.Register(NewNodeStrategy(estimator))
	r.Register(NewMetadataStrategy(estimator))
	r.Register(NewGlobalVarsStrategy(estimator))
	return r
}

// Register adds or replaces the strategy for its own Type().
func (r *StrategyRegistry) Register(s Strategy) {
	r.strategies[s.Type()] = s
}

// Lookup returns the strategy for t, or false if none is registered.
func (r *StrategyRegistry) Lookup(t models.Type) (Strategy, bool) {
	s, ok := r.strategies[t]
	return s, ok
}

const maxDepth = 100
