package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/models"
)

// Manager is a registry of named Adapters with one designated default.
// Callers that don't care which backend serves a request use the
// default; callers that need a specific backend (e.g. an admin tool
// inspecting the filesystem adapter directly) name it.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	byName map[Name]Adapter
	def    Name
}

// NewManager returns an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, byName: map[Name]Adapter{}}
}

// Register adds adapter under name. The first registered adapter
// becomes the default; pass makeDefault to override an already-set
// default.
func (m *Manager) Register(name Name, adapter Adapter, makeDefault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[name] = adapter
	if m.def == "" || makeDefault {
		m.def = name
	}
}

// Adapter returns the adapter registered under name, or the default
// adapter when name is empty.
func (m *Manager) Adapter(name Name) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.def
	}
	a, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("storage manager: no adapter registered for %q: %w", name, chunkerr.InvalidInput)
	}
	return a, nil
}

// Save delegates to the named (or default) adapter.
func (m *Manager) Save(ctx context.Context, name Name, chunk models.Chunk) error {
	a, err := m.Adapter(name)
	if err != nil {
		return err
	}
	return a.Save(ctx, chunk)
}

// Get delegates to the named (or default) adapter.
func (m *Manager) Get(ctx context.Context, name Name, id string) (models.Chunk, bool, error) {
	a, err := m.Adapter(name)
	if err != nil {
		return models.Chunk{}, false, err
	}
	return a.Get(ctx, id)
}

// Has delegates to the named (or default) adapter.
func (m *Manager) Has(ctx context.Context, name Name, id string) (bool, error) {
	a, err := m.Adapter(name)
	if err != nil {
		return false, err
	}
	return a.Has(ctx, id)
}

// Delete delegates to the named (or default) adapter.
func (m *Manager) Delete(ctx context.Context, name Name, id string) (bool, error) {
	a, err := m.Adapter(name)
	if err != nil {
		return false, err
	}
	return a.Delete(ctx, id)
}

// List delegates to the named (or default) adapter.
func (m *Manager) List(ctx context.Context, name Name, filter models.ChunkFilter) ([]models.ChunkSummary, error) {
	a, err := m.Adapter(name)
	if err != nil {
		return nil, err
	}
	return a.List(ctx, filter)
}

// CleanupAll runs Cleanup on every registered adapter concurrently,
// returning the first error encountered (after all adapters finish)
// alongside which adapter produced it.
func (m *Manager) CleanupAll(ctx context.Context) error {
	m.mu.RLock()
	adapters := make(map[Name]Adapter, len(m.byName))
	for name, a := range m.byName {
		adapters[name] = a
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	errs := make(chan error, len(adapters))
	for name, a := range adapters {
		wg.Add(1)
		go func(name Name, a Adapter) {
			defer wg.Done()
			if err := a.Cleanup(ctx); err != nil {
				m.logger.Warn("storage manager: cleanup failed", "adapter", name, "error", err)
				errs <- fmt.Errorf("adapter %q: %w", name, err)
			}
		}(name, a)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		return err
	}
	return nil
}

// Dispose closes every registered adapter and clears the registry.
func (m *Manager) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, a := range m.byName {
		if err := a.Close(); err != nil {
			m.logger.Warn("storage manager: close failed", "adapter", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("adapter %q: %w", name, err)
			}
		}
	}
	m.byName = map[Name]Adapter{}
	m.def = ""
	return firstErr
}

// Names returns every registered adapter name.
func (m *Manager) Names() []Name {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Name, 0, len(m.byName))
	for name := range m.byName {
		out = append(out, name)
	}
	return out
}
