package storage

import (
	"context"
	"testing"
	"time"

	"github.com/figma-chunkstore/chunkstore/models"
)

func newTestFilesystemAdapter(t *testing.T) *FilesystemAdapter {
	t.Helper()
	cfg := DefaultFilesystemConfig(t.TempDir())
	a, err := NewFilesystemAdapter(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error creating adapter: %v", err)
	}
	return a
}

func TestFilesystemAdapterSaveGetRoundTrip(t *testing.T) {
	a := newTestFilesystemAdapter(t)
	ctx := context.Background()

	chunk := models.Chunk{
		ID: "fk:node:a", FileKey: "fk", Type: models.TypeNode,
		Created: time.Now(), LastAccessed: time.Now(),
		Data: map[string]any{"id": "a", "type": "RECTANGLE"},
		Links: []string{"fk:node:b"},
	}
	if err := a.Save(ctx, chunk); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}

	got, found, err := a.Get(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("unexpected error getting: %v", err)
	}
	if !found {
		t.Fatalf("expected chunk to be found after save")
	}
	if got.ID != chunk.ID || got.FileKey != chunk.FileKey {
		t.Fatalf("unexpected round-tripped chunk: %+v", got)
	}
	data, ok := got.Data.(map[string]any)
	if !ok || data["id"] != "a" {
		t.Fatalf("unexpected round-tripped data: %v", got.Data)
	}
	if len(got.Links) != 1 || got.Links[0] != "fk:node:b" {
		t.Fatalf("unexpected round-tripped links: %v", got.Links)
	}
}

func TestFilesystemAdapterGetReturnsAbsentForMissingID(t *testing.T) {
	a := newTestFilesystemAdapter(t)
	_, found, err := a.Get(context.Background(), "fk:node:does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not found for a never-saved id")
	}
}

func TestFilesystemAdapterGetEvictsExpiredChunk(t *testing.T) {
	a := newTestFilesystemAdapter(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	chunk := models.Chunk{
		ID: "fk:node:expired", FileKey: "fk", Type: models.TypeNode,
		Created: past, LastAccessed: past, Expires: &past,
		Data: map[string]any{"id": "expired"},
	}
	if err := a.Save(ctx, chunk); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}

	_, found, err := a.Get(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected an already-expired chunk to read back as absent")
	}

	has, err := a.Has(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Fatalf("expected the expired chunk's file to have been removed on read")
	}
}

func TestFilesystemAdapterHasAndDelete(t *testing.T) {
	a := newTestFilesystemAdapter(t)
	ctx := context.Background()
	chunk := models.Chunk{ID: "fk:node:a", FileKey: "fk", Type: models.TypeNode, Created: time.Now(), Data: map[string]any{}}

	if has, _ := a.Has(ctx, chunk.ID); has {
		t.Fatalf("expected Has to be false before save")
	}
	if err := a.Save(ctx, chunk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has, _ := a.Has(ctx, chunk.ID); !has {
		t.Fatalf("expected Has to be true after save")
	}

	deleted, err := a.Delete(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected Delete to report true for an existing chunk")
	}
	deleted, err = a.Delete(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("expected Delete to report false for an already-deleted chunk")
	}
}

func TestFilesystemAdapterListFiltersByFileKeyAndType(t *testing.T) {
	a := newTestFilesystemAdapter(t)
	ctx := context.Background()

	for _, c := range []models.Chunk{
		{ID: "fk1:node:a", FileKey: "fk1", Type: models.TypeNode, Created: time.Now(), Data: map[string]any{}},
		{ID: "fk1:metadata:a", FileKey: "fk1", Type: models.TypeMetadata, Created: time.Now(), Data: map[string]any{}},
		{ID: "fk2:node:a", FileKey: "fk2", Type: models.TypeNode, Created: time.Now(), Data: map[string]any{}},
	} {
		if err := a.Save(ctx, c); err != nil {
			t.Fatalf("unexpected error saving %s: %v", c.ID, err)
		}
	}

	summaries, err := a.List(ctx, models.ChunkFilter{FileKey: "fk1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries for fk1, got %d", len(summaries))
	}

	summaries, err = a.List(ctx, models.ChunkFilter{FileKey: "fk1"}.WithType(models.TypeNode))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "fk1:node:a" {
		t.Fatalf("expected exactly fk1:node:a, got %v", summaries)
	}
}

func TestFilesystemAdapterCleanupRemovesExpiredAndEmptyShards(t *testing.T) {
	a := newTestFilesystemAdapter(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	expired := models.Chunk{
		ID: "fk:node:expired", FileKey: "fk", Type: models.TypeNode,
		Created: past, Expires: &past, Data: map[string]any{},
	}
	live := models.Chunk{
		ID: "fk:node:live", FileKey: "fk", Type: models.TypeNode,
		Created: time.Now(), Data: map[string]any{},
	}
	if err := a.Save(ctx, expired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Save(ctx, live); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.Cleanup(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if has, _ := a.Has(ctx, expired.ID); has {
		t.Fatalf("expected cleanup to remove the expired chunk")
	}
	if has, _ := a.Has(ctx, live.ID); !has {
		t.Fatalf("expected cleanup to leave the live chunk in place")
	}
}
