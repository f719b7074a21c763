package models

import (
	"testing"
	"time"
)

func TestChunkCloneIsIndependent(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	c := Chunk{
		ID:       "fk:node:a",
		Links:    []string{"fk:node:b"},
		Expires:  &exp,
		Metadata: map[string]any{"k": "v"},
	}
	clone := c.Clone()

	clone.Links[0] = "changed"
	if c.Links[0] != "fk:node:b" {
		t.Fatalf("clone mutation leaked into original: %v", c.Links)
	}

	*clone.Expires = exp.Add(time.Hour)
	if !c.Expires.Equal(exp) {
		t.Fatalf("clone expires mutation leaked into original")
	}

	clone.Metadata["k"] = "changed"
	if c.Metadata["k"] != "v" {
		t.Fatalf("clone metadata mutation leaked into original")
	}
}

func TestChunkFilterWithDefaults(t *testing.T) {
	f := ChunkFilter{}.WithDefaults()
	if f.Limit != 100 {
		t.Errorf("expected default limit 100, got %d", f.Limit)
	}
	if f.SortBy != SortByCreated {
		t.Errorf("expected default sort field created, got %s", f.SortBy)
	}
	if f.SortDirection != SortDesc {
		t.Errorf("expected default sort direction desc, got %s", f.SortDirection)
	}
}

func TestChunkFilterMatches(t *testing.T) {
	now := time.Now()
	s := ChunkSummary{ID: "fk:node:a", FileKey: "fk", Type: TypeNode, Created: now}

	f := ChunkFilter{FileKey: "fk"}
	if !f.Matches(s) {
		t.Fatalf("expected fileKey match")
	}

	f = ChunkFilter{FileKey: "other"}
	if f.Matches(s) {
		t.Fatalf("expected fileKey mismatch to reject")
	}

	f = ChunkFilter{}.WithType(TypeMetadata)
	if f.Matches(s) {
		t.Fatalf("expected type mismatch to reject")
	}

	f = ChunkFilter{}.WithType(TypeNode)
	if !f.Matches(s) {
		t.Fatalf("expected type match")
	}

	older := now.Add(-time.Hour)
	f = ChunkFilter{OlderThan: &older}
	if f.Matches(s) {
		t.Fatalf("summary created after OlderThan should not match")
	}

	newer := now.Add(-time.Hour)
	f = ChunkFilter{NewerThan: &newer}
	if !f.Matches(s) {
		t.Fatalf("summary created after NewerThan should match")
	}
}

func TestChunkFilterSort(t *testing.T) {
	base := time.Now()
	summaries := []ChunkSummary{
		{ID: "a", Created: base, Size: 30},
		{ID: "b", Created: base.Add(time.Minute), Size: 10},
		{ID: "c", Created: base.Add(2 * time.Minute), Size: 20},
	}

	f := ChunkFilter{SortBy: SortByCreated, SortDirection: SortDesc}
	sorted := f.Sort(append([]ChunkSummary(nil), summaries...))
	if sorted[0].ID != "c" || sorted[2].ID != "a" {
		t.Fatalf("expected descending creation order, got %v", ids(sorted))
	}

	f = ChunkFilter{SortBy: SortBySize, SortDirection: SortAsc}
	sorted = f.Sort(append([]ChunkSummary(nil), summaries...))
	if sorted[0].ID != "b" || sorted[2].ID != "a" {
		t.Fatalf("expected ascending size order, got %v", ids(sorted))
	}

	f = ChunkFilter{Limit: 2, SortBy: SortByCreated, SortDirection: SortAsc}
	sorted = f.Sort(append([]ChunkSummary(nil), summaries...))
	if len(sorted) != 2 {
		t.Fatalf("expected truncation to limit 2, got %d", len(sorted))
	}
}

func ids(summaries []ChunkSummary) []string {
	out := make([]string, len(summaries))
	for i, s := range summaries {
		out[i] = s.ID
	}
	return out
}

func TestChunkResultPrimaryAndByID(t *testing.T) {
	r := ChunkResult{
		Chunks:         []Chunk{{ID: "a"}, {ID: "b"}},
		PrimaryChunkID: "b",
	}
	primary, err := r.Primary()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.ID != "b" {
		t.Fatalf("expected primary b, got %s", primary.ID)
	}

	byID := r.ByID()
	if len(byID) != 2 || byID["a"].ID != "a" {
		t.Fatalf("unexpected ByID map: %v", byID)
	}

	missing := ChunkResult{Chunks: []Chunk{{ID: "a"}}, PrimaryChunkID: "z"}
	if _, err := missing.Primary(); err == nil {
		t.Fatalf("expected error for missing primary")
	}
}

func TestTypeIsValid(t *testing.T) {
	for _, tc := range []struct {
		typ   Type
		valid bool
	}{
		{TypeMetadata, true},
		{TypeNode, true},
		{TypeGlobalVars, true},
		{Type("bogus"), false},
		{Type(""), false},
	} {
		if got := tc.typ.IsValid(); got != tc.valid {
			t.Errorf("Type(%q).IsValid() = %v, want %v", tc.typ, got, tc.valid)
		}
	}
}
