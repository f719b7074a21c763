package services

import "testing"

func TestNewChunkingContextDefaults(t *testing.T) {
	ctx := NewChunkingContext("fk", 4096)
	if ctx.FileKey != "fk" || ctx.MaxSize != 4096 {
		t.Fatalf("unexpected root context: %+v", ctx)
	}
	if ctx.Depth != 0 || len(ctx.Path) != 0 {
		t.Fatalf("expected root context to start at depth 0 with an empty path")
	}
}

func TestChunkingContextChildSharesIDMap(t *testing.T) {
	root := NewChunkingContext("fk", 4096)
	root.IDMap["a"] = "fk:node:a"

	child := root.Child("fk:node:a", "children")
	if child.Depth != 1 {
		t.Fatalf("expected child depth 1, got %d", child.Depth)
	}
	if child.ParentID != "fk:node:a" {
		t.Fatalf("expected parentID to be set, got %s", child.ParentID)
	}
	if len(child.Path) != 1 || child.Path[0] != "children" {
		t.Fatalf("expected path [children], got %v", child.Path)
	}

	child.IDMap["b"] = "fk:node:b"
	if root.IDMap["b"] != "fk:node:b" {
		t.Fatalf("expected IDMap to be shared by reference between parent and child")
	}
}

func TestChunkingContextChildDoesNotAliasParentPath(t *testing.T) {
	root := NewChunkingContext("fk", 4096)
	root.Path = []string{"a"}

	child1 := root.Child("p", "b")
	child2 := root.Child("p", "c")

	if child1.Path[len(child1.Path)-1] != "b" {
		t.Fatalf("expected child1's last path segment to remain b, got %v", child1.Path)
	}
	if child2.Path[len(child2.Path)-1] != "c" {
		t.Fatalf("expected child2's last path segment to be c, got %v", child2.Path)
	}
}
