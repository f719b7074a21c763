package services

// ChunkingContext carries per-operation state through one chunking
// call. IDMap is shared by reference across child contexts so sibling
// strategy invocations observe each other's id assignments.
type ChunkingContext struct {
	FileKey  string
	MaxSize  int
	ParentID string
	Path     []string
	Depth    int
	IDMap    map[string]string
}

// NewChunkingContext returns the root context for a chunking call.
func NewChunkingContext(fileKey string, maxSize int) *ChunkingContext {
	return &ChunkingContext{
		FileKey: fileKey,
		MaxSize: maxSize,
		Path:    nil,
		Depth:   0,
		IDMap:   make(map[string]string),
	}
}

// Child returns a new context for a nested strategy invocation: same
// fileKey/maxSize/IDMap, depth+1, path extended by segment, and
// parentID set to the current context's effective id.
func (c *ChunkingContext) Child(parentID, segment string) *ChunkingContext {
	path := make([]string, len(c.Path)+1)
	copy(path, c.Path)
	path[len(path)-1] = segment

	return &ChunkingContext{
		FileKey:  c.FileKey,
		MaxSize:  c.MaxSize,
		ParentID: parentID,
		Path:     path,
		Depth:    c.Depth + 1,
		IDMap:    c.IDMap,
	}
}
