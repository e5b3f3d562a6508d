package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ragchat/internal/apperr"
)

type memCollection struct {
	dim    int
	points []Point
}

// MemoryIndex is a brute-force cosine index kept in process memory.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memCollection)}
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context, spec CollectionSpec, recreate bool) error {
	if spec.Dimension <= 0 {
		return apperr.New(apperr.CodeIndexDimensionInvalid, "collection dimension must be positive", apperr.Field("collection", spec.Name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collections[spec.Name]; ok && !recreate {
		if c.dim != spec.Dimension {
			return apperr.New(apperr.CodeIndexDimensionInvalid,
				fmt.Sprintf("collection %s has dimension %d, requested %d", spec.Name, c.dim, spec.Dimension))
		}
		return nil
	}
	m.collections[spec.Name] = &memCollection{dim: spec.Dimension}
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return apperr.New(apperr.CodeIndexUpstreamFailure, "collection does not exist", apperr.Field("collection", collection))
	}
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return apperr.New(apperr.CodeIndexDimensionInvalid,
				fmt.Sprintf("point %s has dimension %d, collection expects %d", p.ID, len(p.Vector), c.dim))
		}
	}
	c.points = append(c.points, points...)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, collection string, query []float32, topK int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok || topK <= 0 {
		return nil, nil
	}
	if len(query) != c.dim {
		return nil, apperr.New(apperr.CodeIndexDimensionInvalid,
			fmt.Sprintf("query has dimension %d, collection expects %d", len(query), c.dim))
	}

	hits := make([]Hit, len(c.points))
	for i, p := range c.points {
		hits[i] = Hit{Text: p.Text, Score: Cosine(query, p.Vector), Source: p.Source, ChunkIndex: p.ChunkIndex}
	}
	// Stable so equal scores keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryIndex) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.collections[collection]; ok {
		return len(c.points), nil
	}
	return 0, nil
}
