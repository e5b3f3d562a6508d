// Package vector holds the vector index contract shared by the Weaviate,
// Milvus and in-memory backends, plus the locking and retry wrappers that
// sit in front of them.
package vector

import (
	"context"
	"math"
)

// Point is one indexed chunk. IDs are generated per upsert and never reused.
type Point struct {
	ID         string
	Vector     []float32
	Text       string
	Source     string
	ChunkIndex int
}

type Hit struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Source     string  `json:"source,omitempty"`
	ChunkIndex int     `json:"chunkIndex"`
}

// CollectionSpec describes a collection. The distance metric is always cosine.
type CollectionSpec struct {
	Name      string
	Dimension int
}

type Index interface {
	// EnsureCollection creates the collection if missing. With recreate set,
	// an existing collection and all of its points are dropped first.
	EnsureCollection(ctx context.Context, spec CollectionSpec, recreate bool) error
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns at most topK hits ordered by descending cosine similarity.
	// A collection that does not exist yields no hits.
	Search(ctx context.Context, collection string, query []float32, topK int) ([]Hit, error)
	Count(ctx context.Context, collection string) (int, error)
}

// PointValidator is implemented by backends that cannot store every point,
// for example because of a payload size limit.
type PointValidator interface {
	ValidatePoints(points []Point) error
}

// ValidatePoints runs idx's point checks, if it has any.
func ValidatePoints(idx Index, points []Point) error {
	if v, ok := idx.(PointValidator); ok {
		return v.ValidatePoints(points)
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
