package vector

import (
	"context"
	"sync"
)

// Guarded serializes index rebuilds against searches on the same collection,
// so a query never observes a collection halfway through recreate + upsert.
type Guarded struct {
	Index

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewGuarded(idx Index) *Guarded {
	return &Guarded{Index: idx, locks: make(map[string]*sync.RWMutex)}
}

func (g *Guarded) lock(collection string) *sync.RWMutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[collection]
	if !ok {
		l = &sync.RWMutex{}
		g.locks[collection] = l
	}
	return l
}

// Populate ensures (or recreates) the collection and upserts points under the
// collection's write lock. Points the backend cannot store are rejected before
// the collection is touched.
func (g *Guarded) Populate(ctx context.Context, spec CollectionSpec, recreate bool, points []Point) error {
	if err := ValidatePoints(g.Index, points); err != nil {
		return err
	}

	l := g.lock(spec.Name)
	l.Lock()
	defer l.Unlock()

	if err := g.Index.EnsureCollection(ctx, spec, recreate); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	return g.Index.Upsert(ctx, spec.Name, points)
}

func (g *Guarded) Search(ctx context.Context, collection string, query []float32, topK int) ([]Hit, error) {
	l := g.lock(collection)
	l.RLock()
	defer l.RUnlock()

	return g.Index.Search(ctx, collection, query, topK)
}
