// Package chunkmem is an exact, in-process vector index for chunks.
// It scans every stored vector on each query.
package chunkmem

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/papershelf/internal/domain"
	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

// Name is reported in stats.
const Name = "memory"

type record struct {
	chunk  domchunk.Chunk
	vector []float32
	norm   float64
}

// Store keeps chunks in insertion order. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	dim     int
	order   []string
	records map[string]*record
}

// New creates an empty store for vectors of the given dimension.
func New(dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidConfiguration, dim)
	}
	return &Store{dim: dim, records: make(map[string]*record)}, nil
}

// Add stores chunks with their vectors. Either all are stored or none.
func (s *Store) Add(_ context.Context, chunks []domchunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrValidation, len(chunks), len(vectors))
	}

	recs := make([]*record, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				domain.ErrValidation, i, len(vectors[i]), s.dim)
		}
		vec := slices.Clone(vectors[i])
		recs[i] = &record{chunk: chunks[i], vector: vec, norm: norm(vec)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		id := r.chunk.ID()
		if _, exists := s.records[id]; !exists {
			s.order = append(s.order, id)
		}
		s.records[id] = r
	}
	return nil
}

// Query returns up to k chunks nearest to vector among those matching f.
// Equal distances keep insertion order.
func (s *Store) Query(_ context.Context, vector []float32, k int, f filter.Expression) ([]result.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index expects %d",
			domain.ErrValidation, len(vector), s.dim)
	}
	qnorm := norm(vector)

	s.mu.RLock()
	hits := make([]result.Result, 0, min(k, len(s.order)))
	for _, id := range s.order {
		r := s.records[id]
		meta := r.chunk.Metadata()
		if !f.Matches(meta.Lookup) {
			continue
		}
		hits = append(hits, result.New(id, r.chunk.Text(), meta, cosineDistance(vector, qnorm, r.vector, r.norm)))
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b result.Result) int {
		switch {
		case a.Distance() < b.Distance():
			return -1
		case a.Distance() > b.Distance():
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Get returns a stored chunk. The bool is false when the chunk does not exist.
func (s *Store) Get(_ context.Context, id string) (result.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return result.Result{}, false, nil
	}
	return result.New(id, r.chunk.Text(), r.chunk.Metadata(), 0), true, nil
}

// Delete removes a chunk. It reports whether the chunk existed.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	return true, nil
}

// DeleteDocument removes every chunk of a document.
func (s *Store) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	s.order = slices.DeleteFunc(s.order, func(id string) bool {
		r := s.records[id]
		if r.chunk.Metadata().DocumentID != documentID {
			return false
		}
		delete(s.records, id)
		n++
		return true
	})
	return n, nil
}

// Stats reports the number of stored chunks.
func (s *Store) Stats(_ context.Context) (domain.StorageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StorageStats{Count: len(s.order), Name: Name, Location: "in-process"}, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cos(a, b). A zero vector is at distance 1 from everything.
func cosineDistance(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(na*nb)
}
