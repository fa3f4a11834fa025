package result

import "github.com/kailas-cloud/papershelf/internal/domain/chunk"

// Result is a single retrieved chunk with its cosine distance to the query.
type Result struct {
	id       string
	text     string
	meta     chunk.Metadata
	distance float64
}

// New creates a retrieval result.
func New(id, text string, meta chunk.Metadata, distance float64) Result {
	return Result{id: id, text: text, meta: meta, distance: distance}
}

// ID returns the chunk identifier.
func (r *Result) ID() string { return r.id }

// Text returns the chunk text.
func (r *Result) Text() string { return r.text }

// Metadata returns the chunk metadata.
func (r *Result) Metadata() chunk.Metadata { return r.meta }

// Distance returns the cosine distance; smaller is more relevant.
func (r *Result) Distance() float64 { return r.distance }

// Similarity returns 1 - distance.
func (r *Result) Similarity() float64 { return 1 - r.distance }
