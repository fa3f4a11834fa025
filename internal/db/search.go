package db

import "github.com/kailas-cloud/papershelf/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
// Filters are applied as a pre-filter: K counts matching entries only.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. For KNN queries Score is the raw cosine distance.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
