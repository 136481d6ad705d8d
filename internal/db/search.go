package db

import "github.com/kailas-cloud/resdex/internal/db/filter"

// KNNQuery is a nearest-neighbor search over a vector field.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Filter       filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is a filtered, paginated scan of an index.
type ListQuery struct {
	IndexName    string
	Filter       filter.Expression
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is cosine similarity for KNN hits.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
