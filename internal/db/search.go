package db

import "github.com/kailas-cloud/listingsearch/internal/domain/search/filter"

// ScoreField is the alias FT.SEARCH uses for the KNN distance of each hit.
const ScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
// K is the candidate pool size (nearest neighbours considered); Limit truncates the
// returned page. Filters are applied inside the KNN query, before K is taken.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is a similarity in [0,1], higher is closer.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
