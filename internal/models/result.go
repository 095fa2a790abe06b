package models

// SearchResult is a single ranked hit. Score is the squared Euclidean distance
// rendered as a decimal string; lower is more similar.
type SearchResult struct {
	Rank        int    `json:"rank"`
	ID          string `json:"id"`
	Text        string `json:"text"`
	SourceID    string `json:"source_id"`
	PageNumber  *int   `json:"page_number,omitempty"`
	ChunkNumber *int   `json:"chunk_number,omitempty"`
	Score       string `json:"score"`
}

// SearchResponse is the response for a search request. Results are ordered by ascending score.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
