package model

import "time"

// SearchHit is a single retrieved passage with its similarity score.
// Score is in [0,1], higher is better; vector stores that return
// cosine distance are converted by the search engine before a hit is
// constructed.
type SearchHit struct {
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Document   string         `json:"document"`
	ChunkID    string         `json:"chunk_id"`
	Collection Collection     `json:"collection"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchRequest is the tagged, explicit-field request body for
// POST /api/search. Unrecognized keys in the wire payload are
// rejected by the transport layer before this struct is populated.
type SearchRequest struct {
	Query            string       `json:"query"`
	TopK             int          `json:"top_k"`
	Collections      []Collection `json:"collections,omitempty"`
	Documents        []string     `json:"documents,omitempty"`
	ExcludeDocuments []string     `json:"exclude_documents,omitempty"`
	Threshold        *float64     `json:"threshold,omitempty"`
	ReturnChunks     bool         `json:"return_chunks,omitempty"`
}

// DefaultTopK and MaxTopK bound SearchRequest.TopK per the search
// contract.
const (
	DefaultTopK = 10
	MaxTopK     = 50
)

// SearchResultSet is the outcome of a search, cached by search_id so
// a later ask can reuse the exact same chunk set.
type SearchResultSet struct {
	SearchID            string       `json:"search_id"`
	Query               string       `json:"query"`
	Results             []SearchHit  `json:"results"`
	UniqueDocuments     []string     `json:"unique_documents"`
	ChunkIDs            []string     `json:"chunk_ids"`
	CollectionsSearched []Collection `json:"collections_searched"`
	Timestamp           time.Time    `json:"timestamp"`
}
