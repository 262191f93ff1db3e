package model

import "time"

// ConversationTurn is one prior question/answer pair supplied by the
// caller as conversation_history. Only the last K turns are used.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ConversationHistoryLimit is K: the number of trailing Q/A pairs kept
// when building the prompt.
const ConversationHistoryLimit = 3

// AskRequest is the tagged, explicit-field request body for
// POST /api/ask.
type AskRequest struct {
	Question            string             `json:"question"`
	TopK                int                `json:"top_k"`
	SearchID             string             `json:"search_id,omitempty"`
	ChunkIDs            []string           `json:"chunk_ids,omitempty"`
	Documents           []string           `json:"documents,omitempty"`
	ExcludeDocuments    []string           `json:"exclude_documents,omitempty"`
	ConversationHistory []ConversationTurn `json:"conversation_history,omitempty"`
	SearchStrategy      string             `json:"search_strategy,omitempty"`
	SystemPrompt        string             `json:"system_prompt,omitempty"`
}

// DefaultAskTopK is the number of context passages retrieved when the
// request does not specify top_k.
const DefaultAskTopK = 8

// Citation references one context passage used to answer a question.
type Citation struct {
	Text                string     `json:"text"`
	Document            string     `json:"document"`
	Collection          Collection `json:"collection"`
	ChunkID             string     `json:"chunk_id"`
	RelevancyScore      float64    `json:"relevancy_score"`
	RelevancyPercentage float64    `json:"relevancy_percentage"`
}

// AskResponse is the result of a question-answering call.
type AskResponse struct {
	Answer         string     `json:"answer"`
	Sources        []string   `json:"sources"`
	RawCitations   []Citation `json:"raw_citations"`
	ProcessingTime time.Duration `json:"processing_time"`
}
