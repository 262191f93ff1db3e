package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/cache"
	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

// baseQAInstruction is the fixed system instruction every Ask call
// carries: it forbids invention, requires per-claim citation, and
// instructs the model to admit insufficient coverage.
const baseQAInstruction = `You are a document question-answering assistant. Answer only using the passages provided below; never invent facts beyond them.
Cite the source of every factual claim using its [cN] tag, referencing the passage's document and chunk_id.
If the provided passages do not contain enough information to answer, say "I don't know based on the provided documents."`

// citationTagPattern matches inline citation tags like [c1], [c12].
var citationTagPattern = regexp.MustCompile(`\[c(\d+)\]`)

// Completer abstracts the LLM client's Q&A completion operation. It is
// satisfied by *LLM.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, params CompletionParams) (string, error)
}

// passage is a context candidate carried through resolution, prompt
// construction, and citation post-processing.
type passage struct {
	document   string
	chunkID    string
	collection model.Collection
	content    string
	score      float64
}

// QA implements the question-answering orchestrator (C8): it resolves
// context passages per the precedence rules, builds a grounded
// prompt, and filters the model's citations.
type QA struct {
	llm               Completer
	search            *SearchEngine
	cache             cache.SearchCache
	store             repository.VectorStore
	citationThreshold float64
}

// NewQA creates a QA orchestrator.
func NewQA(llm Completer, search *SearchEngine, resultCache cache.SearchCache, store repository.VectorStore, citationThreshold float64) *QA {
	return &QA{llm: llm, search: search, cache: resultCache, store: store, citationThreshold: citationThreshold}
}

// Ask answers req.Question, resolving context passages via chunk_ids,
// search_id, a documents allow/deny-list, or a fresh unfiltered
// search, in that precedence order.
func (q *QA) Ask(ctx context.Context, req model.AskRequest) (*model.AskResponse, error) {
	start := time.Now()

	if strings.TrimSpace(req.Question) == "" {
		return nil, apperr.Stage(apperr.ErrInvalidQuery, "ask", fmt.Errorf("question is empty"))
	}

	topK := req.TopK
	if topK <= 0 {
		topK = model.DefaultAskTopK
	}

	passages, err := q.resolveContext(ctx, req, topK)
	if err != nil {
		return nil, err
	}
	if len(passages) > topK {
		passages = passages[:topK]
	}

	if len(passages) == 0 {
		return &model.AskResponse{
			Answer:         "I don't know based on the provided documents.",
			Sources:        []string{},
			RawCitations:   []model.Citation{},
			ProcessingTime: time.Since(start),
		}, nil
	}

	systemPrompt := buildQASystemPrompt(req.SystemPrompt)
	userMessage := buildQAUserMessage(req.Question, passages, req.ConversationHistory)

	answer, err := q.llm.Complete(ctx, systemPrompt, userMessage, CompletionParams{Temperature: MaxCompleteTemperature})
	if err != nil {
		return nil, err
	}

	citations, sources := buildCitations(passages, answer, q.citationThreshold)

	return &model.AskResponse{
		Answer:         answer,
		Sources:        sources,
		RawCitations:   citations,
		ProcessingTime: time.Since(start),
	}, nil
}

// resolveContext implements the precedence chain from §4.8.
func (q *QA) resolveContext(ctx context.Context, req model.AskRequest, topK int) ([]passage, error) {
	if len(req.ChunkIDs) > 0 {
		chunks, err := q.store.GetByChunkIDs(ctx, req.ChunkIDs)
		if err != nil {
			return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "ask", err)
		}
		passages := make([]passage, len(chunks))
		for i, c := range chunks {
			passages[i] = passage{document: c.Document, chunkID: c.ChunkID, collection: c.Collection, content: c.Content, score: 1.0}
		}
		return passages, nil
	}

	if req.SearchID != "" && q.cache != nil {
		if result, ok := q.cache.Get(req.SearchID); ok {
			return hitsToPassages(result.Results), nil
		}
		// miss falls through to a fresh search below
	}

	searchReq := model.SearchRequest{
		Query:            req.Question,
		TopK:             topK,
		Collections:      strategyCollections(req.SearchStrategy),
		Documents:        req.Documents,
		ExcludeDocuments: req.ExcludeDocuments,
	}
	result, err := q.search.Search(ctx, searchReq)
	if err != nil {
		return nil, err
	}
	return hitsToPassages(result.Results), nil
}

func hitsToPassages(hits []model.SearchHit) []passage {
	passages := make([]passage, len(hits))
	for i, h := range hits {
		passages[i] = passage{document: h.Document, chunkID: h.ChunkID, collection: h.Collection, content: h.Content, score: h.Score}
	}
	return passages
}

// strategyCollections maps an explicit search_strategy to its fixed
// collection set; an empty or unrecognized strategy returns nil,
// deferring to the search engine's own strategy selection.
func strategyCollections(strategy string) []model.Collection {
	switch strategy {
	case "basic":
		return []model.Collection{model.CollectionDocuments}
	case "enhanced":
		return []model.Collection{model.CollectionLogicalSummaries, model.CollectionDocuments}
	case "paragraph":
		return []model.Collection{model.CollectionParagraphSummaries, model.CollectionDocuments}
	default:
		return nil
	}
}

func buildQASystemPrompt(callerPrompt string) string {
	if strings.TrimSpace(callerPrompt) == "" {
		return baseQAInstruction
	}
	return baseQAInstruction + "\n\n" + callerPrompt
}

func buildQAUserMessage(question string, passages []passage, history []model.ConversationTurn) string {
	var sb strings.Builder

	sb.WriteString("=== CONTEXT PASSAGES ===\n")
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("[c%d] (%s / %s): %s\n\n", i+1, p.document, p.chunkID, p.content))
	}

	if len(history) > 0 {
		trimmed := history
		if len(trimmed) > model.ConversationHistoryLimit {
			trimmed = trimmed[len(trimmed)-model.ConversationHistoryLimit:]
		}
		sb.WriteString("=== CONVERSATION HISTORY ===\n")
		for _, turn := range trimmed {
			sb.WriteString("Q: " + turn.Question + "\n")
			sb.WriteString("A: " + turn.Answer + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("=== QUESTION ===\n")
	sb.WriteString(question)
	return sb.String()
}

// buildCitations keeps passages whose similarity clears threshold and
// whose [cN] tag appears in answer, falling back to the top two
// passages if the model cited none. sources lists distinct document
// filenames in order of first appearance.
func buildCitations(passages []passage, answer string, threshold float64) ([]model.Citation, []string) {
	cited := citedIndices(answer)

	var kept []int
	for i, p := range passages {
		n := i + 1
		if p.score >= threshold && cited[n] {
			kept = append(kept, i)
		}
	}

	citedAny := false
	for i := range passages {
		if cited[i+1] {
			citedAny = true
			break
		}
	}

	if !citedAny {
		limit := 2
		if limit > len(passages) {
			limit = len(passages)
		}
		for i := 0; i < limit; i++ {
			kept = append(kept, i)
		}
	}

	citations := make([]model.Citation, len(kept))
	seen := make(map[string]struct{})
	var sources []string
	for i, idx := range kept {
		p := passages[idx]
		citations[i] = model.Citation{
			Text:                p.content,
			Document:            p.document,
			Collection:          p.collection,
			ChunkID:             p.chunkID,
			RelevancyScore:      p.score,
			RelevancyPercentage: p.score * 100,
		}
		if _, ok := seen[p.document]; !ok {
			seen[p.document] = struct{}{}
			sources = append(sources, p.document)
		}
	}
	if sources == nil {
		sources = []string{}
	}
	return citations, sources
}

func citedIndices(answer string) map[int]bool {
	indices := make(map[int]bool)
	for _, match := range citationTagPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			indices[n] = true
		}
	}
	return indices
}
