package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

// DefaultSummaryConcurrency bounds the number of summarize-and-embed
// tasks run in parallel within a single document's summaries ingest.
const DefaultSummaryConcurrency = 4

// logicalWindowSize and paragraphCompressionRatio implement the
// 10:1/3:1 summary targets from the summaries and paragraph ingest
// operations.
const (
	logicalWindowSize         = 10
	logicalCompressionRatio   = 0.10
	paragraphCompressionRatio = 1.0 / 3.0
)

// Summarizer abstracts the LLM client's summarization operation. It is
// satisfied by *LLM.
type Summarizer interface {
	Summarize(ctx context.Context, instruction, body string, targetLengthRatio float64) (string, error)
}

// EventPublisher abstracts publishing one ingestion-lifecycle event per
// pipeline stage transition. It is satisfied by
// *gcpclient.PubSubAdapter; nil means no publisher is configured.
type EventPublisher interface {
	PublishIngestionEvent(ctx context.Context, document, stage string, chunkCount int) error
}

// Pipeline orchestrates ingestion (C5): basic chunk ingest, logical
// (10:1) summaries, and paragraph (3:1) summaries, each writing into
// its own vector store collection.
type Pipeline struct {
	store     repository.VectorStore
	embedder  QueryEmbedder
	llm       Summarizer
	registry  *Registry
	publisher EventPublisher

	summaryConcurrency int

	mu         sync.Mutex
	processing map[string]bool
}

// NewPipeline creates a Pipeline. summaryConcurrency falls back to
// DefaultSummaryConcurrency when zero.
func NewPipeline(store repository.VectorStore, embedder QueryEmbedder, llm Summarizer, registry *Registry, summaryConcurrency int) *Pipeline {
	if summaryConcurrency <= 0 {
		summaryConcurrency = DefaultSummaryConcurrency
	}
	return &Pipeline{
		store:              store,
		embedder:           embedder,
		llm:                llm,
		registry:           registry,
		summaryConcurrency: summaryConcurrency,
		processing:         make(map[string]bool),
	}
}

// tryLock acquires the per-filename ingestion mutex, failing
// immediately on contention rather than blocking.
func (p *Pipeline) tryLock(filename string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processing[filename] {
		return false
	}
	p.processing[filename] = true
	return true
}

func (p *Pipeline) unlock(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.processing, filename)
}

// SetEventPublisher wires an optional ingestion-event publisher. Best
// effort: publish failures are logged, never surfaced to the caller.
func (p *Pipeline) SetEventPublisher(publisher EventPublisher) {
	p.publisher = publisher
}

// publishEvent emits a stage-transition event if a publisher is
// configured. It never fails the ingestion call it's attached to.
func (p *Pipeline) publishEvent(ctx context.Context, filename, stage string, chunkCount int) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishIngestionEvent(ctx, filename, stage, chunkCount); err != nil {
		slog.Warn("ingestion event publish failed", "filename", filename, "stage", stage, "error", err.Error())
	}
}

// UploadAndBasicIngest splits text into chunks, embeds them, and
// upserts them into the documents collection. If the registry already
// has filename and force is false, it returns ErrAlreadyExists without
// writing anything.
func (p *Pipeline) UploadAndBasicIngest(ctx context.Context, filename, text string, force bool, chunkSize, chunkOverlap int) (int, error) {
	if !p.tryLock(filename) {
		return 0, apperr.Stage(apperr.ErrAlreadyIngesting, "upload", fmt.Errorf("filename=%s", filename))
	}
	defer p.unlock(filename)

	if !force && p.registry.Has(filename) {
		return 0, apperr.Stage(apperr.ErrAlreadyExists, "upload", fmt.Errorf("filename=%s", filename))
	}

	hash := sha256.Sum256([]byte(text))
	slog.Info("ingest starting", "filename", filename, "content_hash", hex.EncodeToString(hash[:8]), "force", force)

	raw := SplitIntoChunks(text, chunkSize, chunkOverlap)
	if len(raw) == 0 {
		return 0, nil
	}

	vectors, err := p.embedder.Embed(ctx, raw)
	if err != nil {
		p.registry.RecordFailure(filename, "upload", err)
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "upload", err)
	}

	chunks := make([]model.Chunk, len(raw))
	for i, content := range raw {
		chunks[i] = model.Chunk{
			ChunkID:    model.ChunkID(filename, model.CollectionDocuments, i),
			Document:   filename,
			Collection: model.CollectionDocuments,
			Content:    content,
			Embedding:  vectors[i],
			Metadata: map[string]any{
				"document":     filename,
				"chunk_index":  i,
				"total_chunks": len(raw),
			},
		}
	}

	if err := p.store.Upsert(ctx, model.CollectionDocuments, chunks); err != nil {
		// Compensating delete: the batch either fully committed or
		// fully failed, but clear any partial state defensively.
		_, _ = p.store.Delete(ctx, model.CollectionDocuments, &repository.Where{DocumentsIn: []string{filename}})
		p.registry.RecordFailure(filename, "upload", err)
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "upload", err)
	}

	p.registry.Record(filename, model.CollectionDocuments, len(chunks))
	slog.Info("ingest completed", "filename", filename, "chunk_count", len(chunks))
	p.publishEvent(ctx, filename, "upload", len(chunks))
	return len(chunks), nil
}

// IngestLogicalSummaries groups the document's raw chunks into windows
// of logicalWindowSize, summarizes each window at a 10:1 ratio, and
// upserts the summaries into the logical_summaries collection.
func (p *Pipeline) IngestLogicalSummaries(ctx context.Context, filename string) (int, error) {
	if !p.tryLock(filename) {
		return 0, apperr.Stage(apperr.ErrAlreadyIngesting, "summaries", fmt.Errorf("filename=%s", filename))
	}
	defer p.unlock(filename)

	sourceChunks, err := p.fetchOrderedChunks(ctx, filename, model.CollectionDocuments)
	if err != nil {
		return 0, err
	}
	if len(sourceChunks) == 0 {
		return 0, apperr.Stage(apperr.ErrNotFound, "summaries", fmt.Errorf("no documents chunks for filename=%s", filename))
	}

	windows := windowChunks(sourceChunks, logicalWindowSize)
	instruction := "Summarize the following passage, preserving key facts and figures, asserting a 10:1 compression ratio."

	summaries, err := p.summarizeWindows(ctx, windows, instruction, logicalCompressionRatio)
	if err != nil {
		return 0, err
	}

	chunks := make([]model.Chunk, len(windows))
	for i, w := range windows {
		sourceIDs := make([]string, len(w))
		for j, c := range w {
			sourceIDs[j] = c.ChunkID
		}
		chunks[i] = model.Chunk{
			ChunkID:    model.ChunkID(filename, model.CollectionLogicalSummaries, i),
			Document:   filename,
			Collection: model.CollectionLogicalSummaries,
			Content:    summaries[i],
			Metadata: map[string]any{
				"document":          filename,
				"window_start":      w[0].index,
				"window_end":        w[len(w)-1].index,
				"source_chunk_ids":  sourceIDs,
				"compression_ratio": logicalCompressionRatio,
			},
		}
	}

	vectors, err := p.embedder.Embed(ctx, summaries)
	if err != nil {
		p.registry.RecordFailure(filename, "summaries", err)
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "summaries", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.store.Upsert(ctx, model.CollectionLogicalSummaries, chunks); err != nil {
		p.registry.RecordFailure(filename, "summaries", err)
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "summaries", err)
	}

	p.registry.Record(filename, model.CollectionLogicalSummaries, len(chunks))
	p.publishEvent(ctx, filename, "summaries", len(chunks))
	return len(chunks), nil
}

// IngestParagraphSummaries splits the document's raw chunks back into
// paragraphs, summarizes each at a 3:1 ratio, and upserts into the
// paragraph_summaries collection.
func (p *Pipeline) IngestParagraphSummaries(ctx context.Context, filename string) (int, error) {
	if !p.tryLock(filename) {
		return 0, apperr.Stage(apperr.ErrAlreadyIngesting, "paragraphs", fmt.Errorf("filename=%s", filename))
	}
	defer p.unlock(filename)

	sourceChunks, err := p.fetchOrderedChunks(ctx, filename, model.CollectionDocuments)
	if err != nil {
		return 0, err
	}
	if len(sourceChunks) == 0 {
		return 0, apperr.Stage(apperr.ErrNotFound, "paragraphs", fmt.Errorf("no documents chunks for filename=%s", filename))
	}

	var body string
	for _, c := range sourceChunks {
		body += c.Content + "\n\n"
	}
	paragraphs := SplitIntoParagraphs(body)
	if len(paragraphs) == 0 {
		return 0, nil
	}

	windows := make([][]orderedChunk, len(paragraphs))
	for i, para := range paragraphs {
		windows[i] = []orderedChunk{{index: i, Chunk: model.Chunk{Content: para}}}
	}

	instruction := "Summarize the following paragraph, preserving its central claim, asserting a 3:1 compression ratio."
	summaries, err := p.summarizeWindows(ctx, windows, instruction, paragraphCompressionRatio)
	if err != nil {
		return 0, err
	}

	chunks := make([]model.Chunk, len(paragraphs))
	for i, para := range paragraphs {
		chunks[i] = model.Chunk{
			ChunkID:    model.ChunkID(filename, model.CollectionParagraphSummaries, i),
			Document:   filename,
			Collection: model.CollectionParagraphSummaries,
			Content:    summaries[i],
			Metadata: map[string]any{
				"document":        filename,
				"paragraph_index": i,
				"source_length":   len(para),
				"summary_length":  len(summaries[i]),
			},
		}
	}

	vectors, err := p.embedder.Embed(ctx, summaries)
	if err != nil {
		p.registry.RecordFailure(filename, "paragraphs", err)
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "paragraphs", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.store.Upsert(ctx, model.CollectionParagraphSummaries, chunks); err != nil {
		p.registry.RecordFailure(filename, "paragraphs", err)
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "paragraphs", err)
	}

	p.registry.Record(filename, model.CollectionParagraphSummaries, len(chunks))
	p.publishEvent(ctx, filename, "paragraphs", len(chunks))
	return len(chunks), nil
}

// orderedChunk pairs a source chunk with its position within the
// document, needed because vector store Query order is not guaranteed
// to match chunk_index.
type orderedChunk struct {
	index int
	model.Chunk
}

// fetchOrderedChunks retrieves every chunk for filename in collection,
// already ordered by chunk_id (i.e. by chunk_index) by the store.
func (p *Pipeline) fetchOrderedChunks(ctx context.Context, filename string, collection model.Collection) ([]orderedChunk, error) {
	fetched, err := p.store.GetByDocument(ctx, collection, filename)
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "fetch_chunks", err)
	}

	out := make([]orderedChunk, len(fetched))
	for i, c := range fetched {
		out[i] = orderedChunk{index: i, Chunk: c}
	}
	return out, nil
}

// windowChunks groups chunks into consecutive windows of size n; the
// last window may be shorter.
func windowChunks(chunks []orderedChunk, n int) [][]orderedChunk {
	var windows [][]orderedChunk
	for i := 0; i < len(chunks); i += n {
		end := i + n
		if end > len(chunks) {
			end = len(chunks)
		}
		windows = append(windows, chunks[i:end])
	}
	return windows
}

// summarizeWindows runs up to summaryConcurrency Summarize calls in
// parallel, one per window, preserving window order in the result.
func (p *Pipeline) summarizeWindows(ctx context.Context, windows [][]orderedChunk, instruction string, ratio float64) ([]string, error) {
	summaries := make([]string, len(windows))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.summaryConcurrency)

	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			var body string
			for _, c := range w {
				body += c.Content + "\n\n"
			}
			summary, err := p.llm.Summarize(gCtx, instruction, body, ratio)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "summarize", err)
	}
	return summaries, nil
}
