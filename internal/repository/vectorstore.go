package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/ragcore/internal/apperr"
	"github.com/connexus-ai/ragcore/internal/model"
)

// Where is a conjunction of exact-match metadata predicates supported
// by Query and Delete.
type Where struct {
	DocumentsIn    []string
	DocumentsNotIn []string
	ChunkIDsIn     []string
}

// Empty reports whether w has no predicates.
func (w *Where) Empty() bool {
	return w == nil || (len(w.DocumentsIn) == 0 && len(w.DocumentsNotIn) == 0 && len(w.ChunkIDsIn) == 0)
}

// VectorStore is the collection-keyed CRUD and k-NN query contract
// (C3). Implementations are safe for concurrent use.
type VectorStore interface {
	Upsert(ctx context.Context, collection model.Collection, chunks []model.Chunk) error
	Query(ctx context.Context, collection model.Collection, vector []float32, k int, where *Where) ([]model.SearchHit, error)
	GetByDocument(ctx context.Context, collection model.Collection, document string) ([]model.Chunk, error)
	GetByChunkIDs(ctx context.Context, chunkIDs []string) ([]model.Chunk, error)
	Delete(ctx context.Context, collection model.Collection, where *Where) (int, error)
	Count(ctx context.Context, collection model.Collection, where *Where) (int, error)
	ListDistinct(ctx context.Context, collection model.Collection, field string) ([]string, error)
	Heartbeat(ctx context.Context) error
}

// PgVectorStore implements VectorStore on a single Postgres table,
// `chunks`, partitioned by a collection column. Cosine distance is
// computed with pgvector's <=> operator.
type PgVectorStore struct {
	pool *pgxpool.Pool
}

// NewPgVectorStore creates a PgVectorStore.
func NewPgVectorStore(pool *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{pool: pool}
}

var _ VectorStore = (*PgVectorStore)(nil)

// Upsert idempotently writes chunks (keyed by chunk_id) to one
// collection in a single batch.
func (s *PgVectorStore) Upsert(ctx context.Context, collection model.Collection, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return apperr.Stage(apperr.ErrInternal, "upsert", fmt.Errorf("marshal metadata: %w", err))
		}
		vec := pgvector.NewVector(c.Embedding)
		batch.Queue(`
			INSERT INTO chunks (chunk_id, document, collection, content, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (chunk_id) DO UPDATE SET
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding`,
			c.ChunkID, c.Document, string(collection), c.Content, metaJSON, vec,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return apperr.Stage(apperr.ErrUpstreamUnavailable, "upsert", fmt.Errorf("chunk %d: %w", i, err))
		}
	}
	return nil
}

// Query returns the k nearest neighbors to vector in collection,
// ordered by ascending distance (descending similarity).
func (s *PgVectorStore) Query(ctx context.Context, collection model.Collection, vector []float32, k int, where *Where) ([]model.SearchHit, error) {
	vec := pgvector.NewVector(vector)

	var sb strings.Builder
	sb.WriteString(`
		SELECT chunk_id, document, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE collection = $2`)

	args := []any{vec, string(collection)}
	args = appendWhere(&sb, args, where)

	sb.WriteString(" ORDER BY embedding <=> $1 LIMIT ")
	args = append(args, k)
	sb.WriteString(fmt.Sprintf("$%d", len(args)))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "query", err)
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var (
			chunkID, document, content string
			metaJSON                   []byte
			similarity                 float64
		)
		if err := rows.Scan(&chunkID, &document, &content, &metaJSON, &similarity); err != nil {
			return nil, apperr.Stage(apperr.ErrInternal, "query", err)
		}
		var meta map[string]any
		_ = json.Unmarshal(metaJSON, &meta)

		hits = append(hits, model.SearchHit{
			Content:    content,
			Score:      clamp01(similarity),
			Document:   document,
			ChunkID:    chunkID,
			Collection: collection,
			Metadata:   meta,
		})
	}
	return hits, rows.Err()
}

// GetByDocument returns every chunk belonging to document within
// collection, ordered by chunk_id (which sorts numerically because the
// chunk index is zero-padded).
func (s *PgVectorStore) GetByDocument(ctx context.Context, collection model.Collection, document string) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, document, content, metadata, embedding
		FROM chunks
		WHERE collection = $1 AND document = $2
		ORDER BY chunk_id`, string(collection), document)
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "get_by_document", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var (
			chunkID, doc, content string
			metaJSON              []byte
			vec                   pgvector.Vector
		)
		if err := rows.Scan(&chunkID, &doc, &content, &metaJSON, &vec); err != nil {
			return nil, apperr.Stage(apperr.ErrInternal, "get_by_document", err)
		}
		var meta map[string]any
		_ = json.Unmarshal(metaJSON, &meta)

		chunks = append(chunks, model.Chunk{
			ChunkID:    chunkID,
			Document:   doc,
			Collection: collection,
			Content:    content,
			Embedding:  vec.Slice(),
			Metadata:   meta,
		})
	}
	return chunks, rows.Err()
}

// GetByChunkIDs fetches exact chunks by id, regardless of collection;
// chunk_id is the table's primary key so this is a single lookup.
func (s *PgVectorStore) GetByChunkIDs(ctx context.Context, chunkIDs []string) ([]model.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, document, collection, content, metadata, embedding
		FROM chunks
		WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "get_by_chunk_ids", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var (
			chunkID, document, collection, content string
			metaJSON                                []byte
			vec                                     pgvector.Vector
		)
		if err := rows.Scan(&chunkID, &document, &collection, &content, &metaJSON, &vec); err != nil {
			return nil, apperr.Stage(apperr.ErrInternal, "get_by_chunk_ids", err)
		}
		var meta map[string]any
		_ = json.Unmarshal(metaJSON, &meta)

		chunks = append(chunks, model.Chunk{
			ChunkID:    chunkID,
			Document:   document,
			Collection: model.Collection(collection),
			Content:    content,
			Embedding:  vec.Slice(),
			Metadata:   meta,
		})
	}
	return chunks, rows.Err()
}

// Delete removes chunks matching where from collection, returning the
// count deleted.
func (s *PgVectorStore) Delete(ctx context.Context, collection model.Collection, where *Where) (int, error) {
	var sb strings.Builder
	sb.WriteString(`DELETE FROM chunks WHERE collection = $1`)
	args := []any{string(collection)}
	args = appendWhere(&sb, args, where)

	tag, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "delete", err)
	}
	return int(tag.RowsAffected()), nil
}

// Count returns the number of chunks matching where in collection.
func (s *PgVectorStore) Count(ctx context.Context, collection model.Collection, where *Where) (int, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT count(*) FROM chunks WHERE collection = $1`)
	args := []any{string(collection)}
	args = appendWhere(&sb, args, where)

	var n int
	if err := s.pool.QueryRow(ctx, sb.String(), args...).Scan(&n); err != nil {
		return 0, apperr.Stage(apperr.ErrUpstreamUnavailable, "count", err)
	}
	return n, nil
}

// ListDistinct returns distinct values of field ("document" or
// "chunk_id") within a collection.
func (s *PgVectorStore) ListDistinct(ctx context.Context, collection model.Collection, field string) ([]string, error) {
	column := "document"
	if field == "chunk_id" {
		column = "chunk_id"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT %s FROM chunks WHERE collection = $1`, column), string(collection))
	if err != nil {
		return nil, apperr.Stage(apperr.ErrUpstreamUnavailable, "list_distinct", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperr.Stage(apperr.ErrInternal, "list_distinct", err)
		}
		values = append(values, v)
	}
	sort.Strings(values)
	return values, rows.Err()
}

// Heartbeat validates connectivity to the vector store.
func (s *PgVectorStore) Heartbeat(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperr.Stage(apperr.ErrUpstreamUnavailable, "heartbeat", err)
	}
	return nil
}

func appendWhere(sb *strings.Builder, args []any, where *Where) []any {
	if where == nil {
		return args
	}
	if len(where.DocumentsIn) > 0 {
		args = append(args, where.DocumentsIn)
		sb.WriteString(fmt.Sprintf(" AND document = ANY($%d)", len(args)))
	}
	if len(where.DocumentsNotIn) > 0 {
		args = append(args, where.DocumentsNotIn)
		sb.WriteString(fmt.Sprintf(" AND NOT (document = ANY($%d))", len(args)))
	}
	if len(where.ChunkIDsIn) > 0 {
		args = append(args, where.ChunkIDsIn)
		sb.WriteString(fmt.Sprintf(" AND chunk_id = ANY($%d)", len(args)))
	}
	return args
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
