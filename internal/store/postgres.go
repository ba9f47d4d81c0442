package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

//go:embed sql/schema.sql
var postgresSchema string

//go:embed sql/hybrid.sql
var hybridSearchSQL string

// PostgresStore is the pgvector-backed chunk store. HybridSearch runs the
// whole fusion (both candidate streams, batch-max normalization, alpha
// blend) as a single SQL statement.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Verify interface implementation at compile time
var (
	_ HybridStore     = (*PostgresStore)(nil)
	_ EmbeddingSource = (*PostgresStore)(nil)
	_ ChunkReader     = (*PostgresStore)(nil)
	_ ChunkWriter     = (*PostgresStore)(nil)
)

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.ConfigurationError("postgres DSN is empty", nil).
			WithSuggestion("Set database.postgres_dsn or NBS_POSTGRES_DSN")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to open postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "postgres is unreachable", err)
	}

	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

// Migrate creates the pgvector extension, the chunks table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return errors.New(errors.ErrCodeStoreUnavailable, "failed to apply schema", err)
	}
	s.logger.Info("schema_ready")
	return nil
}

// HybridSearch fuses vector similarity and ts_rank in one statement.
// A query without embedding or without usable terms contributes no
// candidates from that stream.
func (s *PostgresStore) HybridSearch(ctx context.Context, q HybridQuery) ([]*ScoredCandidate, error) {
	if q.TopK <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", q.TopK), nil)
	}
	if q.Alpha < 0 || q.Alpha > 1 {
		return nil, errors.New(errors.ErrCodeInvalidAlpha, fmt.Sprintf("alpha must be within [0,1], got %v", q.Alpha), nil)
	}

	var embedding any
	if len(q.Embedding) > 0 {
		embedding = pgvector.NewVector(q.Embedding)
	}
	var tsquery any
	if expr := TSQuery(q.Text); expr != "" {
		tsquery = expr
	}
	var entity any
	if q.EntityKey != nil {
		entity = *q.EntityKey
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, hybridSearchSQL,
		embedding, tsquery, q.MinSimilarity, q.CandidateLimit(), entity, q.Alpha, q.TopK)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "hybrid search query failed", err)
	}
	defer rows.Close()

	results := make([]*ScoredCandidate, 0, q.TopK)
	for rows.Next() {
		c := &ScoredCandidate{}
		if err := rows.Scan(&c.ID, &c.Source, &c.EntityKey, &c.Content,
			&c.VectorScore, &c.KeywordScore, &c.NormalizedVector, &c.NormalizedKeyword, &c.FusedScore); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to scan hybrid row", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "hybrid search iteration failed", err)
	}

	s.logger.Debug("hybrid_search_done",
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// ListEmbeddings returns every chunk with a non-null embedding in its text form.
func (s *PostgresStore) ListEmbeddings(ctx context.Context, filter Filter) ([]*StoredEmbedding, error) {
	var entity any
	if filter.EntityKey != "" {
		entity = filter.EntityKey
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, entity_key, content, embedding::text
		FROM chunks
		WHERE embedding IS NOT NULL
		  AND ($1::text IS NULL OR entity_key = $1::text)
		ORDER BY id`, entity)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to list embeddings", err)
	}
	defer rows.Close()

	var out []*StoredEmbedding
	for rows.Next() {
		e := &StoredEmbedding{}
		if err := rows.Scan(&e.ID, &e.Source, &e.EntityKey, &e.Content, &e.Serialized); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to scan embedding", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetChunks loads chunks by id, including embeddings when present.
func (s *PostgresStore) GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	out := make(map[string]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, entity_key, content, embedding
		FROM chunks
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to load chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &Chunk{}
		var vec *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.Source, &c.EntityKey, &c.Content, &vec); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to scan chunk", err)
		}
		if vec != nil {
			c.Embedding = vec.Slice()
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// SaveChunks upserts chunks in one transaction.
func (s *PostgresStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, entity_key, content, lexical, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			entity_key = EXCLUDED.entity_key,
			content = EXCLUDED.content,
			lexical = EXCLUDED.lexical,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.EntityKey, c.Content, LexicalDocument(c.Content), embedding); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to save chunk", err).WithDetail("id", c.ID)
		}
	}

	return tx.Commit()
}

// Delete removes chunks by id.
func (s *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to delete chunks", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeStoreUnavailable, "failed to count chunks", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
