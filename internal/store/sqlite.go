package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pgvector/pgvector-go"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

// SQLiteStore keeps chunks in SQLite with an FTS5 index over their content.
// Embeddings are stored in their text form and scored in process, either by
// the cosine fallback or by an HNSW index built from ListEmbeddings.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var (
	_ LexicalIndex    = (*SQLiteStore)(nil)
	_ EmbeddingSource = (*SQLiteStore)(nil)
	_ ChunkReader     = (*SQLiteStore)(nil)
	_ ChunkWriter     = (*SQLiteStore)(nil)
)

// validateSQLiteIntegrity checks an existing database before opening.
// Returns nil if valid or absent.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteStore opens (or creates) the store at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			// A corrupted index cannot be repaired in place; the caller reindexes
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "sqlite store is corrupted", validErr).
				WithDetail("path", path).
				WithSuggestion("Delete the file and run 'nbsretrieve index' again")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to open database", err)
	}

	// Single writer to prevent lock contention; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL DEFAULT '',
		entity_key TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		embedding  TEXT
	);
	CREATE INDEX IF NOT EXISTS chunks_entity_key ON chunks(entity_key);

	-- chunk_id and entity_key are stored but not searchable; content holds
	-- the chunk text plus its stems (LexicalDocument)
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		chunk_id UNINDEXED,
		entity_key UNINDEXED,
		content,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveChunks inserts or replaces chunks and their FTS rows.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks(id, source, entity_key, content, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to prepare chunk statement", err)
	}
	defer chunkStmt.Close()

	// FTS5 virtual tables don't support REPLACE, so delete first
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to prepare delete statement", err)
	}
	defer deleteStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks_fts(chunk_id, entity_key, content) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to prepare FTS statement", err)
	}
	defer ftsStmt.Close()

	for _, c := range chunks {
		serialized, err := SerializeEmbedding(c.Embedding)
		if err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to serialize embedding", err).WithDetail("id", c.ID)
		}
		if _, err := chunkStmt.ExecContext(ctx, c.ID, c.Source, c.EntityKey, c.Content, serialized); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to save chunk", err).WithDetail("id", c.ID)
		}
		if _, err := deleteStmt.ExecContext(ctx, c.ID); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to replace FTS row", err).WithDetail("id", c.ID)
		}
		if _, err := ftsStmt.ExecContext(ctx, c.ID, c.EntityKey, LexicalDocument(c.Content)); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to index chunk", err).WithDetail("id", c.ID)
		}
	}

	return tx.Commit()
}

// SearchLexical ranks chunks matching any query term by FTS5 bm25.
func (s *SQLiteStore) SearchLexical(ctx context.Context, query string, limit int, filter Filter) ([]*LexicalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed()
	}

	match := FTS5Query(query)
	if match == "" || limit <= 0 {
		return []*LexicalResult{}, nil
	}
	terms := LexicalTerms(query)

	// bm25() is negative with lower = better, so ascending order puts best first
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		  AND (? = '' OR entity_key = ?)
		ORDER BY score ASC, chunk_id ASC
		LIMIT ?`,
		match, filter.EntityKey, filter.EntityKey, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "lexical search failed", err)
	}
	defer rows.Close()

	results := make([]*LexicalResult, 0, limit)
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to scan result", err)
		}
		results = append(results, &LexicalResult{
			ID:           id,
			Rank:         -score,
			MatchedTerms: terms,
		})
	}
	return results, rows.Err()
}

// ListEmbeddings returns every chunk with a stored embedding, ordered by id.
func (s *SQLiteStore) ListEmbeddings(ctx context.Context, filter Filter) ([]*StoredEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, entity_key, content, embedding
		FROM chunks
		WHERE embedding IS NOT NULL
		  AND (? = '' OR entity_key = ?)
		ORDER BY id`,
		filter.EntityKey, filter.EntityKey)
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

// GetChunks returns the display fields of the given ids. Unknown ids are absent
// from the map. Embeddings are not loaded.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	out := make(map[string]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed()
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, source, entity_key, content FROM chunks WHERE id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to load chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.Source, &c.EntityKey, &c.Content); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to scan chunk", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// Delete removes chunks by id.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM chunks_fts WHERE chunk_id IN (%s)", inClause), args...); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to delete from FTS", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", inClause), args...); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to delete chunks", err)
	}
	return tx.Commit()
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errStoreClosed()
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeStoreUnavailable, "failed to count chunks", err)
	}
	return n, nil
}

// Path returns the database path, empty for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// SerializeEmbedding renders v in the pgvector text form "[1,2,3]".
// A nil or empty vector serializes to NULL.
func SerializeEmbedding(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return pgvector.NewVector(v).Value()
}

func errStoreClosed() error {
	return errors.New(errors.ErrCodeStoreUnavailable, "store is closed", nil)
}
