package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/harper/videorag/internal/models"
)

// FileName is the vector index file inside the working directory
const FileName = "vdb_video_segment_feature.duckdb"

// DefaultDBPath returns the vector index path inside workingDir
func DefaultDBPath(workingDir string) string {
	return filepath.Join(workingDir, FileName)
}

// Store wraps DuckDB segment vector operations
type Store struct {
	db   *sql.DB
	path string
	dim  int
}

// NewStore opens or creates a DuckDB vector index at dbPath.
// An empty path opens an in-memory database.
func NewStore(dbPath string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath, dim: dim}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize sets up the schema and checks the recorded dimension
func (s *Store) initialize() error {
	schema := fmt.Sprintf(`
		CREATE SEQUENCE IF NOT EXISTS segment_vectors_seq;

		CREATE TABLE IF NOT EXISTS segment_vectors (
			id VARCHAR PRIMARY KEY,
			corpus VARCHAR NOT NULL,
			seg_index INTEGER NOT NULL,
			seq BIGINT NOT NULL DEFAULT nextval('segment_vectors_seq'),
			vector FLOAT[%d] NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);

		-- Note: No index on corpus, DuckDB rejects upserts touching indexed columns

		CREATE TABLE IF NOT EXISTS vector_meta (
			key VARCHAR PRIMARY KEY,
			value VARCHAR NOT NULL
		);
	`, s.dim)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM vector_meta WHERE key = 'dim'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO vector_meta (key, value) VALUES ('dim', ?)`, fmt.Sprint(s.dim))
		return err
	case err != nil:
		return err
	case stored != fmt.Sprint(s.dim):
		return fmt.Errorf("index at %s has dimension %s, configured %d", s.path, stored, s.dim)
	}
	return nil
}

// Upsert writes records in one transaction, replacing vectors for existing ids.
// A replaced id keeps its original position for tie ordering.
func (s *Store) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	for i := range records {
		if err := records[i].ValidateDimension(s.dim); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO segment_vectors (id, corpus, seg_index, vector, created_at)
		VALUES (?, ?, ?, CAST(? AS FLOAT[%d]), ?)
		ON CONFLICT (id) DO UPDATE SET vector = excluded.vector
	`, s.dim)

	now := time.Now()
	for _, r := range records {
		// Convert vector to JSON for DuckDB FLOAT[] type
		vectorJSON, err := json.Marshal(r.Vector)
		if err != nil {
			return 0, fmt.Errorf("failed to encode vector %s: %w", r.ID, err)
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := tx.ExecContext(ctx, query, r.ID, r.Corpus, r.Index, string(vectorJSON), created); err != nil {
			return 0, fmt.Errorf("failed to upsert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vectors: %w", err)
	}
	return len(records), nil
}

// Query returns the k ids most similar to vector, ties broken by insertion order
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dim, len(vector))
	}
	if k <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", k)
	}

	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query vector: %w", err)
	}

	// Zero vectors yield NULL similarity, ranked as 0
	query := fmt.Sprintf(`
		SELECT id, COALESCE(array_cosine_similarity(vector, CAST(? AS FLOAT[%d])), 0) AS score
		FROM segment_vectors
		ORDER BY score DESC, seq ASC
		LIMIT ?
	`, s.dim)

	rows, err := s.db.QueryContext(ctx, query, string(vectorJSON), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.Score); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// DeleteCorpus removes every vector belonging to corpus
func (s *Store) DeleteCorpus(ctx context.Context, corpus string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM segment_vectors WHERE corpus = ?", corpus)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of stored vectors
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segment_vectors").Scan(&n)
	return n, err
}

// Save checkpoints the write-ahead log into the database file
func (s *Store) Save(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "CHECKPOINT")
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
