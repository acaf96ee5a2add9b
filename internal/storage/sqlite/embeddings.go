// ABOUTME: Segment vector storage for SQLite
// ABOUTME: Stores float32 vectors as BLOBs and ranks by brute-force cosine similarity
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/harper/videorag/internal/models"
)

// VectorStore handles segment embedding persistence
type VectorStore struct {
	db  *DB
	dim int
}

// NewVectorStore creates a VectorStore for vectors of size dim. The dimension
// is recorded on first use; reopening with a different one fails.
func NewVectorStore(db *DB, dim int) (*VectorStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}

	var stored string
	err := db.conn.QueryRow(`SELECT value FROM vector_meta WHERE key = 'dim'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.conn.Exec(`INSERT INTO vector_meta (key, value) VALUES ('dim', ?)`, strconv.Itoa(dim)); err != nil {
			return nil, fmt.Errorf("failed to record dimension: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read dimension: %w", err)
	case stored != strconv.Itoa(dim):
		return nil, fmt.Errorf("index at %s has dimension %s, configured %d", db.path, stored, dim)
	}

	return &VectorStore{db: db, dim: dim}, nil
}

// Upsert writes records in one transaction, replacing vectors for existing ids
func (s *VectorStore) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	for i := range records {
		if err := records[i].ValidateDimension(s.dim); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segment_vectors (id, corpus, seg_index, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			corpus = excluded.corpus,
			seg_index = excluded.seg_index,
			vector = excluded.vector
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, r := range records {
		created := r.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Corpus, r.Index, vectorToBlob(r.Vector), created); err != nil {
			return 0, fmt.Errorf("failed to upsert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vectors: %w", err)
	}
	return len(records), nil
}

// Query returns the k ids most similar to vector. Equal scores keep insertion order.
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dim, len(vector))
	}
	if k <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", k)
	}

	rows, err := s.db.conn.QueryContext(ctx, `SELECT id, vector FROM segment_vectors ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []models.Candidate
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		results = append(results, models.Candidate{ID: id, Score: CosineSimilarity(vector, blobToVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Sort by similarity descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get returns the stored record for id, or nil when absent
func (s *VectorStore) Get(ctx context.Context, id string) (*models.VectorRecord, error) {
	var (
		rec  models.VectorRecord
		blob []byte
	)
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, corpus, seg_index, vector, created_at
		FROM segment_vectors
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Corpus, &rec.Index, &blob, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Vector = blobToVector(blob)
	return &rec, nil
}

// DeleteCorpus removes every vector belonging to corpus
func (s *VectorStore) DeleteCorpus(ctx context.Context, corpus string) (int, error) {
	res, err := s.db.conn.ExecContext(ctx, "DELETE FROM segment_vectors WHERE corpus = ?", corpus)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of stored vectors
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM segment_vectors").Scan(&n)
	return n, err
}

// Save makes committed vectors durable in the main database file
func (s *VectorStore) Save(ctx context.Context) error {
	return s.db.Checkpoint(ctx)
}

// Close closes the underlying database
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) []float32 {
	count := len(blob) / 4
	vector := make([]float32, count)
	for i := 0; i < count; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
