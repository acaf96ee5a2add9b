// ABOUTME: Vector index over segment clips backed by SQLite or DuckDB
// ABOUTME: Embeds clips in batches and answers text queries with top-K cosine ranking
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/videorag/internal/accel"
	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/models"
	"github.com/harper/videorag/internal/storage/duckdb"
	"github.com/harper/videorag/internal/storage/sqlite"
)

// Backend persists segment vectors and ranks them by cosine similarity
type Backend interface {
	Upsert(ctx context.Context, records []models.VectorRecord) (int, error)
	Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error)
	DeleteCorpus(ctx context.Context, corpus string) (int, error)
	Count(ctx context.Context) (int, error)
	Save(ctx context.Context) error
	Close() error
}

// Embedder maps clips and text into one shared vector space
type Embedder interface {
	EmbedVideos(ctx context.Context, paths []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Options controls batching and ranking
type Options struct {
	Dim       int
	BatchSize int
	TopK      int
}

// Index embeds segments into a Backend
type Index struct {
	backend  Backend
	embedder Embedder
	device   *accel.Device
	opts     Options
	logger   *log.Logger
}

// New creates an Index. A nil device runs embeddings ungated.
func New(backend Backend, embedder Embedder, device *accel.Device, opts Options, logger *log.Logger) *Index {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.TopK <= 0 {
		opts.TopK = 30
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Index{
		backend:  backend,
		embedder: embedder,
		device:   device,
		opts:     opts,
		logger:   logger.WithPrefix("index"),
	}
}

// OpenBackend opens the configured backend inside the working directory
func OpenBackend(cfg *config.Config) (Backend, error) {
	switch cfg.VectorBackend {
	case config.BackendDuckDB:
		return duckdb.NewStore(duckdb.DefaultDBPath(cfg.WorkingDir), cfg.EmbeddingDim)
	case config.BackendSQLite, "":
		db, err := sqlite.Open(sqlite.DefaultDBPath(cfg.WorkingDir))
		if err != nil {
			return nil, err
		}
		store, err := sqlite.NewVectorStore(db, cfg.EmbeddingDim)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// TopK is the number of candidates Query returns
func (ix *Index) TopK() int {
	return ix.opts.TopK
}

// Upsert embeds each segment's clip and writes one vector per segment.
// Vectors for a corpus are written together after every batch is embedded.
func (ix *Index) Upsert(ctx context.Context, corpus string, segments []models.Segment, clipPath func(models.Segment) string) (int, error) {
	records, err := ix.Embed(ctx, corpus, segments, clipPath)
	if err != nil {
		return 0, err
	}
	return ix.Write(ctx, corpus, records)
}

// Embed computes one dimension-checked vector record per segment without
// touching the backend.
func (ix *Index) Embed(ctx context.Context, corpus string, segments []models.Segment, clipPath func(models.Segment) string) ([]models.VectorRecord, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	records := make([]models.VectorRecord, 0, len(segments))
	now := time.Now()
	for start := 0; start < len(segments); start += ix.opts.BatchSize {
		end := min(start+ix.opts.BatchSize, len(segments))
		batch := segments[start:end]

		paths := make([]string, len(batch))
		for i, seg := range batch {
			paths[i] = clipPath(seg)
		}

		var vectors [][]float32
		err := ix.gate(ctx, func(ctx context.Context) error {
			var err error
			vectors, err = ix.embedder.EmbedVideos(ctx, paths)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed segments %d-%d of %s: %w", start, end-1, corpus, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d clips", len(vectors), len(batch))
		}

		for i, seg := range batch {
			rec := models.VectorRecord{
				ID:        models.NewSegmentID(corpus, seg.Index).String(),
				Corpus:    corpus,
				Index:     seg.Index,
				Vector:    vectors[i],
				CreatedAt: now,
			}
			if err := rec.ValidateDimension(ix.opts.Dim); err != nil {
				return nil, fmt.Errorf("segment %s: %w", rec.ID, err)
			}
			records = append(records, rec)
		}
		ix.logger.Debug("embedded batch", "corpus", corpus, "from", start, "to", end-1)
	}
	return records, nil
}

// Write stores embedded records in the backend
func (ix *Index) Write(ctx context.Context, corpus string, records []models.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n, err := ix.backend.Upsert(ctx, records)
	if err != nil {
		return 0, err
	}
	ix.logger.Info("indexed segments", "corpus", corpus, "count", n)
	return n, nil
}

// Query embeds text and returns the top-K most similar segment ids
func (ix *Index) Query(ctx context.Context, text string) ([]models.Candidate, error) {
	var vector []float32
	err := ix.gate(ctx, func(ctx context.Context) error {
		var err error
		vector, err = ix.embedder.EmbedText(ctx, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vector) != ix.opts.Dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", ix.opts.Dim, len(vector))
	}
	return ix.backend.Query(ctx, vector, ix.opts.TopK)
}

// Remove deletes every vector of corpus
func (ix *Index) Remove(ctx context.Context, corpus string) (int, error) {
	return ix.backend.DeleteCorpus(ctx, corpus)
}

// Count returns the number of indexed segments
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.backend.Count(ctx)
}

// Save persists the index
func (ix *Index) Save(ctx context.Context) error {
	return ix.backend.Save(ctx)
}

// Close releases the backend
func (ix *Index) Close() error {
	return ix.backend.Close()
}

func (ix *Index) gate(ctx context.Context, fn func(ctx context.Context) error) error {
	if ix.device == nil {
		return fn(ctx)
	}
	return ix.device.Do(ctx, fn)
}
