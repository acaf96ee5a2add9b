// ABOUTME: VideoRAG orchestrator tying segmentation, enrichment, indexing, and retrieval together
// ABOUTME: Inserts videos corpus by corpus with pipelined splitting and answers storyboard queries
package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/videorag/internal/accel"
	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/embedding"
	"github.com/harper/videorag/internal/enrich"
	"github.com/harper/videorag/internal/index"
	"github.com/harper/videorag/internal/llm"
	"github.com/harper/videorag/internal/media"
	"github.com/harper/videorag/internal/models"
	"github.com/harper/videorag/internal/retrieval"
	"github.com/harper/videorag/internal/segmenter"
	"github.com/harper/videorag/internal/storage"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoEnricher is returned by Insert when no transcription/captioning backend is configured
var ErrNoEnricher = errors.New("indexing requires OPENAI_API_KEY for transcription and captioning")

// Splitter segments one video into a cached Split
type Splitter interface {
	Split(ctx context.Context, corpus, videoPath string) (*segmenter.Split, error)
}

// Enricher fills transcripts and captions for a Split
type Enricher interface {
	Run(ctx context.Context, split *segmenter.Split) ([]models.Segment, error)
}

// VectorIndex embeds and ranks segments
type VectorIndex interface {
	Embed(ctx context.Context, corpus string, segments []models.Segment, clipPath func(models.Segment) string) ([]models.VectorRecord, error)
	Write(ctx context.Context, corpus string, records []models.VectorRecord) (int, error)
	Query(ctx context.Context, text string) ([]models.Candidate, error)
	Remove(ctx context.Context, corpus string) (int, error)
	Count(ctx context.Context) (int, error)
	Save(ctx context.Context) error
	Close() error
}

// Components are the collaborators a VideoRAG drives
type Components struct {
	Splitter Splitter
	// Enricher may be nil, in which case Insert fails and Query still works
	Enricher Enricher
	Index    VectorIndex
	// Scorer reranks candidates under the text policy; nil uses lexical scoring
	Scorer retrieval.TextScorer
}

// InsertReport summarises one Insert call
type InsertReport struct {
	Indexed  []string `json:"indexed"`
	Skipped  []string `json:"skipped"`
	Segments int      `json:"segments"`
}

// CorpusSummary describes one indexed corpus
type CorpusSummary struct {
	Name       string    `json:"name"`
	SourcePath string    `json:"source_path"`
	Segments   int       `json:"segments"`
	Duration   float64   `json:"duration"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// VideoRAG owns the persisted stores of one working directory
type VideoRAG struct {
	cfg      *config.Config
	splitter Splitter
	enricher Enricher
	index    VectorIndex
	segments *storage.KVStore[models.CorpusRecord]
	paths    *storage.KVStore[string]
	engine   *retrieval.Engine
	logger   *log.Logger

	// mu orders commits (write) against queries (read)
	mu sync.RWMutex
	// insertMu serialises Insert calls so name checks see earlier commits
	insertMu sync.Mutex
}

// New creates a VideoRAG over cfg.WorkingDir with the given components
func New(cfg *config.Config, c Components, logger *log.Logger) (*VideoRAG, error) {
	if logger == nil {
		logger = log.Default()
	}

	segments, err := storage.OpenKV[models.CorpusRecord](cfg.WorkingDir, storage.NamespaceVideoSegments)
	if err != nil {
		return nil, models.NewIndexError(models.KindMalformed, "", "open segment store", err)
	}
	paths, err := storage.OpenKV[string](cfg.WorkingDir, storage.NamespaceVideoPath)
	if err != nil {
		return nil, models.NewIndexError(models.KindMalformed, "", "open path store", err)
	}

	engine := retrieval.NewEngine(c.Index, segments, c.Scorer, retrieval.Options{
		Policy:          cfg.RerankPolicy,
		SegmentLength:   cfg.SegmentLength,
		CreditsFraction: cfg.CreditsFraction,
		ArtifactDir:     cfg.ArtifactDir,
	}, logger)

	return &VideoRAG{
		cfg:      cfg,
		splitter: c.Splitter,
		enricher: c.Enricher,
		index:    c.Index,
		segments: segments,
		paths:    paths,
		engine:   engine,
		logger:   logger.WithPrefix("videorag"),
	}, nil
}

// Open wires the production components described by cfg
func Open(cfg *config.Config, logger *log.Logger) (*VideoRAG, error) {
	if logger == nil {
		logger = log.Default()
	}

	device := accel.NewDevice("accelerator")
	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	split := segmenter.New(ffmpeg, segmenter.Options{
		WorkingDir:       cfg.WorkingDir,
		SegmentLength:    cfg.SegmentLength,
		MinTailSeconds:   cfg.MinTailSeconds,
		FramesPerSegment: cfg.FramesPerSegment,
		AudioFormat:      cfg.AudioFormat,
		VideoFormat:      cfg.VideoFormat,
	}, logger)

	embedder := embedding.NewClient(cfg.EmbeddingURL, cfg.EmbeddingModel).WithRetry(cfg.MaxRetries, cfg.RetryDelay)
	backend, err := index.OpenBackend(cfg)
	if err != nil {
		return nil, models.NewIndexError(models.KindIO, "", "open vector index", err)
	}
	ix := index.New(backend, embedder, device, index.Options{
		Dim:       cfg.EmbeddingDim,
		BatchSize: cfg.EmbeddingBatchSize,
		TopK:      cfg.RetrievalTopK,
	}, logger)

	c := Components{Splitter: split, Index: ix}
	if cfg.OpenAIKey != "" {
		client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:             cfg.OpenAIKey,
			BaseURL:            cfg.OpenAIBaseURL,
			TranscriptionModel: cfg.TranscriptionModel,
			CaptionModel:       cfg.CaptionModel,
			EmbeddingModel:     openai.EmbeddingModel(cfg.TextEmbeddingModel),
			Timeout:            cfg.Timeout,
			MaxRetries:         cfg.MaxRetries,
			RetryDelay:         cfg.RetryDelay,
		})
		if err != nil {
			_ = ix.Close()
			return nil, err
		}

		characters, err := llm.LoadCharacterGallery(cfg.FaceDBDir)
		if err != nil {
			_ = ix.Close()
			return nil, fmt.Errorf("failed to load character gallery: %w", err)
		}
		if len(characters) > 0 {
			logger.Info("loaded character gallery", "characters", len(characters))
		}

		c.Enricher = enrich.NewPipeline(ffmpeg, client, client, device, enrich.Options{
			Characters:   characters,
			ErrorLogPath: filepath.Join(cfg.WorkingDir, "error_log.txt"),
		}, logger)
		c.Scorer = retrieval.NewEmbeddingScorer(client)
	}

	v, err := New(cfg, c, logger)
	if err != nil {
		_ = ix.Close()
		return nil, err
	}
	return v, nil
}

type job struct {
	corpus string
	path   string
}

type splitResult struct {
	split *segmenter.Split
	err   error
}

// Insert indexes each new video. Known corpora are skipped without any
// collaborator call. The first failure aborts the call; corpora committed
// before it stay durable.
func (v *VideoRAG) Insert(ctx context.Context, paths []string) (*InsertReport, error) {
	v.insertMu.Lock()
	defer v.insertMu.Unlock()

	report := &InsertReport{Indexed: []string{}, Skipped: []string{}}
	var jobs []job
	seen := make(map[string]bool)
	for _, p := range paths {
		name, err := models.CorpusName(p)
		if err != nil {
			return report, models.NewIndexError(models.KindDecode, "", "name", err)
		}
		if seen[name] || v.segments.Contains(name) {
			v.logger.Info("corpus already indexed, skipping", "corpus", name)
			report.Skipped = append(report.Skipped, name)
			continue
		}
		seen[name] = true
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		jobs = append(jobs, job{corpus: name, path: abs})
	}
	if len(jobs) == 0 {
		return report, nil
	}
	if v.enricher == nil {
		return report, ErrNoEnricher
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := func(j job) <-chan splitResult {
		ch := make(chan splitResult, 1)
		go func() {
			s, err := v.splitter.Split(ctx, j.corpus, j.path)
			ch <- splitResult{split: s, err: err}
		}()
		return ch
	}

	next := start(jobs[0])
	for i, j := range jobs {
		res := <-next
		next = nil
		if res.err != nil {
			return report, res.err
		}
		if i+1 < len(jobs) {
			next = start(jobs[i+1])
		}

		n, err := v.indexSplit(ctx, j, res.split)
		if err != nil {
			if next != nil {
				cancel()
				if ahead := <-next; ahead.err == nil {
					_ = ahead.split.Cleanup()
				}
			}
			return report, err
		}
		report.Indexed = append(report.Indexed, j.corpus)
		report.Segments += n
	}
	return report, nil
}

// indexSplit enriches, embeds, and commits one corpus, then drops its cache
func (v *VideoRAG) indexSplit(ctx context.Context, j job, split *segmenter.Split) (int, error) {
	segments, err := v.enricher.Run(ctx, split)
	if err != nil {
		_ = split.Cleanup()
		return 0, err
	}

	if err := v.commit(ctx, j, split, segments); err != nil {
		_ = split.Cleanup()
		return 0, err
	}

	if err := split.Cleanup(); err != nil {
		v.logger.Warn("failed to remove cache", "corpus", j.corpus, "err", err)
	}
	return len(segments), nil
}

// commit writes vectors and records for one corpus, rolling both back on failure
func (v *VideoRAG) commit(ctx context.Context, j job, split *segmenter.Split, segments []models.Segment) error {
	record := models.CorpusRecord{
		SchemaVersion: models.CorpusSchemaVersion,
		Name:          j.corpus,
		SourcePath:    j.path,
		SegmentLength: float64(v.cfg.SegmentLength),
		Segments:      segments,
		IndexedAt:     time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return models.NewIndexError(models.KindMalformed, j.corpus, "commit", err)
	}

	// Embedding runs outside the lock so queries keep flowing
	vectors, err := v.index.Embed(ctx, j.corpus, segments, split.ClipPath)
	if err != nil {
		return models.NewIndexError(models.KindCollaborator, j.corpus, "embed", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.index.Write(ctx, j.corpus, vectors); err != nil {
		v.rollback(ctx, j.corpus)
		return models.NewIndexError(models.KindIO, j.corpus, "write vectors", err)
	}

	v.segments.Upsert(map[string]models.CorpusRecord{j.corpus: record})
	v.paths.Upsert(map[string]string{j.corpus: j.path})

	err = v.segments.Flush()
	if err == nil {
		err = v.paths.Flush()
	}
	if err == nil {
		err = v.index.Save(ctx)
	}
	if err != nil {
		v.rollback(ctx, j.corpus)
		return models.NewIndexError(models.KindIO, j.corpus, "commit", err)
	}

	v.logger.Info("indexed corpus", "corpus", j.corpus, "segments", len(segments))
	return nil
}

// rollback removes a partially committed corpus. Called with mu held.
func (v *VideoRAG) rollback(ctx context.Context, corpus string) {
	if _, err := v.index.Remove(context.WithoutCancel(ctx), corpus); err != nil {
		v.logger.Error("failed to roll back vectors", "corpus", corpus, "err", err)
	}
	v.segments.Delete(corpus)
	v.paths.Delete(corpus)
	if err := v.segments.Flush(); err != nil {
		v.logger.Error("failed to restore segment store", "corpus", corpus, "err", err)
	}
	if err := v.paths.Flush(); err != nil {
		v.logger.Error("failed to restore path store", "corpus", corpus, "err", err)
	}
}

// Query retrieves one segment per scene sentence
func (v *VideoRAG) Query(ctx context.Context, text string) (*models.RetrievalResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine.Retrieve(ctx, text)
}

// Corpora lists indexed corpora by name
func (v *VideoRAG) Corpora() []CorpusSummary {
	names := v.segments.Keys()
	out := make([]CorpusSummary, 0, len(names))
	for _, name := range names {
		rec, ok := v.segments.Get(name)
		if !ok {
			continue
		}
		source := rec.SourcePath
		if p, ok := v.paths.Get(name); ok {
			source = p
		}
		out = append(out, CorpusSummary{
			Name:       name,
			SourcePath: source,
			Segments:   len(rec.Segments),
			Duration:   rec.Duration(),
			IndexedAt:  rec.IndexedAt,
		})
	}
	return out
}

// Close releases the vector index
func (v *VideoRAG) Close() error {
	return v.index.Close()
}
