// ABOUTME: Tests for the segment vector index
// ABOUTME: Uses a deterministic fake embedder over an in-memory SQLite backend
package index

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/harper/videorag/internal/accel"
	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/models"
	"github.com/harper/videorag/internal/storage/sqlite"
)

// fakeEmbedder maps clip paths and text to fixed vectors by keyword
type fakeEmbedder struct {
	vectors   map[string][]float32
	batches   [][]string
	failVideo bool
	failText  bool
	short     bool
}

func (f *fakeEmbedder) lookup(key string) []float32 {
	for k, v := range f.vectors {
		if strings.Contains(key, k) {
			return v
		}
	}
	return []float32{0, 0, 1}
}

func (f *fakeEmbedder) EmbedVideos(ctx context.Context, paths []string) ([][]float32, error) {
	if f.failVideo {
		return nil, errors.New("embedding service down")
	}
	f.batches = append(f.batches, paths)
	out := make([][]float32, 0, len(paths))
	for _, p := range paths {
		out = append(out, f.lookup(p))
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.failText {
		return nil, errors.New("embedding service down")
	}
	return f.lookup(text), nil
}

func newTestIndex(t *testing.T, emb Embedder, device *accel.Device) *Index {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	store, err := sqlite.NewVectorStore(db, 3)
	if err != nil {
		t.Fatalf("NewVectorStore() error = %v", err)
	}
	ix := New(store, emb, device, Options{Dim: 3, BatchSize: 2, TopK: 2}, log.New(io.Discard))
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func segments(names ...string) []models.Segment {
	segs := make([]models.Segment, len(names))
	for i, n := range names {
		segs[i] = models.Segment{Index: i, Name: n}
	}
	return segs
}

func clipPath(seg models.Segment) string {
	return "/cache/" + seg.Name + ".mp4"
}

func newEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"dog":  {1, 0, 0},
		"cat":  {0, 1, 0},
		"bird": {0.7, 0.7, 0},
	}}
}

func TestUpsertBatchesAndGates(t *testing.T) {
	emb := newEmbedder()
	device := accel.NewDevice("test")
	ix := newTestIndex(t, emb, device)
	ctx := context.Background()

	n, err := ix.Upsert(ctx, "movie", segments("dog", "cat", "bird"), clipPath)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Upsert() = %d, want 3", n)
	}
	if len(emb.batches) != 2 || len(emb.batches[0]) != 2 || len(emb.batches[1]) != 1 {
		t.Errorf("batches = %v, want sizes [2 1]", emb.batches)
	}
	if device.Uses() != 2 {
		t.Errorf("device uses = %d, want 2", device.Uses())
	}

	count, _ := ix.Count(ctx)
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}

func TestQueryReturnsTopK(t *testing.T) {
	ix := newTestIndex(t, newEmbedder(), nil)
	ctx := context.Background()

	if _, err := ix.Upsert(ctx, "movie", segments("dog", "cat", "bird"), clipPath); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := ix.Query(ctx, "a dog runs")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want TopK 2", len(results))
	}
	if results[0].ID != "movie_0" || results[1].ID != "movie_2" {
		t.Errorf("results = %v, want [movie_0 movie_2]", results)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be in descending score order")
	}
}

func TestUpsertFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name string
		emb  *fakeEmbedder
	}{
		{name: "embedder error", emb: &fakeEmbedder{failVideo: true}},
		{name: "short batch", emb: &fakeEmbedder{short: true}},
		{name: "wrong dimension", emb: &fakeEmbedder{vectors: map[string][]float32{"": {1, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := newTestIndex(t, tt.emb, nil)
			ctx := context.Background()
			if _, err := ix.Upsert(ctx, "movie", segments("dog", "cat", "bird"), clipPath); err == nil {
				t.Fatal("Upsert() should fail")
			}
			count, _ := ix.Count(ctx)
			if count != 0 {
				t.Errorf("Count() = %d, want 0", count)
			}
		})
	}
}

func TestEmbedDoesNotWrite(t *testing.T) {
	ix := newTestIndex(t, newEmbedder(), nil)
	ctx := context.Background()

	records, err := ix.Embed(ctx, "movie", segments("dog", "cat", "bird"), clipPath)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(records) != 3 || records[2].ID != "movie_2" {
		t.Fatalf("Embed() = %+v", records)
	}
	if count, _ := ix.Count(ctx); count != 0 {
		t.Errorf("Count() after Embed = %d, want 0", count)
	}

	n, err := ix.Write(ctx, "movie", records)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if count, _ := ix.Count(ctx); n != 3 || count != 3 {
		t.Errorf("Write() = %d, Count() = %d, want 3", n, count)
	}
}

func TestQueryEmbedFailure(t *testing.T) {
	ix := newTestIndex(t, &fakeEmbedder{failText: true}, nil)
	if _, err := ix.Query(context.Background(), "anything"); err == nil {
		t.Error("Query() should fail when the embedder fails")
	}
}

func TestRemove(t *testing.T) {
	ix := newTestIndex(t, newEmbedder(), nil)
	ctx := context.Background()
	_, _ = ix.Upsert(ctx, "a", segments("dog", "cat"), clipPath)
	_, _ = ix.Upsert(ctx, "b", segments("bird"), clipPath)

	n, err := ix.Remove(ctx, "a")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Remove() = %d, want 2", n)
	}
	count, _ := ix.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkingDir = t.TempDir()
	cfg.EmbeddingDim = 3

	backend, err := OpenBackend(cfg)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	_ = backend.Close()
	if _, err := os.Stat(filepath.Join(cfg.WorkingDir, sqlite.FileName)); err != nil {
		t.Errorf("expected sqlite file: %v", err)
	}

	cfg.VectorBackend = "nope"
	if _, err := OpenBackend(cfg); err == nil {
		t.Error("OpenBackend() should reject an unknown backend")
	}
}

func TestSaveAndReopen(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkingDir = t.TempDir()
	cfg.EmbeddingDim = 3
	ctx := context.Background()

	backend, err := OpenBackend(cfg)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	ix := New(backend, newEmbedder(), nil, Options{Dim: 3, BatchSize: 2, TopK: 3}, log.New(io.Discard))
	_, _ = ix.Upsert(ctx, "movie", segments("dog", "cat", "bird"), clipPath)
	before, _ := ix.Query(ctx, "cat")
	if err := ix.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	_ = ix.Close()

	backend, err = OpenBackend(cfg)
	if err != nil {
		t.Fatalf("OpenBackend() reopen error = %v", err)
	}
	reopened := New(backend, newEmbedder(), nil, Options{Dim: 3, BatchSize: 2, TopK: 3}, log.New(io.Discard))
	defer func() { _ = reopened.Close() }()

	after, err := reopened.Query(ctx, "cat")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("after = %v, before = %v", after, before)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("result %d = %+v, want %+v", i, after[i], before[i])
		}
	}
}
