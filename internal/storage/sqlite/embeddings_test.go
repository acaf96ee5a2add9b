// ABOUTME: Tests for segment vector storage operations
// ABOUTME: Verifies upsert, ranking, tie order, rollback deletes, and persistence
package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/harper/videorag/internal/models"
)

func newStore(t *testing.T, dim int) *VectorStore {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewVectorStore(db, dim)
	if err != nil {
		t.Fatalf("NewVectorStore() error = %v", err)
	}
	return store
}

func rec(corpus string, index int, v ...float32) models.VectorRecord {
	return models.VectorRecord{
		ID:     models.NewSegmentID(corpus, index).String(),
		Corpus: corpus,
		Index:  index,
		Vector: v,
	}
}

func TestVectorStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 3)

	n, err := store.Upsert(ctx, []models.VectorRecord{rec("movie", 0, 1, 0, 0), rec("movie", 1, 0, 1, 0)})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Upsert() = %d, want 2", n)
	}

	got, err := store.Get(ctx, "movie_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Corpus != "movie" || got.Index != 1 || got.Vector[1] != 1 {
		t.Errorf("Get() = %+v", got)
	}

	missing, err := store.Get(ctx, "movie_9")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %+v, %v", missing, err)
	}

	// Re-upsert replaces the vector without adding a row
	if _, err := store.Upsert(ctx, []models.VectorRecord{rec("movie", 1, 0, 0, 1)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	count, _ := store.Count(ctx)
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
	got, _ = store.Get(ctx, "movie_1")
	if got.Vector[2] != 1 {
		t.Errorf("vector not replaced: %v", got.Vector)
	}
}

func TestVectorStore_RejectsWrongDimension(t *testing.T) {
	store := newStore(t, 3)
	if _, err := store.Upsert(context.Background(), []models.VectorRecord{rec("movie", 0, 1, 0)}); err == nil {
		t.Error("Upsert() with wrong dimension should fail")
	}
	if _, err := store.Query(context.Background(), []float32{1}, 5); err == nil {
		t.Error("Query() with wrong dimension should fail")
	}
	count, _ := store.Count(context.Background())
	if count != 0 {
		t.Errorf("Count() = %d, want 0 after rejected upsert", count)
	}
}

func TestVectorStore_QueryRanksAndLimits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 2)
	_, err := store.Upsert(ctx, []models.VectorRecord{
		rec("movie", 0, 0, 1),
		rec("movie", 1, 1, 0),
		rec("movie", 2, 1, 1),
		rec("movie", 3, -1, 0),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := store.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	wantIDs := []string{"movie_1", "movie_2", "movie_0"}
	for i, id := range wantIDs {
		if results[i].ID != id {
			t.Errorf("results[%d].ID = %s, want %s", i, results[i].ID, id)
		}
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Errorf("results[0].Score = %v, want 1", results[0].Score)
	}
	if math.Abs(results[1].Score-math.Sqrt2/2) > 1e-6 {
		t.Errorf("results[1].Score = %v, want 0.707", results[1].Score)
	}

	if _, err := store.Query(ctx, []float32{1, 0}, 0); err == nil {
		t.Error("Query() with k=0 should fail")
	}
}

func TestVectorStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 2)
	_, _ = store.Upsert(ctx, []models.VectorRecord{rec("b", 0, 1, 0), rec("a", 0, 1, 0), rec("c", 0, 1, 0)})

	for i := 0; i < 5; i++ {
		results, err := store.Query(ctx, []float32{1, 0}, 3)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if results[0].ID != "b_0" || results[1].ID != "a_0" || results[2].ID != "c_0" {
			t.Fatalf("tie order = %v, want insertion order", results)
		}
	}
}

func TestVectorStore_DeleteCorpus(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 2)
	_, _ = store.Upsert(ctx, []models.VectorRecord{rec("a", 0, 1, 0), rec("a", 1, 0, 1), rec("b", 0, 1, 1)})

	n, err := store.DeleteCorpus(ctx, "a")
	if err != nil {
		t.Fatalf("DeleteCorpus() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteCorpus() = %d, want 2", n)
	}
	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestVectorStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store, err := NewVectorStore(db, 2)
	if err != nil {
		t.Fatalf("NewVectorStore() error = %v", err)
	}
	_, _ = store.Upsert(ctx, []models.VectorRecord{rec("movie", 0, 0.6, 0.8), rec("movie", 1, 0.8, 0.6)})
	before, _ := store.Query(ctx, []float32{1, 0}, 2)
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	defer func() { _ = db2.Close() }()
	reopened, err := NewVectorStore(db2, 2)
	if err != nil {
		t.Fatalf("NewVectorStore() reopen error = %v", err)
	}
	after, err := reopened.Query(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("results after reopen = %v, before = %v", after, before)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("result %d after reopen = %+v, want %+v", i, after[i], before[i])
		}
	}

	if _, err := NewVectorStore(db2, 3); err == nil {
		t.Error("NewVectorStore() with a different dimension should fail")
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, float32(math.Pi)}
	got := blobToVector(vectorToBlob(v))
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
