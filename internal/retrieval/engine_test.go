// ABOUTME: Tests for the storyboard retrieval engine
// ABOUTME: Verifies reuse exclusion, credit filtering, rerank policies, and soft failures
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/models"
)

// fakeSearcher returns fixed candidates per sentence keyword
type fakeSearcher struct {
	hits  map[string][]string
	fail  map[string]bool
	mu    sync.Mutex
	calls int
}

func (f *fakeSearcher) Query(ctx context.Context, text string) ([]models.Candidate, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for k := range f.fail {
		if strings.Contains(text, k) {
			return nil, errors.New("index unavailable")
		}
	}
	var out []models.Candidate
	for k, ids := range f.hits {
		if strings.Contains(text, k) {
			for i, id := range ids {
				out = append(out, models.Candidate{ID: id, Score: 1 - float64(i)*0.01})
			}
		}
	}
	return out, nil
}

type recordMap map[string]models.CorpusRecord

func (m recordMap) Get(name string) (models.CorpusRecord, bool) {
	rec, ok := m[name]
	return rec, ok
}

func (m recordMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type failingScorer struct{}

func (failingScorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	return nil, errors.New("scorer down")
}

func corpus(name string, n int) models.CorpusRecord {
	rec := models.CorpusRecord{
		SchemaVersion: models.CorpusSchemaVersion,
		Name:          name,
		SegmentLength: 30,
	}
	for i := 0; i < n; i++ {
		rec.Segments = append(rec.Segments, models.Segment{
			Index:     i,
			Name:      fmt.Sprintf("tag-%d", i),
			TimeRange: models.TimeRange{Start: float64(i * 30), End: float64((i + 1) * 30)},
			Caption:   fmt.Sprintf("scene %d", i),
		})
	}
	return rec
}

func newEngine(s Searcher, records recordMap, scorer TextScorer, opts Options) *Engine {
	if opts.SegmentLength == 0 {
		opts.SegmentLength = 30
	}
	if opts.CreditsFraction == 0 {
		opts.CreditsFraction = 0.1
	}
	return NewEngine(s, records, scorer, opts, log.New(io.Discard))
}

func TestRetrieveNoSegmentReused(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]string{
		"walk": {"movie_3", "movie_4", "movie_5"},
	}}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, nil, Options{Policy: config.RerankRank})

	text := JoinScenes([]string{"walk one", "walk two", "walk three", "walk four"})
	result, err := e.Retrieve(context.Background(), text)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	want := [][]string{{"movie_3"}, {"movie_4"}, {"movie_5"}, {}}
	if !reflect.DeepEqual(result.PerSentence, want) {
		t.Errorf("PerSentence = %v, want %v", result.PerSentence, want)
	}
	if !reflect.DeepEqual(result.Flattened, []string{"movie_3", "movie_4", "movie_5"}) {
		t.Errorf("Flattened = %v", result.Flattened)
	}
	if result.Hits() != 3 {
		t.Errorf("Hits() = %d, want 3", result.Hits())
	}
}

func TestRetrieveExcludesCredits(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]string{
		"credits": {"movie_0", "movie_9"},
		"middle":  {"movie_9", "movie_8", "movie_1"},
	}}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, nil, Options{Policy: config.RerankRank})

	result, err := e.Retrieve(context.Background(), JoinScenes([]string{"rolling credits", "middle scene"}))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.PerSentence[0]) != 0 {
		t.Errorf("credits sentence = %v, want empty", result.PerSentence[0])
	}
	if !reflect.DeepEqual(result.PerSentence[1], []string{"movie_8"}) {
		t.Errorf("middle sentence = %v, want [movie_8]", result.PerSentence[1])
	}
}

func TestRetrieveSkipsInvalidCandidates(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]string{
		"scene": {"bad-id", "ghost_3", "movie_x", "movie_42", "movie_a_5"},
	}}
	broken := corpus("broken", 10)
	broken.SchemaVersion = 99
	records := recordMap{"movie": corpus("movie", 10), "broken": broken}
	searcher.hits["scene"] = append(searcher.hits["scene"], "broken_4")

	e := newEngine(searcher, records, nil, Options{Policy: config.RerankRank})
	result, err := e.Retrieve(context.Background(), "one scene")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !reflect.DeepEqual(result.PerSentence, [][]string{{"movie_a_5"}}) {
		t.Errorf("PerSentence = %v, want [[movie_a_5]]", result.PerSentence)
	}
}

func TestRetrieveTextPolicyPrefersStoredText(t *testing.T) {
	rec := corpus("movie", 10)
	rec.Segments[2].Caption = "a dog chases a red ball across the park"
	rec.Segments[5].Caption = "two people talk in an office"
	rec.Segments[5].Transcript = "[0.00s -> 2.00s] we should talk about the quarterly report\n"

	searcher := &fakeSearcher{hits: map[string][]string{
		"office": {"movie_2", "movie_5"},
	}}

	text := "people talk in the office about the report"
	rank := newEngine(searcher, recordMap{"movie": rec}, nil, Options{Policy: config.RerankRank})
	byRank, _ := rank.Retrieve(context.Background(), text)
	if !reflect.DeepEqual(byRank.Flattened, []string{"movie_2"}) {
		t.Errorf("rank policy = %v, want [movie_2]", byRank.Flattened)
	}

	textual := newEngine(searcher, recordMap{"movie": rec}, LexicalScorer{}, Options{Policy: config.RerankText})
	byText, _ := textual.Retrieve(context.Background(), text)
	if !reflect.DeepEqual(byText.Flattened, []string{"movie_5"}) {
		t.Errorf("text policy = %v, want [movie_5]", byText.Flattened)
	}
}

func TestRetrieveScorerFailureFallsBackToRank(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]string{"scene": {"movie_4", "movie_2"}}}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, failingScorer{}, Options{Policy: config.RerankText})

	result, err := e.Retrieve(context.Background(), "scene")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !reflect.DeepEqual(result.Flattened, []string{"movie_4"}) {
		t.Errorf("Flattened = %v, want [movie_4]", result.Flattened)
	}
}

func TestRetrieveQueryFailureIsSentenceScoped(t *testing.T) {
	searcher := &fakeSearcher{
		hits: map[string][]string{"good": {"movie_1"}},
		fail: map[string]bool{"bad": true},
	}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, nil, Options{Policy: config.RerankRank})

	result, err := e.Retrieve(context.Background(), JoinScenes([]string{"bad one", "good one"}))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.PerSentence[0]) != 0 || !reflect.DeepEqual(result.PerSentence[1], []string{"movie_1"}) {
		t.Errorf("PerSentence = %v", result.PerSentence)
	}
	if _, ok := result.SentenceErrors[0]; !ok {
		t.Error("expected a recorded error for sentence 0")
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]string{
		"a": {"movie_5", "movie_3", "movie_7"},
		"b": {"movie_3", "movie_5"},
	}}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, nil, Options{})
	text := JoinScenes([]string{"a scene", "b scene"})

	first, _ := e.Retrieve(context.Background(), text)
	for i := 0; i < 5; i++ {
		again, _ := e.Retrieve(context.Background(), text)
		if !reflect.DeepEqual(first.PerSentence, again.PerSentence) {
			t.Fatalf("run %d = %v, want %v", i, again.PerSentence, first.PerSentence)
		}
	}
}

func TestRetrieveSortedView(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]string{
		"one":   {"zeta_4"},
		"two":   {"alpha_7"},
		"three": {"alpha_2"},
	}}
	records := recordMap{"zeta": corpus("zeta", 10), "alpha": corpus("alpha", 10)}
	e := newEngine(searcher, records, nil, Options{Policy: config.RerankRank})

	result, _ := e.Retrieve(context.Background(), JoinScenes([]string{"one", "two", "three"}))
	if !reflect.DeepEqual(result.Sorted, []string{"alpha_2", "alpha_7", "zeta_4"}) {
		t.Errorf("Sorted = %v", result.Sorted)
	}
	if !reflect.DeepEqual(result.Flattened, []string{"zeta_4", "alpha_7", "alpha_2"}) {
		t.Errorf("Flattened = %v", result.Flattened)
	}
}

func TestRetrieveWritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scene_output")
	searcher := &fakeSearcher{hits: map[string][]string{"walk": {"movie_3"}}}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, nil, Options{ArtifactDir: dir})

	result, err := e.Retrieve(context.Background(), JoinScenes([]string{"walk", "nothing"}))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	var sentences []string
	readJSON(t, filepath.Join(dir, SentencesFile), &sentences)
	if !reflect.DeepEqual(sentences, []string{"walk", "nothing"}) {
		t.Errorf("%s = %v", SentencesFile, sentences)
	}

	var flattened []string
	readJSON(t, filepath.Join(dir, SegmentsFile), &flattened)
	if !reflect.DeepEqual(flattened, []string{"movie_3"}) {
		t.Errorf("%s = %v", SegmentsFile, flattened)
	}

	var full models.RetrievalResult
	readJSON(t, filepath.Join(dir, ResultFile), &full)
	if full.RunID != result.RunID || len(full.PerSentence) != 2 {
		t.Errorf("%s = %+v", ResultFile, full)
	}
}

func TestRetrieveConcurrentArtifactsStayConsistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scene_output")
	searcher := &fakeSearcher{hits: map[string][]string{"walk": {"movie_3", "movie_4"}}}
	e := newEngine(searcher, recordMap{"movie": corpus("movie", 10)}, nil, Options{ArtifactDir: dir, Policy: config.RerankRank})

	short := JoinScenes([]string{"walk"})
	long := make([]string, 50)
	for i := range long {
		long[i] = fmt.Sprintf("walk number %d", i)
	}
	longText := JoinScenes(long)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		text := short
		if i%2 == 1 {
			text = longText
		}
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if _, err := e.Retrieve(context.Background(), text); err != nil {
				errs <- err
			}
		}(text)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Retrieve() error = %v", err)
	}

	var sentences, flattened []string
	var full models.RetrievalResult
	readJSON(t, filepath.Join(dir, SentencesFile), &sentences)
	readJSON(t, filepath.Join(dir, SegmentsFile), &flattened)
	readJSON(t, filepath.Join(dir, ResultFile), &full)

	if !reflect.DeepEqual(sentences, full.Sentences) {
		t.Errorf("%s has %d sentences, %s has %d", SentencesFile, len(sentences), ResultFile, len(full.Sentences))
	}
	if !reflect.DeepEqual(flattened, full.Flattened) {
		t.Errorf("%s = %v, %s flattened = %v", SegmentsFile, flattened, ResultFile, full.Flattened)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected only the three artifacts, found %d entries", len(entries))
	}
}

func TestRetrieveShortCorpusFullyEligible(t *testing.T) {
	tests := []struct {
		name string
		n    int
		hits []string
		want string
	}{
		{name: "one segment", n: 1, hits: []string{"clip_0"}, want: "clip_0"},
		{name: "two segments first ranked", n: 2, hits: []string{"clip_0", "clip_1"}, want: "clip_0"},
		{name: "two segments last ranked", n: 2, hits: []string{"clip_1", "clip_0"}, want: "clip_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{hits: map[string][]string{"walk": tt.hits}}
			e := newEngine(searcher, recordMap{"clip": corpus("clip", tt.n)}, nil, Options{Policy: config.RerankRank})

			result, err := e.Retrieve(context.Background(), JoinScenes([]string{"walk"}))
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if !reflect.DeepEqual(result.Flattened, []string{tt.want}) {
				t.Errorf("Flattened = %v, want [%s]", result.Flattened, tt.want)
			}
		})
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	e := newEngine(searcher, recordMap{}, nil, Options{})
	result, err := e.Retrieve(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Sentences) != 0 || searcher.calls != 0 {
		t.Errorf("expected no sentences and no index calls, got %v and %d", result.Sentences, searcher.calls)
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to parse %s: %v", path, err)
	}
}
