// ABOUTME: Storyboard retrieval engine mapping scene sentences to segment ids
// ABOUTME: Filters index candidates by reuse, validity range, and stored records, then reranks
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/models"
)

// Searcher returns candidates for a sentence in descending relevance
type Searcher interface {
	Query(ctx context.Context, text string) ([]models.Candidate, error)
}

// RecordSource reads stored corpus records
type RecordSource interface {
	Get(corpus string) (models.CorpusRecord, bool)
	Keys() []string
}

// Options controls candidate selection
type Options struct {
	// Policy is config.RerankRank or config.RerankText
	Policy          string
	SegmentLength   int
	CreditsFraction float64
	// ArtifactDir receives the query artifacts; empty disables them
	ArtifactDir string
}

// Engine answers storyboard queries
type Engine struct {
	searcher Searcher
	records  RecordSource
	scorer   TextScorer
	opts     Options
	logger   *log.Logger
}

// NewEngine creates an Engine. A nil scorer falls back to LexicalScorer.
func NewEngine(searcher Searcher, records RecordSource, scorer TextScorer, opts Options, logger *log.Logger) *Engine {
	if scorer == nil {
		scorer = LexicalScorer{}
	}
	if opts.Policy == "" {
		opts.Policy = config.RerankText
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		searcher: searcher,
		records:  records,
		scorer:   scorer,
		opts:     opts,
		logger:   logger.WithPrefix("retrieval"),
	}
}

// candidate is a survivor of filtering with its stored segment
type candidate struct {
	id      string
	segment models.Segment
}

// Retrieve selects at most one unused, in-range segment per scene sentence
func (e *Engine) Retrieve(ctx context.Context, text string) (*models.RetrievalResult, error) {
	sentences := SplitScenes(text)
	result := &models.RetrievalResult{
		RunID:       uuid.New().String(),
		Sentences:   sentences,
		PerSentence: make([][]string, len(sentences)),
		Flattened:   []string{},
		Sorted:      []string{},
	}
	if sentences == nil {
		result.Sentences = []string{}
	}

	records := e.loadRecords()
	ranges := ValidRanges(records, e.opts.SegmentLength, e.opts.CreditsFraction)
	used := make(map[string]bool)

	for i, sentence := range sentences {
		result.PerSentence[i] = []string{}

		hits, err := e.searcher.Query(ctx, sentence)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("index query failed", "sentence", i, "err", err)
			if result.SentenceErrors == nil {
				result.SentenceErrors = make(map[int]string)
			}
			result.SentenceErrors[i] = err.Error()
			continue
		}

		survivors := e.filter(hits, used, records, ranges)
		if len(survivors) == 0 {
			e.logger.Debug("no eligible segment", "sentence", i, "candidates", len(hits))
			continue
		}

		chosen := e.choose(ctx, sentence, survivors)
		used[chosen] = true
		result.PerSentence[i] = []string{chosen}
		result.Flattened = append(result.Flattened, chosen)
	}

	result.Sorted = sortedUnique(result.Flattened)

	if e.opts.ArtifactDir != "" {
		if err := WriteArtifacts(e.opts.ArtifactDir, result); err != nil {
			return nil, err
		}
	}

	e.logger.Info("retrieved storyboard", "run", result.RunID, "sentences", len(sentences), "hits", result.Hits())
	return result, nil
}

// loadRecords snapshots valid corpus records, skipping malformed ones
func (e *Engine) loadRecords() map[string]models.CorpusRecord {
	records := make(map[string]models.CorpusRecord)
	for _, name := range e.records.Keys() {
		rec, ok := e.records.Get(name)
		if !ok {
			continue
		}
		if err := rec.Validate(); err != nil {
			e.logger.Debug("skipping malformed corpus record", "corpus", name, "err", err)
			continue
		}
		records[name] = rec
	}
	return records
}

// filter keeps candidates in index order that are unused, parse, and fall in range
func (e *Engine) filter(hits []models.Candidate, used map[string]bool, records map[string]models.CorpusRecord, ranges map[string]Range) []candidate {
	var survivors []candidate
	for _, hit := range hits {
		if used[hit.ID] {
			continue
		}
		id, err := models.ParseSegmentID(hit.ID)
		if err != nil {
			e.logger.Debug("skipping candidate", "id", hit.ID, "err", err)
			continue
		}
		rec, ok := records[id.Corpus]
		if !ok {
			e.logger.Debug("skipping candidate from unknown corpus", "id", hit.ID)
			continue
		}
		if !ranges[id.Corpus].Contains(id.Index) {
			continue
		}
		seg, ok := rec.Segment(id.Index)
		if !ok {
			continue
		}
		survivors = append(survivors, candidate{id: hit.ID, segment: *seg})
	}
	return survivors
}

// choose applies the rerank policy. Scorer failure falls back to index rank.
func (e *Engine) choose(ctx context.Context, sentence string, survivors []candidate) string {
	if e.opts.Policy != config.RerankText || len(survivors) == 1 {
		return survivors[0].id
	}

	docs := make([]string, len(survivors))
	for i, c := range survivors {
		docs[i] = c.segment.Text()
	}
	scores, err := e.scorer.Score(ctx, sentence, docs)
	if err != nil || len(scores) != len(survivors) {
		e.logger.Warn("text rerank failed, using index rank", "err", err)
		return survivors[0].id
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return survivors[best].id
}

// sortedUnique deduplicates ids and orders them by corpus, sub, then index
func sortedUnique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	parsed := make([]models.SegmentID, 0, len(ids))
	for _, s := range ids {
		if seen[s] {
			continue
		}
		seen[s] = true
		id, err := models.ParseSegmentID(s)
		if err != nil {
			continue
		}
		parsed = append(parsed, id)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Less(parsed[j]) })

	out := make([]string, len(parsed))
	for i, id := range parsed {
		out[i] = id.String()
	}
	return out
}

// Summary describes a result for logs and text output
func Summary(r *models.RetrievalResult) string {
	return fmt.Sprintf("%d/%d sentences matched", r.Hits(), len(r.Sentences))
}
