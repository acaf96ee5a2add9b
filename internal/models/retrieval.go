// ABOUTME: Retrieval models for storyboard queries
// ABOUTME: Defines vector candidates and the per-sentence retrieval result
package models

// Candidate is one vector index hit. Score is cosine similarity, larger is closer.
type Candidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// RetrievalResult holds one storyboard query's output
type RetrievalResult struct {
	RunID     string   `json:"run_id"`
	Sentences []string `json:"sentences"`
	// PerSentence holds zero or one segment id per sentence, in sentence order
	PerSentence [][]string `json:"per_sentence"`
	Flattened   []string   `json:"flattened"`
	// Sorted is the deduplicated view ordered by corpus then index
	Sorted         []string       `json:"sorted"`
	SentenceErrors map[int]string `json:"sentence_errors,omitempty"`
}

// Hits returns how many sentences were matched to a segment
func (r *RetrievalResult) Hits() int {
	return len(r.Flattened)
}
