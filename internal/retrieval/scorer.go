// ABOUTME: Text similarity scorers used to rerank retrieval candidates
// ABOUTME: Embedding cosine via an LLM client, or a lexical term-frequency cosine fallback
package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// TextScorer scores each document against a query; higher is more similar
type TextScorer interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// LexicalScorer compares term-frequency vectors with cosine similarity
type LexicalScorer struct{}

// Score implements TextScorer
func (LexicalScorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	q := termFrequencies(query)
	scores := make([]float64, len(docs))
	for i, doc := range docs {
		scores[i] = sparseCosine(q, termFrequencies(doc))
	}
	return scores, nil
}

func termFrequencies(text string) map[string]float64 {
	tf := make(map[string]float64)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		tf[w]++
	}
	return tf
}

func sparseCosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for k, v := range a {
		normA += v * v
		dot += v * b[k]
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TextEmbedder generates a text embedding
type TextEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// EmbeddingScorer scores by cosine similarity of text embeddings
type EmbeddingScorer struct {
	embedder TextEmbedder
}

// NewEmbeddingScorer wraps a text embedding client
func NewEmbeddingScorer(embedder TextEmbedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder}
}

// Score implements TextScorer. Empty documents score 0 without a call.
func (s *EmbeddingScorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	q, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed sentence: %w", err)
	}

	scores := make([]float64, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		d, err := s.embedder.GenerateEmbedding(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to embed candidate %d: %w", i, err)
		}
		scores[i] = cosine(q, d)
	}
	return scores, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
