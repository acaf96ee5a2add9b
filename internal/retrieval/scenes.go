// ABOUTME: Scene sentence splitting and per-corpus valid ranges for retrieval
// ABOUTME: Sentences are delimited by "/////" plus a line break; credits are excluded by fraction
package retrieval

import (
	"math"
	"regexp"
	"strings"

	"github.com/harper/videorag/internal/models"
)

// SceneDelimiter joins scene sentences in a storyboard query
const SceneDelimiter = "/////\n"

var sceneSplit = regexp.MustCompile(`/////\r?\n`)

// SplitScenes splits text into trimmed, non-empty scene sentences in order
func SplitScenes(text string) []string {
	var sentences []string
	for _, part := range sceneSplit.Split(text, -1) {
		if s := strings.TrimSpace(part); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// JoinScenes is the inverse of SplitScenes for already trimmed sentences
func JoinScenes(sentences []string) string {
	var b strings.Builder
	for _, s := range sentences {
		b.WriteString(SceneDelimiter)
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Range is the half-open window [Lo, Hi) of eligible segment indices
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Contains reports whether index is eligible
func (r Range) Contains(index int) bool {
	return index >= r.Lo && index < r.Hi
}

// Float slack so that exact multiples do not floor one below
const rangeEpsilon = 1e-9

// ValidRange computes the eligible window for a corpus of n segments of
// length d, excluding the opening and closing credits fraction f.
func ValidRange(n int, d, f float64) Range {
	if n < 3 {
		return Range{Lo: 0, Hi: n}
	}
	total := float64(n) * d
	lo := max(1, int(math.Floor(total*f/d+rangeEpsilon)))
	hi := min(n-1, int(math.Floor(total*(1-f)/d+rangeEpsilon)))
	if lo >= hi {
		// Fraction too wide for a short corpus; keep only the interior
		return Range{Lo: 1, Hi: n - 1}
	}
	return Range{Lo: lo, Hi: hi}
}

// ValidRanges computes a Range per corpus. The segment length comes from
// segment 0, falling back to defaultLength.
func ValidRanges(records map[string]models.CorpusRecord, defaultLength int, f float64) map[string]Range {
	ranges := make(map[string]Range, len(records))
	for name, rec := range records {
		n := len(rec.Segments)
		d := float64(defaultLength)
		if n > 0 && rec.Segments[0].TimeRange.Duration() > 0 {
			d = rec.Segments[0].TimeRange.Duration()
		}
		if d <= 0 {
			d = 1
		}
		ranges[name] = ValidRange(n, d, f)
	}
	return ranges
}
