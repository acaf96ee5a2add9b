// ABOUTME: Tests for scene splitting and valid range computation
// ABOUTME: Covers delimiter variants and credit exclusion boundaries
package retrieval

import (
	"reflect"
	"testing"

	"github.com/harper/videorag/internal/models"
)

func TestSplitScenes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two sentences",
			text: "/////\nA man walks into a room.\n\n/////\nHe sits down.",
			want: []string{"A man walks into a room.", "He sits down."},
		},
		{
			name: "crlf delimiter",
			text: "/////\r\nOne.\r\n/////\r\nTwo.",
			want: []string{"One.", "Two."},
		},
		{
			name: "empty sentences dropped",
			text: "/////\n   \n/////\nOnly one.\n/////\n",
			want: []string{"Only one."},
		},
		{
			name: "no delimiter",
			text: "  just text  ",
			want: []string{"just text"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitScenes(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitScenes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinScenesRoundTrip(t *testing.T) {
	sentences := []string{"First scene.", "Second scene.", "Third."}
	got := SplitScenes(JoinScenes(sentences))
	if !reflect.DeepEqual(got, sentences) {
		t.Errorf("round trip = %q, want %q", got, sentences)
	}
}

func TestValidRange(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		f      float64
		want   Range
		inside []int
		out    []int
	}{
		{name: "ten segments", n: 10, f: 0.1, want: Range{Lo: 1, Hi: 9}, inside: []int{1, 8}, out: []int{0, 9}},
		{name: "twenty segments", n: 20, f: 0.1, want: Range{Lo: 2, Hi: 18}, inside: []int{2, 17}, out: []int{1, 18}},
		{name: "three segments", n: 3, f: 0.1, want: Range{Lo: 1, Hi: 2}, inside: []int{1}, out: []int{0, 2}},
		{name: "two segments all eligible", n: 2, f: 0.1, want: Range{Lo: 0, Hi: 2}, inside: []int{0, 1}},
		{name: "one segment", n: 1, f: 0.1, want: Range{Lo: 0, Hi: 1}, inside: []int{0}},
		{name: "zero fraction still drops ends", n: 5, f: 0, want: Range{Lo: 1, Hi: 4}},
		{name: "wide fraction keeps interior", n: 3, f: 0.45, want: Range{Lo: 1, Hi: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidRange(tt.n, 30, tt.f)
			if got != tt.want {
				t.Errorf("ValidRange() = %+v, want %+v", got, tt.want)
			}
			for _, i := range tt.inside {
				if !got.Contains(i) {
					t.Errorf("index %d should be eligible", i)
				}
			}
			for _, i := range tt.out {
				if got.Contains(i) {
					t.Errorf("index %d should be excluded", i)
				}
			}
		})
	}
}

func TestValidRangesUsesFirstSegmentLength(t *testing.T) {
	rec := corpus("movie", 10)
	// Shorter last segment does not change the window
	rec.Segments[9].TimeRange.End = rec.Segments[9].TimeRange.Start + 12

	ranges := ValidRanges(map[string]models.CorpusRecord{"movie": rec}, 0, 0.1)
	if got := ranges["movie"]; got != (Range{Lo: 1, Hi: 9}) {
		t.Errorf("ValidRanges()[movie] = %+v", got)
	}
}
