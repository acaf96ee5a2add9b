// ABOUTME: Segment and corpus records for indexed video
// ABOUTME: Defines TimeRange, Segment, and the schema-versioned CorpusRecord
package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// CorpusSchemaVersion is the current on-disk layout of CorpusRecord
const CorpusSchemaVersion = 1

// TimeRange is a half-open interval [Start, End) in seconds
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the length of the range in seconds
func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%g-%g", r.Start, r.End)
}

// Segment is one fixed-length slice of a corpus with its textual enrichment
type Segment struct {
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	TimeRange  TimeRange `json:"time_range"`
	FrameTimes []float64 `json:"frame_times"`
	Transcript string    `json:"transcript"`
	Caption    string    `json:"caption"`
}

var transcriptStamp = regexp.MustCompile(`\[\d+(?:\.\d+)?s -> \d+(?:\.\d+)?s\]\s*`)

// Text returns caption and transcript with timestamps stripped, for text scoring
func (s *Segment) Text() string {
	spoken := transcriptStamp.ReplaceAllString(s.Transcript, "")
	spoken = strings.Join(strings.Fields(spoken), " ")
	switch {
	case s.Caption == "":
		return spoken
	case spoken == "":
		return s.Caption
	default:
		return s.Caption + "\n" + spoken
	}
}

// CorpusRecord is the value stored per corpus in the video_segments namespace
type CorpusRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Name          string    `json:"name"`
	SourcePath    string    `json:"source_path"`
	SegmentLength float64   `json:"segment_length"`
	Segments      []Segment `json:"segments"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// Validate checks the record is well formed: known schema, contiguous indices,
// and non-overlapping ranges in order.
func (r *CorpusRecord) Validate() error {
	if r.SchemaVersion != CorpusSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", r.SchemaVersion)
	}
	if r.Name == "" {
		return errors.New("corpus name cannot be empty")
	}
	if len(r.Segments) == 0 {
		return fmt.Errorf("corpus %s has no segments", r.Name)
	}
	prevEnd := 0.0
	for i, seg := range r.Segments {
		if seg.Index != i {
			return fmt.Errorf("corpus %s: segment at position %d has index %d", r.Name, i, seg.Index)
		}
		if seg.TimeRange.Start != prevEnd || seg.TimeRange.End <= seg.TimeRange.Start {
			return fmt.Errorf("corpus %s: segment %d has bad range %s", r.Name, i, seg.TimeRange)
		}
		prevEnd = seg.TimeRange.End
	}
	return nil
}

// Segment returns the segment with the given index
func (r *CorpusRecord) Segment(index int) (*Segment, bool) {
	if index < 0 || index >= len(r.Segments) {
		return nil, false
	}
	seg := &r.Segments[index]
	if seg.Index != index {
		return nil, false
	}
	return seg, true
}

// Duration returns the end of the last segment
func (r *CorpusRecord) Duration() float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].TimeRange.End
}

// CorpusName derives a corpus name from a video path: the base name up to the
// first '.', with '_' and whitespace replaced by '-' so segment ids parse cleanly.
func CorpusName(videoPath string) (string, error) {
	base := filepath.Base(videoPath)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	name := strings.Map(func(r rune) rune {
		if r == '_' || r == ' ' || r == '\t' {
			return '-'
		}
		return r
	}, base)
	if name == "" || name == "-" {
		return "", fmt.Errorf("cannot derive corpus name from %q", videoPath)
	}
	return name, nil
}
