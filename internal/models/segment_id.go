// ABOUTME: Segment identifier grammar shared by the vector index and retrieval
// ABOUTME: Ids are "{corpus}_{index}" or "{corpus}_{sub}_{index}"
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedSegmentID is returned for ids that do not follow the grammar
var ErrMalformedSegmentID = errors.New("malformed segment id")

// SegmentID identifies one segment across corpora.
//
//	id    = corpus "_" index | corpus "_" sub "_" index
//	index = 1*DIGIT
//
// corpus and sub are non-empty and contain no '_'.
type SegmentID struct {
	Corpus string
	Sub    string
	Index  int
}

// NewSegmentID builds the two-part id used for stored vectors
func NewSegmentID(corpus string, index int) SegmentID {
	return SegmentID{Corpus: corpus, Index: index}
}

func (id SegmentID) String() string {
	if id.Sub != "" {
		return fmt.Sprintf("%s_%s_%d", id.Corpus, id.Sub, id.Index)
	}
	return fmt.Sprintf("%s_%d", id.Corpus, id.Index)
}

// Less orders ids by corpus, then sub, then index
func (id SegmentID) Less(other SegmentID) bool {
	if id.Corpus != other.Corpus {
		return id.Corpus < other.Corpus
	}
	if id.Sub != other.Sub {
		return id.Sub < other.Sub
	}
	return id.Index < other.Index
}

// ParseSegmentID parses an id strictly. Anything outside the grammar yields an
// error wrapping ErrMalformedSegmentID.
func ParseSegmentID(s string) (SegmentID, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 && len(parts) != 3 {
		return SegmentID{}, fmt.Errorf("%w: %q has %d parts", ErrMalformedSegmentID, s, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return SegmentID{}, fmt.Errorf("%w: %q has an empty part", ErrMalformedSegmentID, s)
		}
	}

	last := parts[len(parts)-1]
	for _, r := range last {
		if r < '0' || r > '9' {
			return SegmentID{}, fmt.Errorf("%w: %q index %q is not a number", ErrMalformedSegmentID, s, last)
		}
	}
	index, err := strconv.Atoi(last)
	if err != nil {
		return SegmentID{}, fmt.Errorf("%w: %q: %v", ErrMalformedSegmentID, s, err)
	}

	id := SegmentID{Corpus: parts[0], Index: index}
	if len(parts) == 3 {
		id.Sub = parts[1]
	}
	return id, nil
}
