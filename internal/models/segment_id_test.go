// ABOUTME: Tests for the segment id grammar and strict parser
// ABOUTME: Covers two- and three-part ids, malformed ids, and ordering
package models

import (
	"errors"
	"testing"
)

func TestParseSegmentID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SegmentID
		wantErr bool
	}{
		{name: "two parts", input: "movie_3", want: SegmentID{Corpus: "movie", Index: 3}},
		{name: "three parts", input: "movie_cut_12", want: SegmentID{Corpus: "movie", Sub: "cut", Index: 12}},
		{name: "zero index", input: "a_0", want: SegmentID{Corpus: "a", Index: 0}},
		{name: "hyphenated corpus", input: "my-movie_7", want: SegmentID{Corpus: "my-movie", Index: 7}},
		{name: "single part", input: "movie", wantErr: true},
		{name: "four parts", input: "a_b_c_1", wantErr: true},
		{name: "non numeric index", input: "movie_x", wantErr: true},
		{name: "negative index", input: "movie_-1", wantErr: true},
		{name: "signed index", input: "movie_+1", wantErr: true},
		{name: "empty corpus", input: "_1", wantErr: true},
		{name: "empty index", input: "movie_", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSegmentID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSegmentID(%q) = %+v, want error", tt.input, got)
				}
				if !errors.Is(err, ErrMalformedSegmentID) {
					t.Errorf("ParseSegmentID(%q) error = %v, want ErrMalformedSegmentID", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSegmentID(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSegmentID(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSegmentID_StringParses(t *testing.T) {
	ids := []SegmentID{
		NewSegmentID("movie", 0),
		NewSegmentID("movie", 41),
		{Corpus: "movie", Sub: "cut", Index: 2},
	}
	for _, id := range ids {
		got, err := ParseSegmentID(id.String())
		if err != nil {
			t.Fatalf("ParseSegmentID(%q) error = %v", id.String(), err)
		}
		if got != id {
			t.Errorf("ParseSegmentID(%q) = %+v, want %+v", id.String(), got, id)
		}
	}
}

func TestSegmentID_Less(t *testing.T) {
	a := NewSegmentID("alpha", 10)
	b := NewSegmentID("alpha", 2)
	c := NewSegmentID("beta", 0)

	if !b.Less(a) {
		t.Error("alpha_2 should sort before alpha_10")
	}
	if !a.Less(c) {
		t.Error("alpha_10 should sort before beta_0")
	}
	if c.Less(a) {
		t.Error("beta_0 should not sort before alpha_10")
	}
}
