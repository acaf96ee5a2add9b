// ABOUTME: Typed errors for indexing and retrieval failures
// ABOUTME: Classifies failures as decode, io, collaborator, or malformed state
package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an IndexError
type ErrorKind string

const (
	KindDecode       ErrorKind = "decode"
	KindIO           ErrorKind = "io"
	KindCollaborator ErrorKind = "collaborator"
	KindMalformed    ErrorKind = "malformed"
)

// IndexError reports a failure while indexing one corpus
type IndexError struct {
	Kind   ErrorKind
	Corpus string
	Stage  string
	Err    error
}

func (e *IndexError) Error() string {
	if e.Corpus == "" {
		return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failed for %s (%s): %v", e.Stage, e.Corpus, e.Kind, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// NewIndexError wraps err with a kind, corpus, and stage
func NewIndexError(kind ErrorKind, corpus, stage string, err error) *IndexError {
	return &IndexError{Kind: kind, Corpus: corpus, Stage: stage, Err: err}
}

// IsKind reports whether any IndexError in err's chain has the given kind
func IsKind(err error, kind ErrorKind) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Kind == kind
	}
	return false
}
