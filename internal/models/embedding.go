// ABOUTME: Embedding models for vector storage and segment search
// ABOUTME: Defines the VectorRecord stored per segment and its dimension check
package models

import (
	"fmt"
	"time"
)

// VectorRecord is one segment's embedding in the vector index
type VectorRecord struct {
	ID        string    `json:"id"`
	Corpus    string    `json:"corpus"`
	Index     int       `json:"index"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateDimension checks the vector is non-empty and has the expected size
func (r *VectorRecord) ValidateDimension(expected int) error {
	if len(r.Vector) == 0 {
		return fmt.Errorf("vector for %s cannot be empty", r.ID)
	}
	if len(r.Vector) != expected {
		return fmt.Errorf("dimension mismatch for %s: expected %d, got %d", r.ID, expected, len(r.Vector))
	}
	return nil
}
