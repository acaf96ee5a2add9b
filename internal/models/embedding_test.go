// ABOUTME: Tests for VectorRecord and dimension validation
// ABOUTME: Verifies vector dimension checking for embedding consistency
package models

import (
	"strings"
	"testing"
)

func TestVectorRecord_ValidateDimension(t *testing.T) {
	tests := []struct {
		name        string
		record      VectorRecord
		expectedDim int
		wantErr     bool
		errContains string
	}{
		{
			name:        "valid dimension match",
			record:      VectorRecord{ID: "movie_0", Vector: []float32{0.1, 0.2, 0.3, 0.4}},
			expectedDim: 4,
		},
		{
			name:        "empty vector",
			record:      VectorRecord{ID: "movie_1", Vector: []float32{}},
			expectedDim: 4,
			wantErr:     true,
			errContains: "cannot be empty",
		},
		{
			name:        "nil vector",
			record:      VectorRecord{ID: "movie_2"},
			expectedDim: 4,
			wantErr:     true,
			errContains: "cannot be empty",
		},
		{
			name:        "dimension mismatch - too short",
			record:      VectorRecord{ID: "movie_3", Vector: []float32{0.1, 0.2}},
			expectedDim: 4,
			wantErr:     true,
			errContains: "dimension mismatch",
		},
		{
			name:        "imagebind dimension",
			record:      VectorRecord{ID: "movie_4", Vector: make([]float32, 1024)},
			expectedDim: 1024,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.ValidateDimension(tt.expectedDim)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDimension() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidateDimension() error = %q, want to contain %q", err.Error(), tt.errContains)
			}
		})
	}
}
