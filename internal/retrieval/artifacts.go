// ABOUTME: Persists retrieval artifacts for inspection after each query
// ABOUTME: Writes the sentence split, the flattened id list, and the full result as JSON
package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harper/videorag/internal/models"
)

// Artifact file names inside the artifact directory
const (
	SentencesFile = "textual_segmentations.json"
	SegmentsFile  = "visual_retrieved_segments.json"
	ResultFile    = "retrieval_result.json"
)

// artifactMu keeps the three files of one query together when queries overlap
var artifactMu sync.Mutex

// WriteArtifacts writes the three artifacts of one query into dir. Each file
// is replaced by rename, so readers never see a partial write.
func WriteArtifacts(dir string, result *models.RetrievalResult) error {
	artifactMu.Lock()
	defer artifactMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.NewIndexError(models.KindIO, "", "artifacts", err)
	}

	files := []struct {
		name  string
		value any
	}{
		{SentencesFile, result.Sentences},
		{SegmentsFile, result.Flattened},
		{ResultFile, result},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.value); err != nil {
			return models.NewIndexError(models.KindIO, "", "artifacts", err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tempPath := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempPath, 0644)
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
