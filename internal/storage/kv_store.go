// ABOUTME: Namespace-scoped JSON key-value store backing the segment store
// ABOUTME: One file per namespace, loaded at open and flushed atomically
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// KVSchemaVersion is the on-disk envelope version
const KVSchemaVersion = 1

// Namespaces used by videorag
const (
	NamespaceVideoPath     = "video_path"
	NamespaceVideoSegments = "video_segments"
)

type kvFile[V any] struct {
	SchemaVersion int          `json:"schema_version"`
	Namespace     string       `json:"namespace"`
	Data          map[string]V `json:"data"`
}

// KVStore holds typed values for one namespace in memory and persists them
// to kv_store_{namespace}.json on Flush. Safe for concurrent use.
type KVStore[V any] struct {
	namespace string
	path      string

	mu   sync.RWMutex
	data map[string]V
}

// KVPath returns the file backing a namespace
func KVPath(workingDir, namespace string) string {
	return filepath.Join(workingDir, fmt.Sprintf("kv_store_%s.json", namespace))
}

// OpenKV loads a namespace from workingDir, starting empty if no file exists
func OpenKV[V any](workingDir, namespace string) (*KVStore[V], error) {
	if err := os.MkdirAll(workingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	s := &KVStore[V]{
		namespace: namespace,
		path:      KVPath(workingDir, namespace),
		data:      make(map[string]V),
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var file kvFile[V]
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if file.SchemaVersion != KVSchemaVersion {
		return nil, fmt.Errorf("%s has schema version %d, want %d", s.path, file.SchemaVersion, KVSchemaVersion)
	}
	if file.Namespace != namespace {
		return nil, fmt.Errorf("%s holds namespace %q, want %q", s.path, file.Namespace, namespace)
	}
	if file.Data != nil {
		s.data = file.Data
	}
	return s, nil
}

// Namespace returns the store's namespace
func (s *KVStore[V]) Namespace() string {
	return s.namespace
}

// Path returns the backing file path
func (s *KVStore[V]) Path() string {
	return s.path
}

// Get returns the value for key
func (s *KVStore[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Contains reports whether key is present
func (s *KVStore[V]) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Keys returns all keys in sorted order
func (s *KVStore[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys
func (s *KVStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Upsert writes every entry, replacing existing values whole
func (s *KVStore[V]) Upsert(entries map[string]V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.data[k] = v
	}
}

// Delete removes keys from memory; used to roll back an uncommitted upsert
func (s *KVStore[V]) Delete(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
}

// Flush writes the namespace to disk via a temp file and rename
func (s *KVStore[V]) Flush() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(kvFile[V]{
		SchemaVersion: KVSchemaVersion,
		Namespace:     s.namespace,
		Data:          s.data,
	}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.namespace, err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
