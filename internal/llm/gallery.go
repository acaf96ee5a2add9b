// ABOUTME: Character gallery for caption prompts
// ABOUTME: Loads one reference image per character from a face database directory
package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CharacterRef names a character and points at its reference image
type CharacterRef struct {
	Name      string
	ImagePath string
}

var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// LoadCharacterGallery reads dir, where each sub-directory is a character and
// its first image (by name) is the reference. An empty dir path or a missing
// directory yields no characters. Folders without images are skipped.
func LoadCharacterGallery(dir string) ([]CharacterRef, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read character gallery: %w", err)
	}

	var refs []CharacterRef
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		charDir := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(charDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read character %s: %w", entry.Name(), err)
		}

		var images []string
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := imageExts[strings.ToLower(filepath.Ext(f.Name()))]; ok {
				images = append(images, f.Name())
			}
		}
		if len(images) == 0 {
			continue
		}
		sort.Strings(images)
		refs = append(refs, CharacterRef{Name: entry.Name(), ImagePath: filepath.Join(charDir, images[0])})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func imageMIME(path string) string {
	if m, ok := imageExts[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "image/jpeg"
}
