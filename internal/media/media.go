// ABOUTME: Media decode/encode facility used by segmentation and enrichment
// ABOUTME: Defines the Facility interface implemented by the ffmpeg adapter
package media

import (
	"context"

	"github.com/harper/videorag/internal/models"
)

// Info describes a probed source video
type Info struct {
	Duration float64
	HasAudio bool
	Width    int
	Height   int
}

// Facility decodes and re-encodes media. Implementations must be safe for
// concurrent use on distinct output paths.
type Facility interface {
	Probe(ctx context.Context, path string) (Info, error)
	ExtractAudio(ctx context.Context, src string, tr models.TimeRange, out string) error
	SynthesizeNoise(ctx context.Context, duration float64, out string) error
	ExtractClip(ctx context.Context, src string, tr models.TimeRange, out string) error
	ExtractFrame(ctx context.Context, src string, at float64, out string) error
}
