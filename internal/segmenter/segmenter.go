// ABOUTME: Segmenter splits a source video into planned segments with per-segment audio
// ABOUTME: Writes audio (or synthesized noise) into the corpus cache directory
package segmenter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harper/videorag/internal/media"
	"github.com/harper/videorag/internal/models"
)

// Options configures segmentation
type Options struct {
	WorkingDir       string
	SegmentLength    int
	MinTailSeconds   int
	FramesPerSegment int
	AudioFormat      string
	VideoFormat      string
	// Workers bounds concurrent audio extraction; 0 means GOMAXPROCS
	Workers int
}

// Segmenter plans segments and materializes their audio
type Segmenter struct {
	media  media.Facility
	opts   Options
	logger *log.Logger
}

// New creates a Segmenter
func New(m media.Facility, opts Options, logger *log.Logger) *Segmenter {
	if opts.AudioFormat == "" {
		opts.AudioFormat = "mp3"
	}
	if opts.VideoFormat == "" {
		opts.VideoFormat = "mp4"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Segmenter{media: m, opts: opts, logger: logger.WithPrefix("segmenter")}
}

// Split is the result of segmenting one corpus
type Split struct {
	Corpus     string
	SourcePath string
	CacheDir   string
	Duration   float64
	HasAudio   bool
	Segments   []models.Segment

	audioFormat string
	videoFormat string
}

// NewSplit assembles a Split from already planned segments
func NewSplit(corpus, sourcePath, cacheDir string, segments []models.Segment, audioFormat, videoFormat string) *Split {
	return &Split{
		Corpus:      corpus,
		SourcePath:  sourcePath,
		CacheDir:    cacheDir,
		Segments:    segments,
		audioFormat: audioFormat,
		videoFormat: videoFormat,
	}
}

// AudioPath is where the segment's audio was written
func (s *Split) AudioPath(seg models.Segment) string {
	return filepath.Join(s.CacheDir, seg.Name+"."+s.audioFormat)
}

// ClipPath is where the segment's video clip is saved during enrichment
func (s *Split) ClipPath(seg models.Segment) string {
	return filepath.Join(s.CacheDir, seg.Name+"."+s.videoFormat)
}

// FrameDir holds sampled frames for one segment
func (s *Split) FrameDir(seg models.Segment) string {
	return filepath.Join(s.CacheDir, "frames", seg.Name)
}

// Cleanup removes the cache directory
func (s *Split) Cleanup() error {
	return os.RemoveAll(s.CacheDir)
}

// CacheDir returns {working}/_cache/{corpus}
func CacheDir(workingDir, corpus string) string {
	return filepath.Join(workingDir, "_cache", corpus)
}

// Split probes videoPath, plans its segments, and writes per-segment audio.
// On failure the cache directory is removed.
func (s *Segmenter) Split(ctx context.Context, corpus, videoPath string) (*Split, error) {
	info, err := s.media.Probe(ctx, videoPath)
	if err != nil {
		return nil, models.NewIndexError(models.KindDecode, corpus, "probe", err)
	}

	segments, err := Plan(info.Duration, s.opts.SegmentLength, s.opts.MinTailSeconds, s.opts.FramesPerSegment)
	if err != nil {
		return nil, models.NewIndexError(models.KindDecode, corpus, "plan", err)
	}

	tag := uuid.New().String()[:8]
	for i := range segments {
		segments[i].Name = SegmentName(tag, segments[i])
	}

	split := &Split{
		Corpus:      corpus,
		SourcePath:  videoPath,
		CacheDir:    CacheDir(s.opts.WorkingDir, corpus),
		Duration:    info.Duration,
		HasAudio:    info.HasAudio,
		Segments:    segments,
		audioFormat: s.opts.AudioFormat,
		videoFormat: s.opts.VideoFormat,
	}

	if err := os.RemoveAll(split.CacheDir); err != nil {
		return nil, models.NewIndexError(models.KindIO, corpus, "cache", err)
	}
	if err := os.MkdirAll(split.CacheDir, 0755); err != nil {
		return nil, models.NewIndexError(models.KindIO, corpus, "cache", err)
	}

	if err := s.writeAudio(ctx, split); err != nil {
		_ = split.Cleanup()
		return nil, err
	}

	s.logger.Info("split video", "corpus", corpus, "duration", info.Duration,
		"segments", len(segments), "audio", info.HasAudio)
	return split, nil
}

func (s *Segmenter) writeAudio(ctx context.Context, split *Split) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, seg := range split.Segments {
		g.Go(func() error {
			out := split.AudioPath(seg)
			var err error
			if split.HasAudio {
				err = s.media.ExtractAudio(gctx, split.SourcePath, seg.TimeRange, out)
			} else {
				err = s.media.SynthesizeNoise(gctx, seg.TimeRange.Duration(), out)
			}
			if err != nil {
				return models.NewIndexError(models.KindDecode, split.Corpus, "audio",
					fmt.Errorf("segment %d: %w", seg.Index, err))
			}
			return nil
		})
	}
	return g.Wait()
}
