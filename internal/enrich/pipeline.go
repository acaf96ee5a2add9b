// ABOUTME: Enrichment pipeline that attaches transcripts and captions to segments
// ABOUTME: Runs clip saving, transcription, and captioning as isolated concurrent workers
package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/videorag/internal/accel"
	"github.com/harper/videorag/internal/llm"
	"github.com/harper/videorag/internal/media"
	"github.com/harper/videorag/internal/models"
	"github.com/harper/videorag/internal/segmenter"
)

// Transcriber turns one segment's audio into a timestamped transcript
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Captioner describes one segment's sampled frames
type Captioner interface {
	Caption(ctx context.Context, req llm.CaptionRequest) (string, error)
}

// Options configures a Pipeline
type Options struct {
	// Characters is the optional reference gallery passed to every caption call
	Characters []llm.CharacterRef
	// ErrorLogPath receives one line per failed corpus; empty disables it
	ErrorLogPath string
}

// Pipeline enriches the segments of one split
type Pipeline struct {
	media       media.Facility
	transcriber Transcriber
	captioner   Captioner
	device      *accel.Device
	opts        Options
	logger      *log.Logger

	logMu sync.Mutex
}

// NewPipeline creates a Pipeline. device gates every caption call.
func NewPipeline(m media.Facility, t Transcriber, c Captioner, device *accel.Device, opts Options, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		media:       m,
		transcriber: t,
		captioner:   c,
		device:      device,
		opts:        opts,
		logger:      logger.WithPrefix("enrich"),
	}
}

type stage struct {
	name string
	run  func(ctx context.Context) error
}

// Run saves each segment's clip and fills Transcript and Caption. Workers are
// joined before any error is inspected; on failure no segments are returned.
func (p *Pipeline) Run(ctx context.Context, split *segmenter.Split) ([]models.Segment, error) {
	n := len(split.Segments)
	transcripts := make([]string, n)
	captions := make([]string, n)

	stages := []stage{
		{name: "clips", run: func(ctx context.Context) error {
			return p.saveClips(ctx, split)
		}},
		{name: "transcripts", run: func(ctx context.Context) error {
			return p.transcribe(ctx, split, transcripts)
		}},
		{name: "captions", run: func(ctx context.Context) error {
			return p.caption(ctx, split, captions)
		}},
	}

	start := time.Now()
	if err := forkJoin(ctx, stages); err != nil {
		p.logger.Error("enrichment failed", "corpus", split.Corpus, "err", err)
		p.recordFailure(split.Corpus, err)
		return nil, models.NewIndexError(models.KindCollaborator, split.Corpus, "enrich", err)
	}

	segments := make([]models.Segment, n)
	for i, seg := range split.Segments {
		seg.Transcript = transcripts[i]
		seg.Caption = captions[i]
		segments[i] = seg
	}

	p.logger.Info("enriched segments", "corpus", split.Corpus, "segments", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return segments, nil
}

// forkJoin launches every stage, waits for all of them, then reports every failure
func forkJoin(ctx context.Context, stages []stage) error {
	errCh := make(chan error, len(stages))
	var wg sync.WaitGroup

	for _, st := range stages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errCh <- fmt.Errorf("%s: panic: %v", st.name, r)
				}
			}()
			if err := st.run(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", st.name, err)
			}
		}()
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) saveClips(ctx context.Context, split *segmenter.Split) error {
	for _, seg := range split.Segments {
		if err := p.media.ExtractClip(ctx, split.SourcePath, seg.TimeRange, split.ClipPath(seg)); err != nil {
			return fmt.Errorf("segment %d: %w", seg.Index, err)
		}
	}
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, split *segmenter.Split, out []string) error {
	for i, seg := range split.Segments {
		text, err := p.transcriber.Transcribe(ctx, split.AudioPath(seg))
		if err != nil {
			return fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		out[i] = text
		p.logger.Debug("transcribed", "corpus", split.Corpus, "segment", seg.Index)
	}
	return nil
}

func (p *Pipeline) caption(ctx context.Context, split *segmenter.Split, out []string) error {
	for i, seg := range split.Segments {
		frames, err := p.extractFrames(ctx, split, seg)
		if err != nil {
			return fmt.Errorf("segment %d frames: %w", seg.Index, err)
		}

		var caption string
		err = p.device.Do(ctx, func(ctx context.Context) error {
			var err error
			caption, err = p.captioner.Caption(ctx, llm.CaptionRequest{Frames: frames, Characters: p.opts.Characters})
			return err
		})
		if err != nil {
			return fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		out[i] = llm.CleanCaption(caption)
		p.logger.Debug("captioned", "corpus", split.Corpus, "segment", seg.Index)
	}
	return nil
}

func (p *Pipeline) extractFrames(ctx context.Context, split *segmenter.Split, seg models.Segment) ([]string, error) {
	dir := split.FrameDir(seg)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	frames := make([]string, len(seg.FrameTimes))
	for k, at := range seg.FrameTimes {
		frames[k] = filepath.Join(dir, fmt.Sprintf("frame_%02d.jpg", k))
		if err := p.media.ExtractFrame(ctx, split.SourcePath, at, frames[k]); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

func (p *Pipeline) recordFailure(corpus string, err error) {
	if p.opts.ErrorLogPath == "" {
		return
	}
	p.logMu.Lock()
	defer p.logMu.Unlock()

	if mkErr := os.MkdirAll(filepath.Dir(p.opts.ErrorLogPath), 0755); mkErr != nil {
		p.logger.Warn("failed to create error log dir", "err", mkErr)
		return
	}
	f, openErr := os.OpenFile(p.opts.ErrorLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if openErr != nil {
		p.logger.Warn("failed to open error log", "err", openErr)
		return
	}
	defer f.Close()
	msg := strings.ReplaceAll(err.Error(), "\n", "; ")
	_, _ = fmt.Fprintf(f, "%s\t%s\t%s\n", time.Now().Format(time.RFC3339), corpus, msg)
}
