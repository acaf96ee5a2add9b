// ABOUTME: ffmpeg/ffprobe implementation of the media Facility
// ABOUTME: Builds command lines for probing, cutting clips, audio, frames, and noise
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/harper/videorag/internal/models"
)

// NoiseAmplitude is the peak amplitude of synthesized placeholder audio
const NoiseAmplitude = 0.05

// Runner executes a command and returns its stdout
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec and folds stderr into errors
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return out, fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return out, nil
}

// FFmpeg shells out to ffmpeg and ffprobe
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	run         Runner
}

// NewFFmpeg creates an adapter using the given binaries
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return NewFFmpegWithRunner(ffmpegPath, ffprobePath, ExecRunner)
}

// NewFFmpegWithRunner creates an adapter with a custom command runner (for testing)
func NewFFmpegWithRunner(ffmpegPath, ffprobePath string, run Runner) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, run: run}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Probe reads duration and stream layout
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	out, err := f.run(ctx, f.ffprobePath, probeArgs(path)...)
	if err != nil {
		return Info{}, err
	}
	return parseProbe(out)
}

func probeArgs(path string) []string {
	return []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", path}
}

func parseProbe(out []byte) (Info, error) {
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var info Info
	hasVideo := false
	for _, s := range p.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if !hasVideo {
				hasVideo = true
				info.Width, info.Height = s.Width, s.Height
				if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					info.Duration = d
				}
			}
		}
	}
	if !hasVideo {
		return Info{}, errors.New("no video stream")
	}
	if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	}
	if info.Duration <= 0 {
		return Info{}, errors.New("unknown or zero duration")
	}
	return info, nil
}

// ExtractAudio writes the audio of tr to out
func (f *FFmpeg) ExtractAudio(ctx context.Context, src string, tr models.TimeRange, out string) error {
	_, err := f.run(ctx, f.ffmpegPath, audioArgs(src, tr, out)...)
	return err
}

func audioArgs(src string, tr models.TimeRange, out string) []string {
	return []string{
		"-y", "-loglevel", "error",
		"-ss", seconds(tr.Start), "-t", seconds(tr.Duration()),
		"-i", src,
		"-vn", "-ac", "2", "-ar", "44100",
		out,
	}
}

// SynthesizeNoise writes a low-amplitude noise clip with fade in and out
func (f *FFmpeg) SynthesizeNoise(ctx context.Context, duration float64, out string) error {
	if duration <= 0 {
		return fmt.Errorf("noise duration must be positive, got %v", duration)
	}
	_, err := f.run(ctx, f.ffmpegPath, noiseArgs(duration, out)...)
	return err
}

// FadeDuration is the fade applied to synthesized noise: 0.1s, or a quarter
// of very short clips.
func FadeDuration(duration float64) float64 {
	return min(0.1, duration/4)
}

func noiseArgs(duration float64, out string) []string {
	fade := FadeDuration(duration)
	src := fmt.Sprintf("anoisesrc=d=%s:c=white:r=44100:a=%s", seconds(duration), strconv.FormatFloat(NoiseAmplitude, 'f', -1, 64))
	filter := fmt.Sprintf("afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s",
		seconds(fade), seconds(duration-fade), seconds(fade))
	return []string{
		"-y", "-loglevel", "error",
		"-f", "lavfi", "-i", src,
		"-af", filter,
		"-ac", "2",
		out,
	}
}

// ExtractClip re-encodes tr of src into out
func (f *FFmpeg) ExtractClip(ctx context.Context, src string, tr models.TimeRange, out string) error {
	_, err := f.run(ctx, f.ffmpegPath, clipArgs(src, tr, out)...)
	return err
}

func clipArgs(src string, tr models.TimeRange, out string) []string {
	return []string{
		"-y", "-loglevel", "error",
		"-ss", seconds(tr.Start), "-t", seconds(tr.Duration()),
		"-i", src,
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac",
		out,
	}
}

// ExtractFrame writes the frame at time at to out as an image
func (f *FFmpeg) ExtractFrame(ctx context.Context, src string, at float64, out string) error {
	_, err := f.run(ctx, f.ffmpegPath, frameArgs(src, at, out)...)
	return err
}

func frameArgs(src string, at float64, out string) []string {
	return []string{
		"-y", "-loglevel", "error",
		"-ss", seconds(at),
		"-i", src,
		"-frames:v", "1",
		"-vf", "scale=-2:480",
		out,
	}
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
