// ABOUTME: Speech-to-text for segment audio via the OpenAI transcription API
// ABOUTME: Formats timestamped chunks as "[a.aas -> b.bbs] text" lines
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// TranscriptChunk is one timestamped piece of speech
type TranscriptChunk struct {
	Start float64
	End   float64
	Text  string
}

// FormatTranscript renders chunks one per line. Chunks with no text are skipped.
func FormatTranscript(chunks []TranscriptChunk) string {
	var b strings.Builder
	for _, ch := range chunks {
		text := strings.TrimSpace(ch.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%.2fs -> %.2fs] %s\n", ch.Start, ch.End, text)
	}
	return b.String()
}

// Transcribe converts the audio file at audioPath to a timestamped transcript.
// Silence yields an empty string.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	var transcript string

	err := c.withRetry(ctx, "transcribe "+audioPath, func(ctx context.Context) error {
		resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.transcriptionModel,
			FilePath: audioPath,
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		if err != nil {
			return err
		}

		chunks := make([]TranscriptChunk, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			chunks = append(chunks, TranscriptChunk{Start: seg.Start, End: seg.End, Text: seg.Text})
		}
		if len(chunks) == 0 && strings.TrimSpace(resp.Text) != "" {
			chunks = append(chunks, TranscriptChunk{Start: 0, End: resp.Duration, Text: resp.Text})
		}
		transcript = FormatTranscript(chunks)
		return nil
	})
	if err != nil {
		return "", err
	}
	return transcript, nil
}
