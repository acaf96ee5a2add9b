// ABOUTME: Scene captioning for sampled segment frames via a vision chat model
// ABOUTME: Sends frames and optional character reference images as data URLs
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const captionSystemPrompt = `You describe short video segments for a search index.
Write one dense paragraph covering the setting, the people, their actions, notable objects,
and any on-screen text. When a person matches a named reference character, use that name.
Do not speculate about anything not visible in the frames.`

// CaptionRequest is one segment's frames plus the optional character gallery
type CaptionRequest struct {
	Frames     []string
	Characters []CharacterRef
}

// Caption describes the frames of one segment
func (c *OpenAIClient) Caption(ctx context.Context, req CaptionRequest) (string, error) {
	if len(req.Frames) == 0 {
		return "", fmt.Errorf("caption request has no frames")
	}
	parts, err := captionParts(req)
	if err != nil {
		return "", err
	}

	var caption string
	err = c.withRetry(ctx, "caption segment", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.captionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: captionSystemPrompt,
				},
				{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				},
			},
			Temperature: 0.2,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion choices returned")
		}
		caption = CleanCaption(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return caption, nil
}

func captionParts(req CaptionRequest) ([]openai.ChatMessagePart, error) {
	var parts []openai.ChatMessagePart

	for _, ch := range req.Characters {
		url, err := dataURL(ch.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("character %s: %w", ch.Name, err)
		}
		parts = append(parts,
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("This target character name is %s. Refer to this person as %s.", ch.Name, ch.Name),
			},
			openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailLow},
			},
		)
	}

	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: fmt.Sprintf("The next %d frames are sampled in order from one video segment. Describe the segment.", len(req.Frames)),
	})
	for _, frame := range req.Frames {
		url, err := dataURL(frame)
		if err != nil {
			return nil, fmt.Errorf("frame: %w", err)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailLow},
		})
	}
	return parts, nil
}

func dataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return "data:" + imageMIME(path) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// CleanCaption drops newlines and end-of-text markers
func CleanCaption(s string) string {
	s = strings.ReplaceAll(s, "<|endoftext|>", "")
	return strings.Join(strings.Fields(s), " ")
}
