package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/harper/videorag/internal/util"
)

// Modalities understood by the embedding service
const (
	ModalityText  = "text"
	ModalityVideo = "video"
)

// Client talks to a multimodal embedding service exposing an
// OpenAI-compatible /v1/embeddings endpoint with a modality field
type Client struct {
	baseURL    string
	model      string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new multimodal embedding client
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

// WithRetry overrides the retry policy
func (c *Client) WithRetry(maxRetries int, delay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.retryDelay = delay
	return c
}

type embedRequest struct {
	Model    string   `json:"model"`
	Modality string   `json:"modality"`
	Input    []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedText embeds one query string into the shared media/text space
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, ModalityText, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedVideos embeds clip files, returning one vector per path in order
func (c *Client) EmbedVideos(ctx context.Context, paths []string) ([][]float32, error) {
	inputs := make([]string, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read clip: %w", err)
		}
		inputs[i] = base64.StdEncoding.EncodeToString(data)
	}
	return c.embed(ctx, ModalityVideo, inputs)
}

func (c *Client) embed(ctx context.Context, modality string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	jsonData, err := json.Marshal(embedRequest{Model: c.model, Modality: modality, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out [][]float32
	err = util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		vecs, err := c.post(ctx, jsonData, len(inputs))
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, body []byte, want int) ([][]float32, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &util.Permanent{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &util.Permanent{Err: err}
		}
		return nil, err
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embedResp.Data) != want {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(embedResp.Data), want)
	}

	vecs := make([][]float32, want)
	for _, d := range embedResp.Data {
		if d.Index < 0 || d.Index >= want || vecs[d.Index] != nil {
			return nil, fmt.Errorf("embedding API returned bad index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
