// ABOUTME: OpenAI client for transcription, frame captioning, and text embeddings
// ABOUTME: Uses whisper-1, gpt-4o-mini, and text-embedding-3-small by default (configurable)
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/videorag/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultTranscriptionModel is the default speech-to-text model
	DefaultTranscriptionModel = openai.Whisper1
	// DefaultCaptionModel is the default vision chat model
	DefaultCaptionModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default text embedding model
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	CaptionModel       string
	EmbeddingModel     openai.EmbeddingModel
	Timeout            time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:             apiKey,
		TranscriptionModel: DefaultTranscriptionModel,
		CaptionModel:       DefaultCaptionModel,
		EmbeddingModel:     DefaultEmbeddingModel,
		Timeout:            60 * time.Second,
		MaxRetries:         3,
		RetryDelay:         time.Second * 2,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client             *openai.Client
	transcriptionModel string
	captionModel       string
	embeddingModel     openai.EmbeddingModel
	timeout            time.Duration
	maxRetries         int
	retryDelay         time.Duration
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIClient{
		client:             openai.NewClientWithConfig(clientConfig),
		transcriptionModel: config.TranscriptionModel,
		captionModel:       config.CaptionModel,
		embeddingModel:     config.EmbeddingModel,
		timeout:            timeout,
		maxRetries:         config.MaxRetries,
		retryDelay:         config.RetryDelay,
	}, nil
}

// GetClient returns the underlying OpenAI client for direct use
func (c *OpenAIClient) GetClient() *openai.Client {
	return c.client
}

// withRetry runs fn with a per-attempt timeout and exponential backoff between attempts
func (c *OpenAIClient) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fn(attemptCtx)
	})
	if err != nil {
		return fmt.Errorf("failed to %s after %d attempts: %w", op, attempts, err)
	}
	return nil
}

// GenerateEmbedding generates a text embedding vector
func (c *OpenAIClient) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64

	err := c.withRetry(ctx, "generate embedding", func(ctx context.Context) error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("no embeddings returned")
		}

		// Convert []float32 to []float64
		embedding32 := resp.Data[0].Embedding
		embedding = make([]float64, len(embedding32))
		for i, v := range embedding32 {
			embedding[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}
