// ABOUTME: Centralized configuration for the videorag indexer and retriever
// ABOUTME: Loads defaults, then an optional YAML file, then environment overrides
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Rerank policies for choosing among valid retrieval candidates
const (
	RerankRank = "rank"
	RerankText = "text"
)

// Vector backends
const (
	BackendSQLite = "sqlite"
	BackendDuckDB = "duckdb"
)

// Config holds all configuration for videorag
type Config struct {
	// Storage settings
	WorkingDir    string `yaml:"working_dir"`
	ArtifactDir   string `yaml:"artifact_dir"`
	VectorBackend string `yaml:"vector_backend"`
	// MediaRoot limits which files the HTTP API may index; empty allows any path
	MediaRoot string `yaml:"media_root"`

	// Segmentation settings
	SegmentLength    int    `yaml:"segment_length"`
	MinTailSeconds   int    `yaml:"min_tail_seconds"`
	FramesPerSegment int    `yaml:"frames_per_segment"`
	VideoFormat      string `yaml:"video_format"`
	AudioFormat      string `yaml:"audio_format"`
	FFmpegPath       string `yaml:"ffmpeg_path"`
	FFprobePath      string `yaml:"ffprobe_path"`
	FaceDBDir        string `yaml:"face_db"`

	// Embedding service settings
	EmbeddingURL       string `yaml:"embedding_url"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDim       int    `yaml:"embedding_dim"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`

	// Retrieval settings
	RetrievalTopK   int     `yaml:"retrieval_top_k"`
	CreditsFraction float64 `yaml:"credits_fraction"`
	RerankPolicy    string  `yaml:"rerank_policy"`

	// OpenAI settings
	OpenAIKey          string        `yaml:"-"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	TranscriptionModel string        `yaml:"transcription_model"`
	CaptionModel       string        `yaml:"caption_model"`
	TextEmbeddingModel string        `yaml:"text_embedding_model"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`

	LogLevel string `yaml:"log_level"`
}

// DefaultDataDir returns the default working directory following the XDG spec.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".local/share/videorag"
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "videorag")
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		WorkingDir:         DefaultDataDir(),
		VectorBackend:      BackendSQLite,
		SegmentLength:      30,
		MinTailSeconds:     5,
		FramesPerSegment:   10,
		VideoFormat:        "mp4",
		AudioFormat:        "mp3",
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		EmbeddingURL:       "http://localhost:8000",
		EmbeddingModel:     "imagebind_huge",
		EmbeddingDim:       1024,
		EmbeddingBatchSize: 2,
		RetrievalTopK:      30,
		CreditsFraction:    0.1,
		RerankPolicy:       RerankText,
		TranscriptionModel: "whisper-1",
		CaptionModel:       "gpt-4o-mini",
		TextEmbeddingModel: "text-embedding-3-small",
		Timeout:            60 * time.Second,
		MaxRetries:         3,
		RetryDelay:         2 * time.Second,
		LogLevel:           "info",
	}
}

// Load reads configuration from VIDEORAG_CONFIG (if set) and the environment
func Load() (*Config, error) {
	return LoadFile(os.Getenv("VIDEORAG_CONFIG"))
}

// LoadFile reads configuration from a YAML file, then applies environment
// overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = filepath.Join(cfg.WorkingDir, "scene_output")
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.WorkingDir = getEnv("VIDEORAG_WORKING_DIR", c.WorkingDir)
	c.ArtifactDir = getEnv("VIDEORAG_ARTIFACT_DIR", c.ArtifactDir)
	c.VectorBackend = getEnv("VIDEORAG_VECTOR_BACKEND", c.VectorBackend)
	c.MediaRoot = getEnv("VIDEORAG_MEDIA_ROOT", c.MediaRoot)
	c.SegmentLength = getEnvInt("VIDEORAG_SEGMENT_LENGTH", c.SegmentLength)
	c.MinTailSeconds = getEnvInt("VIDEORAG_MIN_TAIL", c.MinTailSeconds)
	c.FramesPerSegment = getEnvInt("VIDEORAG_FRAMES_PER_SEGMENT", c.FramesPerSegment)
	c.VideoFormat = getEnv("VIDEORAG_VIDEO_FORMAT", c.VideoFormat)
	c.AudioFormat = getEnv("VIDEORAG_AUDIO_FORMAT", c.AudioFormat)
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.FaceDBDir = getEnv("VIDEORAG_FACE_DB", c.FaceDBDir)
	c.EmbeddingURL = getEnv("EMBEDDING_URL", c.EmbeddingURL)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDim = getEnvInt("VIDEORAG_EMBEDDING_DIM", c.EmbeddingDim)
	c.EmbeddingBatchSize = getEnvInt("VIDEORAG_EMBEDDING_BATCH", c.EmbeddingBatchSize)
	c.RetrievalTopK = getEnvInt("VIDEORAG_TOP_K", c.RetrievalTopK)
	c.CreditsFraction = getEnvFloat("VIDEORAG_CREDITS_FRACTION", c.CreditsFraction)
	c.RerankPolicy = getEnv("VIDEORAG_RERANK_POLICY", c.RerankPolicy)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.TranscriptionModel = getEnv("VIDEORAG_TRANSCRIBE_MODEL", c.TranscriptionModel)
	c.CaptionModel = getEnv("VIDEORAG_CAPTION_MODEL", c.CaptionModel)
	c.TextEmbeddingModel = getEnv("VIDEORAG_TEXT_EMBEDDING_MODEL", c.TextEmbeddingModel)
	c.Timeout = getEnvDuration("OPENAI_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", c.RetryDelay)
	c.LogLevel = getEnv("VIDEORAG_LOG_LEVEL", c.LogLevel)
}

func (c *Config) Validate() error {
	if c.WorkingDir == "" {
		return fmt.Errorf("VIDEORAG_WORKING_DIR cannot be empty")
	}
	if c.SegmentLength <= 0 {
		return fmt.Errorf("VIDEORAG_SEGMENT_LENGTH must be positive, got %d", c.SegmentLength)
	}
	if c.MinTailSeconds < 0 || c.MinTailSeconds >= c.SegmentLength {
		return fmt.Errorf("VIDEORAG_MIN_TAIL must be 0-%d, got %d", c.SegmentLength-1, c.MinTailSeconds)
	}
	if c.FramesPerSegment <= 0 {
		return fmt.Errorf("VIDEORAG_FRAMES_PER_SEGMENT must be positive, got %d", c.FramesPerSegment)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("VIDEORAG_EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("VIDEORAG_EMBEDDING_BATCH must be positive, got %d", c.EmbeddingBatchSize)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("VIDEORAG_TOP_K must be positive, got %d", c.RetrievalTopK)
	}
	if c.CreditsFraction < 0 || c.CreditsFraction >= 0.5 {
		return fmt.Errorf("VIDEORAG_CREDITS_FRACTION must be in [0, 0.5), got %f", c.CreditsFraction)
	}
	if c.RerankPolicy != RerankRank && c.RerankPolicy != RerankText {
		return fmt.Errorf("VIDEORAG_RERANK_POLICY must be %q or %q, got %q", RerankRank, RerankText, c.RerankPolicy)
	}
	if c.VectorBackend != BackendSQLite && c.VectorBackend != BackendDuckDB {
		return fmt.Errorf("VIDEORAG_VECTOR_BACKEND must be %q or %q, got %q", BackendSQLite, BackendDuckDB, c.VectorBackend)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
