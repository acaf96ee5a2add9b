// ABOUTME: Root CLI command with global flags shared by every subcommand
// ABOUTME: Loads .env, the YAML config, and builds the charm logger
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/core"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

var outputFormats = []string{"auto", "json", "text"}

const banner = `
██╗   ██╗██╗██████╗ ███████╗ ██████╗ ██████╗  █████╗  ██████╗
██║   ██║██║██╔══██╗██╔════╝██╔═══██╗██╔══██╗██╔══██╗██╔════╝
██║   ██║██║██║  ██║█████╗  ██║   ██║██████╔╝███████║██║  ███╗
╚██╗ ██╔╝██║██║  ██║██╔══╝  ██║   ██║██╔══██╗██╔══██║██║   ██║
 ╚████╔╝ ██║██████╔╝███████╗╚██████╔╝██║  ██║██║  ██║╚██████╔╝
  ╚═══╝  ╚═╝╚═════╝ ╚══════╝ ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videorag",
		Short: "Index videos and retrieve segments for storyboards",
		Long: banner + `

Split videos into fixed-length segments, caption and transcribe them,
and index their multimodal embeddings. Query with a storyboard to get
one fresh segment per scene sentence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return errors.New("--verbose and --quiet are mutually exclusive")
			}
			if !containsString(outputFormats, outputFormat) {
				return fmt.Errorf("invalid --format %q (want auto, json, or text)", outputFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors and suppress summaries")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json, or text")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $VIDEORAG_CONFIG)")

	cmd.AddCommand(
		NewInsertCmd(),
		NewQueryCmd(),
		NewListCmd(),
		NewMCPCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig reads .env, then the config file named by --config or VIDEORAG_CONFIG
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("VIDEORAG_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a stderr logger; --verbose and --quiet override the configured level
func newLogger(cfg *config.Config) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.ErrorLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

// openRAG opens the working directory described by cfg
func openRAG(cfg *config.Config) (*core.VideoRAG, *log.Logger, error) {
	logger := newLogger(cfg)
	if cfg.OpenAIKey == "" {
		logger.Warn("OPENAI_API_KEY not set - indexing is disabled and queries fall back to lexical reranking")
	}

	rag, err := core.Open(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening working directory %s: %w", cfg.WorkingDir, err)
	}
	return rag, logger, nil
}
