// ABOUTME: CLI command to retrieve segments for a storyboard
// ABOUTME: Reads scene text from an argument, a file, or stdin
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/videorag/internal/config"
	"github.com/harper/videorag/internal/models"
	"github.com/harper/videorag/internal/retrieval"
)

var (
	queryFile   string
	queryTopK   int
	queryPolicy string
)

// NewQueryCmd creates the query command
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Retrieve one segment per storyboard sentence",
		Long: `Retrieve video segments for a storyboard.

Scenes are separated by a line containing only /////. Each scene gets at
most one segment and no segment is used twice in one query. Opening and
closing credits are never returned.

Examples:
  videorag query "$(cat storyboard.txt)"
  videorag query -f storyboard.txt
  cat storyboard.txt | videorag query -f -
  videorag query -f storyboard.txt --policy rank --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the storyboard from a file (- for stdin)")
	cmd.Flags().IntVar(&queryTopK, "top-k", 0, "Candidates fetched per sentence (default from config)")
	cmd.Flags().StringVar(&queryPolicy, "policy", "", "Rerank policy: rank or text (default from config)")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	text, err := readStoryboard(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyQueryFlags(cmd, cfg); err != nil {
		return err
	}

	rag, _, err := openRAG(cfg)
	if err != nil {
		return err
	}
	defer rag.Close()

	result, err := rag.Query(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("retrieving segments: %w", err)
	}
	return printResult(cmd, result)
}

func readStoryboard(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1 && queryFile != "":
		return "", errors.New("pass the storyboard as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case queryFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("reading storyboard: %w", err)
		}
		return string(data), nil
	default:
		return "", errors.New("storyboard text is required")
	}
}

func applyQueryFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("top-k") {
		if err := validatePositiveInt(queryTopK, "--top-k"); err != nil {
			return err
		}
		cfg.RetrievalTopK = queryTopK
	}
	if cmd.Flags().Changed("policy") {
		cfg.RerankPolicy = queryPolicy
	}
	return cfg.Validate()
}

func printResult(cmd *cobra.Command, result *models.RetrievalResult) error {
	out := cmd.OutOrStdout()

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", jsonData)
		return nil
	}

	for i, sentence := range result.Sentences {
		match := "(no match)"
		if len(result.PerSentence[i]) > 0 {
			match = result.PerSentence[i][0]
		}
		if msg, ok := result.SentenceErrors[i]; ok {
			match = "(error: " + truncate(msg, 40) + ")"
		}
		fmt.Fprintf(out, "%3d. %-24s %s\n", i+1, match, truncate(strings.TrimSpace(sentence), 60))
	}

	if !quiet {
		fmt.Fprintf(out, "\n%s (run %s)\n", retrieval.Summary(result), result.RunID)
	}
	return nil
}
