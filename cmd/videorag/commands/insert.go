// ABOUTME: CLI command to index video files
// ABOUTME: Splits, enriches, and embeds each video as a named corpus
package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/videorag/internal/core"
)

// NewInsertCmd creates the insert command
func NewInsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <video>...",
		Short: "Index video files",
		Long: `Index one or more video files.

Each file becomes a corpus named after its base name without extension.
Corpora that are already indexed are skipped. Indexing stops at the first
failure; corpora committed before it stay indexed.

Examples:
  videorag insert movie.mp4
  videorag insert a.mp4 b.mkv --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInsert,
	}

	return cmd
}

func runInsert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rag, _, err := openRAG(cfg)
	if err != nil {
		return err
	}
	defer rag.Close()

	report, insertErr := rag.Insert(cmd.Context(), args)
	if report != nil {
		if err := printInsertReport(cmd, report); err != nil {
			return err
		}
	}
	if insertErr != nil {
		return fmt.Errorf("indexing videos: %w", insertErr)
	}
	return nil
}

func printInsertReport(cmd *cobra.Command, report *core.InsertReport) error {
	out := cmd.OutOrStdout()

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", jsonData)
		return nil
	}

	if quiet {
		return nil
	}
	if len(report.Indexed) > 0 {
		fmt.Fprintf(out, "Indexed: %s\n", strings.Join(report.Indexed, ", "))
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped (already indexed): %s\n", strings.Join(report.Skipped, ", "))
	}
	fmt.Fprintf(out, "Segments indexed: %d\n", report.Segments)
	return nil
}
