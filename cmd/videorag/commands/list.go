// ABOUTME: CLI command to list indexed corpora
// ABOUTME: Shows segment counts, durations, and source paths
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/videorag/internal/core"
)

// NewListCmd creates list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed videos",
		Long: `List the video corpora indexed in the working directory.

Examples:
  videorag list
  videorag list --format json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rag, _, err := openRAG(cfg)
	if err != nil {
		return err
	}
	defer rag.Close()

	return printCorpora(cmd, rag.Corpora())
}

func printCorpora(cmd *cobra.Command, corpora []core.CorpusSummary) error {
	out := cmd.OutOrStdout()

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(corpora, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", jsonData)
		return nil
	}

	if len(corpora) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No videos indexed\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CORPUS\tSEGMENTS\tDURATION\tINDEXED\tSOURCE\n")
	fmt.Fprintf(w, "------\t--------\t--------\t-------\t------\n")
	for _, c := range corpora {
		indexed := "-"
		if !c.IndexedAt.IsZero() {
			indexed = formatTime(c.IndexedAt)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			truncate(c.Name, 30),
			c.Segments,
			formatDuration(c.Duration),
			indexed,
			truncate(c.SourcePath, 50))
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(out, "\nTotal: %d video(s)\n", len(corpora))
	}
	return nil
}
