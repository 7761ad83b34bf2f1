package main

import (
	"fmt"
	"strings"

	"agentcore/internal/corectl"
	"agentcore/internal/corestore"

	"github.com/spf13/cobra"
)

var (
	historyStatus string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived task results",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by result status (DONE, FAILED, MAX_STEPS)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of results to list (0 for no limit)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	summaries, err := archive.List(corectl.ResultStatus(historyStatus), historyLimit)
	if err != nil {
		return fmt.Errorf("list archive: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no archived tasks")
		return nil
	}

	markdown := renderHistoryMarkdown(summaries)
	rendered, err := renderMarkdown(markdown)
	if err != nil {
		// Fall back to the raw table if glamour has no TTY to size itself against.
		fmt.Fprint(out, markdown)
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

func renderHistoryMarkdown(summaries []corestore.Summary) string {
	var sb strings.Builder
	sb.WriteString("| task | status | intent | steps | recorded |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
			s.TaskID, s.Status, s.Intent, s.StepsTaken, s.RecordedAt.Format("2006-01-02 15:04:05")))
	}
	return sb.String()
}
