package main

import (
	"fmt"
	"strings"

	"agentcore/internal/corereason"

	"github.com/spf13/cobra"
)

// taskCmd groups task-scoped introspection subcommands.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect an archived task",
}

var taskWhyCmd = &cobra.Command{
	Use:   "why <taskId>",
	Short: "Explain why a task's tiered policy escalated, from its archived transcript",
	Long: `why re-derives a task's tier_resolution, escalation and
structured_error facts from its archived TaskResult and prints them as a
Mangle-backed explanation table. It never re-runs the task and never feeds
back into a live decision; it is pure after-the-fact introspection (§4.5's
tiered policy stays a deterministic function of Observation alone).`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskWhy,
}

func init() {
	taskCmd.AddCommand(taskWhyCmd)
}

func runTaskWhy(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	archive, err := openArchive()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	result, err := archive.Get(taskID)
	if err != nil {
		return err
	}

	reasoner, err := corereason.NewReasoner()
	if err != nil {
		return fmt.Errorf("create reasoner: %w", err)
	}
	defer reasoner.Close()

	if err := corereason.RecordTaskResult(reasoner, taskID, *result); err != nil {
		return fmt.Errorf("rebuild reasoning facts for %s: %w", taskID, err)
	}

	markdown, err := renderTaskWhyMarkdown(reasoner, taskID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rendered, err := renderMarkdown(markdown)
	if err != nil {
		fmt.Fprint(out, markdown)
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

func renderTaskWhyMarkdown(reasoner *corereason.Reasoner, taskID string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# why %s\n\n", taskID)

	tierFacts, err := reasoner.GetFacts("tier_resolution")
	if err != nil {
		return "", fmt.Errorf("query tier_resolution facts: %w", err)
	}
	sb.WriteString("## tier resolutions\n\n")
	sb.WriteString("| step | tier | reason |\n|---|---|---|\n")
	for _, f := range tierFacts {
		if len(f.Args) != 4 || f.Args[0] != taskID {
			continue
		}
		fmt.Fprintf(&sb, "| %v | %v | %v |\n", f.Args[1], f.Args[2], f.Args[3])
	}

	escalationFacts, err := reasoner.GetFacts("escalation")
	if err != nil {
		return "", fmt.Errorf("query escalation facts: %w", err)
	}
	sb.WriteString("\n## escalations\n\n")
	sb.WriteString("| step | from tier | to tier |\n|---|---|---|\n")
	for _, f := range escalationFacts {
		if len(f.Args) != 4 || f.Args[0] != taskID {
			continue
		}
		fmt.Fprintf(&sb, "| %v | %v | %v |\n", f.Args[1], f.Args[2], f.Args[3])
	}

	errorFacts, err := reasoner.GetFacts("structured_error")
	if err != nil {
		return "", fmt.Errorf("query structured_error facts: %w", err)
	}
	sb.WriteString("\n## structured errors\n\n")
	sb.WriteString("| step | type | message |\n|---|---|---|\n")
	for _, f := range errorFacts {
		if len(f.Args) != 4 || f.Args[0] != taskID {
			continue
		}
		fmt.Fprintf(&sb, "| %v | %v | %v |\n", f.Args[1], f.Args[2], f.Args[3])
	}

	return sb.String(), nil
}
