package main

import (
	"context"
	"fmt"

	"agentcore/internal/corectl"
	"agentcore/internal/corereason"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <url> <intent>",
	Short: "Drive one task to completion and print a summary",
	Args:  cobra.ExactArgs(2),
	RunE:  runOneTask,
}

func runOneTask(cmd *cobra.Command, args []string) error {
	startURL, intent := args[0], args[1]

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tunables, _, err := loadTunables()
	if err != nil {
		return err
	}

	browser := newBrowser()
	defer browser.Close()

	engine, err := newInferenceEngine(ctx)
	if err != nil {
		return err
	}

	reasoner, err := corereason.NewReasoner()
	if err != nil {
		return fmt.Errorf("create reasoner: %w", err)
	}
	defer reasoner.Close()

	archive, err := openArchive()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	callbacks := corectl.Callbacks{Logger: logger}
	orch := newOrchestrator(browser, engine, callbacks)

	task := corectl.Task{
		Intent:    intent,
		StartURL:  startURL,
		TaskID:    uuid.NewString(),
		ContextID: uuid.NewString(),
		Tunables:  tunables,
	}

	result, err := orch.Run(ctx, task)
	if err != nil {
		return fmt.Errorf("run task: %w", err)
	}

	if err := corereason.RecordTaskResult(reasoner, result.TaskID, result); err != nil {
		logger.Warnf("record reasoning facts for %s: %v", result.TaskID, err)
	}
	if err := archive.Record(result); err != nil {
		logger.Warnf("archive task %s: %v", result.TaskID, err)
	}

	printTaskSummary(cmd, result)
	return nil
}

func printTaskSummary(cmd *cobra.Command, result corectl.TaskResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "task %s: %s\n", result.TaskID, result.Status)
	fmt.Fprintf(out, "  intent:     %s\n", result.Intent)
	fmt.Fprintf(out, "  start url:  %s\n", result.StartURL)
	fmt.Fprintf(out, "  final url:  %s\n", result.FinalURL)
	fmt.Fprintf(out, "  steps:      %d\n", result.StepsTaken)
	fmt.Fprintf(out, "  tier usage: L1=%d L2=%d L3=%d (est. $%.4f)\n",
		result.TierUsage.Tier1Calls, result.TierUsage.Tier2Calls, result.TierUsage.Tier3Calls, result.TierUsage.EstimatedCostUSD)
	if len(result.Escalations) > 0 {
		fmt.Fprintf(out, "  escalations: %d (see `agentcore task why %s`)\n", len(result.Escalations), result.TaskID)
	}
	if result.ErrorDetail != nil {
		fmt.Fprintf(out, "  error:      %s\n", *result.ErrorDetail)
	}
}
