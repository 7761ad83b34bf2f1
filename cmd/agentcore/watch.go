package main

import (
	"context"
	"fmt"

	"agentcore/internal/corectl"
	"agentcore/internal/corereason"
	"agentcore/internal/tui"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <url> <intent>",
	Short: "Drive one task with a live Bubbletea event log",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatchTask,
}

func runWatchTask(cmd *cobra.Command, args []string) error {
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

	program, callbacks := tui.NewProgram(intent, logger)

	task := corectl.Task{
		Intent:    intent,
		StartURL:  startURL,
		TaskID:    uuid.NewString(),
		ContextID: uuid.NewString(),
		Tunables:  tunables,
	}
	orch := newOrchestrator(browser, engine, callbacks)

	runErrCh := make(chan error, 1)
	var result corectl.TaskResult
	go func() {
		var runErr error
		result, runErr = orch.Run(ctx, task)
		runErrCh <- runErr
	}()

	finalModel, progErr := program.Run()
	runErr := <-runErrCh
	if runErr != nil {
		return fmt.Errorf("run task: %w", runErr)
	}
	if progErr != nil {
		return fmt.Errorf("render task: %w", progErr)
	}

	if m, ok := finalModel.(tui.Model); ok {
		if got := m.Result(); got != nil {
			result = *got
		}
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
