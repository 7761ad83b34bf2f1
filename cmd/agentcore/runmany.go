package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"agentcore/internal/corectl"
	"agentcore/internal/corereason"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	runmanyParallel    int
	runmanyWatchConfig bool
)

var runmanyCmd = &cobra.Command{
	Use:   "runmany <tasks-file>",
	Short: "Run every task in tasks-file concurrently, each with its own orchestrator",
	Long: `tasks-file holds one task per line as "<url><TAB><intent>". Blank
lines and lines starting with # are skipped. Each task gets its own browser
client and orchestrator instance; no state is shared across tasks.`,
	Args: cobra.ExactArgs(1),
	RunE: runManyTasks,
}

func init() {
	runmanyCmd.Flags().IntVar(&runmanyParallel, "parallel", 4, "maximum number of tasks to run at once")
	runmanyCmd.Flags().BoolVar(&runmanyWatchConfig, "watch", false, "hot-reload --config and apply it to tasks not yet submitted")
}

type taskSpec struct {
	startURL string
	intent   string
}

func readTaskSpecs(path string) ([]taskSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tasks file %s: %w", path, err)
	}
	defer f.Close()

	var specs []taskSpec
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed task line (want <url><TAB><intent>): %q", line)
		}
		specs = append(specs, taskSpec{startURL: strings.TrimSpace(parts[0]), intent: strings.TrimSpace(parts[1])})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tasks file %s: %w", path, err)
	}
	return specs, nil
}

func runManyTasks(cmd *cobra.Command, args []string) error {
	specs, err := readTaskSpecs(args[0])
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("no tasks found in %s", args[0])
	}

	tunables, cfgStore, err := loadTunables()
	if err != nil {
		return err
	}

	if runmanyWatchConfig && cfgStore != nil {
		watcher, err := watchConfig(cfgStore)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	archive, err := openArchive()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	reasoner, err := corereason.NewReasoner()
	if err != nil {
		return fmt.Errorf("create reasoner: %w", err)
	}
	defer reasoner.Close()

	var mu sync.Mutex
	results := make([]corectl.TaskResult, len(specs))

	currentTunables := func() corectl.Tunables {
		if runmanyWatchConfig && cfgStore != nil {
			return cfgStore.Tunables()
		}
		return tunables
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(runmanyParallel)

	for i, spec := range specs {
		i, spec := i, spec
		group.Go(func() error {
			browser := newBrowser()
			defer browser.Close()

			engine, err := newInferenceEngine(gctx)
			if err != nil {
				return fmt.Errorf("task %d (%s): %w", i, spec.startURL, err)
			}

			orch := newOrchestrator(browser, engine, corectl.Callbacks{Logger: logger})
			task := corectl.Task{
				Intent:    spec.intent,
				StartURL:  spec.startURL,
				TaskID:    uuid.NewString(),
				ContextID: uuid.NewString(),
				Tunables:  currentTunables(),
			}

			result, err := orch.Run(gctx, task)
			if err != nil {
				return fmt.Errorf("task %d (%s): %w", i, spec.startURL, err)
			}

			mu.Lock()
			results[i] = result
			mu.Unlock()

			if err := corereason.RecordTaskResult(reasoner, result.TaskID, result); err != nil {
				logger.Warnf("record reasoning facts for %s: %v", result.TaskID, err)
			}
			if err := archive.Record(result); err != nil {
				logger.Warnf("archive task %s: %v", result.TaskID, err)
			}
			return nil
		})
	}

	runErr := group.Wait()

	out := cmd.OutOrStdout()
	for _, result := range results {
		if result.TaskID == "" {
			continue
		}
		fmt.Fprintf(out, "%s  %-10s  %s -> %s  (%d steps)\n", result.TaskID, result.Status, result.StartURL, result.FinalURL, result.StepsTaken)
	}

	return runErr
}
