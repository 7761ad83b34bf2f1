package main

import (
	"context"
	"fmt"

	"agentcore/internal/browserclient"
	"agentcore/internal/config"
	"agentcore/internal/corectl"
	"agentcore/internal/corestore"
	"agentcore/internal/inference"
)

// loadTunables reads --config when set, otherwise falls back to
// corectl.DefaultTunables, matching config.File's "zero fields left for
// corectl's own defaulting" contract.
func loadTunables() (corectl.Tunables, *config.Store, error) {
	if configPath == "" {
		return corectl.DefaultTunables(), nil, nil
	}
	store, err := config.NewStore(configPath)
	if err != nil {
		return corectl.Tunables{}, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return store.Tunables(), store, nil
}

// watchConfig starts hot-reloading store's backing file, routing reload
// notices through logger. The caller must Close the returned watcher.
func watchConfig(store *config.Store) (*config.Watcher, error) {
	return config.NewWatcher(store, configPath, config.WithReloadLogger(func(format string, args ...any) {
		logger.Infof(format, args...)
	}))
}

func newBrowser() *browserclient.Client {
	cfg := browserclient.DefaultConfig()
	return browserclient.New(cfg)
}

func newInferenceEngine(ctx context.Context) (*inference.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no Gemini API key: pass --api-key or set GEMINI_API_KEY")
	}
	return inference.New(ctx, inference.DefaultConfig(apiKey), logger)
}

func newOrchestrator(browser corectl.BrowserClient, engine corectl.InferenceEngine, callbacks corectl.Callbacks) *corectl.Orchestrator {
	return corectl.NewOrchestrator(browser, engine, callbacks)
}

// openArchive opens the --store archive, creating it if necessary.
func openArchive() (*corestore.Store, error) {
	return corestore.Open(storePath)
}
