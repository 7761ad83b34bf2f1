// Package config loads and hot-reloads the YAML tunables file that seeds
// corectl.Tunables for new tasks.
package config

import (
	"fmt"
	"os"
	"sync"

	"agentcore/internal/corectl"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of the tunables config file. Zero-valued fields
// are left for corectl's own defaulting to fill in.
type File struct {
	MaxSteps                        int     `yaml:"maxSteps"`
	ConfidenceThreshold              float64 `yaml:"confidenceThreshold"`
	AXDeficientInteractiveThreshold int     `yaml:"axDeficientInteractiveThreshold"`
	ScrollStepPx                     int     `yaml:"scrollStepPx"`
	MaxScrollSteps                   int     `yaml:"maxScrollSteps"`
	MaxNoProgressSteps               int     `yaml:"maxNoProgressSteps"`
	MaxSubtaskRetries                int     `yaml:"maxSubtaskRetries"`
	NavigationTimeoutMs              int     `yaml:"navigationTimeoutMs"`
	ObservationCacheTTLMs           int     `yaml:"observationCacheTtlMs"`
}

// ToTunables converts a parsed config file into corectl.Tunables.
func (f File) ToTunables() corectl.Tunables {
	return corectl.Tunables{
		MaxSteps:                        f.MaxSteps,
		ConfidenceThreshold:              f.ConfidenceThreshold,
		AXDeficientInteractiveThreshold: f.AXDeficientInteractiveThreshold,
		ScrollStepPx:                     f.ScrollStepPx,
		MaxScrollSteps:                   f.MaxScrollSteps,
		MaxNoProgressSteps:               f.MaxNoProgressSteps,
		MaxSubtaskRetries:                f.MaxSubtaskRetries,
		NavigationTimeoutMs:              f.NavigationTimeoutMs,
		ObservationCacheTTLMs:           f.ObservationCacheTTLMs,
	}
}

// Load reads and parses a YAML tunables file from path.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Store holds the most recently loaded config and is safe for concurrent
// reads from many in-flight tasks while a Watcher reloads it in the
// background.
type Store struct {
	mu  sync.RWMutex
	cur File
}

// NewStore loads path once and returns a Store seeded with the result.
func NewStore(path string) (*Store, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{cur: f}, nil
}

// Current returns the most recently loaded config.
func (s *Store) Current() File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Tunables returns corectl.Tunables built from the current config.
func (s *Store) Tunables() corectl.Tunables {
	return s.Current().ToTunables()
}

func (s *Store) set(f File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = f
}
