// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Snapshot is the complete record of one run: what was searched, what came
// back, and how it was handled. The same structure feeds the SQLite log and
// the per-run YAML file.
type Snapshot struct {
	RunID     string              `json:"run_id" yaml:"run_id"`
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`
	Query     []string            `json:"query" yaml:"query"`
	Interests string              `json:"interests,omitempty" yaml:"interests,omitempty"`
	From      time.Time           `json:"window_from" yaml:"window_from"`
	To        time.Time           `json:"window_to" yaml:"window_to"`
	Variant   string              `json:"variant" yaml:"variant"`
	Warnings  []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Papers    []types.PaperRecord `json:"papers" yaml:"papers"`
}

// WriteYAML writes the snapshot to dir/papers-YYYYMMDD-HHMMSS.yaml, creating
// the directory as needed. It returns the path written.
func WriteYAML(dir string, snap Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}

	name := fmt.Sprintf("papers-%s.yaml", snap.Timestamp.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	return path, nil
}

// ReadYAML loads a snapshot file written by WriteYAML.
func ReadYAML(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	return snap, nil
}
