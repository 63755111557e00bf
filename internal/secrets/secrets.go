// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files
// into the process environment. Each file holds one secret: the filename
// is the environment variable name and the trimmed contents are the value.
// Exported names must carry the PAPERWATCH_ prefix so viper's AutomaticEnv
// picks them up, e.g. .secrets/PAPERWATCH_API_OPENAI_API overrides the
// api.openai_api config key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnvPrefix is the required prefix for exported secret names.
const EnvPrefix = "PAPERWATCH_"

// Load reads every file in dir, exports those whose names carry EnvPrefix
// as environment variables, and returns the sorted list of exported names.
// A missing directory is not an error. Unreadable files and files without
// the prefix produce a warning on stderr but do not abort.
func Load(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	var exported []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, EnvPrefix) {
			fmt.Fprintf(os.Stderr, "warning: ignoring secret %s: name must start with %s\n", name, EnvPrefix)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value == "" {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return exported, fmt.Errorf("exporting secret %s: %w", name, err)
		}
		exported = append(exported, name)
	}

	sort.Strings(exported)
	return exported, nil
}
