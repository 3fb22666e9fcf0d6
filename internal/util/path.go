// Package util holds small path-resolution helpers shared by the command
// layer.
package util

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath turns p into an absolute path, expanding a leading "~" to the
// invoking user's home directory and resolving everything else against the
// current working directory. An empty path resolves to itself.
func ResolvePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}

	if filepath.IsAbs(p) {
		return p, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, p), nil
}
