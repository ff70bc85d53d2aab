package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// ModelFile resolves path (with '~' expansion) to an absolute path naming an
// existing regular, non-empty file.
func ModelFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("model path is empty")
	}
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("model file: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("model file %s is not a regular file", abs)
	}
	if fi.Size() == 0 {
		return "", fmt.Errorf("model file %s is empty", abs)
	}
	return abs, nil
}
