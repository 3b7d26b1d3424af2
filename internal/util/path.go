package util

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath resolves a leading ~ and returns an absolute path when possible
func ExpandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		expanded = path
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return expanded
	}
	return absPath
}

// EnsureDir creates dir and any missing parents
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
