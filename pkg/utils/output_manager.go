package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager resolves file destination paths against a base output directory.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// ResolvePath returns location unchanged when absolute, otherwise joined to the base directory.
func (om *OutputManager) ResolvePath(location string) string {
	if filepath.IsAbs(location) || om.BaseOutputDir == "" {
		return filepath.Clean(location)
	}
	return filepath.Join(om.BaseOutputDir, location)
}

// EnsureParentDir creates the parent directory of path if it doesn't exist.
func (om *OutputManager) EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// GetFileType determines the file type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".ndjson", ".jsonl":
		return "ndjson"
	case ".yaml", ".yml":
		return "yaml"
	case ".xlsx":
		return "excel"
	default:
		return "json"
	}
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}
