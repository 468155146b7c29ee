package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-data-pipeline/internal/model"
)

// ExportVersion tags exported documents.
const ExportVersion = "1.0"

// ExportDocument is the portable form of a set of definitions.
type ExportDocument struct {
	ExportDate     time.Time          `json:"exportDate" yaml:"exportDate"`
	Version        string             `json:"version" yaml:"version"`
	Configurations []model.Definition `json:"configurations" yaml:"configurations"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Export writes every definition as an export document.
func (s *FileStore) Export(w io.Writer) error {
	defs, err := s.AllConfigs()
	if err != nil {
		return err
	}
	doc := ExportDocument{ExportDate: s.now().UTC(), Version: ExportVersion, Configurations: defs}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// Import reads an export document (JSON, or YAML when format is "yaml"/"yml")
// and saves each definition. Existing names are skipped unless overwrite is
// set. Invalid definitions are reported and skipped; the rest still import.
func (s *FileStore) Import(r io.Reader, format string, overwrite bool) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read import: %w", err)
	}

	var doc ExportDocument
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to decode import document: %w", err)
	}

	result := ImportResult{Imported: []string{}, Skipped: []string{}, Errors: []string{}}
	for i := range doc.Configurations {
		def := doc.Configurations[i]
		if !overwrite {
			if _, err := s.Config(def.Name); err == nil {
				result.Skipped = append(result.Skipped, def.Name)
				continue
			}
		}
		if _, err := s.SaveConfig(&def); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", def.Name, err))
			continue
		}
		result.Imported = append(result.Imported, def.Name)
	}
	return result, nil
}
