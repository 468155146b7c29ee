package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"go-data-pipeline/internal/model"
)

// Extractor reads raw records for a definition. File-backed extractors must
// return an error matching fs.ErrNotExist when the location is missing.
type Extractor interface {
	Extract(ctx context.Context, def *model.Definition) ([]model.Record, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, def *model.Definition) ([]model.Record, error)

func (f ExtractorFunc) Extract(ctx context.Context, def *model.Definition) ([]model.Record, error) {
	return f(ctx, def)
}

// ------------------- CSV Ingestion -------------------

// CSVExtractor reads delimited text. The first row is the header; values stay strings.
type CSVExtractor struct{}

func (CSVExtractor) Extract(ctx context.Context, def *model.Definition) ([]model.Record, error) {
	file, err := os.Open(def.Source.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open delimited file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	if def.Source.Delimiter != "" {
		reader.Comma = []rune(def.Source.Delimiter)[0]
	}

	headers, err := reader.Read()
	if err == io.EOF {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	headers = cleanHeaders(headers)

	records := make([]model.Record, 0)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read error on line %d: %w", line, err)
		}
		records = append(records, zipRow(headers, row))
	}
	return records, nil
}

// cleanHeaders trims whitespace, a UTF-8 BOM and stray quotes from header names.
func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimSpace(h)
		out[i] = strings.ReplaceAll(h, `"`, "")
	}
	return out
}

// zipRow pairs header names with row cells. Cells beyond the header are dropped
// and short rows leave trailing fields absent.
func zipRow(headers, row []string) model.Record {
	rec := make(model.Record, len(headers))
	for i, h := range headers {
		if h == "" || i >= len(row) {
			continue
		}
		rec[h] = row[i]
	}
	return rec
}

// ------------------- Spreadsheet Ingestion -------------------

// SpreadsheetExtractor reads the first (or named) sheet of a workbook.
type SpreadsheetExtractor struct{}

func (SpreadsheetExtractor) Extract(ctx context.Context, def *model.Definition) ([]model.Record, error) {
	if _, err := os.Stat(def.Source.Location); err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	f, err := excelize.OpenFile(def.Source.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := def.Source.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return []model.Record{}, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return []model.Record{}, nil
	}

	headers := cleanHeaders(rows[0])
	records := make([]model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isBlankRow(row) {
			continue
		}
		records = append(records, zipRow(headers, row))
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ------------------- Document Ingestion -------------------

// DocumentExtractor reads JSON, NDJSON or YAML files, chosen by extension.
type DocumentExtractor struct{}

func (DocumentExtractor) Extract(ctx context.Context, def *model.Definition) ([]model.Record, error) {
	data, err := os.ReadFile(def.Source.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var raw interface{}
	switch strings.ToLower(filepath.Ext(def.Source.Location)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
	case ".ndjson", ".jsonl":
		return decodeNDJSON(ctx, data)
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}
	return normalizeDocument(raw, def.Source.RecordsPath)
}

func decodeNDJSON(ctx context.Context, data []byte) ([]model.Record, error) {
	records := make([]model.Record, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec model.Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// normalizeDocument walks an optional dotted path and turns the node into
// records: arrays yield one record per element, a single object yields one.
func normalizeDocument(raw interface{}, recordsPath string) ([]model.Record, error) {
	node := raw
	if recordsPath != "" {
		for _, part := range strings.Split(recordsPath, ".") {
			m, ok := asMap(node)
			if !ok {
				return nil, fmt.Errorf("records path %q: %q is not an object", recordsPath, part)
			}
			if node, ok = m[part]; !ok {
				return nil, fmt.Errorf("records path %q: key %q not found", recordsPath, part)
			}
		}
	}

	switch data := node.(type) {
	case []interface{}:
		records := make([]model.Record, 0, len(data))
		for _, item := range data {
			if m, ok := asMap(item); ok {
				records = append(records, model.Record(m))
			} else {
				records = append(records, model.Record{"value": item})
			}
		}
		return records, nil
	case nil:
		return []model.Record{}, nil
	default:
		if m, ok := asMap(data); ok {
			return []model.Record{model.Record(m)}, nil
		}
		return nil, errors.New("unexpected document structure")
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case model.Record:
		return m, true
	}
	return nil, false
}

// ------------------- API Ingestion -------------------

// APIExtractor issues one GET against the source location.
type APIExtractor struct {
	Client *http.Client
}

func (x *APIExtractor) Extract(ctx context.Context, def *model.Definition) ([]model.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, def.Source.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	applyHeaders(req, def.Source.Headers, def.Source.Auth)

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", def.Source.Location, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("source responded with status %d", resp.StatusCode)
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return normalizeDocument(raw, def.Source.RecordsPath)
}

// applyHeaders copies static headers and credentials onto req.
func applyHeaders(req *http.Request, headers map[string]string, auth *model.AuthConfig) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if auth == nil {
		return
	}
	switch auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "basic":
		creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		req.Header.Set("Authorization", "Basic "+creds)
	case "api-key":
		name := auth.Header
		if name == "" {
			name = "X-API-Key"
		}
		req.Header.Set(name, auth.Token)
	}
}
