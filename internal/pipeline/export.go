package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// Loader writes transformed records to a destination. Per-record failures are
// counted in the output; a returned error aborts the run.
type Loader interface {
	Load(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error)

func (f LoaderFunc) Load(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error) {
	return f(ctx, def, records)
}

// ------------------- File Export -------------------

// FileLoader writes the whole record set to one file. The format follows the
// extension. Output goes to a temp file that is renamed into place, so the
// destination holds either the full set or its previous contents.
type FileLoader struct {
	Output *utils.OutputManager
	Log    *logger.Logger
}

func (l *FileLoader) Load(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error) {
	om := l.Output
	if om == nil {
		om = utils.NewOutputManager("")
	}
	path := om.ResolvePath(def.Destination.Location)
	if err := om.EnsureParentDir(path); err != nil {
		return model.LoadOutput{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".load-*")
	if err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())
	_ = tmp.Chmod(0644)

	if err := writeRecords(tmp, om.GetFileType(path), records); err != nil {
		tmp.Close()
		return model.LoadOutput{}, err
	}
	if err := tmp.Close(); err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to move file into place: %w", err)
	}
	if l.Log != nil {
		size, _ := om.GetFileSize(path)
		l.Log.Info("Wrote output file", logger.Fields(logger.FieldPipeline, def.Name, "path", path, "records", len(records), "bytes", size))
	}
	return model.LoadOutput{RecordsLoaded: len(records)}, nil
}

func writeRecords(w io.Writer, format string, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	switch format {
	case "csv":
		return writeCSV(w, records)
	case "ndjson":
		enc := json.NewEncoder(w)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case "excel":
		return writeWorkbook(w, records)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}

// columnsOf returns the sorted union of keys across records.
func columnsOf(records []model.Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func writeCSV(w io.Writer, records []model.Record) error {
	writer := csv.NewWriter(w)
	header := columnsOf(records)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = utils.Stringify(rec[col])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeWorkbook(w io.Writer, records []model.Record) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := columnsOf(records)
	row := make([]interface{}, len(header))
	for i, col := range header {
		row[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for n, rec := range records {
		values := make([]interface{}, len(header))
		for i, col := range header {
			values[i] = rec[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", n+1, err)
		}
	}
	return f.Write(w)
}

// ------------------- API Export -------------------

// APILoader POSTs each record as a JSON body to the destination location,
// optionally throttled to Destination.RateLimit requests per second.
type APILoader struct {
	Client *http.Client
	Log    *logger.Logger
}

func (l *APILoader) Load(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	var limiter *rate.Limiter
	if def.Destination.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(def.Destination.RateLimit), 1)
	}

	out := model.LoadOutput{}
	for i, rec := range records {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				out.RecordsFailed += len(records) - i
				out.Errors = append(out.Errors, fmt.Sprintf("load aborted at record %d: %v", i+1, err))
				break
			}
		}
		if err := l.post(ctx, client, def, rec); err != nil {
			out.RecordsFailed++
			out.Errors = append(out.Errors, fmt.Sprintf("load record %d: %v", i+1, err))
			if l.Log != nil {
				l.Log.Warn("Failed to deliver record", logger.ErrorFields(err, logger.FieldPipeline, def.Name, "index", i))
			}
			continue
		}
		out.RecordsLoaded++
	}
	return out, nil
}

func (l *APILoader) post(ctx context.Context, client *http.Client, def *model.Definition, rec model.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, def.Destination.Location, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	applyHeaders(req, def.Destination.Headers, def.Destination.Auth)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("destination responded with status %d", resp.StatusCode)
	}
	return nil
}
