package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
)

// HistoryStore persists job history entries in SQLite so they survive restarts.
type HistoryStore struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenHistory opens the database at path and applies migrations.
func OpenHistory(path string, log *logger.Logger) (*HistoryStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.WithComponent("store.history").Info("History store ready", logger.Fields("path", path))
	return &HistoryStore{db: db, log: log.WithComponent("store.history")}, nil
}

// Record appends one entry.
func (h *HistoryStore) Record(ctx context.Context, e model.JobHistoryEntry) error {
	var (
		runID  sql.NullString
		result sql.NullString
	)
	if e.Result != nil {
		data, err := json.Marshal(e.Result)
		if err != nil {
			return fmt.Errorf("failed to encode run result: %w", err)
		}
		runID = sql.NullString{String: e.Result.RunID, Valid: true}
		result = sql.NullString{String: string(data), Valid: true}
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO job_history (run_id, pipeline_name, status, trigger_type, error, result, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, e.PipelineName, string(e.Status), string(e.Trigger), e.Error, result, e.Timestamp.UTC())
	return err
}

// List returns up to limit entries, newest first. An empty name matches all
// pipelines; a non-positive limit returns everything.
func (h *HistoryStore) List(ctx context.Context, name string, limit int) ([]model.JobHistoryEntry, error) {
	query := `SELECT pipeline_name, status, trigger_type, error, result, created_at FROM job_history`
	var args []interface{}
	if name != "" {
		query += ` WHERE pipeline_name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.JobHistoryEntry{}
	for rows.Next() {
		var (
			e         model.JobHistoryEntry
			status    string
			trigger   string
			errText   sql.NullString
			result    sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&e.PipelineName, &status, &trigger, &errText, &result, &createdAt); err != nil {
			return nil, err
		}
		e.Status = model.JobStatus(status)
		e.Trigger = model.Trigger(trigger)
		e.Error = errText.String
		e.Timestamp = createdAt
		if result.Valid {
			var r model.RunResult
			if err := json.Unmarshal([]byte(result.String), &r); err != nil {
				h.log.Warn("Skipping undecodable run result", logger.ErrorFields(err, logger.FieldPipeline, e.PipelineName))
			} else {
				e.Result = &r
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than cutoff and reports how many were removed.
func (h *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM job_history WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}
