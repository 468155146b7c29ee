package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
)

// ------------------- Database Export -------------------

// dialect captures the SQL differences between supported drivers.
type dialect struct {
	driver      string
	placeholder func(n int) string
	columnType  func(v interface{}) string
}

var (
	sqliteDialect = dialect{
		driver:      "sqlite3",
		placeholder: func(int) string { return "?" },
		columnType: func(v interface{}) string {
			switch v.(type) {
			case float64, float32, int, int64:
				return "REAL"
			case bool:
				return "BOOLEAN"
			case time.Time:
				return "TIMESTAMP"
			}
			return "TEXT"
		},
	}
	postgresDialect = dialect{
		driver:      "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		columnType: func(v interface{}) string {
			switch v.(type) {
			case float64, float32, int, int64:
				return "DOUBLE PRECISION"
			case bool:
				return "BOOLEAN"
			case time.Time:
				return "TIMESTAMPTZ"
			}
			return "TEXT"
		},
	}
)

// parseTableDSN resolves a destination location into a driver dialect and a
// driver-specific DSN. Accepted forms: sqlite://path, sqlite3://path,
// file:path, postgres://... and postgresql://...
func parseTableDSN(location string) (dialect, string, error) {
	switch {
	case strings.HasPrefix(location, "sqlite://"):
		return sqliteDialect, strings.TrimPrefix(location, "sqlite://"), nil
	case strings.HasPrefix(location, "sqlite3://"):
		return sqliteDialect, strings.TrimPrefix(location, "sqlite3://"), nil
	case strings.HasPrefix(location, "file:"):
		return sqliteDialect, location, nil
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return postgresDialect, location, nil
	}
	return dialect{}, "", fmt.Errorf("unsupported table location %q", location)
}

// TableLoader upserts records into a relational table, creating it on first
// use. Rows are written one by one; a failed row does not roll back others.
type TableLoader struct {
	Log *logger.Logger
}

func (l *TableLoader) Load(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error) {
	if len(records) == 0 {
		return model.LoadOutput{}, nil
	}
	d, dsn, err := parseTableDSN(def.Destination.Location)
	if err != nil {
		return model.LoadOutput{}, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	columns := columnsOf(records)
	keys, err := keyColumns(def.Destination.KeyColumns, columns)
	if err != nil {
		return model.LoadOutput{}, err
	}

	if _, err := db.ExecContext(ctx, createTableSQL(d, def.Destination.Table, columns, keys, records)); err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to create table %s: %w", def.Destination.Table, err)
	}

	stmt, err := db.PrepareContext(ctx, upsertSQL(d, def.Destination.Table, columns, keys))
	if err != nil {
		return model.LoadOutput{}, fmt.Errorf("failed to prepare upsert into %s; the table needs a primary key or unique constraint on (%s): %w",
			def.Destination.Table, strings.Join(keys, ", "), err)
	}
	defer stmt.Close()

	out := model.LoadOutput{}
	args := make([]interface{}, len(columns))
	for i, rec := range records {
		for j, col := range columns {
			args[j] = rec[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			out.RecordsFailed++
			out.Errors = append(out.Errors, fmt.Sprintf("load record %d: %v", i+1, err))
			if l.Log != nil {
				l.Log.Warn("Failed to upsert record", logger.ErrorFields(err, logger.FieldPipeline, def.Name, "index", i))
			}
			continue
		}
		out.RecordsLoaded++
	}
	return out, nil
}

// keyColumns resolves the upsert key: the configured columns, or "id" when
// none are configured. Every key must be a column of the record set.
func keyColumns(configured, columns []string) ([]string, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	if len(configured) == 0 {
		if present["id"] {
			return []string{"id"}, nil
		}
		return nil, fmt.Errorf("no upsert key: records have no id column and destination.keyColumns is empty")
	}
	for _, k := range configured {
		if !present[k] {
			return nil, fmt.Errorf("key column %q is not a field of the loaded records", k)
		}
	}
	return configured, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(d dialect, table string, columns, keys []string, records []model.Record) string {
	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		var sample interface{}
		for _, rec := range records {
			if v := rec[col]; v != nil {
				sample = v
				break
			}
		}
		defs = append(defs, quoteIdent(col)+" "+d.columnType(sample))
	}
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = quoteIdent(k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func upsertSQL(d dialect, table string, columns, keys []string) string {
	quoted := make([]string, len(columns))
	holders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		holders[i] = d.placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(holders, ", "))
	if len(keys) == 0 {
		return stmt
	}

	isKey := make(map[string]bool, len(keys))
	conflict := make([]string, len(keys))
	for i, k := range keys {
		isKey[k] = true
		conflict[i] = quoteIdent(k)
	}
	var sets []string
	for _, col := range columns {
		if !isKey[col] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quoteIdent(col), quoteIdent(col)))
		}
	}
	if len(sets) == 0 {
		return stmt + " ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO NOTHING"
	}
	return stmt + " ON CONFLICT (" + strings.Join(conflict, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}
