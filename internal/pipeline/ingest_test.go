package pipeline

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-data-pipeline/internal/model"
)

func sourceDef(typ model.SourceType, location string) *model.Definition {
	return &model.Definition{Name: "ingest", Source: model.Source{Type: typ, Location: location}}
}

func TestCSVExtractor(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.csv", "\ufeff\"ID\"; Name ;Note\n1;Ann;x\n2;Ben\n")
	def := sourceDef(model.SourceDelimited, path)
	def.Source.Delimiter = ";"

	records, err := CSVExtractor{}.Extract(context.Background(), def)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.Record{"ID": "1", "Name": "Ann", "Note": "x"}, records[0])
	assert.Equal(t, model.Record{"ID": "2", "Name": "Ben"}, records[1])
}

func TestCSVExtractor_MissingFile(t *testing.T) {
	_, err := CSVExtractor{}.Extract(context.Background(), sourceDef(model.SourceDelimited, "/nope/in.csv"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDocumentExtractor(t *testing.T) {
	dir := t.TempDir()

	t.Run("json with records path", func(t *testing.T) {
		path := writeFile(t, dir, "doc.json", `{"data":{"items":[{"id":1},{"id":2}]}}`)
		def := sourceDef(model.SourceDocument, path)
		def.Source.RecordsPath = "data.items"

		records, err := DocumentExtractor{}.Extract(context.Background(), def)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 2.0, records[1]["id"])
	})

	t.Run("single object", func(t *testing.T) {
		path := writeFile(t, dir, "one.json", `{"id":7}`)
		records, err := DocumentExtractor{}.Extract(context.Background(), sourceDef(model.SourceDocument, path))
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, dir, "doc.yaml", "- name: a\n  qty: 3\n- name: b\n  qty: 4\n")
		records, err := DocumentExtractor{}.Extract(context.Background(), sourceDef(model.SourceDocument, path))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "b", records[1]["name"])
		assert.Equal(t, 4, records[1]["qty"])
	})

	t.Run("ndjson", func(t *testing.T) {
		path := writeFile(t, dir, "doc.ndjson", "{\"a\":1}\n\n{\"a\":2}\n")
		records, err := DocumentExtractor{}.Extract(context.Background(), sourceDef(model.SourceDocument, path))
		require.NoError(t, err)
		require.Len(t, records, 2)
	})

	t.Run("bad records path", func(t *testing.T) {
		path := writeFile(t, dir, "bad.json", `{"data":[]}`)
		def := sourceDef(model.SourceDocument, path)
		def.Source.RecordsPath = "items"
		_, err := DocumentExtractor{}.Extract(context.Background(), def)
		assert.Error(t, err)
	})
}

func TestSpreadsheetExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.xlsx")

	var buf bytes.Buffer
	require.NoError(t, writeWorkbook(&buf, []model.Record{
		{"ID": "1", "Name": "Ann"},
		{"ID": "2", "Name": "Ben"},
	}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	records, err := SpreadsheetExtractor{}.Extract(context.Background(), sourceDef(model.SourceSpreadsheet, path))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ben", records[1]["Name"])
	assert.Equal(t, "2", records[1]["ID"])
}

func TestSpreadsheetExtractor_MissingFile(t *testing.T) {
	_, err := SpreadsheetExtractor{}.Extract(context.Background(), sourceDef(model.SourceSpreadsheet, "/nope/in.xlsx"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestAPIExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("X-Tenant") != "acme" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1},{"id":2},{"id":3}]}`))
	}))
	defer srv.Close()

	def := sourceDef(model.SourceHTTPAPI, srv.URL)
	def.Source.RecordsPath = "results"
	def.Source.Headers = map[string]string{"X-Tenant": "acme"}
	def.Source.Auth = &model.AuthConfig{Type: "bearer", Token: "secret"}

	x := &APIExtractor{Client: srv.Client()}
	records, err := x.Extract(context.Background(), def)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	def.Source.Auth = nil
	_, err = x.Extract(context.Background(), def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestApplyHeaders_Auth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	applyHeaders(req, nil, &model.AuthConfig{Type: "basic", Username: "u", Password: "p"})
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	applyHeaders(req, nil, &model.AuthConfig{Type: "api-key", Token: "k"})
	assert.Equal(t, "k", req.Header.Get("X-API-Key"))
}
