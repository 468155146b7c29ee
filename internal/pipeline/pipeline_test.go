package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-data-pipeline/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func csvDefinition(source, dest string) *model.Definition {
	return &model.Definition{
		Name: "orders",
		Source: model.Source{
			Type:     model.SourceDelimited,
			Location: source,
			Mapping: map[string]model.FieldMapping{
				"id":     {SourceField: "ID", DataType: model.TypeNumber, Required: true},
				"name":   {SourceField: "Name", DataType: model.TypeString, Required: true, Transformation: model.FieldUppercase},
				"amount": {SourceField: "Amt", DataType: model.TypeNumber},
			},
		},
		Destination: model.Destination{Type: model.DestinationFile, Location: dest},
		Enabled:     true,
	}
}

func TestExecute_HappyPath(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,alice,10.5\n2,bob,20\n")
	dest := filepath.Join(dir, "out", "result.json")

	engine := NewEngine(Config{}, nil)
	result, err := engine.Execute(context.Background(), csvDefinition(src, dest))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Equal(t, 2, result.RecordsSuccessful)
	assert.Equal(t, 0, result.RecordsFailure)
	assert.Equal(t, 2, result.RecordsLoaded)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.DataHash, 64)
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.Metadata.FixtureFallback)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var written []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &written))
	require.Len(t, written, 2)
	assert.Equal(t, "ALICE", written[0]["name"])
	assert.Equal(t, 10.5, written[0]["amount"])
	assert.Equal(t, "BOB", written[1]["name"])
}

func TestExecute_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,a,1\n2,b,not-a-number\n3,c,3\n")
	def := csvDefinition(src, filepath.Join(dir, "out.json"))

	result, err := NewEngine(Config{}, nil).Execute(context.Background(), def)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.RecordsProcessed)
	assert.Equal(t, 2, result.RecordsSuccessful)
	assert.Equal(t, 1, result.RecordsFailure)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "record 2")
	assert.Contains(t, result.Errors[0], "amount")
}

func TestExecute_RequiredFieldMissing(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,,5\n2,bob,6\n")
	def := csvDefinition(src, filepath.Join(dir, "out.json"))

	result, err := NewEngine(Config{}, nil).Execute(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, 1, result.RecordsFailure)
	assert.Equal(t, 1, result.RecordsSuccessful)
	assert.Contains(t, result.Errors[0], "field 'name'")
	assert.Equal(t, result.RecordsProcessed, result.RecordsSuccessful+result.RecordsFailure)
}

func TestExecute_FixtureFallback(t *testing.T) {
	dir := t.TempDir()
	def := &model.Definition{
		Name: "demo",
		Source: model.Source{
			Type:     model.SourceDelimited,
			Location: filepath.Join(dir, "missing.csv"),
			Mapping: map[string]model.FieldMapping{
				"id":  {SourceField: "ID", DataType: model.TypeNumber, Required: true},
				"amt": {SourceField: "Amt", DataType: model.TypeNumber, Required: true},
			},
		},
		Destination: model.Destination{Type: model.DestinationFile, Location: filepath.Join(dir, "out.json")},
	}

	result, err := NewEngine(Config{}, nil).Execute(context.Background(), def)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Metadata.FixtureFallback)
	assert.Equal(t, len(defaultFixtures), result.RecordsProcessed)
	assert.Equal(t, len(defaultFixtures), result.RecordsSuccessful)
}

func TestExecute_FixtureFallbackDisabled(t *testing.T) {
	dir := t.TempDir()
	def := csvDefinition(filepath.Join(dir, "missing.csv"), filepath.Join(dir, "out.json"))

	result, err := NewEngine(Config{DisableFixtures: true}, nil).Execute(context.Background(), def)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.RecordsProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "extract stage failed")
}

func TestExecute_DataHashIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,a,1\n2,b,2\n")
	def := csvDefinition(src, filepath.Join(dir, "out.json"))
	engine := NewEngine(Config{}, nil)

	first, err := engine.Execute(context.Background(), def)
	require.NoError(t, err)
	second, err := engine.Execute(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, first.DataHash, second.DataHash)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestExecute_EventOrder(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,a,1\n")
	def := csvDefinition(src, filepath.Join(dir, "out.json"))

	var seen []model.EventType
	observer := ObserverFunc(func(e model.Event) {
		assert.Equal(t, "orders", e.PipelineName)
		seen = append(seen, e.Type)
	})

	_, err := NewEngine(Config{}, nil).Execute(context.Background(), def, observer)
	require.NoError(t, err)
	assert.Equal(t, []model.EventType{
		model.EventStarted, model.EventExtracted, model.EventTransformed, model.EventLoaded, model.EventCompleted,
	}, seen)
}

func TestExecute_LoadFailureIsStageFatal(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,a,1\n")
	def := csvDefinition(src, filepath.Join(dir, "out.json"))

	failing := LoaderFunc(func(context.Context, *model.Definition, []model.Record) (model.LoadOutput, error) {
		return model.LoadOutput{}, errors.New("disk full")
	})
	var seen []model.EventType
	engine := NewEngine(Config{}, nil, WithLoader(model.DestinationFile, failing))

	result, err := engine.Execute(context.Background(), def, ObserverFunc(func(e model.Event) { seen = append(seen, e.Type) }))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Zero(t, result.RecordsProcessed)
	assert.Zero(t, result.RecordsSuccessful)
	assert.Zero(t, result.RecordsLoaded)
	assert.Contains(t, result.Errors[0], "load stage failed: disk full")
	assert.Equal(t, model.EventFailed, seen[len(seen)-1])

	last, ok := engine.LastRun()
	require.True(t, ok)
	assert.Equal(t, result.RunID, last.RunID)
}

func TestExecute_RejectsConcurrentRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := ExtractorFunc(func(context.Context, *model.Definition) ([]model.Record, error) {
		close(entered)
		<-release
		return []model.Record{}, nil
	})
	engine := NewEngine(Config{}, nil,
		WithExtractor(model.SourceHTTPAPI, blocking),
		WithLoader(model.DestinationFile, LoaderFunc(func(context.Context, *model.Definition, []model.Record) (model.LoadOutput, error) {
			return model.LoadOutput{}, nil
		})),
	)
	def := &model.Definition{
		Name:        "slow",
		Source:      model.Source{Type: model.SourceHTTPAPI, Location: "http://unused"},
		Destination: model.Destination{Type: model.DestinationFile, Location: "unused.json"},
	}

	done := make(chan *model.RunResult)
	go func() {
		res, _ := engine.Execute(context.Background(), def)
		done <- res
	}()
	<-entered

	assert.True(t, engine.Running())
	_, err := engine.Execute(context.Background(), def)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	res := <-done
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.False(t, engine.Running())
	assert.Len(t, engine.RunHistory(), 1)
}

func TestExecute_HistoryIsBounded(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,a,1\n")
	def := csvDefinition(src, filepath.Join(dir, "out.json"))
	engine := NewEngine(Config{HistoryLimit: 2}, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := engine.Execute(context.Background(), def)
		require.NoError(t, err)
		ids = append(ids, res.RunID)
	}

	history := engine.RunHistory()
	require.Len(t, history, 2)
	assert.Equal(t, ids[1], history[0].RunID)
	assert.Equal(t, ids[2], history[1].RunID)
}

func TestFixtureRecords(t *testing.T) {
	sales := FixtureRecords("Nightly Sales Import")
	require.NotEmpty(t, sales)
	assert.Contains(t, sales[0], "OrderID")

	fallback := FixtureRecords("something else")
	assert.Contains(t, fallback[0], "Amt")

	fallback[0]["Amt"] = "changed"
	assert.Equal(t, "100.00", FixtureRecords("something else")[0]["Amt"])
}

func TestExecute_OutOfRangeSerialDateFailsRecord(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.json", `[{"id":"1","d":3000000},{"id":"2","d":45000}]`)
	def := &model.Definition{
		Name: "dates",
		Source: model.Source{
			Type:     model.SourceDocument,
			Location: src,
			Mapping: map[string]model.FieldMapping{
				"id": {SourceField: "id", DataType: model.TypeString, Required: true},
				"d":  {SourceField: "d", DataType: model.TypeDate},
			},
		},
		Destination: model.Destination{Type: model.DestinationFile, Location: filepath.Join(dir, "out.json")},
	}

	result, err := NewEngine(Config{}, nil).Execute(context.Background(), def)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RecordsSuccessful)
	assert.Equal(t, 1, result.RecordsFailure)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "record 1")
	assert.Len(t, result.DataHash, 64)
}

func TestExecute_UnhashableRecordsAreStageFatal(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "in.csv", "ID,Name,Amt\n1,alice,1\n")
	dest := filepath.Join(dir, "out.json")
	def := csvDefinition(src, dest)
	def.Transformations = []model.Transformation{{
		Field:      "name",
		Operation:  model.OpLookup,
		Parameters: map[string]interface{}{"table": map[string]interface{}{"ALICE": math.Inf(1)}},
	}}

	result, err := NewEngine(Config{}, nil).Execute(context.Background(), def)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Empty(t, result.DataHash)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "transform stage failed: hash records")
	assert.NoFileExists(t, dest)
}
