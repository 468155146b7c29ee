package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-data-pipeline/internal/model"
)

func TestHistoryStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	defer h.Close()

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.Record(ctx, model.JobHistoryEntry{
		PipelineName: "a", Status: model.JobCompleted, Trigger: model.TriggerScheduled, Timestamp: base,
		Result: &model.RunResult{RunID: "run-1", PipelineName: "a", Success: true, RecordsProcessed: 3},
	}))
	require.NoError(t, h.Record(ctx, model.JobHistoryEntry{
		PipelineName: "b", Status: model.JobError, Trigger: model.TriggerManual, Timestamp: base.Add(time.Minute), Error: "boom",
	}))
	require.NoError(t, h.Record(ctx, model.JobHistoryEntry{
		PipelineName: "a", Status: model.JobFailed, Trigger: model.TriggerManual, Timestamp: base.Add(2 * time.Minute),
		Result: &model.RunResult{RunID: "run-2", PipelineName: "a"},
	}))

	all, err := h.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.JobFailed, all[0].Status)
	assert.Equal(t, "boom", all[1].Error)
	assert.Nil(t, all[1].Result)
	assert.Equal(t, "run-1", all[2].Result.RunID)
	assert.Equal(t, 3, all[2].Result.RecordsProcessed)
	assert.True(t, base.Equal(all[2].Timestamp))

	onlyA, err := h.List(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, "run-2", onlyA[0].Result.RunID)
	assert.Equal(t, model.TriggerManual, onlyA[0].Trigger)

	removed, err := h.Prune(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
}

func TestOpenHistory_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := OpenHistory(path, nil)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = OpenHistory(path, nil)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}
