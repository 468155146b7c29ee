package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-data-pipeline/internal/model"
	"go-data-pipeline/internal/notify"
	"go-data-pipeline/internal/pipeline"
	"go-data-pipeline/internal/store"
)

type fakeExecutor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, def *model.Definition) (*model.RunResult, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, def *model.Definition, observers ...pipeline.Observer) (*model.RunResult, error) {
	f.calls.Add(1)
	for _, o := range observers {
		o.OnEvent(model.Event{PipelineName: def.Name, Type: model.EventStarted, Timestamp: time.Now()})
	}
	if f.fn != nil {
		return f.fn(ctx, def)
	}
	return &model.RunResult{PipelineName: def.Name, Success: true}, nil
}

func definition(name, schedule string) *model.Definition {
	return &model.Definition{
		Name: name,
		Source: model.Source{
			Type:     model.SourceDelimited,
			Location: "in/" + name + ".csv",
			Mapping:  map[string]model.FieldMapping{"id": {SourceField: "ID", DataType: model.TypeString, Required: true}},
		},
		Destination: model.Destination{Type: model.DestinationFile, Location: "out/" + name + ".json"},
		Schedule:    schedule,
		Enabled:     true,
	}
}

func newScheduler(t *testing.T, exec *fakeExecutor, opts ...Option) (*Scheduler, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	opts = append([]Option{WithEngineFactory(func(string) Executor { return exec })}, opts...)
	return New(Config{}, st, nil, opts...), st
}

func TestRunPipelineNow_SkipsWhenBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	exec := &fakeExecutor{fn: func(context.Context, *model.Definition) (*model.RunResult, error) {
		close(entered)
		<-release
		return &model.RunResult{Success: true}, nil
	}}
	s, _ := newScheduler(t, exec)
	_, err := s.ScheduleJob(definition("busy", ""))
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		_, err := s.RunPipelineNow(context.Background(), "busy")
		done <- err
	}()
	<-entered

	assert.True(t, s.IsRunning("busy"))
	_, err = s.RunPipelineNow(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrPipelineRunning)

	close(release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, exec.calls.Load())
	assert.False(t, s.IsRunning("busy"))

	history := s.History("busy", 0)
	require.Len(t, history, 1)
	assert.Equal(t, model.JobCompleted, history[0].Status)
	assert.Equal(t, model.TriggerManual, history[0].Trigger)
}

func TestRunPipelineNow_UnknownPipeline(t *testing.T) {
	s, _ := newScheduler(t, &fakeExecutor{})
	_, err := s.RunPipelineNow(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrPipelineNotFound)
	assert.Empty(t, s.History("", 0))
}

func TestScheduleJob_CronValidation(t *testing.T) {
	s, st := newScheduler(t, &fakeExecutor{})

	for _, expr := range []string{"* * * *", "a b c d e", "* * * * * *"} {
		_, err := s.ScheduleJob(definition("bad", expr))
		assert.ErrorIs(t, err, model.ErrInvalidSchedule, expr)
	}
	assert.Empty(t, s.ScheduledJobs())
	_, err := st.Config("bad")
	assert.ErrorIs(t, err, model.ErrPipelineNotFound)

	_, err = s.ScheduleJob(definition("good", "*/10 * * * *"))
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, s.ScheduledJobs())

	_, err = s.ScheduleJob(definition("good", "0 * * * *"))
	assert.ErrorIs(t, err, ErrDuplicateJob)
	assert.Equal(t, []string{"good"}, s.ScheduledJobs())
}

func TestScheduleJob_DisabledOrManualIsNotRegistered(t *testing.T) {
	s, _ := newScheduler(t, &fakeExecutor{})

	disabled := definition("disabled", "0 * * * *")
	disabled.Enabled = false
	_, err := s.ScheduleJob(disabled)
	require.NoError(t, err)

	_, err = s.ScheduleJob(definition("manual", ""))
	require.NoError(t, err)

	assert.Empty(t, s.ScheduledJobs())
}

func TestToggleJob_OffCancelsTimer(t *testing.T) {
	exec := &fakeExecutor{}
	s, _ := newScheduler(t, exec)
	_, err := s.ScheduleJob(definition("nightly", "0 2 * * *"))
	require.NoError(t, err)

	s.mu.Lock()
	armed := s.scheduled["nightly"]
	s.mu.Unlock()
	require.NotNil(t, armed)

	require.NoError(t, s.ToggleJob("nightly", false))
	assert.Empty(t, s.ScheduledJobs())

	s.fire(armed)
	assert.Zero(t, exec.calls.Load())

	require.NoError(t, s.ToggleJob("nightly", true))
	assert.Equal(t, []string{"nightly"}, s.ScheduledJobs())
}

func TestFire_RunsRegisteredPipeline(t *testing.T) {
	exec := &fakeExecutor{}
	s, _ := newScheduler(t, exec)
	_, err := s.ScheduleJob(definition("hourly", "0 * * * *"))
	require.NoError(t, err)

	s.mu.Lock()
	armed := s.scheduled["hourly"]
	s.mu.Unlock()

	s.fire(armed)
	assert.EqualValues(t, 1, exec.calls.Load())
	last, ok := s.LastRun("hourly")
	require.True(t, ok)
	assert.Equal(t, model.TriggerScheduled, last.Trigger)
}

func TestFire_RemovesTimerForDeletedDefinition(t *testing.T) {
	exec := &fakeExecutor{}
	s, st := newScheduler(t, exec)
	_, err := s.ScheduleJob(definition("gone", "0 * * * *"))
	require.NoError(t, err)

	s.mu.Lock()
	armed := s.scheduled["gone"]
	s.mu.Unlock()

	_, err = st.DeleteConfig("gone")
	require.NoError(t, err)

	s.fire(armed)
	assert.Zero(t, exec.calls.Load())
	assert.Empty(t, s.ScheduledJobs())
}

func TestUpdateJobSchedule(t *testing.T) {
	s, st := newScheduler(t, &fakeExecutor{})
	_, err := s.ScheduleJob(definition("p", ""))
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateJobSchedule("p", "61 * * * *"), model.ErrInvalidSchedule)
	assert.Empty(t, s.ScheduledJobs())

	require.NoError(t, s.UpdateJobSchedule("p", "15 3 * * 1"))
	assert.Equal(t, []string{"p"}, s.ScheduledJobs())
	def, _ := st.Config("p")
	assert.Equal(t, "15 3 * * 1", def.Schedule)

	require.NoError(t, s.UpdateJobSchedule("p", ""))
	assert.Empty(t, s.ScheduledJobs())

	assert.ErrorIs(t, s.UpdateJobSchedule("ghost", "0 * * * *"), model.ErrPipelineNotFound)
}

func TestRemoveScheduledJob(t *testing.T) {
	s, st := newScheduler(t, &fakeExecutor{})
	_, err := s.ScheduleJob(definition("p", "0 * * * *"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveScheduledJob("p"))
	assert.Empty(t, s.ScheduledJobs())
	_, err = st.Config("p")
	assert.ErrorIs(t, err, model.ErrPipelineNotFound)

	assert.ErrorIs(t, s.RemoveScheduledJob("p"), model.ErrPipelineNotFound)
}

func TestExecute_RecoversPanic(t *testing.T) {
	exec := &fakeExecutor{fn: func(context.Context, *model.Definition) (*model.RunResult, error) {
		panic("boom")
	}}
	s, _ := newScheduler(t, exec)
	_, err := s.ScheduleJob(definition("fragile", ""))
	require.NoError(t, err)

	var events []model.EventType
	var mu sync.Mutex
	unsubscribe := s.Subscribe(pipeline.ObserverFunc(func(e model.Event) {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
	}))
	defer unsubscribe()

	_, err = s.RunPipelineNow(context.Background(), "fragile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: boom")
	assert.False(t, s.IsRunning("fragile"))

	last, ok := s.LastRun("fragile")
	require.True(t, ok)
	assert.Equal(t, model.JobError, last.Status)
	assert.Equal(t, []model.EventType{model.EventStarted, model.EventError}, events)

	exec.fn = nil
	_, err = s.RunPipelineNow(context.Background(), "fragile")
	assert.NoError(t, err)
}

func TestExecute_FailedResultIsRecordedAndNotified(t *testing.T) {
	exec := &fakeExecutor{fn: func(_ context.Context, def *model.Definition) (*model.RunResult, error) {
		return &model.RunResult{PipelineName: def.Name, Success: false, Errors: []string{"extract stage failed"}}, nil
	}}
	var notified []notify.Notification
	sink := notify.NotifierFunc(func(_ context.Context, n notify.Notification) error {
		notified = append(notified, n)
		return errors.New("sink down")
	})
	s, _ := newScheduler(t, exec, WithNotifier(sink))
	_, err := s.ScheduleJob(definition("p", ""))
	require.NoError(t, err)

	res, err := s.RunPipelineNow(context.Background(), "p")
	require.NoError(t, err)
	assert.False(t, res.Success)

	require.Len(t, notified, 1)
	assert.Equal(t, model.JobFailed, notified[0].Status)
	assert.Equal(t, "p", notified[0].Pipeline)
	assert.Same(t, res, notified[0].Result)
}

func TestHistory_IsBoundedAndNewestFirst(t *testing.T) {
	exec := &fakeExecutor{}
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := New(Config{HistoryLimit: 3}, st, nil, WithEngineFactory(func(string) Executor { return exec }))
	_, err = s.ScheduleJob(definition("a", ""))
	require.NoError(t, err)
	_, err = s.ScheduleJob(definition("b", ""))
	require.NoError(t, err)

	for _, name := range []string{"a", "a", "b", "a", "b"} {
		_, err := s.RunPipelineNow(context.Background(), name)
		require.NoError(t, err)
	}

	all := s.History("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "b"}, []string{all[0].PipelineName, all[1].PipelineName, all[2].PipelineName})

	assert.Len(t, s.History("b", 1), 1)
	assert.Len(t, s.History("a", 10), 1)
}

func TestStats(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	outcomes := []func() (*model.RunResult, error){
		func() (*model.RunResult, error) { return &model.RunResult{Success: true}, nil },
		func() (*model.RunResult, error) { return &model.RunResult{Success: false}, nil },
		func() (*model.RunResult, error) { return nil, errors.New("engine exploded") },
	}
	var n int
	exec := &fakeExecutor{fn: func(context.Context, *model.Definition) (*model.RunResult, error) {
		out := outcomes[n%len(outcomes)]
		n++
		return out()
	}}
	clock := now.Add(-30 * time.Hour)
	s, _ := newScheduler(t, exec, WithClock(func() time.Time { return clock }))
	_, err := s.ScheduleJob(definition("p", ""))
	require.NoError(t, err)
	_, err = s.ScheduleJob(definition("q", "0 * * * *"))
	require.NoError(t, err)

	_, _ = s.RunPipelineNow(context.Background(), "p")
	clock = now.Add(-time.Hour)
	_, _ = s.RunPipelineNow(context.Background(), "p")
	_, _ = s.RunPipelineNow(context.Background(), "p")
	_, _ = s.RunPipelineNow(context.Background(), "p")

	stats, err := s.Stats(now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalConfigurations)
	assert.Equal(t, 0, stats.RunningPipelines)
	assert.Equal(t, model.WindowStats{TotalRuns: 3, Successful: 1, Failed: 1, Errors: 1, SuccessRate: 33.33}, stats.Last24Hours)
}

func TestStartAndStatus(t *testing.T) {
	exec := &fakeExecutor{}
	s, st := newScheduler(t, exec)
	_, err := st.SaveConfig(definition("scheduled", "30 * * * *"))
	require.NoError(t, err)
	manual := definition("manual", "")
	_, err = st.SaveConfig(manual)
	require.NoError(t, err)
	off := definition("off", "0 * * * *")
	off.Enabled = false
	_, err = st.SaveConfig(off)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, []string{"scheduled"}, s.ScheduledJobs())

	status, err := s.Status()
	require.NoError(t, err)
	assert.True(t, status.Started)
	assert.Equal(t, 3, status.TotalConfigurations)
	assert.Equal(t, 1, status.ScheduledJobs)
	assert.Empty(t, status.RunningPipelines)

	ps, err := s.PipelineStatus("scheduled")
	require.NoError(t, err)
	assert.True(t, ps.Scheduled)
	require.NotNil(t, ps.NextRun)
	assert.Equal(t, 30, ps.NextRun.Minute())

	ps, err = s.PipelineStatus("off")
	require.NoError(t, err)
	assert.False(t, ps.Scheduled)
	assert.Nil(t, ps.NextRun)

	_, err = s.PipelineStatus("ghost")
	assert.ErrorIs(t, err, model.ErrPipelineNotFound)
}

func TestRestart_RederivesTimers(t *testing.T) {
	s, st := newScheduler(t, &fakeExecutor{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	_, err := st.SaveConfig(definition("late", "0 0 * * *"))
	require.NoError(t, err)
	assert.Empty(t, s.ScheduledJobs())

	require.NoError(t, s.Restart(context.Background()))
	assert.Equal(t, []string{"late"}, s.ScheduledJobs())

	s.Stop()
	assert.Empty(t, s.ScheduledJobs())
}

func TestRestart_PicksUpDefinitionsWrittenByAnotherProcess(t *testing.T) {
	s, st := newScheduler(t, &fakeExecutor{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	other, err := store.NewFileStore(filepath.Dir(st.Path()))
	require.NoError(t, err)
	_, err = other.SaveConfig(definition("imported", "0 3 * * *"))
	require.NoError(t, err)

	require.NoError(t, s.Restart(context.Background()))
	assert.Equal(t, []string{"imported"}, s.ScheduledJobs())

	_, err = s.ScheduleJob(definition("local", "0 4 * * *"))
	require.NoError(t, err)

	reopened, err := store.NewFileStore(filepath.Dir(st.Path()))
	require.NoError(t, err)
	all, err := reopened.AllConfigs()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "imported", all[0].Name)
	assert.Equal(t, "local", all[1].Name)
}

func TestScheduleJob_RejectsExistingUnscheduledName(t *testing.T) {
	s, st := newScheduler(t, &fakeExecutor{})

	disabled := definition("dormant", "0 * * * *")
	disabled.Enabled = false
	_, err := s.ScheduleJob(disabled)
	require.NoError(t, err)
	_, err = s.ScheduleJob(definition("manual", ""))
	require.NoError(t, err)

	replacement := definition("dormant", "*/5 * * * *")
	replacement.Description = "replacement"
	_, err = s.ScheduleJob(replacement)
	assert.ErrorIs(t, err, ErrDuplicateJob)
	_, err = s.ScheduleJob(definition("manual", "0 1 * * *"))
	assert.ErrorIs(t, err, ErrDuplicateJob)

	kept, err := st.Config("dormant")
	require.NoError(t, err)
	assert.False(t, kept.Enabled)
	assert.Empty(t, kept.Description)
	assert.Empty(t, s.ScheduledJobs())
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []model.JobHistoryEntry
	seed     []model.JobHistoryEntry
}

func (f *fakeRecorder) Record(_ context.Context, e model.JobHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, e)
	return nil
}

func (f *fakeRecorder) List(_ context.Context, _ string, _ int) ([]model.JobHistoryEntry, error) {
	return f.seed, nil
}

func TestHistoryRecorder_SeedsAndPersists(t *testing.T) {
	rec := &fakeRecorder{seed: []model.JobHistoryEntry{
		{PipelineName: "p", Status: model.JobFailed, Timestamp: time.Now()},
		{PipelineName: "p", Status: model.JobCompleted, Timestamp: time.Now().Add(-time.Hour)},
	}}
	s, _ := newScheduler(t, &fakeExecutor{}, WithHistoryRecorder(rec))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	last, ok := s.LastRun("p")
	require.True(t, ok)
	assert.Equal(t, model.JobFailed, last.Status)

	_, err := s.ScheduleJob(definition("p", ""))
	require.NoError(t, err)
	_, err = s.RunPipelineNow(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, rec.recorded, 1)
	assert.Len(t, s.History("p", 0), 3)
}
