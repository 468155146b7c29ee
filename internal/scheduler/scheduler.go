// Package scheduler drives pipeline runs from cron timers and explicit
// requests, allowing at most one in-flight run per pipeline name.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
	"go-data-pipeline/internal/notify"
	"go-data-pipeline/internal/pipeline"
	"go-data-pipeline/internal/store"
	"go-data-pipeline/pkg/utils"
)

var (
	// ErrPipelineRunning is returned when a trigger arrives for a pipeline that is mid-run.
	ErrPipelineRunning = errors.New("pipeline is already running")
	// ErrDuplicateJob is returned when creating a pipeline whose name is taken.
	ErrDuplicateJob = errors.New("pipeline already exists")
)

// Executor runs one pipeline definition. *pipeline.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, def *model.Definition, observers ...pipeline.Observer) (*model.RunResult, error)
}

// EngineFactory builds the executor used for a pipeline name. It is called
// once per name; the executor is reused for every later run.
type EngineFactory func(name string) Executor

// HistoryRecorder persists job history entries.
type HistoryRecorder interface {
	Record(ctx context.Context, e model.JobHistoryEntry) error
}

// reloader is implemented by stores that can re-read their backing file.
type reloader interface {
	Reload() error
}

// historyLister is implemented by recorders that can seed history on start.
type historyLister interface {
	List(ctx context.Context, name string, limit int) ([]model.JobHistoryEntry, error)
}

// Config tunes a Scheduler.
type Config struct {
	HistoryLimit  int             `mapstructure:"history_limit"`
	NotifyTimeout time.Duration   `mapstructure:"notify_timeout"`
	Engine        pipeline.Config `mapstructure:"engine"`
}

func (c *Config) applyDefaults() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 30 * time.Second
	}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithEngineFactory replaces the default pipeline.Engine construction.
func WithEngineFactory(f EngineFactory) Option {
	return func(s *Scheduler) { s.newEngine = f }
}

// WithNotifier sets the sink notified after every recorded run.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithHistoryRecorder persists job history alongside the in-memory ring.
func WithHistoryRecorder(r HistoryRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler owns the timer registry and the running set. Both are guarded by mu.
type Scheduler struct {
	cfg      Config
	store    store.ConfigStore
	log      *logger.Logger
	notifier notify.Notifier
	recorder HistoryRecorder
	now      func() time.Time

	newEngine EngineFactory
	history   *utils.Ring[model.JobHistoryEntry]

	mu        sync.Mutex
	ctx       context.Context
	cron      *cron.Cron
	started   bool
	scheduled map[string]*timerJob
	running   map[string]struct{}
	engines   map[string]Executor

	subMu       sync.RWMutex
	subscribers map[int]pipeline.Observer
	nextSub     int
}

// New creates a stopped scheduler over st.
func New(cfg Config, st store.ConfigStore, log *logger.Logger, opts ...Option) *Scheduler {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}

	s := &Scheduler{
		cfg:         cfg,
		store:       st,
		log:         log.WithComponent("scheduler"),
		notifier:    notify.Nop,
		now:         time.Now,
		history:     utils.NewRing[model.JobHistoryEntry](cfg.HistoryLimit),
		ctx:         context.Background(),
		cron:        cron.New(),
		scheduled:   make(map[string]*timerJob),
		running:     make(map[string]struct{}),
		engines:     make(map[string]Executor),
		subscribers: make(map[int]pipeline.Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newEngine == nil {
		engineLog := log
		s.newEngine = func(string) Executor { return pipeline.NewEngine(cfg.Engine, engineLog) }
	}
	return s
}

// timerJob is the cron callback for one registration. id is written and read
// under the scheduler mutex.
type timerJob struct {
	s    *Scheduler
	name string
	id   cron.EntryID
}

func (j *timerJob) Run() { j.s.fire(j) }

// ------------------- Lifecycle -------------------

// Start registers one timer per enabled, scheduled definition and starts the
// cron loop. Definitions with bad schedules are logged and skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	defs, err := s.store.EnabledConfigs()
	if err != nil {
		return fmt.Errorf("load enabled definitions: %w", err)
	}
	s.seedHistory(ctx)

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.ctx = ctx
	s.cron = cron.New()
	s.scheduled = make(map[string]*timerJob)
	for i := range defs {
		if !defs[i].IsScheduled() {
			continue
		}
		if err := s.registerLocked(&defs[i]); err != nil {
			s.log.Error("Failed to schedule pipeline", logger.ErrorFields(err, logger.FieldPipeline, defs[i].Name))
		}
	}
	s.cron.Start()
	s.started = true
	count := len(s.scheduled)
	s.mu.Unlock()

	s.log.Info("Scheduler started", logger.Fields("scheduled", count))
	return nil
}

// Stop cancels every timer. In-flight runs are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for name, job := range s.scheduled {
		s.cron.Remove(job.id)
		delete(s.scheduled, name)
	}
	s.cron.Stop()
	s.started = false
	s.mu.Unlock()

	s.log.Info("Scheduler stopped")
}

// Restart rebuilds the timer set from the store.
func (s *Scheduler) Restart(ctx context.Context) error {
	s.Stop()
	if r, ok := s.store.(reloader); ok {
		if err := r.Reload(); err != nil {
			return fmt.Errorf("reload definitions: %w", err)
		}
	}
	return s.Start(ctx)
}

func (s *Scheduler) seedHistory(ctx context.Context) {
	lister, ok := s.recorder.(historyLister)
	if !ok || s.history.Len() > 0 {
		return
	}
	entries, err := lister.List(ctx, "", s.history.Cap())
	if err != nil {
		s.log.Warn("Failed to load persisted history", logger.ErrorFields(err))
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		s.history.Push(entries[i])
	}
}

// ------------------- Registry -------------------

// registerLocked adds a timer for def. Callers hold mu.
func (s *Scheduler) registerLocked(def *model.Definition) error {
	if err := model.ValidateCronExpression(def.Schedule); err != nil {
		return err
	}
	if _, exists := s.scheduled[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, def.Name)
	}
	job := &timerJob{s: s, name: def.Name}
	id, err := s.cron.AddJob(def.Schedule, job)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
	}
	job.id = id
	s.scheduled[def.Name] = job
	return nil
}

// unregisterLocked removes the timer for name, if any. Callers hold mu.
func (s *Scheduler) unregisterLocked(name string) bool {
	job, ok := s.scheduled[name]
	if !ok {
		return false
	}
	s.cron.Remove(job.id)
	delete(s.scheduled, name)
	return true
}

// ScheduleJob validates and saves def and, when it is enabled with a
// schedule, registers its timer. Any existing definition with the same name,
// scheduled or not, is rejected with ErrDuplicateJob.
func (s *Scheduler) ScheduleJob(def *model.Definition) (*model.Definition, error) {
	if def.Schedule != "" {
		if err := model.ValidateCronExpression(def.Schedule); err != nil {
			return nil, err
		}
	}
	if err := s.store.ValidateConfig(def).Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Config(def.Name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, def.Name)
	} else if !errors.Is(err, model.ErrPipelineNotFound) {
		return nil, err
	}
	saved, err := s.store.SaveConfig(def)
	if err != nil {
		return nil, err
	}
	if saved.IsScheduled() {
		if err := s.registerLocked(saved); err != nil {
			return nil, err
		}
	}
	s.log.Info("Pipeline saved", logger.Fields(logger.FieldPipeline, saved.Name, "schedule", saved.Schedule, "enabled", saved.Enabled))
	return saved, nil
}

// RemoveScheduledJob cancels the timer and deletes the definition.
func (s *Scheduler) RemoveScheduledJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hadTimer := s.unregisterLocked(name)
	deleted, err := s.store.DeleteConfig(name)
	if err != nil {
		return err
	}
	if !deleted && !hadTimer {
		return fmt.Errorf("%w: %s", model.ErrPipelineNotFound, name)
	}
	delete(s.engines, name)
	s.log.Info("Pipeline removed", logger.Fields(logger.FieldPipeline, name))
	return nil
}

// UpdateJobSchedule changes the cron expression and re-derives the timer.
// An empty expression leaves the pipeline manual-only.
func (s *Scheduler) UpdateJobSchedule(name, expr string) error {
	if expr != "" {
		if err := model.ValidateCronExpression(expr); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.UpdateSchedule(name, expr); err != nil {
		return err
	}
	return s.resyncLocked(name)
}

// ToggleJob enables or disables a pipeline. Disabling cancels its timer;
// enabling re-registers it when a schedule is set.
func (s *Scheduler) ToggleJob(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if enabled {
		err = s.store.EnableConfig(name)
	} else {
		err = s.store.DisableConfig(name)
	}
	if err != nil {
		return err
	}
	return s.resyncLocked(name)
}

// resyncLocked makes the timer registry match the stored definition.
func (s *Scheduler) resyncLocked(name string) error {
	def, err := s.store.Config(name)
	if err != nil {
		return err
	}
	s.unregisterLocked(name)
	if def.IsScheduled() {
		if err := s.registerLocked(def); err != nil {
			return err
		}
	}
	s.log.Info("Pipeline schedule updated", logger.Fields(
		logger.FieldPipeline, name, "schedule", def.Schedule, "enabled", def.Enabled, "scheduled", def.IsScheduled()))
	return nil
}

// ------------------- Execution -------------------

// RunPipelineNow runs name immediately on the caller's goroutine. A busy
// pipeline yields ErrPipelineRunning and no engine invocation.
func (s *Scheduler) RunPipelineNow(ctx context.Context, name string) (*model.RunResult, error) {
	def, err := s.store.Config(name)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, def, model.TriggerManual)
}

// fire is the timer callback. The registration and definition are re-checked
// because either may have changed since the timer was armed.
func (s *Scheduler) fire(job *timerJob) {
	s.mu.Lock()
	current, ok := s.scheduled[job.name]
	registered := ok && current == job
	ctx := s.ctx
	s.mu.Unlock()
	if !registered {
		s.log.Debug("Ignoring tick for unregistered timer", logger.Fields(logger.FieldPipeline, job.name))
		return
	}

	def, err := s.store.Config(job.name)
	if err != nil {
		s.log.Warn("Scheduled pipeline no longer exists, removing timer", logger.ErrorFields(err, logger.FieldPipeline, job.name))
		s.mu.Lock()
		if s.scheduled[job.name] == job {
			s.unregisterLocked(job.name)
		}
		s.mu.Unlock()
		return
	}
	if !def.IsScheduled() {
		return
	}

	if _, err := s.execute(ctx, def, model.TriggerScheduled); err != nil && !errors.Is(err, ErrPipelineRunning) {
		s.log.Error("Scheduled run errored", logger.ErrorFields(err, logger.FieldPipeline, job.name))
	}
}

// execute runs def under the exclusivity lock. Every run that acquires the
// lock is recorded, including runs that panic.
func (s *Scheduler) execute(ctx context.Context, def *model.Definition, trigger model.Trigger) (result *model.RunResult, err error) {
	s.mu.Lock()
	if _, busy := s.running[def.Name]; busy {
		s.mu.Unlock()
		s.log.Warn("Pipeline already running, skipping trigger", logger.Fields(logger.FieldPipeline, def.Name, "trigger", trigger))
		return nil, fmt.Errorf("%w: %s", ErrPipelineRunning, def.Name)
	}
	s.running[def.Name] = struct{}{}
	engine, ok := s.engines[def.Name]
	if !ok {
		engine = s.newEngine(def.Name)
		s.engines[def.Name] = engine
	}
	s.mu.Unlock()

	entry := model.JobHistoryEntry{PipelineName: def.Name, Trigger: trigger}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pipeline %s panicked: %v", def.Name, r)
			entry.Status = model.JobError
			entry.Error = err.Error()
			entry.Result = nil
		}

		s.mu.Lock()
		delete(s.running, def.Name)
		s.mu.Unlock()

		entry.Timestamp = s.now()
		s.record(entry)
	}()

	result, err = engine.Execute(ctx, def, pipeline.ObserverFunc(s.publish))
	switch {
	case err != nil:
		entry.Status = model.JobError
		entry.Error = err.Error()
	case result.Success:
		entry.Status = model.JobCompleted
		entry.Result = result
	default:
		entry.Status = model.JobFailed
		entry.Result = result
	}
	return result, err
}

// record stores a finished run and fans it out. It runs without mu held.
func (s *Scheduler) record(entry model.JobHistoryEntry) {
	s.history.Push(entry)

	fields := logger.Fields(logger.FieldPipeline, entry.PipelineName, "status", entry.Status, "trigger", entry.Trigger)
	switch entry.Status {
	case model.JobCompleted:
		s.log.Info("Run recorded", fields)
	case model.JobFailed:
		s.log.Warn("Run recorded", fields)
	default:
		fields[logger.FieldError] = entry.Error
		s.log.Error("Run recorded", fields)
		s.publish(model.Event{
			PipelineName: entry.PipelineName,
			Type:         model.EventError,
			Payload:      map[string]interface{}{"error": entry.Error},
			Timestamp:    entry.Timestamp,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
	defer cancel()
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, entry); err != nil {
			s.log.Warn("Failed to persist history entry", logger.ErrorFields(err, logger.FieldPipeline, entry.PipelineName))
		}
	}
	if err := s.notifier.Notify(ctx, notify.FromEntry(entry)); err != nil {
		s.log.Warn("Notification failed", logger.ErrorFields(err, logger.FieldPipeline, entry.PipelineName))
	}
}

// ------------------- Events -------------------

// Subscribe registers an observer for every engine event and scheduler error
// event. The returned func removes it.
func (s *Scheduler) Subscribe(o pipeline.Observer) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = o
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Scheduler) publish(e model.Event) {
	s.subMu.RLock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]pipeline.Observer, len(ids))
	for i, id := range ids {
		observers[i] = s.subscribers[id]
	}
	s.subMu.RUnlock()

	for _, o := range observers {
		o.OnEvent(e)
	}
}
