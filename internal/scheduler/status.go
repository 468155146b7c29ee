package scheduler

import (
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// History returns up to limit entries, newest first, optionally filtered by
// pipeline name. A non-positive limit returns every retained entry.
func (s *Scheduler) History(name string, limit int) []model.JobHistoryEntry {
	items := s.history.Items()
	out := make([]model.JobHistoryEntry, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if name != "" && items[i].PipelineName != name {
			continue
		}
		out = append(out, items[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// LastRun returns the most recent entry for name.
func (s *Scheduler) LastRun(name string) (model.JobHistoryEntry, bool) {
	return s.history.FindLast(func(e model.JobHistoryEntry) bool {
		return e.PipelineName == name
	})
}

// IsRunning reports whether name has a run in flight.
func (s *Scheduler) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[name]
	return ok
}

// ScheduledJobs returns the names holding a timer, sorted.
func (s *Scheduler) ScheduledJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.scheduled))
	for name := range s.scheduled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PipelineStatus describes one pipeline, including its next fire time.
func (s *Scheduler) PipelineStatus(name string) (model.PipelineStatus, error) {
	def, err := s.store.Config(name)
	if err != nil {
		return model.PipelineStatus{}, err
	}
	return s.statusOf(def), nil
}

// Status returns the aggregate view over every stored definition.
func (s *Scheduler) Status() (model.SchedulerStatus, error) {
	defs, err := s.store.AllConfigs()
	if err != nil {
		return model.SchedulerStatus{}, err
	}

	st := model.SchedulerStatus{
		TotalConfigurations: len(defs),
		RunningPipelines:    []string{},
		Pipelines:           make([]model.PipelineStatus, 0, len(defs)),
	}
	for i := range defs {
		st.Pipelines = append(st.Pipelines, s.statusOf(&defs[i]))
	}

	s.mu.Lock()
	st.Started = s.started
	st.ScheduledJobs = len(s.scheduled)
	for name := range s.running {
		st.RunningPipelines = append(st.RunningPipelines, name)
	}
	s.mu.Unlock()
	sort.Strings(st.RunningPipelines)
	return st, nil
}

func (s *Scheduler) statusOf(def *model.Definition) model.PipelineStatus {
	ps := model.PipelineStatus{
		Name:     def.Name,
		Enabled:  def.Enabled,
		Schedule: def.Schedule,
	}

	s.mu.Lock()
	job, scheduled := s.scheduled[def.Name]
	_, ps.Running = s.running[def.Name]
	var next time.Time
	if scheduled {
		next = s.cron.Entry(job.id).Next
	}
	s.mu.Unlock()

	ps.Scheduled = scheduled
	if scheduled && next.IsZero() {
		// The cron loop fills Next once started; compute it directly before that.
		if sched, err := cron.ParseStandard(def.Schedule); err == nil {
			next = sched.Next(s.now())
		}
	}
	if !next.IsZero() {
		ps.NextRun = &next
	}
	if last, ok := s.LastRun(def.Name); ok {
		ps.LastRun = &last
	}
	return ps
}

// Stats aggregates configuration counts and the last 24 hours of history
// relative to now.
func (s *Scheduler) Stats(now time.Time) (model.Stats, error) {
	defs, err := s.store.AllConfigs()
	if err != nil {
		return model.Stats{}, err
	}

	s.mu.Lock()
	running := len(s.running)
	s.mu.Unlock()

	window := model.WindowStats{}
	cutoff := now.Add(-24 * time.Hour)
	for _, e := range s.history.Items() {
		if e.Timestamp.Before(cutoff) || e.Timestamp.After(now) {
			continue
		}
		window.TotalRuns++
		switch e.Status {
		case model.JobCompleted:
			window.Successful++
		case model.JobFailed:
			window.Failed++
		case model.JobError:
			window.Errors++
		}
	}
	if window.TotalRuns > 0 {
		window.SuccessRate = utils.Round(float64(window.Successful)/float64(window.TotalRuns)*100, 2)
	}

	return model.Stats{
		TotalConfigurations: len(defs),
		RunningPipelines:    running,
		Last24Hours:         window,
	}, nil
}
