package model

import "time"

// JobStatus is the outcome recorded in job history.
type JobStatus string

const (
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobError     JobStatus = "error"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// JobHistoryEntry is one scheduler-recorded run.
type JobHistoryEntry struct {
	PipelineName string     `json:"pipelineName"`
	Status       JobStatus  `json:"status"`
	Trigger      Trigger    `json:"trigger"`
	Timestamp    time.Time  `json:"timestamp"`
	Result       *RunResult `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// EventType names an engine lifecycle phase.
type EventType string

const (
	EventStarted     EventType = "started"
	EventExtracted   EventType = "extracted"
	EventTransformed EventType = "transformed"
	EventLoaded      EventType = "loaded"
	EventCompleted   EventType = "completed"
	EventFailed      EventType = "failed"
	// EventError is raised by the scheduler when a run produced no result.
	EventError EventType = "error"
)

// Event is a lifecycle notification. Payload carries recordCount for the
// stage events and result for the terminal ones.
type Event struct {
	PipelineName string                 `json:"pipelineName"`
	Type         EventType              `json:"eventType"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// WindowStats aggregates runs within a time window.
type WindowStats struct {
	TotalRuns   int     `json:"totalRuns"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	Errors      int     `json:"errors"`
	SuccessRate float64 `json:"successRate"`
}

// Stats is the aggregate statistics view of the scheduler.
type Stats struct {
	TotalConfigurations int         `json:"totalConfigurations"`
	RunningPipelines    int         `json:"runningPipelines"`
	Last24Hours         WindowStats `json:"last24Hours"`
}

// PipelineStatus is the control-surface view of one pipeline.
type PipelineStatus struct {
	Name      string           `json:"name"`
	Enabled   bool             `json:"enabled"`
	Schedule  string           `json:"schedule,omitempty"`
	Scheduled bool             `json:"scheduled"`
	Running   bool             `json:"running"`
	NextRun   *time.Time       `json:"nextRun,omitempty"`
	LastRun   *JobHistoryEntry `json:"lastRun,omitempty"`
}

// SchedulerStatus is the aggregate control-surface view.
type SchedulerStatus struct {
	Started             bool             `json:"started"`
	TotalConfigurations int              `json:"totalConfigurations"`
	ScheduledJobs       int              `json:"scheduledJobs"`
	RunningPipelines    []string         `json:"runningPipelines"`
	Pipelines           []PipelineStatus `json:"pipelines"`
}
