package model

import "time"

// Record is a schema-agnostic map for any data source.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FailedRecord is a record rejected during transformation.
type FailedRecord struct {
	Index  int    `json:"index"`
	Record Record `json:"record"`
	Error  string `json:"error"`
}

// TransformOutput is the result of the transform stage.
type TransformOutput struct {
	Successful []Record       `json:"successful"`
	Failed     []FailedRecord `json:"failed"`
	Errors     []string       `json:"errors"`
}

// LoadOutput is the result of the load stage.
type LoadOutput struct {
	RecordsLoaded int      `json:"recordsLoaded"`
	RecordsFailed int      `json:"recordsFailed"`
	Errors        []string `json:"errors,omitempty"`
}

// RunMetadata describes where a run read from and wrote to.
type RunMetadata struct {
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	Timestamp       time.Time `json:"timestamp"`
	FixtureFallback bool      `json:"fixtureFallback,omitempty"`
}

// RunResult is the immutable outcome of one execution.
type RunResult struct {
	RunID             string      `json:"runId"`
	PipelineName      string      `json:"pipelineName"`
	Success           bool        `json:"success"`
	RecordsProcessed  int         `json:"recordsProcessed"`
	RecordsSuccessful int         `json:"recordsSuccessful"`
	RecordsFailure    int         `json:"recordsFailure"`
	RecordsLoaded     int         `json:"recordsLoaded"`
	Errors            []string    `json:"errors"`
	ExecutionTimeMs   int64       `json:"executionTimeMs"`
	DataHash          string      `json:"dataHash"`
	Metadata          RunMetadata `json:"metadata"`
}
