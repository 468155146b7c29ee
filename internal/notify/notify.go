// Package notify delivers run outcomes to external systems.
package notify

import (
	"context"
	"errors"
	"time"

	"go-data-pipeline/internal/model"
)

// Notification is the payload sent after every job outcome.
type Notification struct {
	Pipeline  string           `json:"pipeline"`
	Status    model.JobStatus  `json:"status"`
	Result    *model.RunResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// FromEntry builds a notification from a job history entry.
func FromEntry(e model.JobHistoryEntry) Notification {
	return Notification{
		Pipeline:  e.PipelineName,
		Status:    e.Status,
		Result:    e.Result,
		Error:     e.Error,
		Timestamp: e.Timestamp,
	}
}

// Notifier delivers a notification. Failures are the caller's to log; they
// never affect the outcome being reported.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop discards notifications.
var Nop Notifier = NotifierFunc(func(context.Context, Notification) error { return nil })

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
