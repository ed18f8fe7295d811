// Package queue hands analysis jobs to whatever runs them: a background
// goroutine in the API process or a Kafka topic read by worker processes.
package queue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// JobHandler processes one job
type JobHandler func(ctx context.Context, jobID uuid.UUID) error

// Dispatcher schedules a job for processing
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// GoroutineDispatcher runs each job in its own goroutine with a fresh
// context, detached from the request that created it
type GoroutineDispatcher struct {
	handler JobHandler
	logger  *slog.Logger
}

// NewGoroutineDispatcher creates an in-process dispatcher
func NewGoroutineDispatcher(handler JobHandler, logger *slog.Logger) *GoroutineDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoroutineDispatcher{handler: handler, logger: logger}
}

// Dispatch starts the job and returns immediately
func (d *GoroutineDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	go func() {
		if err := d.handler(context.Background(), jobID); err != nil {
			d.logger.Error("background job failed", "job_id", jobID, "error", err)
		}
	}()
	return nil
}
