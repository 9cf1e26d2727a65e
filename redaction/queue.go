// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package redaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/matrix-warden/warden/lib/ref"
)

// Job names one banned user whose messages in one room should be
// redacted.
type Job struct {
	RoomID ref.RoomID
	UserID ref.UserID
}

// Redactor performs the actual redaction work for one job and reports
// how many events it redacted.
type Redactor interface {
	RedactUserMessages(ctx context.Context, roomID ref.RoomID, userID ref.UserID) (int, error)
}

// Queue is a bounded, drop-on-overflow job queue with a single
// worker. Producers call Enqueue; Run drains the queue until its
// context is canceled or the queue is closed.
type Queue struct {
	jobs     chan Job
	redactor Redactor
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewQueue builds a queue holding at most capacity pending jobs.
// logger may be nil for slog.Default().
func NewQueue(redactor Redactor, capacity int, logger *slog.Logger) (*Queue, error) {
	if redactor == nil {
		return nil, fmt.Errorf("redaction: redactor is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("redaction: queue capacity must be positive, got %d", capacity)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:     make(chan Job, capacity),
		redactor: redactor,
		logger:   logger,
	}, nil
}

// Enqueue offers a job without blocking. Returns false if the queue
// is full and the job was dropped. Must not be called after Close.
func (q *Queue) Enqueue(roomID ref.RoomID, userID ref.UserID) bool {
	select {
	case q.jobs <- Job{RoomID: roomID, UserID: userID}:
		return true
	default:
		return false
	}
}

// Pending returns the number of jobs waiting in the queue.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Close stops the queue accepting new jobs; Run finishes the jobs
// already queued and then returns. Close must not be called while
// producers may still Enqueue.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.jobs) })
}

// Run processes jobs until ctx is canceled or the queue is closed and
// drained. Jobs still queued at cancellation are abandoned; after
// Close, Run returns nil once the queue is empty.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-q.jobs:
			if !ok {
				return nil
			}
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	count, err := q.redactor.RedactUserMessages(ctx, job.RoomID, job.UserID)
	if err != nil {
		q.logger.Warn("bulk redaction failed",
			"room_id", job.RoomID,
			"user_id", job.UserID,
			"redacted", count,
			"error", err,
		)
		return
	}
	q.logger.Info("bulk redaction complete",
		"room_id", job.RoomID,
		"user_id", job.UserID,
		"redacted", count,
	)
}
