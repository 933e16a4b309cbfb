package queue

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// Processor judges one submission end to end. A returned error (or panic)
// means the submission must be failed by the caller's onFailure hook.
type Processor interface {
	Process(ctx context.Context, submissionID string) error
}

// Failure is invoked when a worker could not bring a submission to a
// terminal state on its own.
type Failure func(submissionID string, cause error)

// Queue is a FIFO of submission ids served by a fixed pool of workers.
// An id is never handed to two workers: the pending set swallows duplicate
// enqueues until the first run finishes.
type Queue struct {
	ch      chan string
	pending mapset.Set[string]
	logger  *slog.Logger
}

func New(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 1024
	}
	return &Queue{
		ch:      make(chan string, size),
		pending: mapset.NewSet[string](),
		logger:  logger,
	}
}

// Enqueue adds a submission id in arrival order. Re-enqueueing an id that
// is still pending is a no-op.
func (q *Queue) Enqueue(submissionID string) error {
	if !q.pending.Add(submissionID) {
		return nil
	}
	select {
	case q.ch <- submissionID:
		return nil
	default:
		q.pending.Remove(submissionID)
		return fmt.Errorf("judging queue is full")
	}
}

// Pending reports how many ids are queued or in flight.
func (q *Queue) Pending() int {
	return q.pending.Cardinality()
}

// Start runs the worker pool until ctx is cancelled. Every dequeued
// submission reaches a terminal state: processor errors and panics are
// routed to onFailure instead of killing the worker.
func (q *Queue) Start(ctx context.Context, workers int, proc Processor, onFailure Failure) error {
	if workers <= 0 {
		workers = 1
	}

	grp, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerID := i
		grp.Go(func() error {
			q.work(ctx, workerID, proc, onFailure)
			return nil
		})
	}
	return grp.Wait()
}

func (q *Queue) work(ctx context.Context, workerID int, proc Processor, onFailure Failure) {
	for {
		select {
		case <-ctx.Done():
			return
		case subID := <-q.ch:
			q.logger.Debug("worker picked up submission",
				slog.Int("worker", workerID), slog.String("submission", subID))
			err := q.process(ctx, proc, subID)
			q.pending.Remove(subID)
			if err != nil {
				q.logger.Error("worker failed to process submission",
					slog.Int("worker", workerID),
					slog.String("submission", subID),
					slog.Any("error", err))
				onFailure(subID, err)
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, proc Processor, subID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return proc.Process(ctx, subID)
}
