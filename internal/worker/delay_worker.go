// Package worker consumes the Redis delay queue. The queue's pop is atomic, so
// any number of worker processes can share it without double-delivery.
package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/pkg/logger"
)

// CleanupQueueKey is the delay queue holding user ids whose active-token sets
// are due for pruning.
const CleanupQueueKey = "dq:token:cleanup"

// Scheduler enqueues delayed cleanup tasks.
type Scheduler struct {
	atomic service.AtomicStore
	delay  time.Duration
}

// NewScheduler creates a Scheduler that runs cleanups after delay.
func NewScheduler(atomic service.AtomicStore, delay time.Duration) *Scheduler {
	return &Scheduler{atomic: atomic, delay: delay}
}

// ScheduleUserCleanup enqueues a prune of the user's active-token set.
func (s *Scheduler) ScheduleUserCleanup(ctx context.Context, userID int64) error {
	return s.atomic.DelayQueueAdd(ctx, CleanupQueueKey, strconv.FormatInt(userID, 10), s.delay)
}

// Worker drains due cleanup tasks on a fixed cadence.
type Worker struct {
	atomic     service.AtomicStore
	revocation service.RevocationStore
	log        logger.Logger

	interval  time.Duration
	batchSize int
}

// NewWorker creates the cleanup worker. interval defaults to 30s and batchSize
// to 50 when zero.
func NewWorker(atomic service.AtomicStore, revocation service.RevocationStore, interval time.Duration, batchSize int, log logger.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Worker{
		atomic:     atomic,
		revocation: revocation,
		log:        log.WithComponent("delay_worker"),
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Run loops until the context is cancelled. Pop failures are logged and
// retried on the next tick; a cancelled context abandons the in-flight call.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	items, err := w.atomic.DelayQueuePop(ctx, CleanupQueueKey, w.batchSize)
	if err != nil {
		w.log.Warn(ctx, "delay queue pop failed", logger.Error(err))
		return
	}

	for _, item := range items {
		userID, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			w.log.Warn(ctx, "discarding malformed cleanup task", logger.String("item", item))
			continue
		}
		if err := w.revocation.CleanupExpired(ctx, userID); err != nil {
			w.log.Warn(ctx, "token cleanup failed", logger.Int64("user_id", userID), logger.Error(err))
		}
	}
}
