// Package worker polls the work queue and drives scan jobs to completion.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
	"github.com/yourorg/remediation-worker/internal/queue"
)

// Processor handles one dequeued job message.
type Processor interface {
	Process(ctx context.Context, msg model.JobMessage) error
}

// Runner is the single logical worker: it polls the queue, processes one job
// at a time to completion (including message deletion), and only then polls
// again. Polling is the only cancellable wait point; a dequeued job runs to
// the end even during shutdown.
type Runner struct {
	queue        queue.Queue
	processor    Processor
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewRunner(q queue.Queue, p Processor, pollInterval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{queue: q, processor: p, pollInterval: pollInterval, logger: logger}
}

// RunForever polls until ctx is cancelled. Each iteration is guarded: an
// unexpected error is logged and followed by a backoff, never a crash of the
// poll loop.
func (r *Runner) RunForever(ctx context.Context) error {
	backoff := r.pollInterval
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := r.queue.Receive(ctx, 1)
		if err != nil {
			if err != queue.ErrNoMessages && ctx.Err() == nil {
				r.logger.Error("queue receive failed", zap.Error(err))
			}
			if !sleep(ctx, backoff) {
				return nil
			}
			// cap idle/error backoff at 5x the poll interval
			if backoff < 5*r.pollInterval {
				backoff *= 2
			}
			continue
		}
		backoff = r.pollInterval

		for _, msg := range msgs {
			r.handle(ctx, msg)
		}
	}
}

// handle processes one message to completion and acks it. Processing errors
// are logged and the message is still deleted: the job document is the
// source of truth and a redelivered job would only be reprocessed, which the
// remediation idempotency already tolerates.
func (r *Runner) handle(ctx context.Context, msg queue.Message) {
	start := time.Now()
	r.logger.Info("job received",
		zap.String("message_id", msg.ID),
		zap.String("scan_id", msg.Body.ScanID),
	)

	if err := r.processor.Process(ctx, msg.Body); err != nil {
		r.logger.Error("job processing failed",
			zap.String("scan_id", msg.Body.ScanID),
			zap.Error(err),
		)
	}

	deleteCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := retry(deleteCtx, 3, 200*time.Millisecond, func() error {
		return r.queue.Delete(deleteCtx, msg.AckToken)
	}); err != nil {
		r.logger.Error("message delete failed, job will be redelivered",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("job finished",
		zap.String("scan_id", msg.Body.ScanID),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
