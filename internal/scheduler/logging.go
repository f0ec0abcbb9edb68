package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/creatorpay/internal/observability/context"
	obslogger "github.com/smallbiznis/creatorpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tracks one pass of a job. A job invoked inside runJob shares the
// run opened there.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time
	batches   int
	processed int
	failures  int
}

type jobRunKey struct{}

func (r *jobRun) recordBatch(processed int) {
	r.batches++
	if processed > 0 {
		r.processed += processed
	}
}

func (r *jobRun) recordFailure() {
	r.failures++
}

// beginRun attaches a run to ctx unless one is already in flight. The caller
// that gets owner=true must call finishRun.
func (s *Scheduler) beginRun(ctx context.Context, job string) (_ context.Context, run *jobRun, owner bool) {
	if existing, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return ctx, existing, false
	}
	run = &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: s.cfg.BatchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "cron", "scheduler")
	ctx = obscontext.WithRunID(ctx, run.runID)

	s.logger(ctx).Info("job started",
		zap.String("job", job),
		zap.Int("batch_size", run.batchSize),
	)
	return ctx, run, true
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.Duration("elapsed", s.clock.Now().Sub(run.startedAt)),
		zap.Int("batches", run.batches),
		zap.Int("processed", run.processed),
		zap.Int("failures", run.failures),
	}
	if run.failures > 0 {
		s.logger(ctx).Warn("job finished with failures", fields...)
		return
	}
	s.logger(ctx).Info("job finished", fields...)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobError(ctx context.Context, run *jobRun, msg string, err error) {
	run.recordFailure()
	s.logger(ctx).Error(msg,
		zap.String("job", run.job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
