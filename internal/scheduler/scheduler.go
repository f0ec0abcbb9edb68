package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	auditcontext "github.com/smallbiznis/creatorpay/internal/auditcontext"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	sweeperdomain "github.com/smallbiznis/creatorpay/internal/sweeper/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobEvidenceDeadlines = "evidence_deadlines"
	JobApprovalExpiry    = "approval_expiry"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Sweeper   sweeperdomain.Service
	Approvals approvaldomain.Service
	AuditSvc  auditdomain.Service
	AuthzSvc  authorization.Service
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	sweeper   sweeperdomain.Service
	approvals approvaldomain.Service
	auditSvc  auditdomain.Service
	authzSvc  authorization.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Sweeper == nil || p.Approvals == nil || p.AuditSvc == nil || p.AuthzSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		sweeper:   p.Sweeper,
		approvals: p.Approvals,
		auditSvc:  p.AuditSvc,
		authzSvc:  p.AuthzSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeCron), "scheduler")
	ctx, run, owner := s.beginRun(ctx, name)
	log := s.logger(ctx).With(zap.String("job", name))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.failures == 0 {
			run.recordFailure()
		}
		s.finishRun(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A timed out job resumes on the next tick.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobEvidenceDeadlines, s.isJobEnabled(JobEvidenceDeadlines), func(ctx context.Context) error {
			return s.runJob(ctx, JobEvidenceDeadlines, s.cfg.EvidenceTimeout, s.EvidenceDeadlinesJob)
		}},
		{JobApprovalExpiry, s.isJobEnabled(JobApprovalExpiry), func(ctx context.Context) error {
			return s.runJob(ctx, JobApprovalExpiry, s.cfg.ExpiryTimeout, s.ApprovalExpiryJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// EvidenceDeadlinesJob drains expired evidence windows batch by batch until a
// short batch or a failed item ends the pass.
func (s *Scheduler) EvidenceDeadlinesJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobEvidenceDeadlines)
	if owner {
		defer s.finishRun(ctx, run)
	}
	if err := s.authorizeSystem(ctx, authorization.ObjectSweeper, authorization.ActionSweeperRun); err != nil {
		s.logJobError(ctx, run, "evidence sweep not authorized", err)
		return err
	}

	var jobErr error
	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		res, err := s.sweeper.ProcessEvidenceDeadlines(ctx, s.cfg.BatchSize)
		if err != nil {
			s.logJobError(ctx, run, "evidence sweep failed", err)
			return errors.Join(jobErr, err)
		}
		run.recordBatch(res.Processed)
		for _, msg := range res.Errors {
			run.recordFailure()
			jobErr = errors.Join(jobErr, errors.New(msg))
		}
		if res.Processed > 0 {
			s.emitAuditEvent(ctx, "sweeper.run_completed", "sweeper_run", res.RunID, map[string]any{
				"processed": res.Processed,
				"rejected":  res.Rejected,
				"skipped":   res.Skipped,
				"errors":    len(res.Errors),
			})
		}
		if res.Processed < s.cfg.BatchSize || len(res.Errors) > 0 {
			break
		}
	}

	return jobErr
}

func (s *Scheduler) ApprovalExpiryJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobApprovalExpiry)
	if owner {
		defer s.finishRun(ctx, run)
	}
	if err := s.authorizeSystem(ctx, authorization.ObjectSweeper, authorization.ActionSweeperRun); err != nil {
		s.logJobError(ctx, run, "approval expiry not authorized", err)
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		expired, err := s.approvals.ExpireStale(ctx, s.cfg.BatchSize)
		if err != nil {
			s.logJobError(ctx, run, "approval expiry failed", err)
			return err
		}
		run.recordBatch(expired)
		if expired < s.cfg.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) emitAuditEvent(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeCron), nil, action, targetType, &targetID, metadata); err != nil {
		s.logger(ctx).Warn("scheduler audit failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Scheduler) authorizeSystem(ctx context.Context, object string, action string) error {
	return s.authzSvc.Authorize(ctx, authorization.SubjectCron, object, action)
}
