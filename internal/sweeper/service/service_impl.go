package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/clock"
	frauddomain "github.com/smallbiznis/creatorpay/internal/fraud/domain"
	ledgerdomain "github.com/smallbiznis/creatorpay/internal/ledger/domain"
	"github.com/smallbiznis/creatorpay/internal/notification"
	obscontext "github.com/smallbiznis/creatorpay/internal/observability/context"
	obslogger "github.com/smallbiznis/creatorpay/internal/observability/logger"
	"github.com/smallbiznis/creatorpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/smallbiznis/creatorpay/internal/ratelimit"
	"github.com/smallbiznis/creatorpay/internal/sweeper/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobName          = "evidence_deadlines"
	defaultBatchSize = 100
	dismissalNote    = "Auto-dismissed: evidence deadline passed without submission"
)

type outcome int

const (
	outcomeNoop outcome = iota
	outcomeRejected
	outcomeReview
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	PayoutRepo payoutdomain.Repository
	LedgerRepo ledgerdomain.Repository
	FraudRepo  frauddomain.Repository
	AuditSvc   auditdomain.Service
	Notifier   notification.Sink
	Limiter    *ratelimit.PayoutLimiter `optional:"true"`
	Metrics    *metrics.Metrics         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	payoutRepo payoutdomain.Repository
	ledgerRepo ledgerdomain.Repository
	fraudRepo  frauddomain.Repository
	auditSvc   auditdomain.Service
	notifier   notification.Sink
	limiter    *ratelimit.PayoutLimiter
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("sweeper.service"),
		clock:      p.Clock,
		payoutRepo: p.PayoutRepo,
		ledgerRepo: p.LedgerRepo,
		fraudRepo:  p.FraudRepo,
		auditSvc:   p.AuditSvc,
		notifier:   p.Notifier,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
	}
}

func (s *Service) ProcessEvidenceDeadlines(ctx context.Context, limit int) (*domain.Result, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}
	result := &domain.Result{RunID: ulid.Make().String(), Errors: []string{}}
	ctx = obscontext.WithRunID(ctx, result.RunID)
	log := obslogger.WithContext(ctx, s.log).With(zap.String("job", jobName))

	lease, err := s.limiter.LockSweeper(ctx, jobName)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		log.Info("evidence sweep already running elsewhere")
		metrics.Scheduler().IncBatchDeferred(jobName, metrics.SchedulerBatchDeferredReasonLockHeld)
		return result, nil
	}
	if err != nil {
		// Row filters keep the sweep idempotent without the lock.
		log.Warn("sweeper lock unavailable", zap.Error(err))
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("sweeper lock release failed", zap.Error(err))
		}
	}()

	now := s.clock.Now()
	lockStart := time.Now()
	requests, err := s.payoutRepo.ListExpiredEvidence(ctx, s.db, now, limit)
	metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceEvidenceRequests, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		metrics.Scheduler().IncBatchDeferred(jobName, metrics.SchedulerBatchDeferredReasonSkipLockedEmpty)
	}

	for i := range requests {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err().Error())
			break
		}
		request := requests[i]
		result.Processed++

		out, err := s.settle(ctx, request.ID, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", request.ID, err))
			log.Error("evidence deadline settle failed",
				zap.String("payout_request_id", request.ID.String()),
				zap.String("error_type", metrics.ClassifySchedulerErrorType(err)),
				zap.Error(err),
			)
			continue
		}
		switch out {
		case outcomeRejected:
			result.Rejected++
			s.afterRejection(ctx, request, now)
		case outcomeReview:
			result.Skipped++
			log.Info("late evidence found, moved to review", zap.String("payout_request_id", request.ID.String()))
		}
	}

	s.metrics.RecordSweeperOutcome(ctx, "rejected", result.Rejected)
	s.metrics.RecordSweeperOutcome(ctx, "review", result.Skipped)
	s.metrics.RecordSweeperOutcome(ctx, "error", len(result.Errors))
	metrics.Scheduler().AddBatchProcessed(jobName, "payout_requests", result.Processed)

	log.Info("evidence deadlines processed",
		zap.Int("processed", result.Processed),
		zap.Int("rejected", result.Rejected),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// settle re-checks the request under lock so a concurrent sweep or a late
// evidence upload cannot be overwritten.
func (s *Service) settle(ctx context.Context, requestID snowflake.ID, now time.Time) (outcome, error) {
	out := outcomeNoop
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		request, err := s.payoutRepo.FindRequestByID(ctx, tx, requestID, true)
		metrics.Scheduler().ObserveDBLockWait(metrics.LockResourcePayoutRequestByID, time.Since(lockStart))
		if err != nil {
			return err
		}
		if request == nil || request.AutoApproval() != payoutdomain.AutoApprovalPendingEvidence {
			return nil
		}

		evidence, err := s.fraudRepo.CountEvidence(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if evidence > 0 {
			moved, err := s.payoutRepo.MoveEvidenceToReview(ctx, tx, requestID, now)
			if err != nil {
				return err
			}
			if moved > 0 {
				out = outcomeReview
			}
			return nil
		}

		rejected, err := s.payoutRepo.RejectForMissingEvidence(ctx, tx, requestID, domain.RejectionReasonMissingEvidence, now)
		if err != nil {
			return err
		}
		if rejected == 0 {
			return nil
		}
		if _, err := s.ledgerRepo.UnlockByPayoutRequest(ctx, tx, requestID, now); err != nil {
			return err
		}
		if _, err := s.payoutRepo.ReleaseItems(ctx, tx, requestID, now); err != nil {
			return err
		}
		if _, err := s.fraudRepo.DismissOpenFlags(ctx, tx, requestID, dismissalNote, now); err != nil {
			return err
		}
		out = outcomeRejected
		return nil
	})
	if err != nil {
		return outcomeNoop, err
	}
	return out, nil
}

func (s *Service) afterRejection(ctx context.Context, request payoutdomain.PayoutRequest, now time.Time) {
	requestID := request.ID.String()
	metadata := map[string]any{
		"reason":       domain.RejectionReasonMissingEvidence,
		"total_amount": request.TotalAmount.StringFixed(2),
	}
	if request.EvidenceDeadline != nil {
		metadata["evidence_deadline"] = request.EvidenceDeadline.Format(time.RFC3339)
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, "payout.evidence_rejected", "payout_request", &requestID, metadata); err != nil {
		s.log.Warn("audit evidence rejection failed", zap.String("payout_request_id", requestID), zap.Error(err))
	}

	deadline := now
	if request.EvidenceDeadline != nil {
		deadline = *request.EvidenceDeadline
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:            notification.EventEvidenceRejected,
		UserID:          request.UserID,
		PayoutRequestID: requestID,
		Message: fmt.Sprintf("Your payout request for $%s was cancelled because no evidence arrived before %s. The funds are available to request again.",
			request.TotalAmount.StringFixed(2), deadline.Format(time.RFC1123)),
		Data: map[string]any{
			"amount":   request.TotalAmount.StringFixed(2),
			"deadline": deadline.Format(time.RFC1123),
			"reason":   domain.RejectionReasonMissingEvidence,
		},
	})
}
