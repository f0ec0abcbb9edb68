package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/fraud/domain"
	"github.com/smallbiznis/creatorpay/internal/notification"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	scoreRepeatFlag = 90
	scoreHighValue  = 70
	scoreReview     = 50
	scoreClean      = 10
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Repo       domain.Repository
	PayoutRepo payoutdomain.Repository
	AuditSvc   auditdomain.Service
	Notifier   notification.Sink
}

// Service is the in-process fraud gate and the evidence intake for flagged requests.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     *config.PolicyHolder
	repo       domain.Repository
	payoutRepo payoutdomain.Repository
	auditSvc   auditdomain.Service
	notifier   notification.Sink
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("fraud.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		payoutRepo: p.PayoutRepo,
		auditSvc:   p.AuditSvc,
		notifier:   p.Notifier,
	}
}

type signal struct {
	status   payoutdomain.AutoApprovalStatus
	flag     domain.FlagType
	severity string
	score    int
	reason   string
}

// Check routes a request. A request that already carries a verdict is
// returned as stored without raising a second flag.
func (s *Service) Check(ctx context.Context, payoutRequestID snowflake.ID) (*payoutdomain.FraudVerdict, error) {
	var (
		verdict *payoutdomain.FraudVerdict
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.payoutRepo.FindRequestByID(ctx, tx, payoutRequestID, true)
		if err != nil {
			return err
		}
		if req == nil {
			return payoutdomain.ErrNotFound
		}
		if req.AutoApprovalStatus != nil {
			verdict = storedVerdict(req)
			return nil
		}

		now := s.clock.Now()
		policy := s.policy.Get()
		signals, err := s.evaluate(ctx, tx, req, policy, now)
		if err != nil {
			return err
		}

		verdict = buildVerdict(req.ID, signals, now)
		if verdict.AutoApprovalStatus == payoutdomain.AutoApprovalPendingEvidence {
			deadline := now.Add(policy.EvidenceWindow())
			verdict.EvidenceDeadline = &deadline
		}

		raw, err := json.Marshal(verdict)
		if err != nil {
			return err
		}
		if err := s.payoutRepo.UpdateAutoApproval(ctx, tx, payoutdomain.AutoApprovalUpdate{
			ID:               req.ID,
			Status:           verdict.AutoApprovalStatus,
			FraudCheck:       datatypes.JSON(raw),
			EvidenceDeadline: verdict.EvidenceDeadline,
			UpdatedAt:        now,
		}); err != nil {
			return err
		}

		if len(signals) > 0 {
			top := signals[0]
			description := strings.Join(verdict.Reasons, "; ")
			if _, err := s.repo.InsertFlag(ctx, tx, &domain.Flag{
				ID:              s.genID.Generate(),
				PayoutRequestID: req.ID,
				UserID:          req.UserID,
				FlagType:        top.flag,
				Severity:        top.severity,
				Status:          domain.FlagStatusPending,
				Description:     &description,
				CreatedAt:       now,
				UpdatedAt:       now,
			}); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Info("fraud check recorded",
			zap.String("payout_request_id", payoutRequestID.String()),
			zap.String("auto_approval_status", string(verdict.AutoApprovalStatus)),
			zap.Int("risk_score", verdict.RiskScore),
		)
	}
	return verdict, nil
}

func (s *Service) evaluate(ctx context.Context, tx *gorm.DB, req *payoutdomain.PayoutRequest, policy config.PayoutPolicy, now time.Time) ([]signal, error) {
	var signals []signal

	openFlags, err := s.repo.CountOpenFlagsForUser(ctx, tx, req.UserID, req.ID)
	if err != nil {
		return nil, err
	}
	if openFlags > 0 {
		signals = append(signals, signal{
			status:   payoutdomain.AutoApprovalPendingReview,
			flag:     domain.FlagTypeRepeat,
			severity: "high",
			score:    scoreRepeatFlag,
			reason:   fmt.Sprintf("user has %d unresolved fraud flag(s)", openFlags),
		})
	}

	evidenceAmount := thresholdOf(policy.Fraud.EvidenceAmount)
	reviewAmount := thresholdOf(policy.Fraud.ReviewAmount)
	switch {
	case !evidenceAmount.IsZero() && req.TotalAmount.GreaterThanOrEqual(evidenceAmount):
		signals = append(signals, signal{
			status:   payoutdomain.AutoApprovalPendingEvidence,
			flag:     domain.FlagTypeHighValue,
			severity: "medium",
			score:    scoreHighValue,
			reason:   "amount " + req.TotalAmount.StringFixed(2) + " at or above evidence threshold " + evidenceAmount.StringFixed(2),
		})
	case !reviewAmount.IsZero() && req.TotalAmount.GreaterThanOrEqual(reviewAmount):
		signals = append(signals, signal{
			status:   payoutdomain.AutoApprovalPendingReview,
			flag:     domain.FlagTypeReviewRequired,
			severity: "low",
			score:    scoreReview,
			reason:   "amount " + req.TotalAmount.StringFixed(2) + " at or above review threshold " + reviewAmount.StringFixed(2),
		})
	}

	if policy.Fraud.MinAccountAgeDays > 0 {
		createdAt, err := s.repo.AccountCreatedAt(ctx, tx, req.UserID)
		if err != nil {
			return nil, err
		}
		minAge := time.Duration(policy.Fraud.MinAccountAgeDays) * 24 * time.Hour
		if createdAt != nil && now.Sub(*createdAt) < minAge {
			signals = append(signals, signal{
				status:   payoutdomain.AutoApprovalPendingReview,
				flag:     domain.FlagTypeReviewRequired,
				severity: "low",
				score:    scoreReview,
				reason:   fmt.Sprintf("account younger than %d days", policy.Fraud.MinAccountAgeDays),
			})
		}
	}
	return signals, nil
}

// buildVerdict routes on the first signal; every signal contributes a reason.
func buildVerdict(id snowflake.ID, signals []signal, now time.Time) *payoutdomain.FraudVerdict {
	verdict := &payoutdomain.FraudVerdict{
		PayoutRequestID:    id,
		AutoApprovalStatus: payoutdomain.AutoApprovalApproved,
		RiskScore:          scoreClean,
		Reasons:            []string{},
		CheckedAt:          now,
	}
	for i, sig := range signals {
		if i == 0 {
			verdict.AutoApprovalStatus = sig.status
		}
		if sig.score > verdict.RiskScore {
			verdict.RiskScore = sig.score
		}
		verdict.Reasons = append(verdict.Reasons, sig.reason)
	}
	return verdict
}

func storedVerdict(req *payoutdomain.PayoutRequest) *payoutdomain.FraudVerdict {
	if len(req.FraudCheck) > 0 {
		var verdict payoutdomain.FraudVerdict
		if err := json.Unmarshal(req.FraudCheck, &verdict); err == nil && verdict.AutoApprovalStatus != "" {
			verdict.AutoApprovalStatus = req.AutoApproval()
			verdict.EvidenceDeadline = req.EvidenceDeadline
			return &verdict
		}
	}
	return &payoutdomain.FraudVerdict{
		PayoutRequestID:    req.ID,
		AutoApprovalStatus: req.AutoApproval(),
		Reasons:            []string{},
		EvidenceDeadline:   req.EvidenceDeadline,
		CheckedAt:          req.UpdatedAt,
	}
}

func thresholdOf(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

func (s *Service) SubmitEvidence(ctx context.Context, input domain.SubmitEvidenceInput) (*domain.Evidence, error) {
	if err := validateEvidence(input); err != nil {
		return nil, err
	}

	var evidence *domain.Evidence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.payoutRepo.FindRequestByID(ctx, tx, input.PayoutRequestID, true)
		if err != nil {
			return err
		}
		if req == nil || req.UserID != input.UserID {
			return payoutdomain.ErrNotFound
		}
		if req.AutoApproval() != payoutdomain.AutoApprovalPendingEvidence {
			return payoutdomain.ErrInvalidState
		}

		item := domain.Evidence{
			ID:              s.genID.Generate(),
			PayoutRequestID: req.ID,
			UserID:          input.UserID,
			EvidenceType:    input.EvidenceType,
			URL:             strings.TrimSpace(input.URL),
			CreatedAt:       s.clock.Now(),
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			item.Notes = &notes
		}

		flag, err := s.repo.FindOpenFlag(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if flag != nil {
			item.FraudFlagID = &flag.ID
		}

		if err := s.repo.InsertEvidence(ctx, tx, &item); err != nil {
			return err
		}
		evidence = &item
		return nil
	})
	if err != nil {
		return nil, err
	}

	requestID := input.PayoutRequestID.String()
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &input.UserID, "payout.evidence_submitted", "payout_request", &requestID, map[string]any{
		"evidence_id":   evidence.ID.String(),
		"evidence_type": string(evidence.EvidenceType),
	}); err != nil {
		s.log.Warn("audit evidence submission failed", zap.String("payout_request_id", requestID), zap.Error(err))
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:            notification.EventEvidenceSubmitted,
		UserID:          input.UserID,
		PayoutRequestID: requestID,
		Data: map[string]any{
			"evidence_type": string(evidence.EvidenceType),
		},
	})
	return evidence, nil
}

func validateEvidence(input domain.SubmitEvidenceInput) error {
	if input.PayoutRequestID == 0 || strings.TrimSpace(input.UserID) == "" {
		return domain.ErrInvalidEvidence
	}
	if !input.EvidenceType.Valid() {
		return domain.ErrInvalidEvidence
	}
	parsed, err := url.Parse(strings.TrimSpace(input.URL))
	if err != nil || parsed.Host == "" {
		return domain.ErrInvalidEvidence
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.ErrInvalidEvidence
	}
	return nil
}
