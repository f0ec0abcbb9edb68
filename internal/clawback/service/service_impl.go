package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clawback/domain"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/notification"
	"github.com/smallbiznis/creatorpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	walletdomain "github.com/smallbiznis/creatorpay/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// aggregatable lists the parent statuses a clawback may move.
var aggregatable = []payoutdomain.RequestStatus{
	payoutdomain.RequestStatusPending,
	payoutdomain.RequestStatusInTransit,
	payoutdomain.RequestStatusCompleted,
	payoutdomain.RequestStatusPartialClawback,
}

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	PayoutRepo     payoutdomain.Repository
	SubmissionRepo submissiondomain.Repository
	WalletRepo     walletdomain.Repository
	Authz          authorization.Service
	AuditSvc       auditdomain.Service
	Notifier       notification.Sink
	Metrics        *metrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	payoutRepo     payoutdomain.Repository
	submissionRepo submissiondomain.Repository
	walletRepo     walletdomain.Repository
	authz          authorization.Service
	auditSvc       auditdomain.Service
	notifier       notification.Sink
	metrics        *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("clawback.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		payoutRepo:     p.PayoutRepo,
		submissionRepo: p.SubmissionRepo,
		walletRepo:     p.WalletRepo,
		authz:          p.Authz,
		auditSvc:       p.AuditSvc,
		notifier:       p.Notifier,
		metrics:        p.Metrics,
	}
}

// Execute reverses one payout item. Marking the item and recomputing the
// parent status commit together; everything after that is best-effort.
func (s *Service) Execute(ctx context.Context, input domain.ExecuteInput) (*domain.Result, error) {
	if input.PayoutItemID == 0 {
		return nil, payoutdomain.ErrInvalidRequest
	}
	if err := s.authz.Authorize(ctx, authorization.UserSubject(input.ActorID), authorization.ObjectPayout, authorization.ActionPayoutClawback); err != nil {
		return nil, err
	}

	var reason *string
	if trimmed := strings.TrimSpace(input.Reason); trimmed != "" {
		reason = &trimmed
	}

	now := s.clock.Now()
	var (
		item    *payoutdomain.PayoutItem
		request *payoutdomain.PayoutRequest
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = s.payoutRepo.FindItemByID(ctx, tx, input.PayoutItemID, true)
		if err != nil {
			return err
		}
		if item == nil {
			return payoutdomain.ErrNotFound
		}
		request, err = s.payoutRepo.FindRequestByID(ctx, tx, item.PayoutRequestID, true)
		if err != nil {
			return err
		}
		if request == nil {
			return payoutdomain.ErrNotFound
		}
		if item.ReleasedAt != nil {
			return payoutdomain.ErrInvalidState
		}

		marked, err := s.payoutRepo.MarkItemClawedBack(ctx, tx, payoutdomain.ClawbackMark{
			ItemID:   item.ID,
			Reason:   reason,
			ActorID:  input.ActorID,
			ClawedAt: now,
		})
		if err != nil {
			return err
		}
		if marked == 0 {
			return payoutdomain.ErrInvalidState
		}
		item.ClawbackStatus = payoutdomain.ClawbackStatusClawedBack
		item.ClawbackReason = reason
		item.ClawedBackAt = &now
		item.ClawedBackBy = &input.ActorID

		siblings, err := s.payoutRepo.ListItemsByRequest(ctx, tx, request.ID)
		if err != nil {
			return err
		}
		status, ok := payoutdomain.AggregateClawbackStatus(siblings)
		if !ok || status == request.Status {
			return nil
		}
		updated, err := s.payoutRepo.UpdateStatus(ctx, tx, request.ID, aggregatable, status, now)
		if err != nil {
			return err
		}
		if updated > 0 {
			request.Status = status
		}
		return nil
	})
	if err != nil {
		outcome := "error"
		switch err {
		case payoutdomain.ErrNotFound:
			outcome = "not_found"
		case payoutdomain.ErrInvalidState:
			outcome = "invalid_state"
		}
		s.metrics.RecordClawback(ctx, outcome)
		return nil, err
	}

	s.flagSubmission(ctx, item, now)
	brandID := s.resolveBrand(ctx, item)
	refunded := decimal.Zero
	if brandID != nil && s.refundBrand(ctx, item, *brandID, input.ActorID, reason, now) {
		refunded = item.Amount
	}
	s.recordCreatorTrail(ctx, item, request.UserID, reason, now)

	itemID := item.ID.String()
	actorID := input.ActorID
	metadata := map[string]any{
		"payout_request_id": request.ID.String(),
		"amount":            item.Amount.StringFixed(2),
		"refunded_amount":   refunded.StringFixed(2),
		"request_status":    string(request.Status),
	}
	if reason != nil {
		metadata["reason"] = *reason
	}
	if brandID != nil {
		metadata["brand_id"] = *brandID
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "payout.item_clawed_back", "payout_item", &itemID, metadata); err != nil {
		s.log.Warn("audit clawback failed", zap.String("payout_item_id", itemID), zap.Error(err))
	}

	message := fmt.Sprintf("A payout of $%s from request %s was reversed.", item.Amount.StringFixed(2), request.ID)
	if reason != nil {
		message += " Reason: " + *reason
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:            notification.EventItemClawedBack,
		UserID:          request.UserID,
		PayoutRequestID: request.ID.String(),
		Message:         message,
		Data: map[string]any{
			"payout_item_id": itemID,
			"amount":         item.Amount.StringFixed(2),
		},
	})
	s.metrics.RecordClawback(ctx, "clawed_back")

	s.log.Info("payout item clawed back",
		zap.String("payout_item_id", itemID),
		zap.String("payout_request_id", request.ID.String()),
		zap.String("request_status", string(request.Status)),
		zap.String("refunded_amount", refunded.StringFixed(2)),
	)

	return &domain.Result{
		PayoutItemID:    item.ID,
		PayoutRequestID: request.ID,
		RefundedAmount:  refunded,
		BrandID:         brandID,
		RequestStatus:   request.Status,
	}, nil
}

func (s *Service) flagSubmission(ctx context.Context, item *payoutdomain.PayoutItem, now time.Time) {
	if item.VideoSubmissionID == nil {
		return
	}
	if _, err := s.submissionRepo.MarkClawedBack(ctx, s.db, *item.VideoSubmissionID, now); err != nil {
		s.log.Warn("failed to flag clawed back submission",
			zap.String("payout_item_id", item.ID.String()),
			zap.String("video_submission_id", item.VideoSubmissionID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) resolveBrand(ctx context.Context, item *payoutdomain.PayoutItem) *string {
	if item.BrandID != nil && *item.BrandID != "" {
		return item.BrandID
	}
	if item.VideoSubmissionID == nil {
		return nil
	}
	brands, err := s.payoutRepo.BrandsForSubmissions(ctx, s.db, []snowflake.ID{*item.VideoSubmissionID})
	if err != nil {
		s.log.Warn("failed to resolve brand for clawback", zap.String("payout_item_id", item.ID.String()), zap.Error(err))
		return nil
	}
	brand, ok := brands[*item.VideoSubmissionID]
	if !ok {
		return nil
	}
	return &brand
}

func (s *Service) refundBrand(ctx context.Context, item *payoutdomain.PayoutItem, brandID, actorID string, reason *string, now time.Time) bool {
	description := fmt.Sprintf("Clawback refund for payout item %s", item.ID)
	metadata := datatypes.JSONMap{
		"payout_item_id":    item.ID.String(),
		"payout_request_id": item.PayoutRequestID.String(),
	}
	if reason != nil {
		metadata["reason"] = *reason
	}
	err := s.walletRepo.InsertBrandTransaction(ctx, s.db, &walletdomain.BrandTransaction{
		ID:          s.genID.Generate(),
		BrandID:     brandID,
		Type:        walletdomain.BrandTransactionClawbackRefund,
		Amount:      item.Amount,
		Description: &description,
		Metadata:    metadata,
		CreatedBy:   &actorID,
		CreatedAt:   now,
	})
	if err != nil {
		s.log.Warn("failed to record brand refund",
			zap.String("payout_item_id", item.ID.String()),
			zap.String("brand_id", brandID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// recordCreatorTrail writes a zero-amount line; the creator balance never held this amount.
func (s *Service) recordCreatorTrail(ctx context.Context, item *payoutdomain.PayoutItem, userID string, reason *string, now time.Time) {
	description := fmt.Sprintf("Payout item %s clawed back ($%s)", item.ID, item.Amount.StringFixed(2))
	metadata := datatypes.JSONMap{
		"payout_item_id":    item.ID.String(),
		"payout_request_id": item.PayoutRequestID.String(),
		"original_amount":   item.Amount.StringFixed(2),
	}
	if reason != nil {
		metadata["reason"] = *reason
	}
	err := s.walletRepo.InsertCreatorTransaction(ctx, s.db, &walletdomain.CreatorTransaction{
		ID:          s.genID.Generate(),
		UserID:      userID,
		Type:        walletdomain.CreatorTransactionClawback,
		Amount:      decimal.Zero,
		Description: &description,
		Metadata:    metadata,
		CreatedAt:   now,
	})
	if err != nil {
		s.log.Warn("failed to record creator clawback trail",
			zap.String("payout_item_id", item.ID.String()),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
