package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/creatorpay/internal/approval/domain"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/notification"
	"github.com/smallbiznis/creatorpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCommentLength = 1000

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Repo       domain.Repository
	PayoutRepo payoutdomain.Repository
	Authz      authorization.Service
	AuditSvc   auditdomain.Service
	Notifier   notification.Sink
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     *config.PolicyHolder
	repo       domain.Repository
	payoutRepo payoutdomain.Repository
	authz      authorization.Service
	auditSvc   auditdomain.Service
	notifier   notification.Sink
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("approval.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		payoutRepo: p.PayoutRepo,
		authz:      p.Authz,
		auditSvc:   p.AuditSvc,
		notifier:   p.Notifier,
		metrics:    p.Metrics,
	}
}

func (s *Service) RequestCryptoPayout(ctx context.Context, input domain.RequestInput) (*domain.ApprovalDetail, error) {
	if input.PayoutRequestID == 0 {
		return nil, payoutdomain.ErrInvalidRequest
	}
	if err := s.authorize(ctx, input.AdminID); err != nil {
		return nil, err
	}

	policy := s.policy.Get()
	tiers, err := domain.TiersFromPolicy(policy.ApprovalTiers)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		approval *domain.Approval
		vote     *domain.Vote
		request  *payoutdomain.PayoutRequest
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = s.payoutRepo.FindRequestByID(ctx, tx, input.PayoutRequestID, true)
		if err != nil {
			return err
		}
		if request == nil {
			return payoutdomain.ErrNotFound
		}
		if request.Status != payoutdomain.RequestStatusPending || request.PayoutMethod != payoutdomain.PayoutMethodCrypto {
			return payoutdomain.ErrInvalidState
		}
		open, err := s.repo.FindOpenByRequest(ctx, tx, request.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.ErrDuplicateApproval
		}

		tier, ok := domain.SelectTier(tiers, request.TotalAmount)
		if !ok {
			return payoutdomain.ErrInvalidState
		}
		status := domain.StatusPending
		if tier.RequiredApprovals <= 1 {
			status = domain.StatusApproved
		}
		approval = &domain.Approval{
			ID:                s.genID.Generate(),
			PayoutRequestID:   request.ID,
			Amount:            request.TotalAmount,
			Tier:              tier.Level,
			RequiredApprovals: tier.RequiredApprovals,
			CurrentApprovals:  1,
			DelayMinutes:      int(tier.Delay / time.Minute),
			Status:            status,
			RequestedBy:       input.AdminID,
			ExpiresAt:         now.Add(policy.ApprovalExpiry()),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.InsertApproval(ctx, tx, approval); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateApproval
			}
			return err
		}
		vote = &domain.Vote{
			ID:         s.genID.Generate(),
			ApprovalID: approval.ID,
			AdminID:    input.AdminID,
			Vote:       domain.VoteApprove,
			CreatedAt:  now,
		}
		if err := s.repo.InsertVote(ctx, tx, vote); err != nil {
			return err
		}

		moved, err := s.payoutRepo.UpdateStatus(ctx, tx, request.ID,
			[]payoutdomain.RequestStatus{payoutdomain.RequestStatusPending},
			payoutdomain.RequestStatusInTransit, now)
		if err != nil {
			return err
		}
		if moved == 0 {
			return payoutdomain.ErrConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, "payout.approval_requested", notification.EventApprovalRequested, input.AdminID, request.UserID, approval, map[string]any{
		"required_approvals": approval.RequiredApprovals,
		"delay_minutes":      approval.DelayMinutes,
	})
	s.metrics.RecordApproval(ctx, approval.Tier, "requested")
	s.log.Info("crypto payout approval requested",
		zap.String("approval_id", approval.ID.String()),
		zap.String("payout_request_id", request.ID.String()),
		zap.Int("tier", approval.Tier),
		zap.Int("required_approvals", approval.RequiredApprovals),
	)

	return &domain.ApprovalDetail{
		Approval:   *approval,
		Votes:      []domain.Vote{*vote},
		CanExecute: approval.CanExecute(now),
	}, nil
}

// CastVote records one admin vote. An expired approval is closed and the vote refused.
func (s *Service) CastVote(ctx context.Context, input domain.VoteInput) (*domain.ApprovalDetail, error) {
	if input.ApprovalID == 0 || !input.Vote.Valid() {
		return nil, domain.ErrInvalidVote
	}
	comment := strings.TrimSpace(input.Comment)
	if len([]rune(comment)) > maxCommentLength {
		return nil, domain.ErrInvalidVote
	}
	if err := s.authorize(ctx, input.AdminID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		approval *domain.Approval
		request  *payoutdomain.PayoutRequest
		expired  bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		approval, err = s.repo.FindApprovalByID(ctx, tx, input.ApprovalID, true)
		if err != nil {
			return err
		}
		if approval == nil {
			return payoutdomain.ErrNotFound
		}
		if approval.Status != domain.StatusPending {
			return payoutdomain.ErrInvalidState
		}
		request, err = s.payoutRepo.FindRequestByID(ctx, tx, approval.PayoutRequestID, true)
		if err != nil {
			return err
		}
		if request == nil {
			return payoutdomain.ErrNotFound
		}

		if !now.Before(approval.ExpiresAt) {
			expired, err = s.expire(ctx, tx, approval, now)
			return err
		}

		voted, err := s.repo.HasVoted(ctx, tx, approval.ID, input.AdminID)
		if err != nil {
			return err
		}
		if voted {
			return domain.ErrDuplicateApproval
		}
		vote := &domain.Vote{
			ID:         s.genID.Generate(),
			ApprovalID: approval.ID,
			AdminID:    input.AdminID,
			Vote:       input.Vote,
			CreatedAt:  now,
		}
		if comment != "" {
			vote.Comment = &comment
		}
		if err := s.repo.InsertVote(ctx, tx, vote); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateApproval
			}
			return err
		}

		progress := domain.ApprovalProgress{
			ID:               approval.ID,
			CurrentApprovals: approval.CurrentApprovals,
			Status:           domain.StatusPending,
			UpdatedAt:        now,
		}
		switch input.Vote {
		case domain.VoteReject:
			progress.Status = domain.StatusRejected
		case domain.VoteApprove:
			progress.CurrentApprovals++
			if progress.CurrentApprovals >= approval.RequiredApprovals {
				progress.Status = domain.StatusApproved
			}
		}
		updated, err := s.repo.UpdateProgress(ctx, tx, progress)
		if err != nil {
			return err
		}
		if updated == 0 {
			return payoutdomain.ErrConflict
		}
		approval.CurrentApprovals = progress.CurrentApprovals
		approval.Status = progress.Status
		approval.UpdatedAt = now

		if progress.Status == domain.StatusRejected {
			if _, err := s.payoutRepo.UpdateStatus(ctx, tx, request.ID,
				[]payoutdomain.RequestStatus{payoutdomain.RequestStatusInTransit},
				payoutdomain.RequestStatusPending, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.afterExpiry(ctx, approval, request.UserID)
		return nil, payoutdomain.ErrInvalidState
	}

	s.afterChange(ctx, "payout.approval_voted", notification.EventApprovalVoted, input.AdminID, request.UserID, approval, map[string]any{
		"vote":              string(input.Vote),
		"current_approvals": approval.CurrentApprovals,
		"status":            string(approval.Status),
	})
	s.metrics.RecordApproval(ctx, approval.Tier, string(input.Vote))
	if approval.Status != domain.StatusPending {
		s.metrics.RecordApproval(ctx, approval.Tier, string(approval.Status))
	}

	return s.detail(ctx, s.db, approval, now)
}

func (s *Service) Get(ctx context.Context, actorID string, id snowflake.ID) (*domain.ApprovalDetail, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	approval, err := s.repo.FindApprovalByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, payoutdomain.ErrNotFound
	}
	return s.detail(ctx, s.db, approval, s.clock.Now())
}

func (s *Service) ExpireStale(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	candidates, err := s.repo.ListExpired(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}

	var (
		expiredCount int
		jobErr       error
	)
	for i := range candidates {
		candidate := candidates[i]
		var (
			userID  string
			expired bool
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			request, err := s.payoutRepo.FindRequestByID(ctx, tx, candidate.PayoutRequestID, true)
			if err != nil {
				return err
			}
			if request != nil {
				userID = request.UserID
			}
			expired, err = s.expire(ctx, tx, &candidate, now)
			return err
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("approval expiry failed", zap.String("approval_id", candidate.ID.String()), zap.Error(err))
			continue
		}
		if expired {
			expiredCount++
			s.afterExpiry(ctx, &candidate, userID)
		}
	}
	return expiredCount, jobErr
}

// expire closes a pending approval and hands its request back to pending.
func (s *Service) expire(ctx context.Context, tx *gorm.DB, approval *domain.Approval, now time.Time) (bool, error) {
	updated, err := s.repo.UpdateProgress(ctx, tx, domain.ApprovalProgress{
		ID:               approval.ID,
		CurrentApprovals: approval.CurrentApprovals,
		Status:           domain.StatusExpired,
		UpdatedAt:        now,
	})
	if err != nil || updated == 0 {
		return false, err
	}
	if _, err := s.payoutRepo.UpdateStatus(ctx, tx, approval.PayoutRequestID,
		[]payoutdomain.RequestStatus{payoutdomain.RequestStatusInTransit},
		payoutdomain.RequestStatusPending, now); err != nil {
		return false, err
	}
	approval.Status = domain.StatusExpired
	approval.UpdatedAt = now
	return true, nil
}

func (s *Service) afterExpiry(ctx context.Context, approval *domain.Approval, userID string) {
	approvalID := approval.ID.String()
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, "payout.approval_expired", "payout_approval", &approvalID, map[string]any{
		"payout_request_id": approval.PayoutRequestID.String(),
		"current_approvals": approval.CurrentApprovals,
		"required":          approval.RequiredApprovals,
	}); err != nil {
		s.log.Warn("audit approval expiry failed", zap.String("approval_id", approvalID), zap.Error(err))
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:            notification.EventApprovalExpired,
		UserID:          userID,
		PayoutRequestID: approval.PayoutRequestID.String(),
		Data:            map[string]any{"approval_id": approvalID},
	})
	s.metrics.RecordApproval(ctx, approval.Tier, string(domain.StatusExpired))
}

func (s *Service) afterChange(ctx context.Context, action string, eventType notification.EventType, adminID, userID string, approval *domain.Approval, extra map[string]any) {
	approvalID := approval.ID.String()
	metadata := map[string]any{
		"payout_request_id": approval.PayoutRequestID.String(),
		"tier":              approval.Tier,
		"amount":            approval.Amount.StringFixed(2),
	}
	for k, v := range extra {
		metadata[k] = v
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &adminID, action, "payout_approval", &approvalID, metadata); err != nil {
		s.log.Warn("audit approval change failed", zap.String("approval_id", approvalID), zap.String("action", action), zap.Error(err))
	}
	data := map[string]any{"approval_id": approvalID}
	for k, v := range extra {
		data[k] = v
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:            eventType,
		UserID:          userID,
		PayoutRequestID: approval.PayoutRequestID.String(),
		Data:            data,
	})
}

func (s *Service) detail(ctx context.Context, db *gorm.DB, approval *domain.Approval, now time.Time) (*domain.ApprovalDetail, error) {
	votes, err := s.repo.ListVotes(ctx, db, approval.ID)
	if err != nil {
		return nil, err
	}
	if votes == nil {
		votes = []domain.Vote{}
	}
	return &domain.ApprovalDetail{
		Approval:   *approval,
		Votes:      votes,
		CanExecute: approval.CanExecute(now),
	}, nil
}

func (s *Service) authorize(ctx context.Context, adminID string) error {
	return s.authz.Authorize(ctx, authorization.UserSubject(adminID), authorization.ObjectPayout, authorization.ActionPayoutApproveCrypto)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
