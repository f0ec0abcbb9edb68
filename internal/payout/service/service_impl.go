package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	ledgerdomain "github.com/smallbiznis/creatorpay/internal/ledger/domain"
	"github.com/smallbiznis/creatorpay/internal/notification"
	"github.com/smallbiznis/creatorpay/internal/observability/metrics"
	"github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/smallbiznis/creatorpay/internal/providers/pdf"
	"github.com/smallbiznis/creatorpay/internal/ratelimit"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Repo       domain.Repository
	LedgerRepo ledgerdomain.Repository
	Gate       domain.FraudGate
	AuditSvc   auditdomain.Service
	Authz      authorization.Service
	Notifier   notification.Sink
	PDF        pdf.Provider
	Profiles   notification.RecipientResolver `optional:"true"`
	Limiter    *ratelimit.PayoutLimiter       `optional:"true"`
	Metrics    *metrics.Metrics               `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     *config.PolicyHolder
	repo       domain.Repository
	ledgerRepo ledgerdomain.Repository
	gate       domain.FraudGate
	auditSvc   auditdomain.Service
	authz      authorization.Service
	notifier   notification.Sink
	pdf        pdf.Provider
	profiles   notification.RecipientResolver
	limiter    *ratelimit.PayoutLimiter
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		gate:       p.Gate,
		auditSvc:   p.AuditSvc,
		authz:      p.Authz,
		notifier:   p.Notifier,
		pdf:        p.PDF,
		profiles:   p.Profiles,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
	}
}

// RequestPayout locks every pending entry matching the input into one new
// request. The fraud gate runs after commit and never fails the request.
func (s *Service) RequestPayout(ctx context.Context, input domain.RequestPayoutInput) (*domain.RequestPayoutResult, error) {
	filter, method, err := normalizeRequestInput(input)
	if err != nil {
		return nil, err
	}
	userID := filter.UserID

	if res, err := s.limiter.AllowRequest(ctx, userID); err != nil {
		s.log.Warn("payout rate limiter unavailable", zap.String("user_id", userID), zap.Error(err))
	} else if !res.Allowed {
		s.metrics.RecordRateLimitDenied(ctx, "request_payout", "token_bucket")
		s.metrics.RecordPayoutRequest(ctx, "rate_limited")
		return nil, domain.ErrRateLimited
	} else if s.limiter.Enabled() {
		s.metrics.RecordRateLimitAllowed(ctx, "request_payout")
	}

	lease, err := s.limiter.LockUser(ctx, userID)
	switch {
	case errors.Is(err, ratelimit.ErrLockHeld):
		s.metrics.RecordPayoutRequest(ctx, "conflict")
		return nil, domain.ErrConflict
	case err != nil:
		s.log.Warn("payout user lock unavailable", zap.String("user_id", userID), zap.Error(err))
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release payout user lock", zap.String("user_id", userID), zap.Error(err))
		}
	}()

	now := s.clock.Now()
	clearingEndsAt := now.Add(s.policy.Get().ClearingPeriod())

	var (
		request      *domain.PayoutRequest
		entriesCount int
		itemsCreated int
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.ledgerRepo.ListPending(ctx, tx, filter, true)
		if err != nil {
			return err
		}
		total := ledgerdomain.SumOutstanding(pending)
		if len(pending) == 0 || !total.IsPositive() {
			return domain.ErrNoPendingBalance
		}

		request = &domain.PayoutRequest{
			ID:             s.genID.Generate(),
			UserID:         userID,
			TotalAmount:    total,
			Status:         domain.RequestStatusPending,
			PayoutMethod:   method,
			ClearingEndsAt: clearingEndsAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.InsertRequest(ctx, tx, request); err != nil {
			return err
		}

		ids := make([]snowflake.ID, 0, len(pending))
		for _, entry := range pending {
			ids = append(ids, entry.ID)
		}
		locked, err := s.ledgerRepo.LockEntries(ctx, tx, ledgerdomain.LockParams{
			IDs:             ids,
			PayoutRequestID: request.ID,
			LockedAt:        now,
			ClearingEndsAt:  clearingEndsAt,
		})
		if err != nil {
			return err
		}
		// Another request took some of these entries first; roll back the request row too.
		if locked != int64(len(ids)) {
			return domain.ErrConflict
		}

		entriesCount = len(pending)
		itemsCreated = s.createItems(ctx, tx, request, pending, now)
		return nil
	})
	if err != nil {
		s.metrics.RecordPayoutRequest(ctx, payoutOutcome(err))
		return nil, err
	}

	verdict := s.runFraudGate(ctx, request.ID)

	requestID := request.ID.String()
	metadata := map[string]any{
		"total_amount":  request.TotalAmount.StringFixed(2),
		"entries_count": entriesCount,
		"items_created": itemsCreated,
		"payout_method": string(method),
	}
	if verdict != nil {
		metadata["auto_approval_status"] = string(verdict.AutoApprovalStatus)
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &userID, "payout.requested", "payout_request", &requestID, metadata); err != nil {
		s.log.Warn("audit payout request failed", zap.String("payout_request_id", requestID), zap.Error(err))
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:            notification.EventPayoutRequested,
		UserID:          userID,
		PayoutRequestID: requestID,
		Data: map[string]any{
			"amount":           request.TotalAmount.StringFixed(2),
			"clearing_ends_at": clearingEndsAt.Format(time.RFC1123),
			"entries_count":    entriesCount,
		},
	})
	s.metrics.RecordPayoutRequest(ctx, "created")

	s.log.Info("payout requested",
		zap.String("payout_request_id", requestID),
		zap.String("user_id", userID),
		zap.String("total_amount", request.TotalAmount.StringFixed(2)),
		zap.Int("entries_count", entriesCount),
	)

	return &domain.RequestPayoutResult{
		ID:             request.ID,
		TotalAmount:    request.TotalAmount,
		EntriesCount:   entriesCount,
		ClearingEndsAt: clearingEndsAt,
		Status:         request.Status,
		FraudCheck:     verdict,
	}, nil
}

// createItems writes one item per entry inside a savepoint. Failures are
// logged and rolled back to the savepoint; the ledger stays authoritative.
func (s *Service) createItems(ctx context.Context, tx *gorm.DB, request *domain.PayoutRequest, entries []ledgerdomain.Entry, now time.Time) int {
	created := 0
	err := tx.Transaction(func(itemTx *gorm.DB) error {
		submissionIDs := make([]snowflake.ID, 0, len(entries))
		for _, entry := range entries {
			if entry.VideoSubmissionID != nil {
				submissionIDs = append(submissionIDs, *entry.VideoSubmissionID)
			}
		}
		brands, err := s.repo.BrandsForSubmissions(ctx, itemTx, submissionIDs)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			item := domain.PayoutItem{
				ID:                s.genID.Generate(),
				PayoutRequestID:   request.ID,
				LedgerEntryID:     entry.ID,
				VideoSubmissionID: entry.VideoSubmissionID,
				BoostSubmissionID: entry.BoostSubmissionID,
				Amount:            entry.Outstanding(),
				ClawbackStatus:    domain.ClawbackStatusNone,
				CreatedAt:         now,
			}
			if entry.VideoSubmissionID != nil {
				if brand, ok := brands[*entry.VideoSubmissionID]; ok {
					item.BrandID = &brand
				}
			}
			if err := s.repo.InsertItem(ctx, itemTx, &item); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		s.log.Warn("payout items not created",
			zap.String("payout_request_id", request.ID.String()),
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
		return 0
	}
	return created
}

// runFraudGate returns nil when the gate is unavailable; the request is then held for review.
func (s *Service) runFraudGate(ctx context.Context, requestID snowflake.ID) *domain.FraudVerdict {
	if s.gate != nil {
		verdict, err := s.gate.Check(ctx, requestID)
		if err == nil {
			return verdict
		}
		s.log.Warn("fraud gate failed, holding for review",
			zap.String("payout_request_id", requestID.String()),
			zap.Error(err),
		)
	}

	if err := s.repo.UpdateAutoApproval(ctx, s.db, domain.AutoApprovalUpdate{
		ID:        requestID,
		Status:    domain.AutoApprovalPendingReview,
		UpdatedAt: s.clock.Now(),
	}); err != nil {
		s.log.Error("failed to hold payout request for review",
			zap.String("payout_request_id", requestID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actorID string, id snowflake.ID) (*domain.PayoutRequestDetail, error) {
	request, err := s.repo.FindRequestByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}
	if request.UserID != actorID {
		allowed, err := s.authz.Can(ctx, authorization.UserSubject(actorID), authorization.ObjectPayout, authorization.ActionPayoutReadAny)
		if err != nil {
			return nil, err
		}
		// Other creators' requests are indistinguishable from missing ones.
		if !allowed {
			return nil, domain.ErrNotFound
		}
	}

	items, err := s.repo.ListItemsByRequest(ctx, s.db, request.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.PayoutItem{}
	}
	return &domain.PayoutRequestDetail{PayoutRequest: *request, Items: items}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPayoutRequestsRequest) (domain.ListPayoutRequestsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ListPayoutRequestsResponse{}, domain.ErrInvalidRequest
	}
	page, err := pagination.DecodeCursor(strings.TrimSpace(req.PageToken))
	if err != nil {
		return domain.ListPayoutRequestsResponse{}, pagination.ErrInvalidPageToken
	}
	cursor, err := domain.CursorFromPage(page)
	if err != nil {
		return domain.ListPayoutRequestsResponse{}, err
	}

	limit := req.Limit()
	items, err := s.repo.ListRequestsByUser(ctx, s.db, domain.ListRequestFilter{
		UserID: userID,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		return domain.ListPayoutRequestsResponse{}, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, limit, func(item *domain.PayoutRequest) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt}
	})
	if err != nil {
		return domain.ListPayoutRequestsResponse{}, err
	}

	requests := make([]domain.PayoutRequest, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		requests = append(requests, *item)
	}
	return domain.ListPayoutRequestsResponse{PageInfo: *pageInfo, PayoutRequests: requests}, nil
}

func normalizeRequestInput(input domain.RequestPayoutInput) (ledgerdomain.PendingFilter, domain.PayoutMethod, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return ledgerdomain.PendingFilter{}, "", domain.ErrInvalidRequest
	}

	sourceType := strings.ToLower(strings.TrimSpace(input.SourceType))
	switch sourceType {
	case "", string(ledgerdomain.SourceTypeCampaign), string(ledgerdomain.SourceTypeBoost):
	default:
		return ledgerdomain.PendingFilter{}, "", domain.ErrInvalidRequest
	}

	method := input.PayoutMethod
	switch method {
	case "":
		method = domain.PayoutMethodBank
	case domain.PayoutMethodBank, domain.PayoutMethodCrypto:
	default:
		return ledgerdomain.PendingFilter{}, "", domain.ErrInvalidRequest
	}

	return ledgerdomain.PendingFilter{
		UserID:            userID,
		SourceType:        sourceType,
		SourceID:          strings.TrimSpace(input.SourceID),
		VideoSubmissionID: input.VideoSubmissionID,
		BoostSubmissionID: input.BoostSubmissionID,
	}, method, nil
}

func payoutOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoPendingBalance):
		return "no_balance"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
