package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/notification"
	"github.com/smallbiznis/creatorpay/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCaptionLength = 2200

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service
	Notifier notification.Sink
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
	notifier notification.Sink
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("submission.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
		notifier: p.Notifier,
	}
}

func (s *Service) Get(ctx context.Context, actorID string, id snowflake.ID) (*domain.SubmissionDetail, error) {
	submission, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, domain.ErrNotFound
	}
	if submission.UserID != actorID {
		perms, err := s.permissions(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !perms.CanApprove && !perms.CanPost {
			return nil, domain.ErrNotFound
		}
	}
	return s.detail(ctx, s.db, submission)
}

// UpdatePlatformStatus moves one platform along the status graph and
// recomputes the submission's aggregate status in the same transaction.
func (s *Service) UpdatePlatformStatus(ctx context.Context, input domain.UpdatePlatformStatusInput) (*domain.SubmissionDetail, error) {
	platform := strings.ToLower(strings.TrimSpace(input.Platform))
	if platform == "" || !input.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	postedURL := strings.TrimSpace(input.PostedURL)
	if input.Status == domain.StatusPosted && postedURL == "" {
		return nil, domain.ErrMissingPostedURL
	}

	perms, err := s.permissions(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		detail *domain.SubmissionDetail
		from   domain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.repo.FindByID(ctx, tx, input.SubmissionID, true)
		if err != nil {
			return err
		}
		if submission == nil {
			return domain.ErrNotFound
		}
		if submission.UserID != input.ActorID && !perms.CanApprove && !perms.CanPost {
			return domain.ErrNotFound
		}

		current, err := s.repo.FindPlatform(ctx, tx, submission.ID, platform, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		from = current.Status
		if err := domain.CheckTransition(current.Status, input.Status, perms); err != nil {
			return err
		}

		update := domain.PlatformStatusUpdate{
			PlatformID: current.ID,
			Status:     input.Status,
			UpdatedAt:  now,
		}
		if input.Status == domain.StatusPosted {
			update.PostedURL = &postedURL
			update.PostedAt = &now
		}
		if err := s.repo.UpdatePlatformStatus(ctx, tx, update); err != nil {
			return err
		}

		platforms, err := s.repo.ListPlatforms(ctx, tx, submission.ID)
		if err != nil {
			return err
		}
		statuses := make([]domain.Status, 0, len(platforms))
		for _, p := range platforms {
			statuses = append(statuses, p.Status)
		}
		aggregate := domain.AggregateStatus(statuses)
		if aggregate != submission.Status {
			if err := s.repo.UpdateStatus(ctx, tx, submission.ID, aggregate, now); err != nil {
				return err
			}
			submission.Status = aggregate
			submission.UpdatedAt = now
		}

		detail = &domain.SubmissionDetail{Submission: *submission, Platforms: platforms}
		return nil
	})
	if err != nil {
		return nil, err
	}

	submissionID := input.SubmissionID.String()
	actorID := input.ActorID
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "submission.status_changed", "video_submission", &submissionID, map[string]any{
		"platform":         platform,
		"from":             string(from),
		"to":               string(input.Status),
		"aggregate_status": string(detail.Status),
	}); err != nil {
		s.log.Warn("audit submission status failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
	s.notifier.NotifyBestEffort(ctx, notification.Event{
		Type:   notification.EventSubmissionStatusSet,
		UserID: detail.UserID,
		Data: map[string]any{
			"submission_id": submissionID,
			"platform":      platform,
			"status":        string(input.Status),
		},
	})
	return detail, nil
}

// UpdateCaption is allowed until any platform has been posted.
func (s *Service) UpdateCaption(ctx context.Context, input domain.UpdateCaptionInput) (*domain.SubmissionDetail, error) {
	caption := strings.TrimSpace(input.Caption)
	if caption == "" || len([]rune(caption)) > maxCaptionLength {
		return nil, domain.ErrInvalidCaption
	}

	perms, err := s.permissions(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var detail *domain.SubmissionDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.repo.FindByID(ctx, tx, input.SubmissionID, true)
		if err != nil {
			return err
		}
		if submission == nil {
			return domain.ErrNotFound
		}
		if submission.UserID != input.ActorID && !perms.CanApprove {
			return domain.ErrForbidden
		}

		platforms, err := s.repo.ListPlatforms(ctx, tx, submission.ID)
		if err != nil {
			return err
		}
		for _, p := range platforms {
			if p.Status == domain.StatusPosted {
				return domain.ErrInvalidState
			}
		}

		if err := s.repo.UpdateCaption(ctx, tx, submission.ID, caption, now); err != nil {
			return err
		}
		submission.Caption = caption
		submission.UpdatedAt = now
		detail = &domain.SubmissionDetail{Submission: *submission, Platforms: platforms}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) permissions(ctx context.Context, actorID string) (domain.Permissions, error) {
	subject := authorization.UserSubject(actorID)
	canApprove, err := s.authz.Can(ctx, subject, authorization.ObjectSubmission, authorization.ActionSubmissionApprove)
	if err != nil {
		return domain.Permissions{}, err
	}
	canPost, err := s.authz.Can(ctx, subject, authorization.ObjectSubmission, authorization.ActionSubmissionPost)
	if err != nil {
		return domain.Permissions{}, err
	}
	return domain.Permissions{CanApprove: canApprove, CanPost: canPost}, nil
}

func (s *Service) detail(ctx context.Context, db *gorm.DB, submission *domain.Submission) (*domain.SubmissionDetail, error) {
	platforms, err := s.repo.ListPlatforms(ctx, db, submission.ID)
	if err != nil {
		return nil, err
	}
	if platforms == nil {
		platforms = []domain.Platform{}
	}
	return &domain.SubmissionDetail{Submission: *submission, Platforms: platforms}, nil
}
