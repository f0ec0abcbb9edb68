package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectPayout     = "payout"
	ObjectSweeper    = "sweeper"
	ObjectSubmission = "submission"
	ObjectAuditLog   = "audit_log"
)

const (
	ActionPayoutReadAny       = "payout.read_any"
	ActionPayoutClawback      = "payout.clawback"
	ActionPayoutApproveCrypto = "payout.approve_crypto"
	ActionSweeperRun          = "sweeper.run"
	ActionSubmissionApprove   = "submission.approve"
	ActionSubmissionPost      = "submission.post"
	ActionAuditLogView        = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, subject string, object string, action string) error {
	allowed, err := s.Can(ctx, subject, object, action)
	if err != nil {
		if err == ErrInvalidActor {
			s.auditDenied(ctx, subject, object, action)
		}
		return err
	}
	if !allowed {
		s.auditDenied(ctx, subject, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) Can(ctx context.Context, subject string, object string, action string) (bool, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return false, ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return false, ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return false, ErrInvalidAction
	}

	roles, err := s.rolesForSubject(ctx, subject)
	if err != nil {
		return false, err
	}
	if err := s.ensureGrouping(subject, roles); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(subject, object, action)
}

func (s *ServiceImpl) rolesForSubject(ctx context.Context, subject string) ([]string, error) {
	if subject == SubjectCron {
		return []string{"role:cron"}, nil
	}
	userID, ok := strings.CutPrefix(subject, "user:")
	if !ok || strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidActor
	}

	var rows []string
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM user_roles
		 WHERE user_id = ?`,
		userID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	roles := make([]string, 0, len(rows))
	for _, role := range rows {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		roles = append(roles, "role:"+role)
	}
	return roles, nil
}

// ensureGrouping mirrors the subject's current roles into casbin grouping rules.
func (s *ServiceImpl) ensureGrouping(subject string, roles []string) error {
	want := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		want[role] = struct{}{}
	}

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if _, ok := want[rule[1]]; ok {
			delete(want, rule[1])
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	for role := range want {
		if _, err := s.enforcer.AddGroupingPolicy(subject, role); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, subject string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	actorType := string(auditdomain.ActorTypeUser)
	var actorID *string
	if subject == SubjectCron {
		actorType = string(auditdomain.ActorTypeCron)
	} else if id, ok := strings.CutPrefix(subject, "user:"); ok {
		actorID = &id
	}
	targetID := "capability"
	if err := s.auditSvc.AuditLog(ctx, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": subject,
	}); err != nil {
		s.log.Warn("failed to audit denial", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:admin", ObjectPayout, ActionPayoutReadAny},
		{"role:admin", ObjectPayout, ActionPayoutClawback},
		{"role:admin", ObjectPayout, ActionPayoutApproveCrypto},
		{"role:admin", ObjectSweeper, ActionSweeperRun},
		{"role:admin", ObjectSubmission, ActionSubmissionApprove},
		{"role:admin", ObjectSubmission, ActionSubmissionPost},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// Brand-side reviewers decide on content; publishers only post it.
		{"role:moderator", ObjectSubmission, ActionSubmissionApprove},
		{"role:moderator", ObjectSubmission, ActionSubmissionPost},
		{"role:publisher", ObjectSubmission, ActionSubmissionPost},

		{"role:cron", ObjectSweeper, ActionSweeperRun},
	}

	for _, policy := range policies {
		// AddPolicy is a no-op for rules already loaded from casbin_rule.
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
