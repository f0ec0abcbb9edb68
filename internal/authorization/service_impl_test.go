package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAuthorizer(t *testing.T) (*ServiceImpl, func(userID, role string)) {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer}).(*ServiceImpl)
	return svc, func(userID, role string) { testutil.SeedRole(t, db, node, userID, role) }
}

func TestAuthorizeAdminCapabilities(t *testing.T) {
	svc, grant := newTestAuthorizer(t)
	ctx := context.Background()
	grant("admin-1", "admin")

	require.NoError(t, svc.Authorize(ctx, UserSubject("admin-1"), ObjectPayout, ActionPayoutClawback))
	require.NoError(t, svc.Authorize(ctx, UserSubject("admin-1"), ObjectPayout, ActionPayoutApproveCrypto))
	require.ErrorIs(t, svc.Authorize(ctx, UserSubject("creator-1"), ObjectPayout, ActionPayoutClawback), ErrForbidden)
}

func TestAuthorizeTracksRoleChanges(t *testing.T) {
	svc, grant := newTestAuthorizer(t)
	ctx := context.Background()

	ok, err := svc.Can(ctx, UserSubject("mod-1"), ObjectSubmission, ActionSubmissionApprove)
	require.NoError(t, err)
	require.False(t, ok)

	grant("mod-1", "moderator")
	ok, err = svc.Can(ctx, UserSubject("mod-1"), ObjectSubmission, ActionSubmissionApprove)
	require.NoError(t, err)
	require.True(t, ok)

	grant("pub-1", "publisher")
	ok, err = svc.Can(ctx, UserSubject("pub-1"), ObjectSubmission, ActionSubmissionApprove)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = svc.Can(ctx, UserSubject("pub-1"), ObjectSubmission, ActionSubmissionPost)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthorizeCronPrincipal(t *testing.T) {
	svc, _ := newTestAuthorizer(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, SubjectCron, ObjectSweeper, ActionSweeperRun))
	require.ErrorIs(t, svc.Authorize(ctx, SubjectCron, ObjectPayout, ActionPayoutClawback), ErrForbidden)
	require.ErrorIs(t, svc.Authorize(ctx, "api_key:1", ObjectSweeper, ActionSweeperRun), ErrInvalidActor)
}
