package testutil

import (
	"context"
	"sync"

	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
)

// AuditRecorder captures audit actions in memory.
type AuditRecorder struct {
	mu      sync.Mutex
	Actions []string
}

func (r *AuditRecorder) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Actions = append(r.Actions, action)
	return nil
}

func (r *AuditRecorder) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (r *AuditRecorder) Trail(ctx context.Context, targetType, targetID string) ([]auditdomain.AuditLog, error) {
	return []auditdomain.AuditLog{}, nil
}

func (r *AuditRecorder) Has(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}
