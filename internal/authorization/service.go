package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

type Service interface {
	// Authorize returns ErrForbidden when subject may not perform action on object.
	Authorize(ctx context.Context, subject string, object string, action string) error
	// Can reports the decision without auditing a denial.
	Can(ctx context.Context, subject string, object string, action string) (bool, error)
}

// SubjectCron is the principal used by the scheduler and the cron-triggered sweep endpoint.
const SubjectCron = "cron"

func UserSubject(userID string) string {
	return "user:" + userID
}
