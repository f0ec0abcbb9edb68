// Package domain contains core types for request authentication.
package domain

import "time"

type PrincipalKind string

const (
	PrincipalUser PrincipalKind = "user"
	PrincipalCron PrincipalKind = "cron"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Kind      PrincipalKind
	UserID    string
	ExpiresAt time.Time
}

func (p Principal) IsCron() bool { return p.Kind == PrincipalCron }
