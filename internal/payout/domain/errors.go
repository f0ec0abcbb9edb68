package domain

import "errors"

var (
	ErrNoPendingBalance = errors.New("no_pending_balance")
	ErrNotFound         = errors.New("not_found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid_state")
	ErrConflict         = errors.New("conflict")
	ErrInvalidEvidence  = errors.New("invalid_evidence")
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrRateLimited      = errors.New("rate_limited")
)
