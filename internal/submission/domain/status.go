package domain

type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusReadyToPost Status = "ready_to_post"
	StatusPosted      Status = "posted"
	StatusRejected    Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusReadyToPost, StatusPosted, StatusRejected:
		return true
	}
	return false
}

// Permissions are the caller's capabilities on a submission.
type Permissions struct {
	CanApprove bool
	CanPost    bool
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusApproved, StatusRejected},
	StatusApproved:    {StatusPending, StatusReadyToPost, StatusRejected},
	StatusReadyToPost: {StatusApproved, StatusPosted, StatusRejected},
	StatusRejected:    {StatusPending},
	StatusPosted:      {},
}

// CheckTransition returns ErrInvalidTransition for an edge outside the
// graph and ErrForbidden when the edge exists but perms do not cover it.
func CheckTransition(from, to Status, perms Permissions) error {
	allowed := false
	for _, next := range transitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrInvalidTransition
	}

	switch to {
	case StatusApproved, StatusRejected:
		if !perms.CanApprove {
			return ErrForbidden
		}
	case StatusReadyToPost, StatusPosted:
		if !perms.CanPost {
			return ErrForbidden
		}
	case StatusPending:
		if from != StatusRejected && !perms.CanApprove {
			return ErrForbidden
		}
	}
	return nil
}

// IsValidTransition reports whether from→to is allowed. Posted is terminal.
func IsValidTransition(from, to Status, perms Permissions) bool {
	return CheckTransition(from, to, perms) == nil
}

// AggregateStatus folds per-platform statuses into the submission status.
func AggregateStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusPending
	}

	counts := make(map[Status]int, len(statuses))
	for _, s := range statuses {
		counts[s]++
	}
	switch {
	case counts[StatusPosted] == len(statuses):
		return StatusPosted
	case counts[StatusRejected] > 0 && counts[StatusPosted] == 0:
		return StatusRejected
	case counts[StatusReadyToPost] > 0:
		return StatusReadyToPost
	case counts[StatusApproved] > 0:
		return StatusApproved
	default:
		return StatusPending
	}
}
