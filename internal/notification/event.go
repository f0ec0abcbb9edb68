package notification

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	EventPayoutRequested     EventType = "payout.requested"
	EventEvidenceSubmitted   EventType = "payout.evidence_submitted"
	EventEvidenceRejected    EventType = "payout.evidence_rejected"
	EventItemClawedBack      EventType = "payout.item_clawed_back"
	EventApprovalRequested   EventType = "payout.approval_requested"
	EventApprovalVoted       EventType = "payout.approval_voted"
	EventApprovalExpired     EventType = "payout.approval_expired"
	EventSubmissionStatusSet EventType = "submission.status_changed"
)

// Event is a domain fact delivered to creators and downstream consumers.
type Event struct {
	ID              string         `json:"id"`
	Type            EventType      `json:"type"`
	UserID          string         `json:"user_id,omitempty"`
	PayoutRequestID string         `json:"payout_request_id,omitempty"`
	Message         string         `json:"message,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

// Sink accepts events without ever reporting delivery failures to the caller.
type Sink interface {
	NotifyBestEffort(ctx context.Context, event Event)
}

// Recipient is the contact information of a creator.
type Recipient struct {
	UserID    string
	Username  string
	Email     string
	DiscordID string
}

// Channel delivers an event over one medium.
type Channel interface {
	Name() string
	Handles(t EventType) bool
	Deliver(ctx context.Context, recipient *Recipient, event Event) error
}

var ErrNoRecipient = errors.New("no_recipient")
