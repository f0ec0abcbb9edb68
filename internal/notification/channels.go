package notification

import (
	"context"

	"github.com/smallbiznis/creatorpay/internal/providers/discord"
	"github.com/smallbiznis/creatorpay/internal/providers/email"
)

// EmailChannel sends templated mail for events that have a template.
type EmailChannel struct {
	provider  email.Provider
	templates map[EventType]string
}

func NewEmailChannel(provider email.Provider) *EmailChannel {
	return &EmailChannel{
		provider: provider,
		templates: map[EventType]string{
			EventPayoutRequested:  "payout_requested",
			EventEvidenceRejected: "evidence_rejected",
		},
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Handles(t EventType) bool {
	_, ok := c.templates[t]
	return ok
}

func (c *EmailChannel) Deliver(ctx context.Context, recipient *Recipient, event Event) error {
	if recipient == nil || recipient.Email == "" {
		return ErrNoRecipient
	}
	data := map[string]any{"username": recipient.Username}
	for k, v := range event.Data {
		data[k] = v
	}
	return c.provider.SendTemplate(ctx, []string{recipient.Email}, c.templates[event.Type], data)
}

// DiscordChannel sends the event message as a direct message.
type DiscordChannel struct {
	provider discord.Provider
	types    map[EventType]struct{}
}

func NewDiscordChannel(provider discord.Provider) *DiscordChannel {
	return &DiscordChannel{
		provider: provider,
		types: map[EventType]struct{}{
			EventItemClawedBack:   {},
			EventEvidenceRejected: {},
		},
	}
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Handles(t EventType) bool {
	_, ok := c.types[t]
	return ok
}

func (c *DiscordChannel) Deliver(ctx context.Context, recipient *Recipient, event Event) error {
	if recipient == nil || recipient.DiscordID == "" || event.Message == "" {
		return ErrNoRecipient
	}
	return c.provider.SendDirectMessage(ctx, recipient.DiscordID, event.Message)
}
