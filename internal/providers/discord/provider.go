package discord

import "context"

type Provider interface {
	// SendDirectMessage opens (or reuses) a DM channel with the user and posts message.
	SendDirectMessage(ctx context.Context, discordUserID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendDirectMessage(ctx context.Context, discordUserID string, message string) error {
	return nil
}
