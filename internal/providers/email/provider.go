package email

import "context"

// Message is a rendered HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Provider delivers payout notices by email.
type Provider interface {
	Send(ctx context.Context, msg Message) error
	// SendTemplate renders an embedded template. A "subject" entry in data
	// overrides the template's default subject.
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// Disabled drops every message. It stands in when no SMTP host is configured.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return nil }

func (Disabled) SendTemplate(context.Context, []string, string, map[string]any) error { return nil }
