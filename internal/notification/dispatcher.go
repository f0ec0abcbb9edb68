package notification

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/observability/metrics"
	"go.uber.org/zap"
)

const defaultDeliveryTimeout = 5 * time.Second

type RecipientResolver interface {
	Resolve(ctx context.Context, userID string) (*Recipient, error)
}

// Dispatcher fans an event out to every channel that handles its type.
type Dispatcher struct {
	log      *zap.Logger
	clock    clock.Clock
	resolver RecipientResolver
	channels []Channel
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewDispatcher(log *zap.Logger, clk clock.Clock, resolver RecipientResolver, m *metrics.Metrics, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		log:      log.Named("notification.dispatcher"),
		clock:    clk,
		resolver: resolver,
		channels: channels,
		metrics:  m,
		timeout:  defaultDeliveryTimeout,
	}
}

func (d *Dispatcher) NotifyBestEffort(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.clock.Now()
	}
	// Delivery outlives a cancelled request; the caller has already committed.
	base := context.WithoutCancel(ctx)

	var recipient *Recipient
	if event.UserID != "" && d.resolver != nil {
		resolved, err := d.resolver.Resolve(base, event.UserID)
		if err != nil {
			d.log.Warn("recipient lookup failed",
				zap.String("event_type", string(event.Type)),
				zap.String("user_id", event.UserID),
				zap.Error(err),
			)
		}
		recipient = resolved
	}

	for _, ch := range d.channels {
		if !ch.Handles(event.Type) {
			continue
		}
		deliverCtx, cancel := context.WithTimeout(base, d.timeout)
		err := ch.Deliver(deliverCtx, recipient, event)
		cancel()

		outcome := "delivered"
		switch {
		case errors.Is(err, ErrNoRecipient):
			outcome = "skipped"
		case err != nil:
			outcome = "failed"
			d.log.Warn("notification delivery failed",
				zap.String("channel", ch.Name()),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
		d.metrics.RecordNotification(base, ch.Name(), outcome)
	}
}
