package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/creatorpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Publisher publishes raw payloads to a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventChannel publishes every event to NATS for downstream consumers.
type EventChannel struct {
	publisher Publisher
	prefix    string
}

func NewEventChannel(publisher Publisher, prefix string) *EventChannel {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "creatorpay"
	}
	return &EventChannel{publisher: publisher, prefix: prefix}
}

func (c *EventChannel) Name() string { return "nats" }

func (c *EventChannel) Handles(EventType) bool { return c.publisher != nil }

func (c *EventChannel) Subject(t EventType) string {
	return c.prefix + "." + string(t)
}

func (c *EventChannel) Deliver(ctx context.Context, _ *Recipient, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.publisher.Publish(c.Subject(event.Type), payload)
}

// NewNATSConn connects lazily so the API starts even when the broker is down.
// A nil connection disables event publishing.
func NewNATSConn(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*nats.Conn, error) {
	url := strings.TrimSpace(cfg.NATS.URL)
	if url == "" {
		return nil, nil
	}
	log = log.Named("notification.nats")

	conn, err := nats.Connect(url,
		nats.Name(cfg.AppName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return conn.Drain()
		},
	})
	return conn, nil
}
