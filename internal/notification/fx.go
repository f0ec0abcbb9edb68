package notification

import (
	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/observability/metrics"
	"github.com/smallbiznis/creatorpay/internal/providers/discord"
	"github.com/smallbiznis/creatorpay/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("notification",
	fx.Provide(NewNATSConn),
	fx.Provide(func(db *gorm.DB) RecipientResolver { return NewProfileResolver(db) }),
	fx.Provide(provideSink),
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Resolver RecipientResolver
	Metrics  *metrics.Metrics `optional:"true"`
	Email    email.Provider
	Discord  discord.Provider
	NATS     *nats.Conn `optional:"true"`
}

func provideSink(p Params) Sink {
	channels := []Channel{
		NewEmailChannel(p.Email),
		NewDiscordChannel(p.Discord),
	}
	if p.NATS != nil {
		channels = append(channels, NewEventChannel(p.NATS, p.Cfg.NATS.SubjectPrefix))
	}
	return NewDispatcher(p.Log, p.Clock, p.Resolver, p.Metrics, channels...)
}
