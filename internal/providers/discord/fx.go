package discord

import (
	"strings"

	"github.com/smallbiznis/creatorpay/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.discord",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if strings.TrimSpace(cfg.Discord.BotToken) == "" {
		return &NoOpProvider{}
	}
	return NewREST(Config{
		BotToken: cfg.Discord.BotToken,
		APIBase:  cfg.Discord.APIBase,
	})
}
