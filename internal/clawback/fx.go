package clawback

import (
	"github.com/smallbiznis/creatorpay/internal/clawback/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clawback.service",
	fx.Provide(service.NewService),
)
