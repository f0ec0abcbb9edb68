package sweeper

import (
	"github.com/smallbiznis/creatorpay/internal/sweeper/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sweeper.service",
	fx.Provide(service.NewService),
)
