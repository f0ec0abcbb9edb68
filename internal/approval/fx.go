package approval

import (
	"github.com/smallbiznis/creatorpay/internal/approval/repository"
	"github.com/smallbiznis/creatorpay/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
