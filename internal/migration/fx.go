package migration

import (
	"context"

	"github.com/smallbiznis/creatorpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := RunMigrations(ctx, conn); err != nil {
					return err
				}
				log.Named("migration").Info("schema up to date", zap.String("dialect", conn.Dialector.Name()))
				return nil
			},
		})
	}),
)
