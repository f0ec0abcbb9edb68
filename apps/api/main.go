package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creatorpay/internal/approval"
	"github.com/smallbiznis/creatorpay/internal/audit"
	"github.com/smallbiznis/creatorpay/internal/auth"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clawback"
	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/fraud"
	"github.com/smallbiznis/creatorpay/internal/ledger"
	"github.com/smallbiznis/creatorpay/internal/notification"
	"github.com/smallbiznis/creatorpay/internal/observability"
	"github.com/smallbiznis/creatorpay/internal/payout"
	"github.com/smallbiznis/creatorpay/internal/providers"
	"github.com/smallbiznis/creatorpay/internal/ratelimit"
	"github.com/smallbiznis/creatorpay/internal/server"
	"github.com/smallbiznis/creatorpay/internal/submission"
	"github.com/smallbiznis/creatorpay/internal/sweeper"
	"github.com/smallbiznis/creatorpay/internal/wallet"
	"github.com/smallbiznis/creatorpay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		auth.Module,
		authorization.Module,
		audit.Module,
		ratelimit.Module,
		providers.Module,
		notification.Module,

		ledger.Module,
		wallet.Module,
		fraud.Module,
		payout.Module,
		submission.Module,
		clawback.Module,
		approval.Module,
		// Serves the manual /process-evidence-deadlines trigger.
		sweeper.Module,

		// No scheduler module: the cron deployment runs apps/scheduler.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
