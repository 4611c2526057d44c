package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/concord/internal/aggregate"
	"github.com/smallbiznis/concord/internal/clock"
	"github.com/smallbiznis/concord/internal/config"
	"github.com/smallbiznis/concord/internal/extract"
	"github.com/smallbiznis/concord/internal/jobcontrol"
	"github.com/smallbiznis/concord/internal/logger"
	"github.com/smallbiznis/concord/internal/migration"
	"github.com/smallbiznis/concord/internal/notify"
	"github.com/smallbiznis/concord/internal/objectstore"
	"github.com/smallbiznis/concord/internal/observability"
	"github.com/smallbiznis/concord/internal/override"
	"github.com/smallbiznis/concord/internal/persist"
	"github.com/smallbiznis/concord/internal/scheduler"
	"github.com/smallbiznis/concord/internal/server"
	"github.com/smallbiznis/concord/internal/usagereport"
	"github.com/smallbiznis/concord/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services
		objectstore.Module,
		notify.Module,
		extract.Module,
		jobcontrol.Module,
		usagereport.Module,
		aggregate.Module,
		override.Module,
		persist.Module,

		// Surfaces
		scheduler.Module,
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
