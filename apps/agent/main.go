// The agent binary runs the scheduler without the ops HTTP server, for
// deployments where probes and metrics are scraped from the monolith.
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
	"github.com/smallbiznis/concord/internal/usagereport"
	"github.com/smallbiznis/concord/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		objectstore.Module,
		notify.Module,
		extract.Module,
		jobcontrol.Module,
		usagereport.Module,
		aggregate.Module,
		override.Module,
		persist.Module,

		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
