package aggregate

import (
	"github.com/smallbiznis/concord/internal/aggregate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregate",
	fx.Provide(service.New),
)
