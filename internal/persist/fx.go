package persist

import (
	"github.com/smallbiznis/concord/internal/persist/service"
	"go.uber.org/fx"
)

var Module = fx.Module("persist",
	fx.Provide(service.New),
)
