package override

import (
	"github.com/smallbiznis/concord/internal/override/service"
	"go.uber.org/fx"
)

var Module = fx.Module("override",
	fx.Provide(service.New),
)
