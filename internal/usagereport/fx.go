package usagereport

import (
	"github.com/smallbiznis/concord/internal/usagereport/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usagereport",
	fx.Provide(service.New),
)
