package jobcontrol

import (
	"github.com/smallbiznis/concord/internal/jobcontrol/service"
	"go.uber.org/fx"
)

var Module = fx.Module("jobcontrol",
	fx.Provide(service.New),
)
