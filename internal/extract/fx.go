package extract

import (
	"github.com/smallbiznis/concord/internal/extract/service"
	"go.uber.org/fx"
)

var Module = fx.Module("extract",
	fx.Provide(service.New),
)
