package objectstore

import (
	"github.com/smallbiznis/concord/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("objectstore",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the HTTP client, or the in-memory store when no
// base URL is configured (local development).
func NewFromConfig(cfg config.Config, log *zap.Logger) Store {
	if cfg.Store.BaseURL == "" {
		log.Warn("object store URL not configured, using in-memory store")
		return NewMemory()
	}
	return NewClient(ClientConfig{
		BaseURL:   cfg.Store.BaseURL,
		AuthToken: cfg.Store.AuthToken,
		Timeout:   cfg.Store.Timeout,
	})
}
