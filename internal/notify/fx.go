package notify

import (
	"github.com/smallbiznis/concord/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("notify",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Notifier {
	if !cfg.SMTP.Enabled {
		return NoOpNotifier{}
	}
	return NewSMTP(SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		Recipients: cfg.SMTP.Recipients,
	})
}
