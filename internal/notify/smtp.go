package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig is immutable; it is constructed once from the application
// config and holds everything the provider needs.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (p *SMTPNotifier) Send(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(p.cfg.Recipients) == 0 {
		return fmt.Errorf("notify: no recipients configured")
	}

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s",
		strings.Join(p.cfg.Recipients, ", "),
		report.Subject,
		mime,
		report.HTMLBody(),
	))

	return smtp.SendMail(addr, auth, p.cfg.From, p.cfg.Recipients, msg)
}
