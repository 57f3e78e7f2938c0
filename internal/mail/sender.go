package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// ConsoleSender only logs the draft. Used when no SendGrid key is set.
type ConsoleSender struct {
	logger *zap.Logger
}

func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logging.OrNop(logger)}
}

func (c *ConsoleSender) Send(ctx context.Context, d Draft, attachments ...Attachment) error {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Filename)
	}
	c.logger.Info("Email not delivered (console sender)",
		zap.String("to", d.To),
		zap.String("subject", d.Subject),
		zap.Strings("attachments", names))
	return nil
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	key  string
	host string
	from *sgmail.Email
}

func NewSendGridSender(cfg config.MailConfig) *SendGridSender {
	return &SendGridSender{
		key:  cfg.SendgridAPIKey,
		host: sendgridHost,
		from: sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

// NewSender picks SendGrid when a key is configured.
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.SendgridAPIKey == "" {
		return NewConsoleSender(logger)
	}
	return NewSendGridSender(cfg)
}

func (s *SendGridSender) prepare(d Draft, attachments []Attachment) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = d.Subject
	p.AddTos(sgmail.NewEmail("", d.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", d.Body))

	for _, a := range attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, d Draft, attachments ...Attachment) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(d, attachments))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
