package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SmsSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers email through the SendGrid v3 API.
type SendGridSender struct {
	client sendgridClient
	from   *mail.Email
}

func NewSendGridSender(apiKey, fromName, fromAddress string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail(fromName, fromAddress)}
}

func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), body, "")
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// GatewaySmsSender posts messages to an HTTP SMS gateway.
type GatewaySmsSender struct {
	client *resty.Client
	from   string
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

func NewGatewaySmsSender(baseURL, apiKey, from string, timeout time.Duration) *GatewaySmsSender {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &GatewaySmsSender{client: c, from: from}
}

func (s *GatewaySmsSender) SendSMS(ctx context.Context, phone, text string) error {
	var out smsResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(smsRequest{From: s.from, To: phone, Text: text}).
		SetResult(&out).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms gateway: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	log *zap.SugaredLogger
}

func NewLogSender(log *zap.SugaredLogger) *LogSender { return &LogSender{log: log} }

func (l *LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	l.log.Infow("email notification", "to", to, "subject", subject)
	return nil
}

func (l *LogSender) SendSMS(_ context.Context, phone, _ string) error {
	l.log.Infow("sms notification", "to", maskPhone(phone))
	return nil
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return "****" + p[len(p)-4:]
}
