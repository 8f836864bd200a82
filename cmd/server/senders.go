package main

import (
	"github.com/richardliu001/onboarding-service/internal/config"
	"github.com/richardliu001/onboarding-service/internal/notify"
	"go.uber.org/zap"
)

// emailSender uses SendGrid when an API key is configured and logs otherwise.
func emailSender(cfg config.NotificationConfig, log *zap.SugaredLogger) notify.EmailSender {
	if cfg.SendGridAPIKey == "" {
		log.Warn("sendgrid api key not set, emails are only logged")
		return notify.NewLogSender(log)
	}
	return notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress)
}

func smsSender(cfg config.NotificationConfig, log *zap.SugaredLogger) notify.SmsSender {
	if cfg.SmsGatewayURL == "" {
		log.Warn("sms gateway not configured, sms are only logged")
		return notify.NewLogSender(log)
	}
	return notify.NewGatewaySmsSender(cfg.SmsGatewayURL, cfg.SmsAPIKey, cfg.SmsFrom, cfg.Timeout)
}
