// Package notify sends customer email and SMS notifications.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Delivery is the per-channel outcome of one notification.
type Delivery struct {
	EmailSent bool
	SmsSent   bool
	EmailErr  error
	SmsErr    error
}

func (d Delivery) All() bool { return d.EmailSent && d.SmsSent }
func (d Delivery) Any() bool { return d.EmailSent || d.SmsSent }

// Err joins the channel errors.
func (d Delivery) Err() error { return errors.Join(d.EmailErr, d.SmsErr) }

// DeliveryObserver receives per-channel outcomes; metrics.Metrics implements it.
type DeliveryObserver interface {
	ObserveNotification(channel, kind string, sent bool)
}

// Notifier sends every notification on both channels independently, each
// bounded by its own timeout. Nothing is retried.
type Notifier struct {
	email    EmailSender
	sms      SmsSender
	timeout  time.Duration
	log      *zap.SugaredLogger
	observer DeliveryObserver
}

func NewNotifier(email EmailSender, sms SmsSender, timeout time.Duration, log *zap.SugaredLogger, obs DeliveryObserver) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{email: email, sms: sms, timeout: timeout, log: log, observer: obs}
}

// AccountCreated tells the customer their account is open.
func (n *Notifier) AccountCreated(ctx context.Context, r Recipient, accountNumber string) Delivery {
	return n.send(ctx, "account_created", r, accountCreatedContent(r, accountNumber))
}

// Failure tells the customer which part of onboarding failed, in customer-safe language.
func (n *Notifier) Failure(ctx context.Context, r Recipient, errorType, errorMessage string) Delivery {
	return n.send(ctx, "failure", r, failureContent(r, errorType, errorMessage))
}

func (n *Notifier) send(ctx context.Context, kind string, r Recipient, c content) Delivery {
	var (
		d  Delivery
		wg sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.EmailErr = n.deliver(ctx, func(ctx context.Context) error {
			if r.Email == "" {
				return errors.New("no email address")
			}
			return n.email.SendEmail(ctx, r.Email, c.subject, c.email)
		})
		d.EmailSent = d.EmailErr == nil
	}()
	go func() {
		defer wg.Done()
		d.SmsErr = n.deliver(ctx, func(ctx context.Context) error {
			if r.Phone == "" {
				return errors.New("no phone number")
			}
			return n.sms.SendSMS(ctx, r.Phone, c.sms)
		})
		d.SmsSent = d.SmsErr == nil
	}()
	wg.Wait()

	if d.EmailErr != nil {
		n.log.Warnw("email notification failed", "kind", kind, "error", d.EmailErr)
	}
	if d.SmsErr != nil {
		n.log.Warnw("sms notification failed", "kind", kind, "error", d.SmsErr)
	}
	if n.observer != nil {
		n.observer.ObserveNotification(ChannelEmail, kind, d.EmailSent)
		n.observer.ObserveNotification(ChannelSMS, kind, d.SmsSent)
	}
	return d
}

// deliver runs one channel with a timeout and turns panics into errors.
func (n *Notifier) deliver(ctx context.Context, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("notification sender panicked")
		}
	}()
	return fn(ctx)
}
