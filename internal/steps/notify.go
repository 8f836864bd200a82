package steps

import (
	"context"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/notify"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"go.uber.org/zap"
)

// NotifyCustomer tells the customer their account is open and completes the process.
type NotifyCustomer struct {
	store    Store
	notifier Notifier
	outcomes Outcomes
	log      *zap.SugaredLogger
}

func (h *NotifyCustomer) Execute(ctx context.Context, exec *process.Execution) process.Result {
	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}
	d, sent := h.previousDelivery(exec, o)
	if sent {
		h.log.Infow("notification already sent, not sending again", "onboardingId", o.ID)
	} else {
		if res := transition(exec, o, model.StatusNotificationSent); res != nil {
			return *res
		}
		if err := h.store.SaveOnboarding(ctx, o); err != nil {
			return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
		}

		d = h.notifier.AccountCreated(ctx, notify.RecipientFor(o), deref(o.AccountNumber))
		exec.Set(process.VarEmailSent, d.EmailSent)
		exec.Set(process.VarSmsSent, d.SmsSent)
		exec.Set(process.VarNotificationTimestamp, timestamp(exec.Now()))
	}

	if !d.Any() {
		const msg = "Both email and SMS notifications failed"
		if err := o.MarkFailed(model.ErrTypeNotificationFailed, msg, exec.StepID, exec.Now()); err != nil {
			return businessFailure(exec, model.ErrTypeGeneralFailure, err.Error())
		}
		if err := h.store.SaveOnboarding(ctx, o); err != nil {
			return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
		}
		exec.Set(process.VarNotificationResult, process.ResultFailed)
		exec.Set(process.VarStatus, string(o.Status))
		h.log.Errorw("notification failed on every channel", "onboardingId", o.ID, "error", d.Err())
		return businessFailure(exec, model.ErrTypeNotificationFailed, msg)
	}

	if res := transition(exec, o, model.StatusCompleted); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o, repo.NewOnboardingEvent(o, model.EventOnboardingCompleted)); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}
	if h.outcomes != nil {
		h.outcomes.IncCompleted()
	}

	result := process.ResultSuccess
	if !d.All() {
		result = process.ResultPartial
		h.log.Warnw("notification partially delivered", "onboardingId", o.ID,
			"emailSent", d.EmailSent, "smsSent", d.SmsSent, "error", d.Err())
	}
	exec.Set(process.VarNotificationResult, result)
	h.log.Infow("onboarding completed", "onboardingId", o.ID, "notification", result)
	r := succeed(exec, o)
	exec.Set(process.VarStepStatus, result)
	return r
}

// previousDelivery returns the outcome of an earlier attempt of this step, so a
// retried execution does not notify the customer twice.
func (h *NotifyCustomer) previousDelivery(exec *process.Execution, o *model.Onboarding) (notify.Delivery, bool) {
	if o.Status != model.StatusNotificationSent || !exec.Has(process.VarEmailSent) || !exec.Has(process.VarSmsSent) {
		return notify.Delivery{}, false
	}
	return notify.Delivery{EmailSent: exec.Bool(process.VarEmailSent), SmsSent: exec.Bool(process.VarSmsSent)}, true
}
