package steps

import (
	"context"
	"fmt"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/notify"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/workflow"
	"go.uber.org/zap"
)

var stepErrorTypes = map[string]string{
	workflow.StepKycVerification:     model.ErrTypeKycVerificationFailed,
	workflow.StepAddressVerification: model.ErrTypeAddressVerificationFailed,
	workflow.StepAccountCreation:     model.ErrTypeAccountCreationFailed,
	workflow.StepUploadDocuments:     model.ErrTypeDocumentUploadFailed,
}

var errorTypeMessages = map[string]string{
	model.ErrTypeKycVerificationFailed:     "Identity verification failed",
	model.ErrTypeAddressVerificationFailed: "Address verification failed",
	model.ErrTypeAccountCreationFailed:     "Account creation failed",
	model.ErrTypeDocumentUploadFailed:      "Document upload failed",
}

const defaultFailureMessage = "Onboarding process failed due to an unexpected error"

// FailureHandler finalizes a record whose process failed and tells the customer.
// The FAILED status is persisted before anything that could go wrong.
type FailureHandler struct {
	store    Store
	resolver *workflow.Resolver
	notifier Notifier
	outcomes Outcomes
	log      *zap.SugaredLogger
}

func (h *FailureHandler) Execute(ctx context.Context, exec *process.Execution) process.Result {
	failedStep := exec.String(process.VarFailedStepID)
	if failedStep == "" {
		failedStep = exec.StepID
	}

	o, res := load(ctx, h.store, exec)
	if res != nil {
		h.log.Errorw("failure handler cannot load onboarding", "onboardingId", exec.OnboardingID(),
			"step", failedStep, "error", res.Message)
		return process.SystemError(fmt.Errorf("failure handler: %s", res.Message))
	}
	if o.Status == model.StatusCompleted {
		h.log.Warnw("failure reported for completed onboarding, ignoring", "onboardingId", o.ID, "step", failedStep)
		return process.Success()
	}

	errorType := h.errorType(exec, failedStep)
	errorMessage := h.errorMessage(exec, failedStep, errorType)

	if err := o.MarkFailed(errorType, errorMessage, failedStep, exec.Now()); err != nil {
		return process.SystemError(err)
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		h.log.Errorw("persist failed status", "onboardingId", o.ID, "error", err)
		return process.SystemError(fmt.Errorf("persist failed status: %w", err))
	}

	notified := h.notify(ctx, o, errorType, errorMessage)

	exec.Set(process.VarErrorType, errorType)
	exec.Set(process.VarErrorMessage, errorMessage)
	exec.Set(process.VarFailedStepID, failedStep)
	exec.Set(process.VarNotificationSent, notified)
	exec.Set(process.VarStatus, string(model.StatusFailed))

	o.FailureNotified = &notified
	if err := h.store.SaveOnboarding(ctx, o, repo.NewOnboardingEvent(o, model.EventOnboardingFailed)); err != nil {
		h.log.Errorw("persist failure notification flag", "onboardingId", o.ID, "error", err)
	}
	if h.outcomes != nil {
		h.outcomes.IncFailed(errorType)
	}
	h.log.Infow("onboarding failed", "onboardingId", o.ID, "step", failedStep,
		"errorType", errorType, "notificationSent", notified)
	return process.Success()
}

// errorType prefers the failing step's own classification, then the step
// table, then the verification result flags, then the built-in step mapping.
func (h *FailureHandler) errorType(exec *process.Execution, step string) string {
	if t := exec.String(process.VarErrorType); t != "" {
		return t
	}
	if eh, ok := h.resolver.ErrorHandling(step); ok && eh.ErrorType != "" {
		return eh.ErrorType
	}
	switch {
	case exec.String(process.VarKycResult) == process.ResultFailed:
		return model.ErrTypeKycVerificationFailed
	case exec.String(process.VarAddressResult) == process.ResultFailed:
		return model.ErrTypeAddressVerificationFailed
	case exec.String(process.VarAccountResult) == process.ResultFailed:
		return model.ErrTypeAccountCreationFailed
	}
	if t, ok := stepErrorTypes[step]; ok {
		return t
	}
	return model.ErrTypeGeneralFailure
}

func (h *FailureHandler) errorMessage(exec *process.Execution, step, errorType string) string {
	if m := exec.String(process.VarErrorMessage); m != "" {
		return m
	}
	if eh, ok := h.resolver.ErrorHandling(step); ok && eh.DefaultMessage != "" {
		return eh.DefaultMessage
	}
	if m, ok := errorTypeMessages[errorType]; ok {
		return m
	}
	return defaultFailureMessage
}

// notify never fails the handler; it reports whether both channels delivered.
func (h *FailureHandler) notify(ctx context.Context, o *model.Onboarding, errorType, errorMessage string) (sent bool) {
	if h.notifier == nil {
		return false
	}
	if o.FailureNotified != nil && *o.FailureNotified {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("failure notification panicked", "onboardingId", o.ID, "panic", r)
			sent = false
		}
	}()
	d := h.notifier.Failure(ctx, notify.RecipientFor(o), errorType, errorMessage)
	if err := d.Err(); err != nil {
		h.log.Warnw("failure notification not fully delivered", "onboardingId", o.ID,
			"emailSent", d.EmailSent, "smsSent", d.SmsSent, "error", err)
	}
	return d.All()
}
