package steps

import (
	"context"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/process"
	"go.uber.org/zap"
)

// CollectInfo confirms the personal data and publishes the contact fields.
type CollectInfo struct {
	store Store
	log   *zap.SugaredLogger
}

func (h *CollectInfo) Execute(ctx context.Context, exec *process.Execution) process.Result {
	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}
	if res := transition(exec, o, model.StatusInfoCollected); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}

	exec.Set(process.VarCustomerEmail, o.Email)
	exec.Set(process.VarCustomerPhone, o.Phone)
	exec.Set(process.VarInfoCollectedAt, timestamp(exec.Now()))
	h.log.Infow("customer info collected", "onboardingId", o.ID)
	return succeed(exec, o)
}
