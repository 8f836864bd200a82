package steps

import (
	"context"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/provider"
	"go.uber.org/zap"
)

// AccountCreation opens the customer's account.
type AccountCreation struct {
	store  Store
	issuer provider.AccountIssuer
	log    *zap.SugaredLogger
}

func (h *AccountCreation) Execute(ctx context.Context, exec *process.Execution) process.Result {
	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}
	// a retried job must not open a second account
	if o.AccountNumber != nil {
		exec.Set(process.VarAccountNumber, *o.AccountNumber)
		exec.Set(process.VarAccountResult, process.ResultSuccess)
		return succeed(exec, o)
	}

	if res := transition(exec, o, model.StatusAccountCreationInProgress); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}

	acct, err := h.issuer.OpenAccount(ctx, provider.AccountRequest{
		FirstName:   o.FirstName,
		LastName:    o.LastName,
		Email:       o.Email,
		Phone:       o.Phone,
		DateOfBirth: o.DateOfBirth,
		NationalID:  o.NationalID,
	})
	if err != nil {
		exec.Set(process.VarAccountResult, process.ResultError)
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}
	if acct.Number == "" {
		exec.Set(process.VarAccountResult, process.ResultFailed)
		h.log.Warnw("account issuance refused", "onboardingId", o.ID)
		return businessFailure(exec, model.ErrTypeAccountCreationFailed, "Account creation failed")
	}

	if err := o.AssignAccount(acct.Number, acct.OpeningBalance, exec.Now()); err != nil {
		return businessFailure(exec, model.ErrTypeGeneralFailure, err.Error())
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}
	exec.Set(process.VarAccountNumber, acct.Number)
	exec.Set(process.VarAccountResult, process.ResultSuccess)
	h.log.Infow("account created", "onboardingId", o.ID)
	return succeed(exec, o)
}
