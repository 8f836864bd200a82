package steps

import (
	"context"
	"strconv"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/provider"
	"go.uber.org/zap"
)

// KycVerification checks the customer's identity against the KYC provider.
type KycVerification struct {
	store Store
	kyc   provider.KycProvider
	log   *zap.SugaredLogger
}

func (h *KycVerification) Execute(ctx context.Context, exec *process.Execution) process.Result {
	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}
	if res := transition(exec, o, model.StatusKycInProgress); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}

	verdict, err := h.kyc.VerifyIdentity(ctx, provider.KycRequest{
		FirstName:    o.FirstName,
		LastName:     o.LastName,
		DateOfBirth:  o.DateOfBirth,
		NationalID:   o.NationalID,
		PassportPath: deref(o.PassportPath),
		PhotoPath:    deref(o.PhotoPath),
	})
	if err != nil {
		exec.Set(process.VarKycResult, process.ResultError)
		return unexpected(ctx, h.store, exec, o, false, msgKycError, err, h.log)
	}

	o.KycVerified = verdict.Passed
	o.KycNotes = verdict.Notes
	exec.Set(process.VarKycVerified, strconv.FormatBool(verdict.Passed))
	if !verdict.Passed {
		if err := h.store.SaveOnboarding(ctx, o); err != nil {
			return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
		}
		exec.Set(process.VarKycResult, process.ResultFailed)
		h.log.Warnw("kyc rejected", "onboardingId", o.ID, "reference", verdict.Reference)
		return businessFailure(exec, model.ErrTypeKycVerificationFailed, "KYC verification failed")
	}

	if res := transition(exec, o, model.StatusKycCompleted); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}
	exec.Set(process.VarKycResult, process.ResultSuccess)
	h.log.Infow("kyc verified", "onboardingId", o.ID, "reference", verdict.Reference)
	return succeed(exec, o)
}

// AddressVerification checks the customer's address against the address provider.
type AddressVerification struct {
	store   Store
	address provider.AddressProvider
	log     *zap.SugaredLogger
}

func (h *AddressVerification) Execute(ctx context.Context, exec *process.Execution) process.Result {
	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}
	if res := transition(exec, o, model.StatusAddressVerificationInProgress); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}

	verdict, err := h.address.VerifyAddress(ctx, provider.AddressRequest{
		Street:     o.Street,
		City:       o.City,
		PostalCode: o.PostalCode,
		Country:    o.Country,
	})
	if err != nil {
		exec.Set(process.VarAddressResult, process.ResultError)
		return unexpected(ctx, h.store, exec, o, false, msgAddressError, err, h.log)
	}

	o.AddressVerified = verdict.Passed
	o.AddressNotes = verdict.Notes
	exec.Set(process.VarAddressVerified, strconv.FormatBool(verdict.Passed))
	if verdict.VerifiedBy != "" {
		exec.Set(process.VarVerifiedBy, verdict.VerifiedBy)
	}
	if !verdict.Passed {
		if err := h.store.SaveOnboarding(ctx, o); err != nil {
			return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
		}
		exec.Set(process.VarAddressResult, process.ResultFailed)
		h.log.Warnw("address rejected", "onboardingId", o.ID, "reference", verdict.Reference)
		return businessFailure(exec, model.ErrTypeAddressVerificationFailed, "Address verification failed")
	}

	if res := transition(exec, o, model.StatusAddressVerificationCompleted); res != nil {
		return *res
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}
	exec.Set(process.VarAddressResult, process.ResultSuccess)
	h.log.Infow("address verified", "onboardingId", o.ID, "reference", verdict.Reference)
	return succeed(exec, o)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
