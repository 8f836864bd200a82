// Package steps implements the onboarding step handlers and the failure
// handler every unhandled step failure converges on.
package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/notify"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/provider"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/storage"
	"github.com/richardliu001/onboarding-service/internal/workflow"
	"go.uber.org/zap"
)

// Store is the slice of the repository the handlers use.
type Store interface {
	GetOnboarding(ctx context.Context, id string) (*model.Onboarding, error)
	SaveOnboarding(ctx context.Context, o *model.Onboarding, events ...*model.OutboxEvent) error
}

// Notifier sends customer notifications; *notify.Notifier implements it.
type Notifier interface {
	AccountCreated(ctx context.Context, r notify.Recipient, accountNumber string) notify.Delivery
	Failure(ctx context.Context, r notify.Recipient, errorType, errorMessage string) notify.Delivery
}

// Outcomes counts terminal results; *metrics.Metrics implements it.
type Outcomes interface {
	IncCompleted()
	IncFailed(errorType string)
}

// Documents inspects and discards stored documents.
type Documents interface {
	Inspect(path string) (storage.Metadata, error)
	Remove(path string) error
}

// Deps wires the handlers to their collaborators.
type Deps struct {
	Store     Store
	Resolver  *workflow.Resolver
	Kyc       provider.KycProvider
	Address   provider.AddressProvider
	Accounts  provider.AccountIssuer
	Notifier  Notifier
	Documents Documents
	Rules     storage.Rules
	Outcomes  Outcomes
	Log       *zap.SugaredLogger
}

// Handlers groups one instance of every handler.
type Handlers struct {
	CollectInfo         *CollectInfo
	UploadDocuments     *UploadDocuments
	ValidateDocuments   *ValidateDocuments
	UploadValidation    *UploadValidation
	KycVerification     *KycVerification
	AddressVerification *AddressVerification
	AccountCreation     *AccountCreation
	NotifyCustomer      *NotifyCustomer
	Failure             *FailureHandler
}

func NewHandlers(d Deps) Handlers {
	if d.Resolver == nil {
		d.Resolver = workflow.NewResolver(nil)
	}
	if d.Rules == nil {
		d.Rules = storage.DefaultRules()
	}
	return Handlers{
		CollectInfo:         &CollectInfo{store: d.Store, log: d.Log},
		UploadDocuments:     &UploadDocuments{store: d.Store, docs: d.Documents, log: d.Log},
		ValidateDocuments:   &ValidateDocuments{rules: d.Rules, log: d.Log},
		UploadValidation:    &UploadValidation{store: d.Store, docs: d.Documents, log: d.Log},
		KycVerification:     &KycVerification{store: d.Store, kyc: d.Kyc, log: d.Log},
		AddressVerification: &AddressVerification{store: d.Store, address: d.Address, log: d.Log},
		AccountCreation:     &AccountCreation{store: d.Store, issuer: d.Accounts, log: d.Log},
		NotifyCustomer:      &NotifyCustomer{store: d.Store, notifier: d.Notifier, outcomes: d.Outcomes, log: d.Log},
		Failure:             &FailureHandler{store: d.Store, resolver: d.Resolver, notifier: d.Notifier, outcomes: d.Outcomes, log: d.Log},
	}
}

// Definition lays the handlers out in process order.
func (h Handlers) Definition(r *workflow.Resolver) *process.Definition {
	return &process.Definition{
		Key: r.ProcessDefinitionKey(),
		Steps: []process.Step{
			{ID: workflow.StepCollectInfo, Handler: h.CollectInfo},
			{ID: workflow.StepWaitDocuments, Message: r.MessageName(workflow.StepWaitDocuments)},
			{ID: workflow.StepUploadDocuments, Handler: h.UploadDocuments},
			{ID: workflow.StepValidateDocuments, Handler: h.ValidateDocuments, OnFailure: &process.Boundary{
				Handler:  h.UploadValidation,
				ResumeAt: workflow.StepWaitDocuments,
			}},
			{ID: workflow.StepKycVerification, Handler: h.KycVerification},
			{ID: workflow.StepAddressVerification, Handler: h.AddressVerification},
			{ID: workflow.StepAccountCreation, Handler: h.AccountCreation},
			{ID: workflow.StepNotifyCustomer, Handler: h.NotifyCustomer},
		},
		OnError: h.Failure,
	}
}

// load fetches the record named by the execution. A non-nil Result means the
// handler must return it unchanged.
func load(ctx context.Context, store Store, exec *process.Execution) (*model.Onboarding, *process.Result) {
	id := exec.OnboardingID()
	if id == "" {
		res := process.Failure(model.ErrTypeInvalidRequest, "onboarding id is required")
		return nil, &res
	}
	o, err := store.GetOnboarding(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		res := process.Failure(model.ErrTypeInvalidRequest, fmt.Sprintf("onboarding %s not found", id))
		return nil, &res
	}
	if err != nil {
		res := process.SystemError(fmt.Errorf("load onboarding %s: %w", id, err))
		return nil, &res
	}
	return o, nil
}

// Customer-safe messages for unexpected errors. The cause only goes to the
// log and the instance incident.
const (
	msgSystemError  = "System error"
	msgKycError     = "KYC verification error"
	msgAddressError = "Address verification error"
)

// unexpected records an unexpected error on the execution, persists the
// record when the caller has unsaved changes, and re-signals the error.
func unexpected(ctx context.Context, store Store, exec *process.Execution, o *model.Onboarding, dirty bool, message string, err error, log *zap.SugaredLogger) process.Result {
	exec.Set(process.VarStepStatus, process.ResultError)
	exec.Set(process.VarErrorMessage, message)
	exec.Set(process.VarFailedStepID, exec.StepID)
	if o != nil && dirty {
		if serr := store.SaveOnboarding(ctx, o); serr != nil {
			log.Errorw("persist after unexpected error", "onboardingId", o.ID, "step", exec.StepID, "error", serr)
		}
	}
	log.Errorw("step error", "onboardingId", exec.OnboardingID(), "step", exec.StepID, "error", err)
	return process.SystemError(err)
}

// businessFailure publishes the failure on the execution for the failure handler.
func businessFailure(exec *process.Execution, code, message string) process.Result {
	exec.Set(process.VarStepStatus, process.ResultFailed)
	exec.Set(process.VarErrorType, code)
	exec.Set(process.VarErrorMessage, message)
	exec.Set(process.VarFailedStepID, exec.StepID)
	return process.Failure(code, message)
}

func succeed(exec *process.Execution, o *model.Onboarding) process.Result {
	exec.Set(process.VarStatus, string(o.Status))
	exec.Set(process.VarStepID, exec.StepID)
	exec.Set(process.VarStepStatus, process.ResultSuccess)
	return process.Success()
}

// transition applies a status change; an illegal one is a business failure
// because retrying cannot fix it.
func transition(exec *process.Execution, o *model.Onboarding, next model.Status) *process.Result {
	if err := o.Transition(next, exec.Now()); err != nil {
		res := businessFailure(exec, model.ErrTypeGeneralFailure, err.Error())
		return &res
	}
	return nil
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
