package workflow

import "github.com/richardliu001/onboarding-service/internal/model"

const ProcessStartedMessage = "Onboarding process started successfully"

var statusDescriptions = map[model.Status]string{
	model.StatusInitiated:                     "Onboarding process initiated",
	model.StatusInfoCollected:                 "Customer information collected",
	model.StatusWaitingForDocuments:           "Waiting for document upload",
	model.StatusDocumentsUploaded:             "Documents uploaded successfully",
	model.StatusKycInProgress:                 "KYC verification in progress",
	model.StatusKycCompleted:                  "KYC verification completed",
	model.StatusAddressVerificationInProgress: "Address verification in progress",
	model.StatusAddressVerificationCompleted:  "Address verification completed",
	model.StatusAccountCreationInProgress:     "Account creation in progress",
	model.StatusAccountCreated:                "Bank account created",
	model.StatusNotificationSent:              "Customer notification sent",
	model.StatusCompleted:                     "Onboarding completed successfully",
	model.StatusFailed:                        "Onboarding failed",
}

var currentStepText = map[model.Status]string{
	model.StatusInitiated:                     "Starting onboarding process",
	model.StatusInfoCollected:                 "Information collected successfully",
	model.StatusWaitingForDocuments:           "Waiting for document upload",
	model.StatusDocumentsUploaded:             "Documents uploaded and processed",
	model.StatusKycInProgress:                 "KYC verification in progress",
	model.StatusKycCompleted:                  "KYC verification completed",
	model.StatusAddressVerificationInProgress: "Address verification in progress",
	model.StatusAddressVerificationCompleted:  "Address verification completed",
	model.StatusAccountCreationInProgress:     "Creating bank account",
	model.StatusAccountCreated:                "Bank account created successfully",
	model.StatusNotificationSent:              "Customer notification sent",
	model.StatusCompleted:                     "Onboarding completed successfully",
	model.StatusFailed:                        "Onboarding process failed",
}

var nextSteps = map[model.Status]string{
	model.StatusInitiated:                     StepCollectInfo,
	model.StatusInfoCollected:                 StepUploadDocuments,
	model.StatusWaitingForDocuments:           StepUploadDocuments,
	model.StatusDocumentsUploaded:             StepKycVerification,
	model.StatusKycInProgress:                 StepKycVerification,
	model.StatusKycCompleted:                  StepAddressVerification,
	model.StatusAddressVerificationInProgress: StepAddressVerification,
	model.StatusAddressVerificationCompleted:  StepAccountCreation,
	model.StatusAccountCreationInProgress:     StepAccountCreation,
	model.StatusAccountCreated:                StepNotifyCustomer,
	model.StatusNotificationSent:              StepComplete,
}

var defaultNextStepText = map[model.Status]string{
	model.StatusInitiated:                     "Please provide your personal information",
	model.StatusInfoCollected:                 "Please upload your passport and photo documents",
	model.StatusWaitingForDocuments:           "Please upload your passport and photo documents",
	model.StatusDocumentsUploaded:             "Documents processed, verification in progress",
	model.StatusKycInProgress:                 "KYC verification in progress",
	model.StatusKycCompleted:                  "Address verification in progress",
	model.StatusAddressVerificationInProgress: "Address verification in progress",
	model.StatusAddressVerificationCompleted:  "Creating your bank account",
	model.StatusAccountCreationInProgress:     "Creating your bank account",
	model.StatusAccountCreated:                "Sending account details to you",
	model.StatusNotificationSent:              "Onboarding process completed",
	model.StatusCompleted:                     "Onboarding completed successfully",
	model.StatusFailed:                        "Please contact support for assistance",
}

// Resolver maps statuses and steps to display text, preferring the step table
// and falling back to built-in text. It never fails.
type Resolver struct {
	def *Definition
}

func NewResolver(def *Definition) *Resolver {
	if def == nil {
		def = Empty()
	}
	return &Resolver{def: def}
}

// ProcessDefinitionKey is the key new process instances are started under.
func (r *Resolver) ProcessDefinitionKey() string {
	if r.def.key != "" {
		return r.def.key
	}
	return DefaultProcessDefinitionKey
}

// Describe returns the description of a status.
func (r *Resolver) Describe(s model.Status) string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return string(s)
}

// CurrentStep returns the text for the step the record is at.
func (r *Resolver) CurrentStep(s model.Status) string {
	if d, ok := currentStepText[s]; ok {
		return d
	}
	return string(s)
}

// NextStepID returns the next step to run, or "" for terminal statuses.
func (r *Resolver) NextStepID(s model.Status) string {
	return nextSteps[s]
}

// NextStepDescription describes what happens next for a record in status s.
func (r *Resolver) NextStepDescription(s model.Status) string {
	if id := nextSteps[s]; id != "" {
		if step, ok := r.def.Step(id); ok {
			if step.NextStepDescription != "" {
				return step.NextStepDescription
			}
			if step.Description != "" {
				return step.Description
			}
		}
	}
	return defaultNextStepText[s]
}

// MessageName returns the message a waiting step expects.
func (r *Resolver) MessageName(stepID string) string {
	if step, ok := r.def.Step(stepID); ok && step.MessageName != "" {
		return step.MessageName
	}
	if stepID == StepWaitDocuments {
		return DefaultDocumentMessage
	}
	return ""
}

// ErrorHandling returns the configured failure classification of a step.
func (r *Resolver) ErrorHandling(stepID string) (ErrorHandling, bool) {
	step, ok := r.def.Step(stepID)
	if !ok || step.ErrorHandling == nil {
		return ErrorHandling{}, false
	}
	return *step.ErrorHandling, true
}
