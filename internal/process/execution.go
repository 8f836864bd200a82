package process

import (
	"fmt"
	"strconv"
	"time"
)

// Context variable keys shared by the engine and the step handlers.
const (
	VarOnboardingID          = "onboardingId"
	VarUploadedDocuments     = "uploadedDocuments"
	VarStatus                = "status"
	VarStepID                = "stepId"
	VarStepStatus            = "stepStatus"
	VarCustomerEmail         = "customerEmail"
	VarCustomerPhone         = "customerPhone"
	VarInfoCollectedAt       = "infoCollectedAt"
	VarDocumentsUploadedAt   = "documentsUploadedAt"
	VarPassportPath          = "passportPath"
	VarPhotoPath             = "photoPath"
	VarKycResult             = "kycResult"
	VarKycVerified           = "kycVerified"
	VarAddressResult         = "addressResult"
	VarAddressVerified       = "addressVerified"
	VarVerifiedBy            = "verifiedBy"
	VarAccountNumber         = "accountNumber"
	VarAccountResult         = "accountResult"
	VarNotificationResult    = "notificationResult"
	VarEmailSent             = "emailSent"
	VarSmsSent               = "smsSent"
	VarNotificationSent      = "notificationSent"
	VarNotificationTimestamp = "notificationTimestamp"
	VarErrorType             = "errorType"
	VarErrorMessage          = "errorMessage"
	VarFailedStepID          = "failedStepId"
	VarValidationErrorCode   = "validationErrorCode"
	VarValidationErrorMsg    = "validationErrorMessage"
)

// Step result values.
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
	ResultError   = "ERROR"
	ResultPartial = "PARTIAL"
)

// Execution is the view a step handler gets of one process instance.
type Execution struct {
	ProcessInstanceID string
	StepID            string
	vars              map[string]any
	now               func() time.Time
}

// NewExecution builds an execution over a copy of vars.
func NewExecution(processInstanceID, stepID string, vars map[string]any) *Execution {
	cp := make(map[string]any, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return &Execution{ProcessInstanceID: processInstanceID, StepID: stepID, vars: cp, now: time.Now}
}

// Now is the engine clock.
func (e *Execution) Now() time.Time { return e.now() }

// OnboardingID returns the business key, or "" when absent.
func (e *Execution) OnboardingID() string { return e.String(VarOnboardingID) }

func (e *Execution) Get(key string) (any, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Has reports whether key is set to a non-empty value.
func (e *Execution) Has(key string) bool {
	v, ok := e.vars[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// String returns the value of key formatted as a string.
func (e *Execution) String(key string) string {
	v, ok := e.vars[key]
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return fmt.Sprint(v)
}

// Bool reads booleans stored either natively or as text.
func (e *Execution) Bool(key string) bool {
	switch v := e.vars[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Int64 reads integers stored natively or as JSON numbers.
func (e *Execution) Int64(key string) int64 {
	switch v := e.vars[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// StringMap reads a string map, tolerating the shape it has after a JSON round trip.
func (e *Execution) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := e.vars[key].(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

func (e *Execution) Set(key string, v any) { e.vars[key] = v }

// SetIfAbsent writes v unless key already holds a non-empty value.
func (e *Execution) SetIfAbsent(key string, v any) {
	if !e.Has(key) {
		e.vars[key] = v
	}
}

func (e *Execution) Delete(keys ...string) {
	for _, k := range keys {
		delete(e.vars, k)
	}
}

// Variables returns a copy of all variables.
func (e *Execution) Variables() map[string]any {
	cp := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		cp[k] = v
	}
	return cp
}
