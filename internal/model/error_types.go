package model

// Machine-readable error types shared by step handlers, the failure path and the API.
const (
	ErrTypeInvalidRequest            = "INVALID_REQUEST"
	ErrTypeMissingDocument           = "MISSING_DOCUMENT"
	ErrTypeKycVerificationFailed     = "KYC_VERIFICATION_FAILED"
	ErrTypeAddressVerificationFailed = "ADDRESS_VERIFICATION_FAILED"
	ErrTypeAccountCreationFailed     = "ACCOUNT_CREATION_FAILED"
	ErrTypeDocumentUploadFailed      = "DOCUMENT_UPLOAD_FAILED"
	ErrTypeValidationFailed          = "VALIDATION_FAILED"
	ErrTypeUploadValidationFailed    = "UPLOAD_VALIDATION_FAILED"
	ErrTypeFileValidationFailed      = "FILE_VALIDATION_FAILED"
	ErrTypeNotificationFailed        = "NOTIFICATION_FAILED"
	ErrTypeGeneralFailure            = "GENERAL_FAILURE"
	ErrTypeGenericError              = "GENERIC_ERROR"
	ErrTypeOnboardingNotFound        = "ONBOARDING_NOT_FOUND"
	ErrTypeCustomerAlreadyExists     = "CUSTOMER_ALREADY_EXISTS"
	ErrTypeProcessStartFailed        = "PROCESS_START_FAILED"
	ErrTypeInternalServerError       = "INTERNAL_SERVER_ERROR"
)
