package model

import (
	"errors"
	"fmt"
)

// Status is the lifecycle position of an onboarding record.
type Status string

const (
	StatusInitiated                     Status = "INITIATED"
	StatusInfoCollected                 Status = "INFO_COLLECTED"
	StatusWaitingForDocuments           Status = "WAITING_FOR_DOCUMENTS"
	StatusDocumentsUploaded             Status = "DOCUMENTS_UPLOADED"
	StatusKycInProgress                 Status = "KYC_IN_PROGRESS"
	StatusKycCompleted                  Status = "KYC_COMPLETED"
	StatusAddressVerificationInProgress Status = "ADDRESS_VERIFICATION_IN_PROGRESS"
	StatusAddressVerificationCompleted  Status = "ADDRESS_VERIFICATION_COMPLETED"
	StatusAccountCreationInProgress     Status = "ACCOUNT_CREATION_IN_PROGRESS"
	StatusAccountCreated                Status = "ACCOUNT_CREATED"
	StatusNotificationSent              Status = "NOTIFICATION_SENT"
	StatusCompleted                     Status = "COMPLETED"
	StatusFailed                        Status = "FAILED"
)

// ErrInvalidTransition is returned when a status change would leave the graph.
var ErrInvalidTransition = errors.New("invalid status transition")

// forward order of the success path
var statusRank = map[Status]int{
	StatusInitiated:                     0,
	StatusInfoCollected:                 1,
	StatusWaitingForDocuments:           2,
	StatusDocumentsUploaded:             3,
	StatusKycInProgress:                 4,
	StatusKycCompleted:                  5,
	StatusAddressVerificationInProgress: 6,
	StatusAddressVerificationCompleted:  7,
	StatusAccountCreationInProgress:     8,
	StatusAccountCreated:                9,
	StatusNotificationSent:              10,
	StatusCompleted:                     11,
}

// AllStatuses lists every status in forward order, FAILED last.
func AllStatuses() []Status {
	return []Status{
		StatusInitiated, StatusInfoCollected, StatusWaitingForDocuments, StatusDocumentsUploaded,
		StatusKycInProgress, StatusKycCompleted, StatusAddressVerificationInProgress,
		StatusAddressVerificationCompleted, StatusAccountCreationInProgress, StatusAccountCreated,
		StatusNotificationSent, StatusCompleted, StatusFailed,
	}
}

// ParseStatus maps a stored string back to a known Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusRank[st]; ok || st == StatusFailed {
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsTerminal reports whether no step can move the record any further.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next respects the status graph.
// Re-persisting the same status is allowed, FAILED is reachable from any
// non-terminal status, and a document validation failure may send the record
// back to WAITING_FOR_DOCUMENTS.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return s == next
	}
	if next == StatusFailed || next == s {
		return true
	}
	if next == StatusWaitingForDocuments {
		return s == StatusDocumentsUploaded || statusRank[s] < statusRank[StatusWaitingForDocuments]
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	return ok && nxt > cur
}

func (s Status) String() string { return string(s) }
