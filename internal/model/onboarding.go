package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

// Onboarding is one customer's journey from data collection to an open account.
type Onboarding struct {
	ID          string    `gorm:"primaryKey;size:36"`
	NationalID  string    `gorm:"size:32;not null;uniqueIndex"`
	FirstName   string    `gorm:"size:100;not null"`
	LastName    string    `gorm:"size:100;not null"`
	Gender      Gender    `gorm:"size:1;not null"`
	DateOfBirth time.Time `gorm:"not null"`
	Email       string    `gorm:"size:255;not null"`
	Phone       string    `gorm:"size:32;not null"`
	Nationality string    `gorm:"size:64;not null"`
	Street      string    `gorm:"size:255;not null"`
	City        string    `gorm:"size:100;not null"`
	PostalCode  string    `gorm:"size:20;not null"`
	Country     string    `gorm:"size:64;not null"`

	ProcessInstanceID    string `gorm:"size:64;index"`
	ProcessDefinitionKey string `gorm:"size:64"`

	KycVerified     bool   `gorm:"not null;default:false"`
	KycNotes        string `gorm:"size:1000"`
	AddressVerified bool   `gorm:"not null;default:false"`
	AddressNotes    string `gorm:"size:1000"`

	AccountNumber  *string         `gorm:"size:34"`
	OpeningBalance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`

	PassportPath       *string `gorm:"size:500"`
	PhotoPath          *string `gorm:"size:500"`
	DocumentUploadedAt *time.Time

	Status          Status `gorm:"size:48;not null;index"`
	ErrorType       string `gorm:"size:64"`
	ErrorMessage    string `gorm:"size:1000"`
	FailedStep      string `gorm:"size:64"`
	FailureNotified *bool

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	CompletedAt *time.Time
}

func (Onboarding) TableName() string { return "onboarding" }

// BeforeCreate assigns the identifier and the initial status.
func (o *Onboarding) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusInitiated
	}
	return nil
}

// FullName joins first and last name.
func (o *Onboarding) FullName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

// Transition moves the record to next, stamping CompletedAt on COMPLETED.
func (o *Onboarding) Transition(next Status, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	if next == StatusCompleted && o.CompletedAt == nil {
		t := now.UTC()
		o.CompletedAt = &t
	}
	return nil
}

// AssignAccount records the issued account; it can only happen once.
func (o *Onboarding) AssignAccount(number string, opening decimal.Decimal, now time.Time) error {
	if o.AccountNumber != nil {
		return fmt.Errorf("account already assigned to onboarding %s", o.ID)
	}
	if err := o.Transition(StatusAccountCreated, now); err != nil {
		return err
	}
	o.AccountNumber = &number
	o.OpeningBalance = opening
	return nil
}

// AttachDocuments stores both document locations at once.
func (o *Onboarding) AttachDocuments(passport, photo string, now time.Time) error {
	if err := o.Transition(StatusDocumentsUploaded, now); err != nil {
		return err
	}
	t := now.UTC()
	o.PassportPath = &passport
	o.PhotoPath = &photo
	o.DocumentUploadedAt = &t
	return nil
}

// DetachDocuments drops rejected documents and re-opens the upload wait.
func (o *Onboarding) DetachDocuments(now time.Time) error {
	if err := o.Transition(StatusWaitingForDocuments, now); err != nil {
		return err
	}
	o.PassportPath = nil
	o.PhotoPath = nil
	o.DocumentUploadedAt = nil
	return nil
}

// MarkFailed forces FAILED and records why.
func (o *Onboarding) MarkFailed(errorType, message, step string, now time.Time) error {
	if err := o.Transition(StatusFailed, now); err != nil {
		return err
	}
	o.ErrorType = errorType
	o.ErrorMessage = message
	o.FailedStep = step
	return nil
}
