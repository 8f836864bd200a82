// Package provider defines the identity, address and account capabilities the
// onboarding steps depend on.
package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type KycRequest struct {
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	NationalID   string
	PassportPath string
	PhotoPath    string
}

type AddressRequest struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Verdict is the outcome of a verification. A rejected customer is a Verdict
// with Passed=false, not an error.
type Verdict struct {
	Passed     bool
	Reference  string
	Notes      string
	VerifiedBy string
	CheckedAt  time.Time
}

type AccountRequest struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth time.Time
	NationalID  string
}

// Account is a freshly opened bank account. An empty Number means issuance was refused.
type Account struct {
	Number         string
	OpeningBalance decimal.Decimal
	OpenedAt       time.Time
}

type KycProvider interface {
	VerifyIdentity(ctx context.Context, req KycRequest) (Verdict, error)
}

type AddressProvider interface {
	VerifyAddress(ctx context.Context, req AddressRequest) (Verdict, error)
}

type AccountIssuer interface {
	OpenAccount(ctx context.Context, req AccountRequest) (Account, error)
}
