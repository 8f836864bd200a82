package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source is the randomness the mocks draw from.
type Source interface {
	Float64() float64
	Int63n(n int64) int64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a goroutine-safe random source.
func NewSource(seed int64) Source {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

// MockVerifier passes a configurable share of customers after a simulated delay.
// It implements both KycProvider and AddressProvider.
type MockVerifier struct {
	Name        string
	SuccessRate float64
	Latency     time.Duration
	Rand        Source
	Now         func() time.Time
}

func NewMockVerifier(name string, successRate float64, latency time.Duration, src Source) *MockVerifier {
	if src == nil {
		src = NewSource(time.Now().UnixNano())
	}
	return &MockVerifier{Name: name, SuccessRate: successRate, Latency: latency, Rand: src, Now: time.Now}
}

func (m *MockVerifier) VerifyIdentity(ctx context.Context, req KycRequest) (Verdict, error) {
	if req.NationalID == "" || req.PassportPath == "" {
		return Verdict{}, NewProviderError(ErrorBadData, m.Name, "national id and passport are required", nil)
	}
	return m.verify(ctx, "identity")
}

func (m *MockVerifier) VerifyAddress(ctx context.Context, req AddressRequest) (Verdict, error) {
	if req.Street == "" || req.Country == "" {
		return Verdict{}, NewProviderError(ErrorBadData, m.Name, "street and country are required", nil)
	}
	return m.verify(ctx, "address")
}

func (m *MockVerifier) verify(ctx context.Context, what string) (Verdict, error) {
	if err := sleep(ctx, m.Latency); err != nil {
		return Verdict{}, NewProviderError(ErrorTimeout, m.Name, what+" verification interrupted", err)
	}
	v := Verdict{
		Passed:     m.Rand.Float64() < m.SuccessRate,
		Reference:  uuid.NewString(),
		VerifiedBy: m.Name,
		CheckedAt:  m.Now().UTC(),
	}
	if v.Passed {
		v.Notes = fmt.Sprintf("%s verified by %s", what, m.Name)
	} else {
		v.Notes = fmt.Sprintf("%s could not be verified by %s", what, m.Name)
	}
	return v, nil
}

// MockAccountIssuer opens IBAN-style accounts without a core banking system.
type MockAccountIssuer struct {
	CountryCode    string
	BankCode       string
	OpeningBalance decimal.Decimal
	Rand           Source
	Now            func() time.Time
}

func NewMockAccountIssuer(countryCode, bankCode string, opening decimal.Decimal, src Source) *MockAccountIssuer {
	if src == nil {
		src = NewSource(time.Now().UnixNano())
	}
	return &MockAccountIssuer{CountryCode: countryCode, BankCode: bankCode, OpeningBalance: opening, Rand: src, Now: time.Now}
}

func (m *MockAccountIssuer) OpenAccount(ctx context.Context, req AccountRequest) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, NewProviderError(ErrorTimeout, "mock-core-banking", "account creation interrupted", err)
	}
	if req.NationalID == "" {
		return Account{}, NewProviderError(ErrorBadData, "mock-core-banking", "national id is required", nil)
	}
	digits := fmt.Sprintf("%010d", 1_000_000_000+m.Rand.Int63n(9_000_000_000))
	return Account{
		Number:         AccountNumber(m.CountryCode, m.BankCode, digits),
		OpeningBalance: m.OpeningBalance,
		OpenedAt:       m.Now().UTC(),
	}, nil
}

// AccountNumber builds country + check digits + bank + account digits.
// The check digits are a simplified digit-sum mod 97, not a real IBAN checksum.
func AccountNumber(country, bank, digits string) string {
	sum := 0
	for _, c := range digits {
		if c >= '0' && c <= '9' {
			sum += int(c - '0')
		}
	}
	return fmt.Sprintf("%s%02d%s%s", country, sum%97+1, bank, digits)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
