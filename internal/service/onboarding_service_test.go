package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/notify"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/provider"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/steps"
	"github.com/richardliu001/onboarding-service/internal/storage"
	"github.com/richardliu001/onboarding-service/internal/testutil"
	"github.com/richardliu001/onboarding-service/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

type startCounter struct{ n int }

func (c *startCounter) IncStarted() { c.n++ }

type harness struct {
	svc     *OnboardingService
	repo    *repo.Repository
	engine  *process.Engine
	counter *startCounter
}

func newHarness(t *testing.T, kycRate float64) *harness {
	db := testutil.NewDB(t, repo.Models()...)
	log := testutil.Logger()
	r := repo.NewRepository(db, nil, nil, log)
	docs, err := storage.NewStore(t.TempDir(), 10<<20)
	require.NoError(t, err)

	def, err := workflow.Default()
	require.NoError(t, err)
	resolver := workflow.NewResolver(def)
	src := provider.NewSource(42)
	sender := notify.NewLogSender(log)
	h := steps.NewHandlers(steps.Deps{
		Store:     r,
		Resolver:  resolver,
		Kyc:       provider.NewMockVerifier("kyc", kycRate, 0, src),
		Address:   provider.NewMockVerifier("address", 1, 0, src),
		Accounts:  provider.NewMockAccountIssuer("NL", "BANK", decimal.Zero, src),
		Notifier:  notify.NewNotifier(sender, sender, time.Second, log, nil),
		Documents: docs,
		Log:       log,
	})
	eng := process.NewEngine(r, log, process.Options{Retries: 1}, h.Definition(resolver))
	counter := &startCounter{}
	return &harness{
		svc:     NewOnboardingService(r, eng, docs, resolver, counter, log),
		repo:    r,
		engine:  eng,
		counter: counter,
	}
}

func janeRequest(nationalID string) StartRequest {
	return StartRequest{
		FirstName:   "Jane",
		LastName:    "Doe",
		Gender:      model.GenderFemale,
		DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Email:       "jane.doe@example.com",
		Phone:       "+31612345678",
		Nationality: "Dutch",
		Street:      "Damrak 1",
		City:        "Amsterdam",
		PostalCode:  "1012LG",
		Country:     "Netherlands",
		NationalID:  nationalID,
	}
}

func doc(name string, b []byte) Document {
	return Document{Name: name, Size: int64(len(b)), Content: bytes.NewReader(b)}
}

func requireKind(t *testing.T, err error, kind Kind, errType string) *Error {
	t.Helper()
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, kind, se.Kind)
	assert.Equal(t, errType, se.Type)
	return se
}

func TestOnboardingService_StartAndConflict(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	resp, err := h.svc.Start(ctx, janeRequest("123456789"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProcessInstanceID)
	assert.Equal(t, string(model.StatusInfoCollected), resp.Status)
	assert.Equal(t, workflow.ProcessStartedMessage, resp.Message)
	assert.Equal(t, workflow.StepUploadDocuments, resp.NextStep)
	assert.Equal(t, "Please upload your passport and photo documents", resp.NextStepDescription)
	assert.Equal(t, 1, h.counter.n)

	o, err := h.repo.GetOnboardingByProcessInstance(ctx, resp.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DefaultProcessDefinitionKey, o.ProcessDefinitionKey)
	assert.Equal(t, model.StatusInfoCollected, o.Status)

	evts, err := h.repo.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, model.EventOnboardingStarted, evts[0].EventType)

	_, err = h.svc.Start(ctx, janeRequest("123456789"))
	se := requireKind(t, err, KindConflict, model.ErrTypeCustomerAlreadyExists)
	assert.Equal(t, "123456789", se.Details["nationalId"])

	var n int64
	require.NoError(t, h.repo.DB(ctx).Model(&model.Onboarding{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestOnboardingService_StartLockHeld(t *testing.T) {
	db := testutil.NewDB(t, repo.Models()...)
	rdb, mock := redismock.NewClientMock()
	mock.ExpectSetNX("onboarding:start:555", "1", startLockTTL).SetVal(false)
	r := repo.NewRepository(db, rdb, nil, testutil.Logger())
	svc := NewOnboardingService(r, &failingEngine{}, nil, nil, nil, testutil.Logger())

	_, err := svc.Start(context.Background(), janeRequest("555"))
	requireKind(t, err, KindConflict, model.ErrTypeCustomerAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingEngine struct{ pid string }

func (f *failingEngine) Start(context.Context, string, map[string]any) (string, error) {
	return f.pid, errors.New("engine unavailable")
}

func (f *failingEngine) Correlate(context.Context, string, string, map[string]any) error {
	return errors.New("engine unavailable")
}

func (f *failingEngine) IsActive(context.Context, string) (bool, error) {
	return false, errors.New("engine unavailable")
}

func TestOnboardingService_StartEngineFailure(t *testing.T) {
	db := testutil.NewDB(t, repo.Models()...)
	r := repo.NewRepository(db, nil, nil, testutil.Logger())
	svc := NewOnboardingService(r, &failingEngine{}, nil, nil, nil, testutil.Logger())
	ctx := context.Background()

	_, err := svc.Start(ctx, janeRequest("777"))
	se := requireKind(t, err, KindInternal, model.ErrTypeProcessStartFailed)
	assert.Equal(t, "[REDACTED]", se.Details["customerName"])
	assert.Equal(t, workflow.DefaultProcessDefinitionKey, se.Details["processDefinitionKey"])
	assert.Equal(t, "engine unavailable", se.Details["originalError"])

	var o model.Onboarding
	require.NoError(t, r.DB(ctx).Where("national_id = ?", "777").First(&o).Error)
	assert.Equal(t, model.StatusFailed, o.Status)
	assert.Equal(t, model.ErrTypeProcessStartFailed, o.ErrorType)

	assert.False(t, svc.IsProcessActive(ctx, "anything"))
}

func TestOnboardingService_HappyPath(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	start, err := h.svc.Start(ctx, janeRequest("X"))
	require.NoError(t, err)
	assert.True(t, h.svc.IsProcessActive(ctx, start.ProcessInstanceID))

	up, err := h.svc.ResumeWithDocuments(ctx, start.ProcessInstanceID, doc("passport.pdf", pdfBytes), doc("photo.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusCompleted), up.Status)
	assert.True(t, up.PassportUploaded)
	assert.Equal(t, "Onboarding completed successfully", up.NextStepDescription)

	st, err := h.svc.GetStatus(ctx, start.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusCompleted), st.Status)
	require.NotNil(t, st.AccountNumber)
	assert.Regexp(t, `^NL\d{2}BANK\d{10}$`, *st.AccountNumber)
	assert.NotNil(t, st.CompletedAt)
	assert.True(t, st.KycVerified)
	assert.True(t, st.AddressVerified)
	assert.False(t, h.svc.IsProcessActive(ctx, start.ProcessInstanceID))

	again, err := h.svc.GetStatus(ctx, start.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, st, again)
}

func TestOnboardingService_KycFailureIsHandled(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	start, err := h.svc.Start(ctx, janeRequest("Y"))
	require.NoError(t, err)

	up, err := h.svc.ResumeWithDocuments(ctx, start.ProcessInstanceID, doc("passport.pdf", pdfBytes), doc("photo.png", pngBytes))
	require.NoError(t, err, "a failure handled by the process is reported as status")
	assert.Equal(t, string(model.StatusFailed), up.Status)
	assert.Equal(t, "Onboarding failed", up.Message)

	o, err := h.repo.GetOnboardingByProcessInstance(ctx, start.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, model.ErrTypeKycVerificationFailed, o.ErrorType)
	assert.Nil(t, o.AccountNumber)
	assert.NotNil(t, o.FailureNotified)
}

func TestOnboardingService_InvalidDocument(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	start, err := h.svc.Start(ctx, janeRequest("Z"))
	require.NoError(t, err)

	_, err = h.svc.ResumeWithDocuments(ctx, start.ProcessInstanceID, doc("passport.docx", pdfBytes), doc("photo.png", pngBytes))
	se := requireKind(t, err, KindValidation, model.ErrTypeFileValidationFailed)
	assert.Equal(t, "Passport must be a PDF file", se.Message)
	assert.Equal(t, model.ErrTypeUploadValidationFailed, se.Details["errorCode"])
	assert.Equal(t, start.ProcessInstanceID, se.Details["processInstanceId"])

	st, err := h.svc.GetStatus(ctx, start.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusWaitingForDocuments), st.Status)
	assert.True(t, h.svc.IsProcessActive(ctx, start.ProcessInstanceID))
}

func TestOnboardingService_UploadRejections(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	_, err := h.svc.ResumeWithDocuments(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", doc("p.pdf", pdfBytes), doc("q.png", pngBytes))
	requireKind(t, err, KindNotFound, model.ErrTypeOnboardingNotFound)

	start, err := h.svc.Start(ctx, janeRequest("W"))
	require.NoError(t, err)
	_, err = h.svc.ResumeWithDocuments(ctx, start.ProcessInstanceID, doc("p.pdf", nil), doc("q.png", pngBytes))
	requireKind(t, err, KindBadRequest, model.ErrTypeInvalidRequest)
}

func TestOnboardingService_GetStatusNotFound(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.svc.GetStatus(context.Background(), "missing")
	se := requireKind(t, err, KindNotFound, model.ErrTypeOnboardingNotFound)
	assert.Equal(t, "missing", se.Details["processInstanceId"])
}

func TestOnboardingService_GetStatusFromCache(t *testing.T) {
	db := testutil.NewDB(t, repo.Models()...)
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("onboarding:status:pi-9").SetVal(`{"processInstanceId":"pi-9","status":"KYC_COMPLETED"}`)
	r := repo.NewRepository(db, rdb, nil, testutil.Logger())
	svc := NewOnboardingService(r, &failingEngine{}, nil, nil, nil, testutil.Logger())

	st, err := svc.GetStatus(context.Background(), "pi-9")
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusKycCompleted), st.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// cacheSpy records status cache writes.
type cacheSpy struct {
	repo.RepositoryInterface
	cached map[string][]byte
}

func (c *cacheSpy) GetCachedStatus(context.Context, string) ([]byte, error) {
	return nil, repo.ErrCacheDisabled
}

func (c *cacheSpy) CacheStatus(_ context.Context, pid string, data []byte) error {
	c.cached[pid] = data
	return nil
}

func TestOnboardingService_GetStatusCachesOnlyFinalStatus(t *testing.T) {
	db := testutil.NewDB(t, repo.Models()...)
	r := repo.NewRepository(db, nil, nil, testutil.Logger())
	spy := &cacheSpy{RepositoryInterface: r, cached: map[string][]byte{}}
	svc := NewOnboardingService(spy, &failingEngine{}, nil, nil, nil, testutil.Logger())
	ctx := context.Background()

	for pid, status := range map[string]model.Status{
		"pi-live": model.StatusKycInProgress,
		"pi-done": model.StatusCompleted,
		"pi-lost": model.StatusFailed,
	} {
		o := testutil.NewOnboarding("NID-" + pid)
		o.ProcessInstanceID = pid
		require.NoError(t, r.CreateOnboarding(ctx, o))
		o.Status = status
		require.NoError(t, r.SaveOnboarding(ctx, o))

		st, err := svc.GetStatus(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, string(status), st.Status)
	}

	assert.NotContains(t, spy.cached, "pi-live")
	assert.Contains(t, spy.cached, "pi-done")
	assert.Contains(t, spy.cached, "pi-lost")
}
