package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) handler(id string, res func(*Execution) Result) StepHandler {
	return HandlerFunc(func(_ context.Context, exec *Execution) Result {
		r.mu.Lock()
		r.steps = append(r.steps, id)
		r.mu.Unlock()
		if res == nil {
			exec.Set(id, "done")
			return Success()
		}
		return res(exec)
	})
}

type stepCounter struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (s *stepCounter) ObserveStep(step, outcome string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcomes == nil {
		s.outcomes = map[string][]string{}
	}
	s.outcomes[step] = append(s.outcomes[step], outcome)
}

func newTestEngine(t *testing.T, opts Options, def *Definition) (*Engine, *repo.Repository) {
	db := testutil.NewDB(t, repo.Models()...)
	r := repo.NewRepository(db, nil, nil, testutil.Logger())
	return NewEngine(r, testutil.Logger(), opts, def), r
}

func TestEngine_StartWaitCorrelateComplete(t *testing.T) {
	rec := &recorder{}
	def := &Definition{
		Key: "test",
		Steps: []Step{
			{ID: "a", Handler: rec.handler("a", nil)},
			{ID: "wait", Message: "Go"},
			{ID: "b", Handler: rec.handler("b", func(exec *Execution) Result {
				if exec.StringMap("docs")["passport"] != "p" {
					return Failure("MISSING", "no passport")
				}
				return Success()
			})},
		},
	}
	e, _ := newTestEngine(t, Options{}, def)
	ctx := context.Background()

	id, err := e.Start(ctx, "test", map[string]any{VarOnboardingID: "ob-1"})
	require.NoError(t, err)
	assert.True(t, ValidID(id))
	assert.Equal(t, []string{"a"}, rec.steps)

	inst, err := e.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceWaiting, inst.State)
	assert.Equal(t, "Go", inst.WaitingMessage)
	assert.Equal(t, "done", inst.Variables["a"])
	assert.Equal(t, "ob-1", inst.BusinessKey)

	active, err := e.IsActive(ctx, id)
	require.NoError(t, err)
	assert.True(t, active)

	assert.ErrorIs(t, e.Correlate(ctx, id, "Other", nil), ErrNotWaiting)

	require.NoError(t, e.Correlate(ctx, id, "Go", map[string]any{"docs": map[string]string{"passport": "p"}}))
	assert.Equal(t, []string{"a", "b"}, rec.steps)

	inst, err = e.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceCompleted, inst.State)
	assert.NotNil(t, inst.EndedAt)

	active, err = e.IsActive(ctx, id)
	require.NoError(t, err)
	assert.False(t, active)

	assert.ErrorIs(t, e.Correlate(ctx, id, "Go", nil), ErrNotWaiting)
}

func TestEngine_BusinessFailureRoutesToErrorHandler(t *testing.T) {
	rec := &recorder{}
	var seen map[string]any
	def := &Definition{
		Key: "test",
		Steps: []Step{
			{ID: "kyc", Handler: rec.handler("kyc", func(*Execution) Result {
				return Failure("KYC_VERIFICATION_FAILED", "KYC verification failed")
			})},
			{ID: "never", Handler: rec.handler("never", nil)},
		},
		OnError: HandlerFunc(func(_ context.Context, exec *Execution) Result {
			seen = exec.Variables()
			exec.Set(VarNotificationSent, true)
			return Success()
		}),
	}
	e, _ := newTestEngine(t, Options{Retries: 3}, def)
	ctx := context.Background()

	id, err := e.Start(ctx, "test", map[string]any{VarOnboardingID: "ob-1"})
	var bErr *BusinessError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, "kyc", bErr.Step)
	assert.Equal(t, "KYC_VERIFICATION_FAILED", bErr.Code)
	assert.False(t, bErr.Resumed)

	assert.Equal(t, []string{"kyc"}, rec.steps, "business failures are not retried")
	assert.Equal(t, "KYC_VERIFICATION_FAILED", seen[VarErrorType])
	assert.Equal(t, "kyc", seen[VarFailedStepID])

	inst, err := e.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceFailed, inst.State)
	assert.Equal(t, true, inst.Variables[VarNotificationSent])
}

func TestEngine_SystemErrorRetriedThenIncident(t *testing.T) {
	attempts := 0
	handled := false
	obs := &stepCounter{}
	def := &Definition{
		Key: "test",
		Steps: []Step{
			{ID: "flaky", Handler: HandlerFunc(func(context.Context, *Execution) Result {
				attempts++
				return SystemError(errors.New("db down"))
			})},
		},
		OnError: HandlerFunc(func(_ context.Context, exec *Execution) Result {
			handled = true
			assert.False(t, exec.Has(VarErrorType))
			exec.Set(VarErrorType, "GENERAL_FAILURE")
			return Success()
		}),
	}
	e, _ := newTestEngine(t, Options{Retries: 2, Observer: obs}, def)

	id, err := e.Start(context.Background(), "test", map[string]any{VarOnboardingID: "ob-1"})
	var bErr *BusinessError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, "GENERAL_FAILURE", bErr.Code)
	assert.Equal(t, 3, attempts)
	assert.True(t, handled)
	assert.Equal(t, []string{"error", "error", "error"}, obs.outcomes["flaky"])

	inst, err := e.Instance(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceFailed, inst.State)
	assert.Equal(t, "db down", inst.Incident)
}

func TestEngine_SystemErrorRecovers(t *testing.T) {
	attempts := 0
	def := &Definition{
		Key: "test",
		Steps: []Step{
			{ID: "flaky", Handler: HandlerFunc(func(context.Context, *Execution) Result {
				attempts++
				if attempts < 2 {
					return SystemError(errors.New("timeout"))
				}
				return Success()
			})},
		},
	}
	e, _ := newTestEngine(t, Options{Retries: 2}, def)

	_, err := e.Start(context.Background(), "test", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestEngine_PanicBecomesIncident(t *testing.T) {
	def := &Definition{
		Key: "test",
		Steps: []Step{
			{ID: "boom", Handler: HandlerFunc(func(context.Context, *Execution) Result {
				panic("nil record")
			})},
		},
	}
	e, _ := newTestEngine(t, Options{}, def)

	id, err := e.Start(context.Background(), "test", nil)
	var bErr *BusinessError
	require.ErrorAs(t, err, &bErr)

	inst, err := e.Instance(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceFailed, inst.State)
	assert.Contains(t, inst.Incident, "nil record")
}

func TestEngine_BoundaryResumesWait(t *testing.T) {
	calls := 0
	def := &Definition{
		Key: "test",
		Steps: []Step{
			{ID: "wait", Message: "Docs"},
			{ID: "validate", Handler: HandlerFunc(func(_ context.Context, exec *Execution) Result {
				calls++
				if exec.String("size") == "big" {
					exec.Set(VarErrorType, "VALIDATION_FAILED")
					return Failure("VALIDATION_FAILED", "too big")
				}
				return Success()
			}), OnFailure: &Boundary{
				ResumeAt: "wait",
				Handler: HandlerFunc(func(_ context.Context, exec *Execution) Result {
					exec.Set(VarValidationErrorCode, "FILE_TOO_LARGE")
					return Failure("UPLOAD_VALIDATION_FAILED", "File too large")
				}),
			}},
		},
		OnError: HandlerFunc(func(context.Context, *Execution) Result {
			t.Fatal("error handler must not run for boundary failures")
			return Success()
		}),
	}
	e, _ := newTestEngine(t, Options{}, def)
	ctx := context.Background()

	id, err := e.Start(ctx, "test", nil)
	require.NoError(t, err)

	err = e.Correlate(ctx, id, "Docs", map[string]any{"size": "big"})
	var bErr *BusinessError
	require.ErrorAs(t, err, &bErr)
	assert.True(t, bErr.Resumed)
	assert.Equal(t, "UPLOAD_VALIDATION_FAILED", bErr.Code)
	assert.Equal(t, "File too large", bErr.Message)

	inst, err := e.Instance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceWaiting, inst.State)
	assert.Equal(t, "wait", inst.CurrentStep)
	assert.Equal(t, "FILE_TOO_LARGE", inst.Variables[VarValidationErrorCode])
	assert.NotContains(t, inst.Variables, VarErrorType)

	require.NoError(t, e.Correlate(ctx, id, "Docs", map[string]any{"size": "small"}))
	assert.Equal(t, 2, calls)
}

func TestEngine_UnknownInstance(t *testing.T) {
	e, _ := newTestEngine(t, Options{}, &Definition{Key: "test", Steps: []Step{{ID: "a"}}})
	ctx := context.Background()

	_, err := e.IsActive(ctx, "01HZX0000000000000000000ZZ")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	assert.ErrorIs(t, e.Correlate(ctx, "01HZX0000000000000000000ZZ", "Go", nil), ErrInstanceNotFound)

	_, err = e.Start(ctx, "nope", nil)
	assert.Error(t, err)
}
