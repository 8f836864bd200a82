// Package process runs onboarding process instances: it sequences step
// handlers, parks instances on message waits, retries system errors and routes
// failures. Instance state is durable so a waiting instance holds no goroutine.
package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"go.uber.org/zap"
)

var (
	ErrInstanceNotFound = errors.New("process instance not found")
	ErrNotWaiting       = errors.New("process instance is not waiting for this message")
	ErrUnknownStep      = errors.New("unknown step")
)

// StepHandler executes one step of a process instance.
type StepHandler interface {
	Execute(ctx context.Context, exec *Execution) Result
}

// HandlerFunc adapts a function to StepHandler.
type HandlerFunc func(ctx context.Context, exec *Execution) Result

func (f HandlerFunc) Execute(ctx context.Context, exec *Execution) Result { return f(ctx, exec) }

// Boundary catches business failures of a step and sends the instance back to ResumeAt.
type Boundary struct {
	Handler  StepHandler
	ResumeAt string
}

// Step is a node of a Definition. A step with a Message is a wait step.
type Step struct {
	ID        string
	Handler   StepHandler
	Message   string
	OnFailure *Boundary
}

// Definition is an ordered list of steps plus the handler every unhandled failure goes to.
type Definition struct {
	Key     string
	Steps   []Step
	OnError StepHandler
}

func (d *Definition) index(id string) int {
	for i, s := range d.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Store persists process instances.
type Store interface {
	CreateProcessInstance(ctx context.Context, p *model.ProcessInstance) error
	GetProcessInstance(ctx context.Context, id string) (*model.ProcessInstance, error)
	SaveProcessInstance(ctx context.Context, p *model.ProcessInstance) error
}

// StepObserver receives step timings; metrics.Metrics implements it.
type StepObserver interface {
	ObserveStep(step, outcome string, d time.Duration)
}

type Options struct {
	// Retries is how many times a system error is retried before it becomes an incident.
	Retries      int
	RetryBackoff time.Duration
	Observer     StepObserver
	Now          func() time.Time
}

// Engine is the in-process workflow engine.
type Engine struct {
	defs    map[string]*Definition
	store   Store
	log     *zap.SugaredLogger
	opts    Options
	ids     *idGenerator
	locksMu sync.Mutex
	locks   map[string]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

func NewEngine(store Store, log *zap.SugaredLogger, opts Options, defs ...*Definition) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		defs:  make(map[string]*Definition, len(defs)),
		store: store,
		log:   log,
		opts:  opts,
		ids:   newIDGenerator(),
		locks: make(map[string]*instanceLock),
	}
	for _, d := range defs {
		e.defs[d.Key] = d
	}
	return e
}

// Start creates an instance of definition key and runs it until it waits, ends or fails.
// The instance id is returned whenever the instance was persisted, even with an error.
func (e *Engine) Start(ctx context.Context, key string, vars map[string]any) (string, error) {
	def, ok := e.defs[key]
	if !ok {
		return "", fmt.Errorf("start process: unknown definition %q", key)
	}
	if len(def.Steps) == 0 {
		return "", fmt.Errorf("start process: definition %q has no steps", key)
	}
	businessKey, _ := vars[VarOnboardingID].(string)
	inst := &model.ProcessInstance{
		ID:            e.ids.NewAt(e.opts.Now()),
		DefinitionKey: key,
		BusinessKey:   businessKey,
		State:         model.InstanceActive,
		CurrentStep:   def.Steps[0].ID,
		Variables:     model.Variables(copyVars(vars)),
	}
	if err := e.store.CreateProcessInstance(ctx, inst); err != nil {
		return "", fmt.Errorf("start process: %w", err)
	}
	e.log.Infow("process started", "processInstanceId", inst.ID, "definition", key, "onboardingId", businessKey)

	unlock := e.lock(inst.ID)
	defer unlock()
	return inst.ID, e.run(ctx, def, inst)
}

// Correlate delivers message to the instance waiting for it and resumes execution.
func (e *Engine) Correlate(ctx context.Context, instanceID, message string, vars map[string]any) error {
	unlock := e.lock(instanceID)
	defer unlock()

	inst, err := e.load(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst.State != model.InstanceWaiting || inst.WaitingMessage != message {
		return fmt.Errorf("%w: instance %s state=%s waiting=%q", ErrNotWaiting, instanceID, inst.State, inst.WaitingMessage)
	}
	def, ok := e.defs[inst.DefinitionKey]
	if !ok {
		return fmt.Errorf("correlate: unknown definition %q", inst.DefinitionKey)
	}
	idx := def.index(inst.CurrentStep)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownStep, inst.CurrentStep)
	}
	if inst.Variables == nil {
		inst.Variables = model.Variables{}
	}
	for k, v := range vars {
		inst.Variables[k] = v
	}
	inst.WaitingMessage = ""
	inst.State = model.InstanceActive
	e.advance(def, inst, idx)
	if err := e.store.SaveProcessInstance(ctx, inst); err != nil {
		return fmt.Errorf("correlate: %w", err)
	}
	e.log.Infow("message correlated", "processInstanceId", instanceID, "message", message)
	return e.run(ctx, def, inst)
}

// IsActive reports whether the instance exists and has not ended.
func (e *Engine) IsActive(ctx context.Context, instanceID string) (bool, error) {
	inst, err := e.load(ctx, instanceID)
	if err != nil {
		return false, err
	}
	return inst.IsActive(), nil
}

// Instance returns a snapshot of a persisted instance.
func (e *Engine) Instance(ctx context.Context, instanceID string) (*model.ProcessInstance, error) {
	return e.load(ctx, instanceID)
}

func (e *Engine) load(ctx context.Context, id string) (*model.ProcessInstance, error) {
	inst, err := e.store.GetProcessInstance(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return inst, err
}

// lock serializes work on one instance; entries are dropped once nobody holds or waits on them.
func (e *Engine) lock(id string) func() {
	e.locksMu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &instanceLock{}
		e.locks[id] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.locksMu.Unlock()
	}
}

func (e *Engine) advance(def *Definition, inst *model.ProcessInstance, idx int) {
	if idx+1 >= len(def.Steps) {
		now := e.opts.Now().UTC()
		inst.State = model.InstanceCompleted
		inst.CurrentStep = ""
		inst.EndedAt = &now
		return
	}
	inst.CurrentStep = def.Steps[idx+1].ID
}

func (e *Engine) run(ctx context.Context, def *Definition, inst *model.ProcessInstance) error {
	for inst.State == model.InstanceActive {
		idx := def.index(inst.CurrentStep)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownStep, inst.CurrentStep)
		}
		step := def.Steps[idx]

		if step.Message != "" {
			inst.State = model.InstanceWaiting
			inst.WaitingMessage = step.Message
			if err := e.store.SaveProcessInstance(ctx, inst); err != nil {
				return fmt.Errorf("park instance: %w", err)
			}
			e.log.Infow("process waiting", "processInstanceId", inst.ID, "step", step.ID, "message", step.Message)
			return nil
		}

		exec := e.execution(inst, step.ID)
		res := e.execute(ctx, step, exec)
		if res.IsSuccess() {
			// error variables only describe an unrecovered failure
			exec.Delete(VarErrorType, VarErrorMessage, VarFailedStepID)
		}
		inst.Variables = model.Variables(exec.Variables())

		switch res.Outcome {
		case OutcomeSuccess:
			e.advance(def, inst, idx)
			if err := e.store.SaveProcessInstance(ctx, inst); err != nil {
				return fmt.Errorf("save instance: %w", err)
			}
		default:
			return e.fail(ctx, def, inst, step, res)
		}
	}
	return nil
}

// execute runs a handler, retrying system errors and turning panics into errors.
func (e *Engine) execute(ctx context.Context, step Step, exec *Execution) Result {
	var res Result
	for attempt := 0; attempt <= e.opts.Retries; attempt++ {
		if attempt > 0 {
			e.log.Warnw("retrying step", "processInstanceId", exec.ProcessInstanceID, "step", step.ID,
				"attempt", attempt, "error", res.Message)
			if e.opts.RetryBackoff > 0 {
				select {
				case <-ctx.Done():
					return SystemError(ctx.Err())
				case <-time.After(e.opts.RetryBackoff):
				}
			}
		}
		start := e.opts.Now()
		res = e.safeExecute(ctx, step.Handler, exec)
		if e.opts.Observer != nil {
			e.opts.Observer.ObserveStep(step.ID, res.Outcome.String(), e.opts.Now().Sub(start))
		}
		if res.Outcome != OutcomeError {
			return res
		}
	}
	return res
}

func (e *Engine) safeExecute(ctx context.Context, h StepHandler, exec *Execution) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = SystemError(fmt.Errorf("panic in step %s: %v", exec.StepID, r))
		}
	}()
	if h == nil {
		return Success()
	}
	return h.Execute(ctx, exec)
}

func (e *Engine) execution(inst *model.ProcessInstance, stepID string) *Execution {
	exec := NewExecution(inst.ID, stepID, inst.Variables)
	exec.now = e.opts.Now
	return exec
}

// fail routes a failed step either to its boundary or to the definition's error handler.
func (e *Engine) fail(ctx context.Context, def *Definition, inst *model.ProcessInstance, step Step, res Result) error {
	bErr := &BusinessError{Step: step.ID, Code: res.Code, Message: res.Message}

	if res.Outcome == OutcomeError {
		inst.Incident = truncate(res.Message, 1000)
		e.log.Errorw("step incident", "processInstanceId", inst.ID, "step", step.ID, "error", res.Message)
	} else {
		e.log.Warnw("step failed", "processInstanceId", inst.ID, "step", step.ID, "code", res.Code, "message", res.Message)
	}

	if b := step.OnFailure; b != nil && res.Outcome == OutcomeFailure {
		if idx := def.index(b.ResumeAt); idx >= 0 {
			exec := e.execution(inst, step.ID)
			if hres := e.safeExecute(ctx, b.Handler, exec); !hres.IsSuccess() && hres.Code != "" {
				bErr.Code, bErr.Message = hres.Code, hres.Message
			}
			exec.Delete(VarErrorType, VarErrorMessage, VarFailedStepID)
			inst.Variables = model.Variables(exec.Variables())
			inst.CurrentStep = b.ResumeAt
			bErr.Resumed = true
			if err := e.run(ctx, def, inst); err != nil {
				return errors.Join(bErr, err)
			}
			return bErr
		}
	}

	exec := e.execution(inst, step.ID)
	exec.SetIfAbsent(VarFailedStepID, step.ID)
	if res.Outcome == OutcomeFailure {
		exec.SetIfAbsent(VarErrorType, res.Code)
		exec.SetIfAbsent(VarErrorMessage, res.Message)
	}
	var handlerErr error
	if def.OnError != nil {
		start := e.opts.Now()
		hres := e.safeExecute(ctx, def.OnError, exec)
		if e.opts.Observer != nil {
			e.opts.Observer.ObserveStep("error-handler", hres.Outcome.String(), e.opts.Now().Sub(start))
		}
		if !hres.IsSuccess() {
			handlerErr = fmt.Errorf("error handler: %s", hres.Message)
			inst.Incident = truncate(hres.Message, 1000)
		}
	}

	if bErr.Code == "" {
		bErr.Code = exec.String(VarErrorType)
	}
	if bErr.Code == "" {
		bErr.Code = model.ErrTypeGeneralFailure
	}
	if msg := exec.String(VarErrorMessage); msg != "" {
		bErr.Message = msg
	}

	now := e.opts.Now().UTC()
	inst.Variables = model.Variables(exec.Variables())
	inst.State = model.InstanceFailed
	inst.EndedAt = &now
	if err := e.store.SaveProcessInstance(ctx, inst); err != nil {
		return errors.Join(bErr, fmt.Errorf("save failed instance: %w", err))
	}
	if handlerErr != nil {
		return errors.Join(bErr, handlerErr)
	}
	return bErr
}

func copyVars(vars map[string]any) map[string]any {
	cp := make(map[string]any, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return cp
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
