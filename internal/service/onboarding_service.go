package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/storage"
	"github.com/richardliu001/onboarding-service/internal/workflow"
	"go.uber.org/zap"
)

const (
	startLockTTL = 30 * time.Second

	msgCustomerExists   = "Customer with this national ID already exists"
	msgProcessNotFound  = "Process instance not found or not active"
	msgOnboardingAbsent = "Onboarding process not found"
	msgDocumentsStored  = "Documents uploaded successfully"
	msgStartFailed      = "Failed to start onboarding process"
	msgUploadFailed     = "Document upload failed"
	msgInternal         = "Internal server error"
	processStartStep    = "process-start"
)

// Engine is the part of the process engine the facade drives.
type Engine interface {
	Start(ctx context.Context, key string, vars map[string]any) (string, error)
	Correlate(ctx context.Context, instanceID, message string, vars map[string]any) error
	IsActive(ctx context.Context, instanceID string) (bool, error)
}

// DocumentStore keeps uploaded files.
type DocumentStore interface {
	Save(docType, originalName string, r io.Reader) (string, error)
	Remove(path string) error
}

// StartCounter counts started processes; *metrics.Metrics implements it.
type StartCounter interface {
	IncStarted()
}

// StartRequest carries the personal data collected at process start.
type StartRequest struct {
	FirstName   string
	LastName    string
	Gender      model.Gender
	DateOfBirth time.Time
	Email       string
	Phone       string
	Nationality string
	Street      string
	City        string
	PostalCode  string
	Country     string
	NationalID  string
}

type StartResponse struct {
	ProcessInstanceID   string    `json:"processInstanceId"`
	Status              string    `json:"status"`
	Message             string    `json:"message"`
	CreatedAt           time.Time `json:"createdAt"`
	NextStep            string    `json:"nextStep"`
	NextStepDescription string    `json:"nextStepDescription"`
}

// Document is one uploaded file.
type Document struct {
	Name    string
	Size    int64
	Content io.Reader
}

type UploadResponse struct {
	ProcessInstanceID   string    `json:"processInstanceId"`
	Status              string    `json:"status"`
	Message             string    `json:"message"`
	UploadedAt          time.Time `json:"uploadedAt"`
	NextStep            string    `json:"nextStep"`
	NextStepDescription string    `json:"nextStepDescription"`
	PassportUploaded    bool      `json:"passportUploaded"`
	PhotoUploaded       bool      `json:"photoUploaded"`
}

type StatusResponse struct {
	ProcessInstanceID string     `json:"processInstanceId"`
	Status            string     `json:"status"`
	Message           string     `json:"message"`
	AccountNumber     *string    `json:"accountNumber"`
	KycVerified       bool       `json:"kycVerified"`
	AddressVerified   bool       `json:"addressVerified"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	CompletedAt       *time.Time `json:"completedAt"`
	CurrentStep       string     `json:"currentStep"`
	NextStep          string     `json:"nextStep"`
}

// OnboardingService starts onboarding processes, feeds them documents and
// answers status queries.
type OnboardingService struct {
	repo     repo.RepositoryInterface
	engine   Engine
	docs     DocumentStore
	resolver *workflow.Resolver
	counter  StartCounter
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewOnboardingService returns OnboardingService. counter may be nil.
func NewOnboardingService(r repo.RepositoryInterface, engine Engine, docs DocumentStore, resolver *workflow.Resolver, counter StartCounter, logger *zap.SugaredLogger) *OnboardingService {
	if resolver == nil {
		resolver = workflow.NewResolver(nil)
	}
	return &OnboardingService{
		repo:     r,
		engine:   engine,
		docs:     docs,
		resolver: resolver,
		counter:  counter,
		log:      logger,
		now:      time.Now,
	}
}

// Start creates the record and its process instance.
func (s *OnboardingService) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	conflict := func(cause error) error {
		return newError(KindConflict, model.ErrTypeCustomerAlreadyExists, msgCustomerExists,
			map[string]string{"nationalId": req.NationalID}, cause)
	}
	key := s.resolver.ProcessDefinitionKey()
	startFailed := func(kind Kind, msg string, cause error) error {
		return newError(kind, model.ErrTypeProcessStartFailed, msg, map[string]string{
			"processDefinitionKey": key,
			"customerName":         "[REDACTED]",
			"originalError":        cause.Error(),
		}, cause)
	}

	exists, err := s.repo.ExistsByNationalID(ctx, req.NationalID)
	if err != nil {
		return nil, startFailed(KindInternal, msgStartFailed, err)
	}
	if exists {
		s.log.Warnw("customer already exists")
		return nil, conflict(nil)
	}

	locked, err := s.repo.AcquireStartLock(ctx, req.NationalID, startLockTTL)
	switch {
	case err != nil:
		s.log.Warnw("start lock unavailable, relying on unique index", "error", err)
	case !locked:
		return nil, conflict(nil)
	default:
		defer s.repo.ReleaseStartLock(context.WithoutCancel(ctx), req.NationalID)
	}

	o := &model.Onboarding{
		NationalID:  req.NationalID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		Email:       req.Email,
		Phone:       req.Phone,
		Nationality: req.Nationality,
		Street:      req.Street,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Country:     req.Country,
		Status:      model.StatusInitiated,
	}
	if err := s.repo.CreateOnboarding(ctx, o); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, conflict(err)
		}
		return nil, startFailed(KindInternal, msgStartFailed, err)
	}

	pid, err := s.engine.Start(ctx, key, map[string]any{process.VarOnboardingID: o.ID})
	if err != nil {
		s.log.Errorw("process start failed", "onboardingId", o.ID, "processInstanceId", pid, "error", err)
		s.abandon(ctx, o.ID, pid, key, err)
		var be *process.BusinessError
		if errors.As(err, &be) {
			return nil, startFailed(KindBadRequest, "Failed to start process due to engine error: "+be.Message, err)
		}
		return nil, startFailed(KindInternal, msgStartFailed, err)
	}

	o, err = s.repo.GetOnboarding(ctx, o.ID)
	if err != nil {
		return nil, startFailed(KindInternal, msgStartFailed, err)
	}
	o.ProcessInstanceID = pid
	o.ProcessDefinitionKey = key
	if err := o.Transition(model.StatusInfoCollected, s.now()); err != nil {
		return nil, startFailed(KindInternal, msgStartFailed, err)
	}
	if err := s.repo.SaveOnboarding(ctx, o, repo.NewOnboardingEvent(o, model.EventOnboardingStarted)); err != nil {
		return nil, startFailed(KindInternal, msgStartFailed, err)
	}
	if s.counter != nil {
		s.counter.IncStarted()
	}
	s.log.Infow("onboarding started", "onboardingId", o.ID, "processInstanceId", pid)

	return &StartResponse{
		ProcessInstanceID:   pid,
		Status:              string(o.Status),
		Message:             workflow.ProcessStartedMessage,
		CreatedAt:           o.CreatedAt,
		NextStep:            s.resolver.NextStepID(o.Status),
		NextStepDescription: s.resolver.NextStepDescription(o.Status),
	}, nil
}

// abandon makes sure a record whose process could not start ends FAILED
// rather than sitting in INITIATED forever.
func (s *OnboardingService) abandon(ctx context.Context, id, pid, key string, cause error) {
	ctx = context.WithoutCancel(ctx)
	o, err := s.repo.GetOnboarding(ctx, id)
	if err != nil {
		s.log.Errorw("load abandoned onboarding", "onboardingId", id, "error", err)
		return
	}
	if pid != "" && o.ProcessInstanceID == "" {
		o.ProcessInstanceID = pid
		o.ProcessDefinitionKey = key
	}
	if o.Status != model.StatusFailed {
		if err := o.MarkFailed(model.ErrTypeProcessStartFailed, truncate(cause.Error(), 1000), processStartStep, s.now()); err != nil {
			s.log.Errorw("mark abandoned onboarding failed", "onboardingId", id, "error", err)
			return
		}
	}
	if err := s.repo.SaveOnboarding(ctx, o); err != nil {
		s.log.Errorw("persist abandoned onboarding", "onboardingId", id, "error", err)
	}
}

// ResumeWithDocuments stores the two documents and hands them to the waiting process.
func (s *OnboardingService) ResumeWithDocuments(ctx context.Context, processInstanceID string, passport, photo Document) (*UploadResponse, error) {
	pidDetail := map[string]string{"processInstanceId": processInstanceID}
	if !s.IsProcessActive(ctx, processInstanceID) {
		return nil, newError(KindNotFound, model.ErrTypeOnboardingNotFound, msgProcessNotFound, pidDetail, nil)
	}
	if passport.Content == nil || photo.Content == nil || passport.Size == 0 || photo.Size == 0 {
		return nil, newError(KindBadRequest, model.ErrTypeInvalidRequest,
			"Both passport and photo files are required and cannot be empty", pidDetail, nil)
	}

	docs, err := s.store(passport, photo)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return nil, newError(KindBadRequest, storage.CodeFileTooLarge,
				"File size exceeds the maximum allowed limit. Please upload a smaller file.", pidDetail, err)
		case errors.Is(err, storage.ErrEmptyFile):
			return nil, newError(KindBadRequest, model.ErrTypeInvalidRequest,
				"Both passport and photo files are required and cannot be empty", pidDetail, err)
		}
		return nil, newError(KindInternal, model.ErrTypeDocumentUploadFailed, "Failed to store documents: "+err.Error(),
			map[string]string{"processInstanceId": processInstanceID, "originalError": err.Error()}, err)
	}

	message := s.resolver.MessageName(workflow.StepWaitDocuments)
	err = s.engine.Correlate(ctx, processInstanceID, message, map[string]any{process.VarUploadedDocuments: docs})
	if err != nil {
		var be *process.BusinessError
		switch {
		case errors.As(err, &be) && be.Code == model.ErrTypeUploadValidationFailed:
			s.log.Warnw("upload validation failed", "processInstanceId", processInstanceID, "reason", be.Message)
			return nil, newError(KindValidation, model.ErrTypeFileValidationFailed, be.Message, map[string]string{
				"processInstanceId": processInstanceID,
				"errorCode":         be.Code,
				"validationError":   be.Message,
			}, err)
		case be != nil:
			s.log.Infow("step failure handled by process", "processInstanceId", processInstanceID,
				"step", be.Step, "code", be.Code)
		default:
			s.discard(docs)
			details := map[string]string{
				"processInstanceId": processInstanceID,
				"messageName":       message,
				"originalError":     err.Error(),
			}
			switch {
			case errors.Is(err, process.ErrInstanceNotFound):
				return nil, newError(KindNotFound, model.ErrTypeOnboardingNotFound, msgProcessNotFound, pidDetail, err)
			case errors.Is(err, process.ErrNotWaiting):
				return nil, newError(KindBadRequest, model.ErrTypeDocumentUploadFailed,
					"Failed to correlate document upload due to process engine error: "+err.Error(), details, err)
			}
			s.log.Errorw("correlate document upload", "processInstanceId", processInstanceID, "error", err)
			return nil, newError(KindInternal, model.ErrTypeDocumentUploadFailed, msgUploadFailed, details, err)
		}
	}

	st, err := s.GetStatus(ctx, processInstanceID)
	if err != nil {
		return nil, err
	}
	status := model.Status(st.Status)
	msg := msgDocumentsStored
	if status == model.StatusFailed {
		msg = s.resolver.Describe(status)
	}
	return &UploadResponse{
		ProcessInstanceID:   processInstanceID,
		Status:              st.Status,
		Message:             msg,
		UploadedAt:          s.now().UTC(),
		NextStep:            st.NextStep,
		NextStepDescription: s.resolver.NextStepDescription(status),
		PassportUploaded:    true,
		PhotoUploaded:       true,
	}, nil
}

func (s *OnboardingService) store(passport, photo Document) (map[string]string, error) {
	p, err := s.docs.Save(storage.DocPassport, passport.Name, passport.Content)
	if err != nil {
		return nil, fmt.Errorf("passport: %w", err)
	}
	q, err := s.docs.Save(storage.DocPhoto, photo.Name, photo.Content)
	if err != nil {
		s.discard(map[string]string{storage.DocPassport: p})
		return nil, fmt.Errorf("photo: %w", err)
	}
	return map[string]string{storage.DocPassport: p, storage.DocPhoto: q}, nil
}

func (s *OnboardingService) discard(docs map[string]string) {
	for _, path := range docs {
		if err := s.docs.Remove(path); err != nil {
			s.log.Warnw("remove uncorrelated document", "error", err)
		}
	}
}

// GetStatus reads the record behind a process instance. It never mutates state.
func (s *OnboardingService) GetStatus(ctx context.Context, processInstanceID string) (*StatusResponse, error) {
	if data, err := s.repo.GetCachedStatus(ctx, processInstanceID); err == nil {
		var st StatusResponse
		if jerr := json.Unmarshal(data, &st); jerr == nil {
			return &st, nil
		}
	}

	o, err := s.repo.GetOnboardingByProcessInstance(ctx, processInstanceID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, newError(KindNotFound, model.ErrTypeOnboardingNotFound, msgOnboardingAbsent,
			map[string]string{"processInstanceId": processInstanceID}, err)
	}
	if err != nil {
		s.log.Errorw("load onboarding status", "processInstanceId", processInstanceID, "error", err)
		return nil, newError(KindInternal, model.ErrTypeInternalServerError, msgInternal,
			map[string]string{"processInstanceId": processInstanceID, "originalError": err.Error()}, err)
	}

	st := &StatusResponse{
		ProcessInstanceID: processInstanceID,
		Status:            string(o.Status),
		Message:           s.resolver.Describe(o.Status),
		AccountNumber:     o.AccountNumber,
		KycVerified:       o.KycVerified,
		AddressVerified:   o.AddressVerified,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		CompletedAt:       o.CompletedAt,
		CurrentStep:       s.resolver.CurrentStep(o.Status),
		NextStep:          s.resolver.NextStepID(o.Status),
	}
	// a live record may be saved between this read and the write below
	if !o.Status.IsTerminal() {
		return st, nil
	}
	if data, err := json.Marshal(st); err == nil {
		if err := s.repo.CacheStatus(ctx, processInstanceID, data); err != nil {
			s.log.Warnw("cache status", "processInstanceId", processInstanceID, "error", err)
		}
	}
	return st, nil
}

// IsProcessActive reports whether the engine still runs the instance; lookup errors count as inactive.
func (s *OnboardingService) IsProcessActive(ctx context.Context, processInstanceID string) bool {
	active, err := s.engine.IsActive(ctx, processInstanceID)
	if err != nil {
		s.log.Warnw("process liveness check", "processInstanceId", processInstanceID, "error", err)
		return false
	}
	return active
}

// Ping checks the backing stores.
func (s *OnboardingService) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
