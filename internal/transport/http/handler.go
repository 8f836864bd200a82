package http

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/service"
	"github.com/richardliu001/onboarding-service/internal/storage"
	"go.uber.org/zap"
)

// Onboarding is the facade the handlers call; *service.OnboardingService implements it.
type Onboarding interface {
	Start(ctx context.Context, req service.StartRequest) (*service.StartResponse, error)
	ResumeWithDocuments(ctx context.Context, processInstanceID string, passport, photo service.Document) (*service.UploadResponse, error)
	GetStatus(ctx context.Context, processInstanceID string) (*service.StatusResponse, error)
	IsProcessActive(ctx context.Context, processInstanceID string) bool
	Ping(ctx context.Context) error
}

func RegisterHandlers(r *gin.Engine, svc Onboarding, log *zap.SugaredLogger) {
	v1 := r.Group("/v1")
	{
		v1.POST("/onboarding", startHandler(svc, log))
		v1.POST("/onboarding/:processInstanceId/documents", uploadHandler(svc, log))
		v1.GET("/onboarding/:processInstanceId", statusHandler(svc, log))
		v1.GET("/onboarding/:processInstanceId/active", activeHandler(svc))
	}
	r.GET("/healthz", healthHandler(svc))
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	ErrorName         string            `json:"errorName"`
	Message           string            `json:"message"`
	Timestamp         time.Time         `json:"timestamp"`
	AdditionalDetails map[string]string `json:"additionalDetails,omitempty"`
}

func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		log.Errorw("unclassified error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{
			ErrorName: model.ErrTypeInternalServerError,
			Message:   "Internal server error",
			Timestamp: time.Now().UTC(),
		})
		return
	}
	status := statusFor(se.Kind)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.FullPath(), "errorName", se.Type, "error", se.Err)
	} else {
		log.Warnw("request rejected", "path", c.FullPath(), "errorName", se.Type, "message", se.Message)
	}
	c.JSON(status, errorResponse{
		ErrorName:         se.Type,
		Message:           se.Message,
		Timestamp:         time.Now().UTC(),
		AdditionalDetails: se.Details,
	})
}

func statusFor(k service.Kind) int {
	switch k {
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindValidation, service.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type startReq struct {
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	Gender      string `json:"gender" binding:"required,oneof=M F O"`
	DateOfBirth string `json:"dob" binding:"required,datetime=2006-01-02"`
	Phone       string `json:"phone" binding:"required,e164"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Nationality string `json:"nationality" binding:"required,max=64"`
	Street      string `json:"street" binding:"required,max=255"`
	City        string `json:"city" binding:"required,max=100"`
	PostalCode  string `json:"postalCode" binding:"required,max=20"`
	Country     string `json:"country" binding:"required,max=64"`
	NationalID  string `json:"nationalId" binding:"required,nationalid"`
}

func invalidRequest(c *gin.Context, err error) {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = "failed '" + fe.Tag() + "' validation"
		}
	} else {
		details["body"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, errorResponse{
		ErrorName:         model.ErrTypeInvalidRequest,
		Message:           "Invalid request data",
		Timestamp:         time.Now().UTC(),
		AdditionalDetails: details,
	})
}

func startHandler(svc Onboarding, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startReq
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, err)
			return
		}
		dob, _ := time.Parse(time.DateOnly, req.DateOfBirth)
		if !dob.Before(time.Now()) {
			invalidRequest(c, errors.New("dob must be in the past"))
			return
		}
		resp, err := svc.Start(c.Request.Context(), service.StartRequest{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Gender:      model.Gender(req.Gender),
			DateOfBirth: dob,
			Email:       req.Email,
			Phone:       req.Phone,
			Nationality: req.Nationality,
			Street:      req.Street,
			City:        req.City,
			PostalCode:  req.PostalCode,
			Country:     req.Country,
			NationalID:  req.NationalID,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

func uploadHandler(svc Onboarding, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid := c.Param("processInstanceId")
		passport, closePassport := formDocument(c, storage.DocPassport)
		defer closePassport()
		photo, closePhoto := formDocument(c, storage.DocPhoto)
		defer closePhoto()

		resp, err := svc.ResumeWithDocuments(c.Request.Context(), pid, passport, photo)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// formDocument opens a multipart file; a missing field yields an empty Document.
func formDocument(c *gin.Context, field string) (service.Document, func()) {
	fh, err := c.FormFile(field)
	if err != nil {
		return service.Document{}, func() {}
	}
	f, err := fh.Open()
	if err != nil {
		return service.Document{}, func() {}
	}
	return service.Document{Name: fh.Filename, Size: fh.Size, Content: f}, closer(f)
}

func closer(f multipart.File) func() { return func() { _ = f.Close() } }

func statusHandler(svc Onboarding, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.GetStatus(c.Request.Context(), c.Param("processInstanceId"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func activeHandler(svc Onboarding) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid := c.Param("processInstanceId")
		c.JSON(http.StatusOK, gin.H{"processInstanceId": pid, "active": svc.IsProcessActive(c.Request.Context(), pid)})
	}
}

func healthHandler(svc Onboarding) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	}
}
