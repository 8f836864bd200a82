package steps

import (
	"context"
	"fmt"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/storage"
	"go.uber.org/zap"
)

// DefaultUploadValidationMessage is shown when a rejected upload carries no specific reason.
const DefaultUploadValidationMessage = "Document validation failed. Please check file requirements and try again."

var documentTypes = []string{storage.DocPassport, storage.DocPhoto}

func metaKey(doc, field string) string { return doc + field }

// UploadDocuments attaches the uploaded passport and photo to the record.
type UploadDocuments struct {
	store Store
	docs  Documents
	log   *zap.SugaredLogger
}

func (h *UploadDocuments) Execute(ctx context.Context, exec *process.Execution) process.Result {
	uploaded := exec.StringMap(process.VarUploadedDocuments)
	if len(uploaded) == 0 {
		return businessFailure(exec, model.ErrTypeInvalidRequest, "Uploaded documents are required")
	}
	if uploaded[storage.DocPassport] == "" || uploaded[storage.DocPhoto] == "" {
		return businessFailure(exec, model.ErrTypeMissingDocument, "Both passport and photo are required")
	}

	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}

	for _, doc := range documentTypes {
		m, err := h.docs.Inspect(uploaded[doc])
		if err != nil {
			return businessFailure(exec, model.ErrTypeDocumentUploadFailed,
				fmt.Sprintf("Failed to read uploaded %s: %v", doc, err))
		}
		exec.Set(metaKey(doc, "Extension"), m.Extension)
		exec.Set(metaKey(doc, "SizeBytes"), m.SizeBytes)
		exec.Set(metaKey(doc, "SizeMB"), m.SizeMB())
		exec.Set(metaKey(doc, "MimeType"), m.MimeType)
	}

	if err := o.AttachDocuments(uploaded[storage.DocPassport], uploaded[storage.DocPhoto], exec.Now()); err != nil {
		return businessFailure(exec, model.ErrTypeGeneralFailure, err.Error())
	}
	if err := h.store.SaveOnboarding(ctx, o, repo.NewOnboardingEvent(o, model.EventDocumentsUploaded)); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}

	exec.Set(process.VarPassportPath, *o.PassportPath)
	exec.Set(process.VarPhotoPath, *o.PhotoPath)
	exec.Set(process.VarDocumentsUploadedAt, timestamp(*o.DocumentUploadedAt))
	h.log.Infow("documents uploaded", "onboardingId", o.ID)
	return succeed(exec, o)
}

// ValidateDocuments checks the inspected documents against the upload rules.
// It reads only execution variables, so a rejection leaves the record untouched.
type ValidateDocuments struct {
	rules storage.Rules
	log   *zap.SugaredLogger
}

func (h *ValidateDocuments) Execute(_ context.Context, exec *process.Execution) process.Result {
	for _, doc := range documentTypes {
		m := storage.Metadata{
			Extension: exec.String(metaKey(doc, "Extension")),
			SizeBytes: exec.Int64(metaKey(doc, "SizeBytes")),
			MimeType:  exec.String(metaKey(doc, "MimeType")),
		}
		if v := h.rules.Check(doc, m); v != nil {
			exec.Set(process.VarValidationErrorCode, v.Code)
			exec.Set(process.VarValidationErrorMsg, v.Message)
			h.log.Warnw("document rejected", "onboardingId", exec.OnboardingID(), "document", doc, "code", v.Code)
			return businessFailure(exec, model.ErrTypeValidationFailed, v.Message)
		}
	}
	exec.Set(process.VarStepID, exec.StepID)
	exec.Set(process.VarStepStatus, process.ResultSuccess)
	return process.Success()
}

// UploadValidation handles a rejected upload: it discards the documents and
// re-opens the wait so the customer can upload again.
type UploadValidation struct {
	store Store
	docs  Documents
	log   *zap.SugaredLogger
}

func (h *UploadValidation) Execute(ctx context.Context, exec *process.Execution) process.Result {
	message := exec.String(process.VarValidationErrorMsg)
	if message == "" {
		message = DefaultUploadValidationMessage
	}

	o, res := load(ctx, h.store, exec)
	if res != nil {
		return *res
	}
	paths := []*string{o.PassportPath, o.PhotoPath}
	if err := o.DetachDocuments(exec.Now()); err != nil {
		return businessFailure(exec, model.ErrTypeGeneralFailure, err.Error())
	}
	if err := h.store.SaveOnboarding(ctx, o); err != nil {
		return unexpected(ctx, h.store, exec, o, false, msgSystemError, err, h.log)
	}
	for _, p := range paths {
		if p == nil {
			continue
		}
		if err := h.docs.Remove(*p); err != nil {
			h.log.Warnw("remove rejected document", "onboardingId", o.ID, "error", err)
		}
	}

	exec.Delete(process.VarUploadedDocuments, process.VarPassportPath, process.VarPhotoPath, process.VarDocumentsUploadedAt)
	for _, doc := range documentTypes {
		exec.Delete(metaKey(doc, "Extension"), metaKey(doc, "SizeBytes"), metaKey(doc, "SizeMB"), metaKey(doc, "MimeType"))
	}
	exec.Set(process.VarStatus, string(o.Status))
	exec.Set(process.VarStepStatus, process.ResultFailed)
	h.log.Infow("documents rejected, waiting for new upload", "onboardingId", o.ID)
	return process.Failure(model.ErrTypeUploadValidationFailed, message)
}
