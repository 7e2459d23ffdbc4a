package rest

import (
	"errors"
	"net/http"
	"strconv"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead запас на заголовки multipart сверх лимита файла
const multipartOverhead = 1 << 20

// ImportHandler хендлеры /v1/imports
type ImportHandler struct {
	submitUC   usecases_port.SubmitImportPort
	statusUC   usecases_port.GetImportStatusPort
	statsUC    usecases_port.GetQueueStatsPort
	retryUC    usecases_port.RetryFailedImportsPort
	maxUpload  int64
	retryLimit int
}

func NewImportHandler(
	submitUC usecases_port.SubmitImportPort,
	statusUC usecases_port.GetImportStatusPort,
	statsUC usecases_port.GetQueueStatsPort,
	retryUC usecases_port.RetryFailedImportsPort,
	maxUpload int64,
	retryLimit int,
) *ImportHandler {
	return &ImportHandler{
		submitUC:   submitUC,
		statusUC:   statusUC,
		statsUC:    statsUC,
		retryUC:    retryUC,
		maxUpload:  maxUpload,
		retryLimit: retryLimit,
	}
}

// StartImport POST /v1/imports (multipart, поле file). 201 accepted, 409 duplicate.
func (h *ImportHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "StartImport"})

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	limit := h.maxUpload + multipartOverhead
	if r.ContentLength > limit {
		WriteJSONError(w, http.StatusRequestEntityTooLarge, domain.ErrFileTooLarge.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteJSONError(w, http.StatusRequestEntityTooLarge, domain.ErrFileTooLarge.Error())
			return
		}
		logger.Warn("Failed to parse multipart form", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, domain.ErrFileRequired.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, domain.ErrFileRequired.Error())
		return
	}
	defer file.Close()

	upload := domain.Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}

	submission, err := h.submitUC.Submit(r.Context(), upload, principal.TenantID, principal.UserID)
	if err != nil {
		logger.Error("Submit import use case failed", err, port.Fields{"filename": upload.Name})
		writeDomainError(w, err, "Failed to start import")
		return
	}

	code := http.StatusCreated
	if submission.Status == domain.SubmissionDuplicate {
		code = http.StatusConflict
	}
	RespondWithJSON(w, code, toImportStartedResponse(submission))
}

// GetImportStatus GET /v1/imports/status/{jobId}. Чужой тенант получает 404.
func (h *ImportHandler) GetImportStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{
		"handler": "GetImportStatus",
		"job_id":  jobID,
	})

	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	view, err := h.statusUC.Get(r.Context(), jobID)
	if err == nil && view.Job != nil && view.Job.TenantID != principal.TenantID {
		err = domain.ErrJobNotFound
	}
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			RespondWithJSON(w, http.StatusNotFound, ImportJobStatusResponse{
				ID:     jobID,
				Status: string(domain.StatusNotFound),
				Error:  "Job not found",
			})
			return
		}
		logger.Error("Get import status use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to retrieve import status")
		return
	}

	RespondWithJSON(w, http.StatusOK, toImportJobStatusResponse(view))
}

// GetQueueStats GET /v1/imports/queue/stats (admin)
func (h *ImportHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetQueueStats"})

	stats, err := h.statsUC.Get(r.Context())
	if err != nil {
		logger.Error("Get queue stats use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to retrieve queue statistics")
		return
	}
	RespondWithJSON(w, http.StatusOK, stats)
}

// ProcessWaitingJobs POST /v1/imports/process-waiting?limit=N (admin)
func (h *ImportHandler) ProcessWaitingJobs(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ProcessWaitingJobs"})

	limit := h.retryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			WriteJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	summary, err := h.retryUC.Retry(r.Context(), limit)
	if err != nil {
		logger.Error("Retry failed imports use case failed", err, port.Fields{"limit": limit})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to requeue import jobs")
		return
	}
	RespondWithJSON(w, http.StatusOK, toProcessWaitingResponse(summary))
}
