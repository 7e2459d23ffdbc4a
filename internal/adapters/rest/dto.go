package rest

import (
	"fmt"
	"strings"

	"property-import-service/internal/core/domain"
)

const (
	acceptedMessage  = "Import job started successfully. Use the jobId to track progress."
	duplicateMessage = "Duplicate file detected - this file has already been processed. Use the jobId to check the original import status."
)

// ImportStartedResponse ответ POST /v1/imports
type ImportStartedResponse struct {
	JobID         string `json:"jobId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	EstimatedRows int    `json:"estimatedRows"`
	StatusURL     string `json:"statusUrl"`
}

func statusURL(jobID string) string {
	return fmt.Sprintf("/v1/imports/status/%s", jobID)
}

func toImportStartedResponse(s *domain.Submission) ImportStartedResponse {
	msg := acceptedMessage
	if s.Status == domain.SubmissionDuplicate {
		msg = duplicateMessage
	}
	return ImportStartedResponse{
		JobID:         s.JobID,
		Status:        string(s.Status),
		Message:       msg,
		EstimatedRows: s.EstimatedRows,
		StatusURL:     statusURL(s.JobID),
	}
}

// ImportJobDataResponse параметры задачи в ответе статуса
type ImportJobDataResponse struct {
	Filename       string `json:"filename"`
	FileKey        string `json:"fileKey"`
	TenantID       string `json:"tenantId"`
	UserID         string `json:"userId"`
	IdempotencyKey string `json:"idempotencyKey"`
	TotalRows      int    `json:"totalRows"`
}

// ImportJobStatusResponse ответ GET /v1/imports/status/{jobId}
type ImportJobStatusResponse struct {
	ID       string                 `json:"id"`
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Data     *ImportJobDataResponse `json:"data,omitempty"`
	Result   *domain.ImportResult   `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func toImportJobStatusResponse(v *domain.ImportStatusView) ImportJobStatusResponse {
	resp := ImportJobStatusResponse{
		ID:       v.JobID,
		Status:   string(v.Status),
		Progress: v.Progress,
		Result:   v.Result,
		Error:    v.Error,
	}
	if v.Job != nil {
		resp.Data = &ImportJobDataResponse{
			Filename:       v.Job.Filename,
			FileKey:        v.Job.FileKey,
			TenantID:       v.Job.TenantID,
			UserID:         v.Job.UserID,
			IdempotencyKey: v.Job.ID,
			TotalRows:      v.Job.TotalRows,
		}
	}
	return resp
}

// ProcessWaitingResponse ответ POST /v1/imports/process-waiting
type ProcessWaitingResponse struct {
	Message   string `json:"message"`
	JobsFound int    `json:"jobsFound"`
	Requeued  int    `json:"requeued"`
}

func toProcessWaitingResponse(s *domain.RetrySummary) ProcessWaitingResponse {
	msg := "No failed import jobs to requeue"
	if s.Found > 0 {
		msg = fmt.Sprintf("Requeued %d of %d failed import jobs", s.Requeued, s.Found)
	}
	return ProcessWaitingResponse{Message: msg, JobsFound: s.Found, Requeued: s.Requeued}
}

// PropertyListQueryParams query-параметры GET /v1/properties
type PropertyListQueryParams struct {
	Sector string `validate:"omitempty,max=128"`
	Type   string `validate:"omitempty,oneof=house apartment commercial land warehouse"`
	Status string `validate:"omitempty,oneof=active inactive sold rented"`
	Limit  int    `validate:"gte=0,lte=100"`
	Offset int    `validate:"gte=0"`
}

// UpdatePropertyRequest тело PATCH /v1/properties/{id}; отсутствующее поле не меняется
type UpdatePropertyRequest struct {
	Title         *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	Address       *string  `json:"address" validate:"omitempty,min=1,max=500"`
	Sector        *string  `json:"sector" validate:"omitempty,min=1,max=128"`
	Type          *string  `json:"type" validate:"omitempty"`
	Status        *string  `json:"status" validate:"omitempty"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0"`
	Area          *float64 `json:"area" validate:"omitempty,gte=0"`
	Bedrooms      *int     `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms     *int     `json:"bathrooms" validate:"omitempty,gte=0"`
	ParkingSpaces *int     `json:"parkingSpaces" validate:"omitempty,gte=0"`
}

// toPatch enum в PATCH проверяются строго, в отличие от импорта
func (req UpdatePropertyRequest) toPatch() (domain.PropertyPatch, error) {
	patch := domain.PropertyPatch{
		Title:         trimmed(req.Title),
		Description:   trimmed(req.Description),
		Address:       trimmed(req.Address),
		Sector:        trimmed(req.Sector),
		Price:         req.Price,
		Area:          req.Area,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		ParkingSpaces: req.ParkingSpaces,
	}
	if req.Type != nil {
		t, ok := domain.LookupPropertyType(*req.Type)
		if !ok {
			return patch, fmt.Errorf("unknown property type %q", *req.Type)
		}
		patch.Type = &t
	}
	if req.Status != nil {
		s, ok := domain.LookupPropertyStatus(*req.Status)
		if !ok {
			return patch, fmt.Errorf("unknown property status %q", *req.Status)
		}
		patch.Status = &s
	}
	return patch, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
