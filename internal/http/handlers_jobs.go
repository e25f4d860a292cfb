package httpx

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gitgauge/gitgauge/internal/domain/model"
	apperrors "github.com/gitgauge/gitgauge/internal/errors"
	"github.com/gitgauge/gitgauge/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Jobs  *service.JobService
	Retry *service.RetryService
}

// GetStatus handles HTTP requests to retrieve the status of a specific job.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}
	if _, err := uuid.Parse(jobID); err != nil {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_path",
				Err:     errors.New("job id must be a valid UUID"),
			},
		)
		return
	}

	status, err := h.Jobs.GetStatus(r.Context(), jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(
				w,
				ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
			)
			return
		}
		if apperrors.IsValidation(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_job_id", Err: err})
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "get_status_failed",
			Err:     errors.New("failed to get job status"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// RetryJob handles HTTP requests to re-enqueue an analysis for a repository.
func (h *JobHandlers) RetryJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Retry.Retry(r.Context(), &req)
	if err != nil {
		if apperrors.IsValidation(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "retry_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}
