// Package httpx provides HTTP handlers and utilities for the gitgauge dispatch API.
package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/gitgauge/gitgauge/internal/data"
	"github.com/gitgauge/gitgauge/internal/service"
)

// DispatchHandlers provides HTTP handlers for the dispatch trigger surface.
type DispatchHandlers struct {
	Svc          *service.DispatcherService
	TimeProvider data.TimeProvider
}

// dispatchStatusResponse is the wire shape of the trigger GET.
type dispatchStatusResponse struct {
	Status          string     `json:"status"`
	IsProcessing    bool       `json:"is_processing"`
	LastProcessTime *time.Time `json:"last_process_time,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// dispatchTriggerResponse is the wire shape of the trigger POST.
type dispatchTriggerResponse struct {
	Processed int    `json:"processed"`
	Outcome   string `json:"outcome"`
	MessageID string `json:"message_id,omitempty"`
}

// GetStatus reports whether a dispatch cycle is running and when the last one
// finished.
func (h *DispatchHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.Svc.Status(r.Context())

	WriteJSON(w, http.StatusOK, dispatchStatusResponse{
		Status:          "ok",
		IsProcessing:    status.Busy,
		LastProcessTime: status.LastProcessedAt,
		Timestamp:       h.now(),
	})
}

// Trigger runs one dispatch cycle. A cycle already in flight answers 429; an
// idle queue answers 200 with processed 0.
func (h *DispatchHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	result := h.Svc.DispatchOnce(r.Context())

	switch result.Outcome {
	case service.OutcomeAlreadyInProgress:
		WriteJSON(w, http.StatusTooManyRequests, dispatchTriggerResponse{
			Processed: 0,
			Outcome:   string(result.Outcome),
		})
	case service.OutcomeIdle:
		WriteJSON(w, http.StatusOK, dispatchTriggerResponse{
			Processed: 0,
			Outcome:   string(result.Outcome),
		})
	case service.OutcomeDispatched:
		WriteJSON(w, http.StatusOK, dispatchTriggerResponse{
			Processed: 1,
			Outcome:   string(result.Outcome),
			MessageID: result.MessageID,
		})
	case service.OutcomeQueueReadError, service.OutcomeDispatchError:
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(result.Outcome),
			Err:     result.Err,
		})
	default:
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "unknown_outcome",
			Err:     errors.New("unexpected dispatch outcome"),
		})
	}
}

func (h *DispatchHandlers) now() time.Time {
	if h.TimeProvider != nil {
		return h.TimeProvider.Now().UTC()
	}
	return time.Now().UTC()
}
