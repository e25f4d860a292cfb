// Package model defines the core data types and structures used throughout the gitgauge dispatch system.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JobStatus represents the current status of an analysis job in the ledger.
type JobStatus string

const (
	// JobStatusQueued indicates a job is waiting to be dispatched.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a job has been claimed by the dispatcher.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates a job was handed off to the analysis worker.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job failed before or after hand-off.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusProcessing ||
		s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true if the status permits no further forward transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a ledger write from one status to another is
// permitted. Transitions only move forward along
// queued → processing → {completed, failed}; the single sanctioned backward
// correction is completed → failed, which records an asynchronous worker
// failure discovered after the optimistic hand-off write.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if !s.Valid() || !to.Valid() || s == to {
		return false
	}
	switch s {
	case JobStatusQueued:
		return to != JobStatusQueued
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusCompleted:
		return to == JobStatusFailed
	case JobStatusFailed:
		return false
	default:
		return false
	}
}

// AnalysisJob is one row of the job status ledger. A job is created when an
// analysis request is enqueued (or retried) and is only ever mutated forward
// through the status state machine; rows are never deleted by the dispatcher.
type AnalysisJob struct {
	ID             string          `json:"id"                         db:"id"`
	QueueMessageID *string         `json:"queue_message_id,omitempty" db:"queue_message_id"`
	Repository     string          `json:"repository"                 db:"repository"`
	UserID         string          `json:"user_id"                    db:"user_id"`
	EvaluationID   *string         `json:"evaluation_id,omitempty"    db:"evaluation_id"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Result         json.RawMessage `json:"result,omitempty"           db:"result"`
	Error          *string         `json:"error,omitempty"            db:"error"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// CreateJobRequest represents a request to create a new analysis job.
type CreateJobRequest struct {
	Repository   string   `json:"repository"`
	UserID       string   `json:"user_id"`
	EvaluationID *string  `json:"evaluation_id,omitempty"`
	Criteria     []string `json:"criteria,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.Repository) == "" {
		return errors.New("repository is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user id is required")
	}
	if r.EvaluationID != nil && strings.TrimSpace(*r.EvaluationID) == "" {
		return errors.New("evaluation id must not be blank when provided")
	}
	return nil
}

// JobStatusResponse represents the user-visible status of a specific job.
type JobStatusResponse struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusView projects the ledger row into its user-visible form.
func (j *AnalysisJob) StatusView() *JobStatusResponse {
	return &JobStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Result:    j.Result,
		Error:     j.Error,
		UpdatedAt: j.UpdatedAt,
	}
}
