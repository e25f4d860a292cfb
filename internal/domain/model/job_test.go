package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string { return &s }

func TestJobStatus_Valid(t *testing.T) {
	assert.True(t, JobStatusQueued.Valid())
	assert.True(t, JobStatusProcessing.Valid())
	assert.True(t, JobStatusCompleted.Valid())
	assert.True(t, JobStatusFailed.Valid())
	assert.False(t, JobStatus("unknown").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusQueued, JobStatusProcessing, true},
		{JobStatusQueued, JobStatusCompleted, true},
		{JobStatusQueued, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusQueued, false},
		// completed → failed is the single sanctioned backward correction.
		{JobStatusCompleted, JobStatusFailed, true},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusQueued, false},
		{JobStatusFailed, JobStatusQueued, false},
		{JobStatusFailed, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusQueued, JobStatusQueued, false},
		{JobStatusProcessing, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusCompleted, false},
		{JobStatusFailed, JobStatusFailed, false},
		{JobStatus("unknown"), JobStatusQueued, false},
		{JobStatusQueued, JobStatus("unknown"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestCreateJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      CreateJobRequest
		errorMsg string
	}{
		{
			name: "valid",
			req:  CreateJobRequest{Repository: "octocat/hello-world", UserID: "user-42"},
		},
		{
			name: "valid with evaluation id and criteria",
			req: CreateJobRequest{
				Repository:   "octocat/hello-world",
				UserID:       "user-42",
				EvaluationID: stringPtr("eval-1"),
				Criteria:     []string{"code-quality", "test-coverage"},
			},
		},
		{
			name:     "missing repository",
			req:      CreateJobRequest{UserID: "user-42"},
			errorMsg: "repository is required",
		},
		{
			name:     "blank repository",
			req:      CreateJobRequest{Repository: "   ", UserID: "user-42"},
			errorMsg: "repository is required",
		},
		{
			name:     "missing user id",
			req:      CreateJobRequest{Repository: "octocat/hello-world"},
			errorMsg: "user id is required",
		},
		{
			name: "blank evaluation id",
			req: CreateJobRequest{
				Repository:   "octocat/hello-world",
				UserID:       "user-42",
				EvaluationID: stringPtr(" "),
			},
			errorMsg: "evaluation id must not be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestAnalysisJob_StatusView(t *testing.T) {
	updated := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	job := &AnalysisJob{
		ID:         "job-1",
		Repository: "octocat/hello-world",
		UserID:     "user-42",
		Status:     JobStatusFailed,
		Result:     json.RawMessage(`{"forwarded":true}`),
		Error:      stringPtr("worker refused"),
		UpdatedAt:  updated,
	}

	view := job.StatusView()
	assert.Equal(t, "job-1", view.ID)
	assert.Equal(t, JobStatusFailed, view.Status)
	assert.Equal(t, job.Result, view.Result)
	require.NotNil(t, view.Error)
	assert.Equal(t, "worker refused", *view.Error)
	assert.Equal(t, updated, view.UpdatedAt)

	// The view never leaks the requesting user or repository internals.
	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "user-42")
}
