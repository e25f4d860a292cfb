package model

import (
	"encoding/json"
	"time"
)

// QueueMessage is the envelope the dispatcher borrows from the queue for the
// duration of processing. It is released by an explicit delete or archive;
// until then the visibility timeout hides it from other readers.
type QueueMessage struct {
	ID        string          `json:"id"         db:"id"`
	Queue     string          `json:"queue"      db:"queue"`
	Payload   json.RawMessage `json:"payload"    db:"payload"`
	ReadCount int             `json:"read_count" db:"read_count"`
	VisibleAt time.Time       `json:"visible_at" db:"visible_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AnalysisRequest is the job description carried inside a queue message
// payload. It may contain fields the worker must never see (delivery hints,
// internal bookkeeping); DispatchPayloadFrom strips it down before forwarding.
type AnalysisRequest struct {
	Repository   string   `json:"repository"`
	UserID       string   `json:"user_id"`
	EvaluationID *string  `json:"evaluation_id,omitempty"`
	Criteria     []string `json:"criteria,omitempty"`

	// CallbackToken and similar credential material must never cross the
	// queue → worker hop. The worker resolves its own secrets from UserID.
	CallbackToken string `json:"callback_token,omitempty"`
}

// DecodeAnalysisRequest parses the queue message payload.
func (m *QueueMessage) DecodeAnalysisRequest() (*AnalysisRequest, error) {
	var req AnalysisRequest
	if err := json.Unmarshal(m.Payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DispatchPayload is the subset of an analysis request forwarded to the
// remote worker. It carries identity, never secrets: the worker is trusted to
// fetch its own credentials using the embedded user id.
type DispatchPayload struct {
	JobID        string   `json:"job_id"`
	Repository   string   `json:"repository"`
	UserID       string   `json:"user_id"`
	EvaluationID *string  `json:"evaluation_id,omitempty"`
	Criteria     []string `json:"criteria,omitempty"`
}

// DispatchPayloadFrom builds the worker-facing payload for a claimed message,
// dropping any credential material present in the raw request.
func DispatchPayloadFrom(msgID string, req *AnalysisRequest) DispatchPayload {
	return DispatchPayload{
		JobID:        msgID,
		Repository:   req.Repository,
		UserID:       req.UserID,
		EvaluationID: req.EvaluationID,
		Criteria:     req.Criteria,
	}
}
