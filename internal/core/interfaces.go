package core

import (
	"context"
	"time"

	"github.com/gitgauge/gitgauge/internal/domain/model"
)

// This file contains the port definitions between the dispatch services and
// their collaborators. Service implementations depend on these interfaces,
// not on concrete implementations.

// ReadParams groups parameters for QueueRepository.Read to keep param count ≤3.
type ReadParams struct {
	Queue             string
	VisibilityTimeout time.Duration
	MaxMessages       int
}

// QueueRepository defines the consumed surface of the durable message queue:
// read with a visibility timeout, delete, archive. A message read here stays
// hidden from other readers until the timeout lapses or it is released.
type QueueRepository interface {
	Read(ctx context.Context, params ReadParams) ([]*model.QueueMessage, error)
	Delete(ctx context.Context, queue, msgID string) error
	// Archive moves a message out of the live queue while preserving it for
	// inspection, used when a dispatch fails before hand-off.
	Archive(ctx context.Context, queue, msgID string) error
	// WaitForWake blocks until a new message lands on the queue or ctx ends.
	WaitForWake(ctx context.Context, queue string) error
}

// UpdateStatusParams groups parameters for AnalysisJobRepository.UpdateByQueueMessageID.
type UpdateStatusParams struct {
	QueueMessageID string
	Status         model.JobStatus
	Result         []byte
	Error          string
}

// AnalysisJobRepository defines the consumed surface of the job status ledger.
type AnalysisJobRepository interface {
	// Create inserts a queued ledger row and the matching queue message in a
	// single transaction, returning the created job.
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.AnalysisJob, error)
	// UpdateByQueueMessageID applies a guarded forward-only status write. It
	// returns false when no row matched or the transition was not permitted;
	// a missing row is a progress-signal gap, not a dispatch failure.
	UpdateByQueueMessageID(ctx context.Context, params UpdateStatusParams) (bool, error)
	GetByID(ctx context.Context, id string) (*model.AnalysisJob, error)
}

// WorkerAck is the remote worker's acknowledgement that it accepted a job.
type WorkerAck struct {
	StatusCode int
	Body       string
}

// WorkerClient hands analysis jobs to the remote compute worker.
//
// Forward splits the hand-off in two legs: errors returned synchronously mean
// the hand-off was never accepted (the dispatcher archives the message), while
// the returned channel delivers exactly one acknowledgement result once the
// worker has accepted or refused the request. The channel result arrives after
// the dispatch call has already returned to its caller.
type WorkerClient interface {
	Forward(ctx context.Context, payload model.DispatchPayload) (<-chan ForwardResult, error)
	// Poll sends a best-effort wake-up signal to the dispatch trigger.
	Poll(ctx context.Context) error
}

// ForwardResult is the asynchronous outcome of a hand-off.
type ForwardResult struct {
	Ack *WorkerAck
	Err error
}

// DispatchStateStore records the dispatcher's liveness snapshot so the
// trigger surface can report it across restarts and replicas.
type DispatchStateStore interface {
	MarkProcessed(ctx context.Context, at time.Time) error
	LastProcessed(ctx context.Context) (time.Time, error)
}
