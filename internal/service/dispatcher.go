// Package service contains the application services behind the HTTP and
// dispatch loop surfaces.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/data"
	"github.com/gitgauge/gitgauge/internal/domain/model"
	"github.com/gitgauge/gitgauge/internal/observability/metrics"
	"github.com/gitgauge/gitgauge/internal/observability/statsd"
)

// DispatchOutcome names the result of one dispatch cycle.
type DispatchOutcome string

const (
	// OutcomeAlreadyInProgress means another cycle held the busy gate.
	OutcomeAlreadyInProgress DispatchOutcome = "already_in_progress"
	// OutcomeIdle means the queue had no visible messages.
	OutcomeIdle DispatchOutcome = "idle"
	// OutcomeDispatched means a message was handed to the worker.
	OutcomeDispatched DispatchOutcome = "dispatched"
	// OutcomeQueueReadError means the queue read itself failed.
	OutcomeQueueReadError DispatchOutcome = "queue_read_error"
	// OutcomeDispatchError means a message was claimed but the hand-off
	// failed before the worker accepted it.
	OutcomeDispatchError DispatchOutcome = "dispatch_error"
)

// DispatchResult reports what one dispatch cycle did.
type DispatchResult struct {
	Outcome   DispatchOutcome
	MessageID string
	Err       error
}

// DispatchStatus is the liveness snapshot exposed by the trigger surface.
type DispatchStatus struct {
	Busy            bool       `json:"busy"`
	Queue           string     `json:"queue"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

// DispatcherService drains the analysis queue one message per cycle and hands
// each message to the remote worker. A single atomic gate keeps cycles from
// overlapping inside one process; the queue's visibility timeout covers
// everything the gate cannot.
type DispatcherService struct {
	queue  core.QueueRepository
	jobs   core.AnalysisJobRepository
	worker core.WorkerClient
	state  core.DispatchStateStore

	queueName         string
	visibilityTimeout time.Duration

	busy         atomic.Bool
	metrics      statsd.Sink
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// DispatcherServiceOptions configures the dispatcher service.
type DispatcherServiceOptions struct {
	Queue             core.QueueRepository
	Jobs              core.AnalysisJobRepository
	Worker            core.WorkerClient
	State             core.DispatchStateStore
	QueueName         string
	VisibilityTimeout time.Duration
	Metrics           statsd.Sink
	TimeProvider      data.TimeProvider
	Logger            *slog.Logger
}

// NewDispatcherService creates a new dispatcher service.
func NewDispatcherService(opts DispatcherServiceOptions) *DispatcherService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	visibility := opts.VisibilityTimeout
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}

	return &DispatcherService{
		queue:             opts.Queue,
		jobs:              opts.Jobs,
		worker:            opts.Worker,
		state:             opts.State,
		queueName:         opts.QueueName,
		visibilityTimeout: visibility,
		metrics:           opts.Metrics,
		timeProvider:      tp,
		logger:            logger,
	}
}

// DispatchOnce runs a single dispatch cycle: claim at most one message, mark
// its ledger row processing, hand it to the worker, optimistically mark it
// completed, and delete it from the queue. Concurrent callers get
// OutcomeAlreadyInProgress without touching the queue.
//
// The cycle returns once the worker hand-off is initiated; the worker's
// acknowledgement is consumed by a continuation that corrects the ledger to
// failed if the hand-off turns out to have been refused.
func (s *DispatcherService) DispatchOnce(ctx context.Context) DispatchResult {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.InfoContext(ctx, "dispatch already in progress, skipping cycle", "queue", s.queueName)
		return DispatchResult{Outcome: OutcomeAlreadyInProgress}
	}
	defer s.busy.Store(false)

	started := s.timeProvider.Now()
	result := s.dispatchCycle(ctx)
	s.recordCycle(ctx, result, s.timeProvider.Now().Sub(started))
	return result
}

func (s *DispatcherService) dispatchCycle(ctx context.Context) DispatchResult {
	messages, err := s.queue.Read(ctx, core.ReadParams{
		Queue:             s.queueName,
		VisibilityTimeout: s.visibilityTimeout,
		MaxMessages:       1,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "queue read failed", "queue", s.queueName, "error", err)
		return DispatchResult{Outcome: OutcomeQueueReadError, Err: err}
	}
	if len(messages) == 0 {
		return DispatchResult{Outcome: OutcomeIdle}
	}

	msg := messages[0]
	logger := s.logger.With("queue", s.queueName, "message_id", msg.ID, "read_count", msg.ReadCount)

	req, err := msg.DecodeAnalysisRequest()
	if err != nil {
		logger.ErrorContext(ctx, "queue message payload is malformed", "error", err)
		return s.failDispatch(ctx, msg.ID, fmt.Errorf("decode analysis request: %w", err))
	}

	s.markStatus(ctx, msg.ID, core.UpdateStatusParams{
		QueueMessageID: msg.ID,
		Status:         model.JobStatusProcessing,
	})

	payload := model.DispatchPayloadFrom(msg.ID, req)
	acks, err := s.worker.Forward(ctx, payload)
	if err != nil {
		logger.ErrorContext(ctx, "worker hand-off failed",
			"repository", req.Repository, "error", err)
		return s.failDispatch(ctx, msg.ID, err)
	}

	s.markStatus(ctx, msg.ID, core.UpdateStatusParams{
		QueueMessageID: msg.ID,
		Status:         model.JobStatusCompleted,
		Result:         mustJSON(map[string]any{"forwarded": true, "repository": req.Repository}),
	})

	if err := s.queue.Delete(ctx, s.queueName, msg.ID); err != nil {
		// The message will resurface after the visibility timeout and the
		// ledger guard will reject the duplicate transition, so log and move on.
		logger.WarnContext(ctx, "failed to delete dispatched message", "error", err)
	}

	go s.awaitHandoff(context.WithoutCancel(ctx), msg.ID, acks)

	logger.InfoContext(ctx, "dispatched analysis job", "repository", req.Repository, "user_id", req.UserID)
	return DispatchResult{Outcome: OutcomeDispatched, MessageID: msg.ID}
}

// failDispatch records a pre-hand-off failure: the ledger row goes to failed
// and the message is archived so operators can inspect it.
func (s *DispatcherService) failDispatch(ctx context.Context, msgID string, cause error) DispatchResult {
	s.markStatus(ctx, msgID, core.UpdateStatusParams{
		QueueMessageID: msgID,
		Status:         model.JobStatusFailed,
		Error:          cause.Error(),
	})

	if err := s.queue.Archive(ctx, s.queueName, msgID); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive message after dispatch error",
			"queue", s.queueName, "message_id", msgID, "error", err)
	}

	return DispatchResult{Outcome: OutcomeDispatchError, MessageID: msgID, Err: cause}
}

// awaitHandoff consumes the asynchronous hand-off acknowledgement. A refusal
// arriving here lands after the optimistic completed write, so the ledger is
// corrected to failed.
func (s *DispatcherService) awaitHandoff(ctx context.Context, msgID string, acks <-chan core.ForwardResult) {
	res, ok := <-acks
	if !ok {
		return
	}

	if res.Err != nil {
		s.logger.ErrorContext(ctx, "worker refused analysis job after hand-off",
			"queue", s.queueName, "message_id", msgID, "error", res.Err)
		s.markStatus(ctx, msgID, core.UpdateStatusParams{
			QueueMessageID: msgID,
			Status:         model.JobStatusFailed,
			Error:          res.Err.Error(),
		})
		metrics.EmitWorkerHandoff(s.metrics, metrics.ResultError, res.Err)
		return
	}

	if res.Ack != nil {
		s.logger.DebugContext(ctx, "worker acknowledged analysis job",
			"queue", s.queueName, "message_id", msgID, "status_code", res.Ack.StatusCode)
	}
	metrics.EmitWorkerHandoff(s.metrics, metrics.ResultSuccess, nil)
}

// markStatus applies a guarded ledger write. A false return means the row is
// missing or the transition was not permitted; neither stops the dispatch.
func (s *DispatcherService) markStatus(ctx context.Context, msgID string, params core.UpdateStatusParams) {
	updated, err := s.jobs.UpdateByQueueMessageID(ctx, params)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger status update failed",
			"message_id", msgID, "status", params.Status, "error", err)
		return
	}
	if !updated {
		s.logger.WarnContext(ctx, "ledger row missing or transition rejected",
			"message_id", msgID, "status", params.Status)
	}
}

func (s *DispatcherService) recordCycle(ctx context.Context, result DispatchResult, elapsed time.Duration) {
	metricResult := metrics.ResultNoop
	switch result.Outcome {
	case OutcomeDispatched:
		metricResult = metrics.ResultSuccess
	case OutcomeQueueReadError, OutcomeDispatchError:
		metricResult = metrics.ResultError
	case OutcomeAlreadyInProgress, OutcomeIdle:
	}

	metrics.EmitDispatchCycle(s.metrics, metrics.DispatchMetric{
		Queue:    s.queueName,
		Outcome:  string(result.Outcome),
		Result:   metricResult,
		Duration: elapsed,
		Err:      result.Err,
	})

	if s.state == nil {
		return
	}
	if err := s.state.MarkProcessed(ctx, s.timeProvider.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "failed to record dispatch liveness", "error", err)
	}
}

// Status reports whether a cycle is currently running and when the dispatcher
// last finished one.
func (s *DispatcherService) Status(ctx context.Context) DispatchStatus {
	status := DispatchStatus{
		Busy:  s.busy.Load(),
		Queue: s.queueName,
	}

	if s.state != nil {
		last, err := s.state.LastProcessed(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read dispatch liveness", "error", err)
		} else if !last.IsZero() {
			status.LastProcessedAt = &last
		}
	}
	return status
}

// QueueName returns the queue this dispatcher drains.
func (s *DispatcherService) QueueName() string {
	return s.queueName
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
