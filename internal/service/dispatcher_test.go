package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/data"
	"github.com/gitgauge/gitgauge/internal/domain/model"
	"github.com/gitgauge/gitgauge/internal/mocks"
)

const testQueue = "repo_analysis_queue"

type dispatcherFixture struct {
	queue  *mocks.MockQueueRepository
	jobs   *mocks.MockAnalysisJobRepository
	worker *mocks.MockWorkerClient
	state  *mocks.MockDispatchStateStore
	svc    *DispatcherService
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &dispatcherFixture{
		queue:  mocks.NewMockQueueRepository(ctrl),
		jobs:   mocks.NewMockAnalysisJobRepository(ctrl),
		worker: mocks.NewMockWorkerClient(ctrl),
		state:  mocks.NewMockDispatchStateStore(ctrl),
	}
	f.svc = NewDispatcherService(DispatcherServiceOptions{
		Queue:             f.queue,
		Jobs:              f.jobs,
		Worker:            f.worker,
		State:             f.state,
		QueueName:         testQueue,
		VisibilityTimeout: 5 * time.Minute,
		TimeProvider:      data.NewFixedTimeProvider(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)),
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *dispatcherFixture) expectMarkProcessed() {
	f.state.EXPECT().MarkProcessed(gomock.Any(), gomock.Any()).Return(nil)
}

func testMessage(t *testing.T, payload any) *model.QueueMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &model.QueueMessage{
		ID:        "msg-1",
		Queue:     testQueue,
		Payload:   raw,
		ReadCount: 1,
		VisibleAt: time.Now().Add(5 * time.Minute),
		CreatedAt: time.Now(),
	}
}

func TestNewDispatcherService(t *testing.T) {
	t.Run("defaults visibility timeout", func(t *testing.T) {
		svc := NewDispatcherService(DispatcherServiceOptions{QueueName: testQueue})
		assert.Equal(t, 5*time.Minute, svc.visibilityTimeout)
		assert.NotNil(t, svc.logger)
		assert.NotNil(t, svc.timeProvider)
	})

	t.Run("keeps explicit visibility timeout", func(t *testing.T) {
		svc := NewDispatcherService(DispatcherServiceOptions{
			QueueName:         testQueue,
			VisibilityTimeout: 30 * time.Second,
		})
		assert.Equal(t, 30*time.Second, svc.visibilityTimeout)
	})
}

func TestDispatchOnceAlreadyInProgress(t *testing.T) {
	f := newDispatcherFixture(t)

	// Take the gate by hand; no collaborator may be touched.
	require.True(t, f.svc.busy.CompareAndSwap(false, true))
	defer f.svc.busy.Store(false)

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeAlreadyInProgress, result.Outcome)
	assert.Empty(t, result.MessageID)
	assert.NoError(t, result.Err)
}

func TestDispatchOnceSingleFlight(t *testing.T) {
	f := newDispatcherFixture(t)

	inRead := make(chan struct{})
	release := make(chan struct{})
	f.queue.EXPECT().
		Read(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, core.ReadParams) ([]*model.QueueMessage, error) {
			close(inRead)
			<-release
			return nil, nil
		})
	f.expectMarkProcessed()

	first := make(chan DispatchResult, 1)
	go func() {
		first <- f.svc.DispatchOnce(context.Background())
	}()

	<-inRead
	second := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeAlreadyInProgress, second.Outcome)

	close(release)
	assert.Equal(t, OutcomeIdle, (<-first).Outcome)

	// Gate released, the next cycle runs normally.
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.expectMarkProcessed()
	assert.Equal(t, OutcomeIdle, f.svc.DispatchOnce(context.Background()).Outcome)
}

func TestDispatchOnceIdle(t *testing.T) {
	f := newDispatcherFixture(t)

	f.queue.EXPECT().
		Read(gomock.Any(), core.ReadParams{
			Queue:             testQueue,
			VisibilityTimeout: 5 * time.Minute,
			MaxMessages:       1,
		}).
		Return(nil, nil)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeIdle, result.Outcome)
	assert.NoError(t, result.Err)
	assert.False(t, f.svc.busy.Load())
}

func TestDispatchOnceQueueReadError(t *testing.T) {
	f := newDispatcherFixture(t)

	readErr := errors.New("connection refused")
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, readErr)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeQueueReadError, result.Outcome)
	assert.ErrorIs(t, result.Err, readErr)
}

func TestDispatchOnceHappyPath(t *testing.T) {
	f := newDispatcherFixture(t)

	msg := testMessage(t, model.AnalysisRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]*model.QueueMessage{msg}, nil)

	gomock.InOrder(
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), core.UpdateStatusParams{
				QueueMessageID: "msg-1",
				Status:         model.JobStatusProcessing,
			}).
			Return(true, nil),
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.UpdateStatusParams) (bool, error) {
				assert.Equal(t, model.JobStatusCompleted, params.Status)
				assert.JSONEq(t, `{"forwarded":true,"repository":"octocat/hello-world"}`, string(params.Result))
				return true, nil
			}),
	)

	acks := make(chan core.ForwardResult, 1)
	f.worker.EXPECT().
		Forward(gomock.Any(), model.DispatchPayload{
			JobID:      "msg-1",
			Repository: "octocat/hello-world",
			UserID:     "user-42",
		}).
		Return((<-chan core.ForwardResult)(acks), nil)

	f.queue.EXPECT().Delete(gomock.Any(), testQueue, "msg-1").Return(nil)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeDispatched, result.Outcome)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.NoError(t, result.Err)

	// A clean acknowledgement leaves the ledger untouched.
	acks <- core.ForwardResult{Ack: &core.WorkerAck{StatusCode: 202}}
	close(acks)
}

func TestDispatchOnceAsyncRefusalCorrectsLedger(t *testing.T) {
	f := newDispatcherFixture(t)

	msg := testMessage(t, model.AnalysisRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]*model.QueueMessage{msg}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	gomock.InOrder(
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), core.UpdateStatusParams{
				QueueMessageID: "msg-1",
				Status:         model.JobStatusProcessing,
			}).
			Return(true, nil),
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.UpdateStatusParams) (bool, error) {
				assert.Equal(t, model.JobStatusCompleted, params.Status)
				return true, nil
			}),
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.UpdateStatusParams) (bool, error) {
				defer wg.Done()
				assert.Equal(t, model.JobStatusFailed, params.Status)
				assert.Contains(t, params.Error, "worker refused")
				return true, nil
			}),
	)

	acks := make(chan core.ForwardResult, 1)
	f.worker.EXPECT().Forward(gomock.Any(), gomock.Any()).Return((<-chan core.ForwardResult)(acks), nil)
	f.queue.EXPECT().Delete(gomock.Any(), testQueue, "msg-1").Return(nil)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	require.Equal(t, OutcomeDispatched, result.Outcome)

	acks <- core.ForwardResult{Err: errors.New("worker refused the job: status 503")}
	close(acks)
	wg.Wait()
}

func TestDispatchOnceSyncForwardError(t *testing.T) {
	f := newDispatcherFixture(t)

	msg := testMessage(t, model.AnalysisRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]*model.QueueMessage{msg}, nil)

	forwardErr := errors.New("worker base url unreachable")
	gomock.InOrder(
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), core.UpdateStatusParams{
				QueueMessageID: "msg-1",
				Status:         model.JobStatusProcessing,
			}).
			Return(true, nil),
		f.jobs.EXPECT().
			UpdateByQueueMessageID(gomock.Any(), core.UpdateStatusParams{
				QueueMessageID: "msg-1",
				Status:         model.JobStatusFailed,
				Error:          forwardErr.Error(),
			}).
			Return(true, nil),
	)
	f.worker.EXPECT().Forward(gomock.Any(), gomock.Any()).Return(nil, forwardErr)
	f.queue.EXPECT().Archive(gomock.Any(), testQueue, "msg-1").Return(nil)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeDispatchError, result.Outcome)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.ErrorIs(t, result.Err, forwardErr)
}

func TestDispatchOnceMalformedPayload(t *testing.T) {
	f := newDispatcherFixture(t)

	msg := &model.QueueMessage{
		ID:      "msg-bad",
		Queue:   testQueue,
		Payload: json.RawMessage(`{"repository": 17}`),
	}
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]*model.QueueMessage{msg}, nil)

	f.jobs.EXPECT().
		UpdateByQueueMessageID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateStatusParams) (bool, error) {
			assert.Equal(t, model.JobStatusFailed, params.Status)
			assert.Contains(t, params.Error, "decode analysis request")
			return true, nil
		})
	f.queue.EXPECT().Archive(gomock.Any(), testQueue, "msg-bad").Return(nil)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeDispatchError, result.Outcome)
	assert.Equal(t, "msg-bad", result.MessageID)
	require.Error(t, result.Err)
}

func TestDispatchOnceDeleteFailureStillDispatches(t *testing.T) {
	f := newDispatcherFixture(t)

	msg := testMessage(t, model.AnalysisRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]*model.QueueMessage{msg}, nil)
	f.jobs.EXPECT().UpdateByQueueMessageID(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	acks := make(chan core.ForwardResult)
	close(acks)
	f.worker.EXPECT().Forward(gomock.Any(), gomock.Any()).Return((<-chan core.ForwardResult)(acks), nil)

	// Delete failures are tolerated; the visibility timeout and the ledger
	// guard absorb the resurfaced duplicate.
	f.queue.EXPECT().Delete(gomock.Any(), testQueue, "msg-1").Return(errors.New("deadlock detected"))
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeDispatched, result.Outcome)
}

func TestDispatchOnceLedgerRejectionDoesNotStopDispatch(t *testing.T) {
	f := newDispatcherFixture(t)

	msg := testMessage(t, model.AnalysisRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	f.queue.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]*model.QueueMessage{msg}, nil)
	f.jobs.EXPECT().UpdateByQueueMessageID(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)

	acks := make(chan core.ForwardResult)
	close(acks)
	f.worker.EXPECT().Forward(gomock.Any(), gomock.Any()).Return((<-chan core.ForwardResult)(acks), nil)
	f.queue.EXPECT().Delete(gomock.Any(), testQueue, "msg-1").Return(nil)
	f.expectMarkProcessed()

	result := f.svc.DispatchOnce(context.Background())
	assert.Equal(t, OutcomeDispatched, result.Outcome)
}

func TestDispatcherStatus(t *testing.T) {
	t.Run("reports last processed time", func(t *testing.T) {
		f := newDispatcherFixture(t)
		last := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		f.state.EXPECT().LastProcessed(gomock.Any()).Return(last, nil)

		status := f.svc.Status(context.Background())
		assert.False(t, status.Busy)
		assert.Equal(t, testQueue, status.Queue)
		require.NotNil(t, status.LastProcessedAt)
		assert.Equal(t, last, *status.LastProcessedAt)
	})

	t.Run("omits zero last processed time", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.state.EXPECT().LastProcessed(gomock.Any()).Return(time.Time{}, nil)

		status := f.svc.Status(context.Background())
		assert.Nil(t, status.LastProcessedAt)
	})

	t.Run("tolerates state store failure", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.state.EXPECT().LastProcessed(gomock.Any()).Return(time.Time{}, errors.New("redis down"))

		status := f.svc.Status(context.Background())
		assert.Nil(t, status.LastProcessedAt)
	})

	t.Run("reports busy while a cycle runs", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.state.EXPECT().LastProcessed(gomock.Any()).Return(time.Time{}, nil)

		f.svc.busy.Store(true)
		defer f.svc.busy.Store(false)

		status := f.svc.Status(context.Background())
		assert.True(t, status.Busy)
	})
}

func TestQueueName(t *testing.T) {
	f := newDispatcherFixture(t)
	assert.Equal(t, testQueue, f.svc.QueueName())
}
