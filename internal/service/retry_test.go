package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gitgauge/gitgauge/internal/domain/model"
	apperrors "github.com/gitgauge/gitgauge/internal/errors"
	"github.com/gitgauge/gitgauge/internal/mocks"
)

func newRetryFixture(t *testing.T) (*RetryService, *mocks.MockAnalysisJobRepository, *mocks.MockWorkerClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockAnalysisJobRepository(ctrl)
	worker := mocks.NewMockWorkerClient(ctrl)
	svc := NewRetryService(RetryServiceOptions{
		Jobs:   jobs,
		Worker: worker,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, jobs, worker
}

func queuedJob(repo, userID string) *model.AnalysisJob {
	msgID := "msg-1"
	return &model.AnalysisJob{
		ID:             "job-1",
		QueueMessageID: &msgID,
		Repository:     repo,
		UserID:         userID,
		Status:         model.JobStatusQueued,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestNormalizeRepository(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare path", in: "octocat/hello-world", want: "octocat/hello-world"},
		{name: "https url", in: "https://github.com/octocat/hello-world", want: "octocat/hello-world"},
		{name: "http url", in: "http://github.com/octocat/hello-world", want: "octocat/hello-world"},
		{name: "trailing slash", in: "github.com/octocat/hello-world/", want: "octocat/hello-world"},
		{name: "git suffix", in: "https://github.com/octocat/hello-world.git", want: "octocat/hello-world"},
		{name: "surrounding whitespace", in: "  octocat/hello-world  ", want: "octocat/hello-world"},
		{name: "dotted names", in: "my.org/repo.js", want: "my.org/repo.js"},
		{name: "empty", in: "", wantErr: true},
		{name: "whitespace only", in: "   ", wantErr: true},
		{name: "no owner", in: "hello-world", wantErr: true},
		{name: "extra path segments", in: "octocat/hello/world", wantErr: true},
		{name: "other host", in: "https://gitlab.com/octocat/hello-world", wantErr: true},
		{name: "spaces inside", in: "octo cat/hello", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeRepository(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				assert.Equal(t, "repository", apperrors.GetField(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRetryCreatesQueuedJob(t *testing.T) {
	svc, jobs, worker := newRetryFixture(t)

	jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.AnalysisJob, error) {
			assert.Equal(t, "octocat/hello-world", req.Repository)
			assert.Equal(t, "user-42", req.UserID)
			return queuedJob(req.Repository, req.UserID), nil
		})
	worker.EXPECT().Poll(gomock.Any()).Return(nil)

	job, err := svc.Retry(context.Background(), &model.CreateJobRequest{
		Repository: "https://github.com/octocat/hello-world",
		UserID:     "user-42",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Equal(t, "octocat/hello-world", job.Repository)
}

func TestRetryInvalidRepository(t *testing.T) {
	svc, _, _ := newRetryFixture(t)

	job, err := svc.Retry(context.Background(), &model.CreateJobRequest{
		Repository: "not a repo",
		UserID:     "user-42",
	})
	require.Error(t, err)
	assert.Nil(t, job)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRetryMissingUserID(t *testing.T) {
	svc, _, _ := newRetryFixture(t)

	job, err := svc.Retry(context.Background(), &model.CreateJobRequest{
		Repository: "octocat/hello-world",
	})
	require.Error(t, err)
	assert.Nil(t, job)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "user id is required")
}

func TestRetryCreateFailure(t *testing.T) {
	svc, jobs, _ := newRetryFixture(t)

	createErr := apperrors.Internal("insert failed")
	jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, createErr)

	job, err := svc.Retry(context.Background(), &model.CreateJobRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	require.Error(t, err)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, createErr)
}

func TestRetryPollFailureIsSwallowed(t *testing.T) {
	svc, jobs, worker := newRetryFixture(t)

	jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.AnalysisJob, error) {
			return queuedJob(req.Repository, req.UserID), nil
		})
	worker.EXPECT().Poll(gomock.Any()).Return(errors.New("trigger unreachable"))

	job, err := svc.Retry(context.Background(), &model.CreateJobRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestRetryWithoutWorker(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockAnalysisJobRepository(ctrl)
	svc := NewRetryService(RetryServiceOptions{
		Jobs:   jobs,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.AnalysisJob, error) {
			return queuedJob(req.Repository, req.UserID), nil
		})

	job, err := svc.Retry(context.Background(), &model.CreateJobRequest{
		Repository: "octocat/hello-world",
		UserID:     "user-42",
	})
	require.NoError(t, err)
	assert.NotNil(t, job)
}
