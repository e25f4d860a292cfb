package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/domain/model"
	apperrors "github.com/gitgauge/gitgauge/internal/errors"
)

// repoPathPattern matches an owner/name GitHub repository path.
var repoPathPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// RetryService re-enqueues an analysis request as a fresh queued job. The new
// job rides the same queue as first-time submissions, so a retry gets no
// special treatment from the dispatcher.
type RetryService struct {
	jobs   core.AnalysisJobRepository
	worker core.WorkerClient
	logger *slog.Logger
}

// RetryServiceOptions configures the retry service.
type RetryServiceOptions struct {
	Jobs   core.AnalysisJobRepository
	Worker core.WorkerClient
	Logger *slog.Logger
}

// NewRetryService creates a new retry service.
func NewRetryService(opts RetryServiceOptions) *RetryService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryService{
		jobs:   opts.Jobs,
		worker: opts.Worker,
		logger: logger,
	}
}

// Retry validates the request, creates a queued ledger row plus its queue
// message, and pings the dispatch trigger. The ping is best effort: a dead
// trigger only delays pickup until the next loop interval.
func (s *RetryService) Retry(ctx context.Context, req *model.CreateJobRequest) (*model.AnalysisJob, error) {
	normalized, err := NormalizeRepository(req.Repository)
	if err != nil {
		return nil, err
	}
	req.Repository = normalized

	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create retry job",
			"repository", req.Repository, "user_id", req.UserID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "queued analysis retry",
		"job_id", job.ID, "repository", job.Repository, "user_id", job.UserID)

	if s.worker != nil {
		if pollErr := s.worker.Poll(ctx); pollErr != nil {
			s.logger.WarnContext(ctx, "dispatch wake ping failed", "job_id", job.ID, "error", pollErr)
		}
	}

	return job, nil
}

// NormalizeRepository reduces a repository reference to its owner/name path.
// It accepts a bare owner/name or a github.com URL.
func NormalizeRepository(raw string) (string, error) {
	repo := strings.TrimSpace(raw)
	if repo == "" {
		return "", apperrors.ValidationField("repository", "repository is required")
	}

	repo = strings.TrimPrefix(repo, "https://")
	repo = strings.TrimPrefix(repo, "http://")
	repo = strings.TrimPrefix(repo, "github.com/")
	repo = strings.TrimSuffix(repo, "/")
	repo = strings.TrimSuffix(repo, ".git")

	if !repoPathPattern.MatchString(repo) {
		return "", apperrors.ValidationField("repository",
			"repository must be an owner/name path or a github.com URL")
	}
	return repo, nil
}
