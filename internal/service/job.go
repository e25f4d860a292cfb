package service

import (
	"context"
	"log/slog"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/domain/model"
)

// JobService exposes read access to the analysis job ledger.
type JobService struct {
	jobs   core.AnalysisJobRepository
	logger *slog.Logger
}

// JobServiceOptions configures the job service.
type JobServiceOptions struct {
	Jobs   core.AnalysisJobRepository
	Logger *slog.Logger
}

// NewJobService creates a new job service.
func NewJobService(opts JobServiceOptions) *JobService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{jobs: opts.Jobs, logger: logger}
}

// GetStatus returns the user-visible view of one ledger row.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.StatusView(), nil
}
