package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/data/pgxutil"
	"github.com/gitgauge/gitgauge/internal/domain/model"
	apperrors "github.com/gitgauge/gitgauge/internal/errors"
)

// AnalysisJobRepoConfig holds configuration options for the analysis job repository.
type AnalysisJobRepoConfig struct {
	// QueueName is the queue jobs are enqueued onto when created.
	QueueName    string
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// AnalysisJobRepo provides persistence for the analysis job status ledger.
// Ledger rows move forward through queued → processing → {completed, failed};
// the guarded update enforces the state machine at the SQL level so concurrent
// writers cannot regress a row.
type AnalysisJobRepo struct {
	DB           *sql.DB
	queueName    string
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.AnalysisJobRepository = (*AnalysisJobRepo)(nil)

// NewAnalysisJobRepo creates a new AnalysisJobRepo instance with the given database connection and configuration.
func NewAnalysisJobRepo(db *sql.DB, cfg AnalysisJobRepoConfig) *AnalysisJobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &AnalysisJobRepo{
		DB:           db,
		queueName:    cfg.QueueName,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const analysisJobColumns = `
  id,
  queue_message_id,
  repository,
  user_id,
  evaluation_id,
  status,
  result,
  error,
  created_at,
  updated_at
`

// Create inserts a queued ledger row and its queue message in one transaction.
// The wake notification rides the same transaction, so an idle dispatch loop
// only ever wakes for a message that is already committed and visible.
func (r *AnalysisJobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.AnalysisJob, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	payload, err := json.Marshal(model.AnalysisRequest{
		Repository:   req.Repository,
		UserID:       req.UserID,
		EvaluationID: req.EvaluationID,
		Criteria:     req.Criteria,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	var job *model.AnalysisJob
	err = pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			msgID, enqErr := EnqueueInTx(ctx, tx, r.queueName, payload)
			if enqErr != nil {
				return enqErr
			}

			currentTime := r.timeProvider.Now().UTC()
			row := tx.QueryRow(ctx, `
				INSERT INTO analysis_jobs (queue_message_id, repository, user_id, evaluation_id, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6)
				RETURNING `+analysisJobColumns,
				msgID,
				req.Repository,
				req.UserID,
				req.EvaluationID,
				model.JobStatusQueued,
				currentTime,
			)

			created, scanErr := scanAnalysisJob(row)
			if scanErr != nil {
				return fmt.Errorf("scan created job: %w", scanErr)
			}
			job = created
			return nil
		},
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// SQL used by UpdateByQueueMessageID. The WHERE clause encodes the permitted
// transitions; a write that would regress the state machine matches no rows.
// A write to failed discards any earlier result so a corrected row never
// carries a success payload next to its failure reason.
const guardedUpdateSQL = `
  UPDATE analysis_jobs
  SET status = $2,
      result = CASE WHEN $2 = 'failed' THEN NULL ELSE COALESCE($3::jsonb, result) END,
      error = COALESCE($4::text, error),
      updated_at = $5
  WHERE queue_message_id = $1
    AND status <> $2
    AND (
      status = 'queued'
      OR (status = 'processing' AND $2 IN ('completed', 'failed'))
      OR (status = 'completed' AND $2 = 'failed')
    )`

// UpdateByQueueMessageID applies a guarded status write keyed by the queue
// message id. It returns false when no row matched, either because the ledger
// row is missing or because the transition is not permitted. Callers treat a
// false return as a progress-signal gap and continue.
func (r *AnalysisJobRepo) UpdateByQueueMessageID(ctx context.Context, params core.UpdateStatusParams) (bool, error) {
	if params.QueueMessageID == "" {
		return false, apperrors.ValidationField("queue_message_id", "queue message id is required")
	}
	if !params.Status.Valid() {
		return false, apperrors.ValidationField(
			"status", fmt.Sprintf("invalid job status %q", params.Status))
	}

	var result any
	if len(params.Result) > 0 {
		result = params.Result
	}
	var errText any
	if params.Error != "" {
		errText = params.Error
	}

	res, err := r.DB.ExecContext(
		ctx,
		guardedUpdateSQL,
		params.QueueMessageID,
		params.Status,
		result,
		errText,
		r.timeProvider.Now().UTC(),
	)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetByID fetches a ledger row by its primary key.
func (r *AnalysisJobRepo) GetByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	if id == "" {
		return nil, apperrors.ValidationField("id", "job id is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		SELECT `+analysisJobColumns+`
		FROM analysis_jobs
		WHERE id = $1
	`, id)

	job, err := scanAnalysisJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("analysis job not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysisJob(scanner jobRowScanner) (*model.AnalysisJob, error) {
	job := &model.AnalysisJob{}
	var (
		queueMessageID sql.NullString
		evaluationID   sql.NullString
		result         []byte
		errText        sql.NullString
		createdAt      time.Time
		updatedAt      time.Time
	)
	if err := scanner.Scan(
		&job.ID,
		&queueMessageID,
		&job.Repository,
		&job.UserID,
		&evaluationID,
		&job.Status,
		&result,
		&errText,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	job.QueueMessageID = nullableString(queueMessageID)
	job.EvaluationID = nullableString(evaluationID)
	if len(result) > 0 {
		job.Result = cloneJSON(result)
	}
	job.Error = nullableString(errText)
	job.CreatedAt = createdAt.UTC()
	job.UpdatedAt = updatedAt.UTC()
	return job, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
