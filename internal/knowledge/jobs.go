package knowledge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("index job not found")

type JobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) GetJobByID(ctx context.Context, id string) (*IndexJob, error) {
	var j IndexJob
	err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJobOrGetExisting creates a job. When the idempotency key is already
// taken it returns the existing job and created=false.
func (r *JobRepo) CreateJobOrGetExisting(ctx context.Context, job *IndexJob) (*IndexJob, bool, error) {
	if job.IdempotencyKey != nil && *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
	}
	if job.Status == "" {
		job.Status = JobQueued
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}
	if job.IdempotencyKey == nil {
		return nil, false, err
	}

	var existing IndexJob
	getErr := r.db.WithContext(ctx).
		Where("idempotency_key = ?", *job.IdempotencyKey).
		First(&existing).Error
	if getErr == nil {
		return &existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// MarkRunning moves a queued job to running. It reports false when the job
// was not queued (already picked up or finished).
func (r *JobRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&IndexJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	return res.RowsAffected == 1, res.Error
}

func (r *JobRepo) MarkSucceeded(ctx context.Context, id string, newChunks int) error {
	return r.db.WithContext(ctx).Model(&IndexJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     JobSucceeded,
			"new_chunks": newChunks,
			"error":      nil,
		}).Error
}

func (r *JobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&IndexJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// Requeue moves a failed job back to queued so a retried delivery can claim it.
func (r *JobRepo) Requeue(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&IndexJob{}).
		Where("id = ? AND status = ?", id, JobFailed).
		Update("status", JobQueued).Error
}

// JobRunner executes queued index jobs.
type JobRunner struct {
	repo    *JobRepo
	indexer *Indexer
	log     *zap.Logger
}

func NewJobRunner(repo *JobRepo, indexer *Indexer, log *zap.Logger) *JobRunner {
	return &JobRunner{repo: repo, indexer: indexer, log: logger.OrNop(log).Named("index_job")}
}

// Run claims and executes a job. It returns ErrJobNotFound for an unknown id
// and ErrUnsupportedDocument when the job points at a file the indexer cannot
// read; neither is worth retrying.
func (r *JobRunner) Run(ctx context.Context, jobID string) error {
	start := time.Now()

	claimed, err := r.repo.MarkRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		if _, err := r.repo.GetJobByID(ctx, jobID); err != nil {
			return err
		}
		r.log.Info("job not queued, skipping", zap.String("job_id", jobID))
		return nil
	}

	j, err := r.repo.GetJobByID(ctx, jobID)
	if err != nil {
		r.fail(ctx, jobID, "", start, err)
		return err
	}

	if (Source{Path: j.Path}).Kind() == KindUnsupported {
		err := fmt.Errorf("%w: %s", ErrUnsupportedDocument, filepath.Ext(j.Path))
		r.fail(ctx, jobID, j.Path, start, err)
		return err
	}

	n, err := r.indexer.IndexFile(ctx, j.Path)
	if err != nil {
		r.fail(ctx, jobID, j.Path, start, err)
		return err
	}

	if err := r.repo.MarkSucceeded(ctx, jobID, n); err != nil {
		return err
	}
	r.log.Info("job succeeded",
		zap.String("job_id", jobID),
		zap.String("path", j.Path),
		zap.Int("new_chunks", n),
		zap.Duration("cost", time.Since(start)),
	)
	return nil
}

func (r *JobRunner) fail(ctx context.Context, jobID, path string, start time.Time, err error) {
	if markErr := r.repo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
		r.log.Error("mark failed", zap.String("job_id", jobID), zap.Error(markErr))
	}
	r.log.Warn("job failed",
		zap.String("job_id", jobID),
		zap.String("path", path),
		zap.Duration("cost", time.Since(start)),
		zap.Error(err),
	)
}
