package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJobOrGetExisting_DedupesByKey(t *testing.T) {
	repo := NewJobRepo(openTestDB(t))
	key := "upload-1"

	j1, created, err := repo.CreateJobOrGetExisting(context.Background(), &IndexJob{ID: "01JOBAAAAAAAAAAAAAAAAAAAAA", Path: "a.pdf", IdempotencyKey: &key})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, JobQueued, j1.Status)

	j2, created, err := repo.CreateJobOrGetExisting(context.Background(), &IndexJob{ID: "01JOBBBBBBBBBBBBBBBBBBBBBB", Path: "a.pdf", IdempotencyKey: &key})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, j1.ID, j2.ID)
}

func TestJobRunner_RunsQueuedJobOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepo(db)
	ix := NewIndexer(NewGormStore(db), ai.NewHashEmbedder(32), nil, nil)
	runner := NewJobRunner(repo, ix, nil)

	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(threeScenarios), 0o644))

	job, _, err := repo.CreateJobOrGetExisting(context.Background(), &IndexJob{ID: "01JOBCCCCCCCCCCCCCCCCCCCCC", Path: path})
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background(), job.ID))

	got, err := repo.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, got.Status)
	assert.Equal(t, 3, got.NewChunks)
	assert.Nil(t, got.Error)

	// a redelivered message must not re-run a finished job
	require.NoError(t, runner.Run(context.Background(), job.ID))
	got, _ = repo.GetJobByID(context.Background(), job.ID)
	assert.Equal(t, JobSucceeded, got.Status)
}

func TestJobRunner_RecordsFailure(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepo(db)
	runner := NewJobRunner(repo, NewIndexer(NewGormStore(db), failingEmbedder{}, nil, nil), nil)

	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(threeScenarios), 0o644))
	job, _, err := repo.CreateJobOrGetExisting(context.Background(), &IndexJob{ID: "01JOBDDDDDDDDDDDDDDDDDDDDD", Path: path})
	require.NoError(t, err)

	assert.Error(t, runner.Run(context.Background(), job.ID))

	got, err := repo.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "embedding backend unavailable")
}

func TestJobRepo_RequeueAndMissing(t *testing.T) {
	repo := NewJobRepo(openTestDB(t))

	_, err := repo.GetJobByID(context.Background(), "01JOBMISSINGMISSINGMISSING")
	assert.ErrorIs(t, err, ErrJobNotFound)

	job, _, err := repo.CreateJobOrGetExisting(context.Background(), &IndexJob{ID: "01JOBEEEEEEEEEEEEEEEEEEEEE", Path: "x.pdf"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(context.Background(), job.ID, "boom"))
	require.NoError(t, repo.Requeue(context.Background(), job.ID))

	claimed, err := repo.MarkRunning(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestJobRunner_PermanentErrors(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepo(db)
	runner := NewJobRunner(repo, NewIndexer(NewGormStore(db), ai.NewHashEmbedder(32), nil, nil), nil)

	err := runner.Run(context.Background(), "01JOBMISSINGMISSINGMISSING")
	assert.ErrorIs(t, err, ErrJobNotFound)

	job, _, err := repo.CreateJobOrGetExisting(context.Background(), &IndexJob{ID: "01JOBFFFFFFFFFFFFFFFFFFFFF", Path: "notes.docx"})
	require.NoError(t, err)

	err = runner.Run(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrUnsupportedDocument)

	got, err := repo.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, ".docx")
}
