package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/DerMichael0408/CyberGuide/internal/store/rabbitmq"
	gormsqlite "github.com/glebarez/sqlite"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingAck struct {
	acked, nacked, requeued bool
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type downEmbedder struct{}

func (downEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding backend unavailable")
}

func setup(t *testing.T) (*knowledge.JobRepo, *knowledge.JobRunner) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(knowledge.Models()...))

	repo := knowledge.NewJobRepo(db)
	ix := knowledge.NewIndexer(knowledge.NewGormStore(db), downEmbedder{}, nil, nil)
	return repo, knowledge.NewJobRunner(repo, ix, nil)
}

func delivery(t *testing.T, ack amqp.Acknowledger, jobID string, attempt int) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(rabbitmq.JobMessage{JobID: jobID})
	require.NoError(t, err)
	d := amqp.Delivery{Acknowledger: ack, Body: body}
	if attempt > 0 {
		d.Headers = amqp.Table{rabbitmq.AttemptHeader: int32(attempt)}
	}
	return d
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(knowledge.ErrJobNotFound))
	assert.True(t, permanent(fmt.Errorf("index: %w", knowledge.ErrUnsupportedDocument)))
	assert.False(t, permanent(errors.New("embedding backend unavailable")))
}

func TestHandleDelivery_MissingJobGoesToDLQ(t *testing.T) {
	repo, runner := setup(t)
	ack := &recordingAck{}
	retried := false

	handleDelivery(context.Background(), zap.NewNop(), runner, repo, delivery(t, ack, "01JOBMISSINGMISSINGMISSING", 0), func([]byte, int) error {
		retried = true
		return nil
	})

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
	assert.False(t, retried)
}

func TestHandleDelivery_TransientFailureIsRetried(t *testing.T) {
	repo, runner := setup(t)
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scenarios":[{"title":"USB Drop","description":"A stick in the car park."}]}`), 0o644))

	job, _, err := repo.CreateJobOrGetExisting(context.Background(), &knowledge.IndexJob{ID: "01JOBRETRYRETRYRETRYRETRYR", Path: path})
	require.NoError(t, err)

	ack := &recordingAck{}
	var gotAttempt int
	handleDelivery(context.Background(), zap.NewNop(), runner, repo, delivery(t, ack, job.ID, 0), func(body []byte, attempt int) error {
		gotAttempt = attempt
		return nil
	})
	assert.True(t, ack.acked)
	assert.Equal(t, 1, gotAttempt)

	got, err := repo.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.JobQueued, got.Status)

	// last attempt is dead-lettered
	ack = &recordingAck{}
	handleDelivery(context.Background(), zap.NewNop(), runner, repo, delivery(t, ack, job.ID, maxAttempts-1), func([]byte, int) error {
		t.Fatal("retry after the last attempt")
		return nil
	})
	assert.True(t, ack.nacked)
	got, _ = repo.GetJobByID(context.Background(), job.ID)
	assert.Equal(t, knowledge.JobFailed, got.Status)
}
