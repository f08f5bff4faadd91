package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/app"
	"github.com/DerMichael0408/CyberGuide/internal/config"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/DerMichael0408/CyberGuide/internal/store/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxAttempts = 3
	retryDelay  = 10 * time.Second
)

func main() {
	cfg := config.Load()

	log, err := app.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	log = log.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("queue declare", zap.Error(err))
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", zap.Error(err))
	}

	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	// the channel is shared by all workers for retry publishes
	var pubMu sync.Mutex

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				handleDelivery(ctx, wlog, a.Runner, a.Jobs, d, func(body []byte, attempt int) error {
					pubMu.Lock()
					defer pubMu.Unlock()
					return rabbitmq.PublishRetry(ctx, ch, cfg.RabbitQueue, body, attempt, retryDelay)
				})
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// handleDelivery runs one index job. A failed job is parked on the retry
// queue until maxAttempts is reached, then nacked into the dead-letter queue.
func handleDelivery(ctx context.Context, log *zap.Logger, runner *knowledge.JobRunner, repo *knowledge.JobRepo, d amqp.Delivery, retry func(body []byte, attempt int) error) {
	var m rabbitmq.JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err := runner.Run(ctx, m.JobID)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", zap.String("job_id", m.JobID), zap.Error(err))
		}
		return
	}

	attempt := rabbitmq.Attempt(d) + 1
	log.Warn("job failed",
		zap.String("job_id", m.JobID),
		zap.Int("attempt", attempt),
		zap.Duration("cost", time.Since(start)),
		zap.Error(err),
	)

	if attempt >= maxAttempts || permanent(err) {
		_ = d.Nack(false, false)
		return
	}
	if err := repo.Requeue(ctx, m.JobID); err != nil {
		log.Error("requeue failed", zap.String("job_id", m.JobID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := retry(d.Body, attempt); err != nil {
		log.Error("publish retry failed", zap.String("job_id", m.JobID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func permanent(err error) bool {
	return errors.Is(err, knowledge.ErrJobNotFound) || errors.Is(err, knowledge.ErrUnsupportedDocument)
}
