package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	JobsStreamName   = "FACE_JOBS"
	JobsConsumerName = "face-workers"
)

// NATSQueue is a JetStream work-queue stream with one durable pull
// consumer shared by all workers. Messages are acked as soon as they are
// fetched and never redelivered.
type NATSQueue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	cons    jetstream.Consumer
	subject string
}

func NewNATSQueue(ctx context.Context, natsURL, subject string) (*NATSQueue, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	q := &NATSQueue{nc: nc, js: js, subject: subject}
	if err := q.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	q.cons, err = js.CreateOrUpdateConsumer(ctx, JobsStreamName, jetstream.ConsumerConfig{
		Name:          JobsConsumerName,
		Durable:       JobsConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    1,
		FilterSubject: subject,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer %s: %w", JobsConsumerName, err)
	}
	return q, nil
}

// ensureStream creates the jobs stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (q *NATSQueue) ensureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        JobsStreamName,
		Subjects:    []string{q.subject},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Minute,
		Description: "Face identification jobs",
	}

	const maxAttempts = 30
	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := q.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name, "subject", q.subject)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (q *NATSQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := q.cons.Fetch(1, jetstream.FetchMaxWait(timeout))
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	for msg := range batch.Messages() {
		if err := msg.Ack(); err != nil {
			slog.Warn("ack job message", "error", err)
		}
		return msg.Data(), nil
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	return nil, ErrEmpty
}

// Push publishes with a fresh message id so publisher retries are deduplicated.
func (q *NATSQueue) Push(ctx context.Context, payload []byte) error {
	if _, err := q.js.Publish(ctx, q.subject, payload, jetstream.WithMsgID(uuid.NewString())); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (q *NATSQueue) Len(ctx context.Context) (int64, error) {
	info, err := q.cons.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("consumer info: %w", err)
	}
	return int64(info.NumPending), nil
}

func (q *NATSQueue) Ping(context.Context) error {
	if !q.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (q *NATSQueue) Close() {
	q.nc.Close()
}
