// Package queue moves job messages between the owning application and the
// worker. Every transport removes a message when it is popped, so a job
// is delivered at most once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/facerec/internal/config"
)

// ErrEmpty is returned by Pop when no message arrived within the timeout.
var ErrEmpty = errors.New("queue empty")

// JobSource is the consuming side of a queue.
type JobSource interface {
	// Pop blocks up to timeout for one message.
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	Len(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// JobSink is the producing side, used by operator tooling.
type JobSink interface {
	Push(ctx context.Context, payload []byte) error
	Close()
}

// Queue is both ends of one transport.
type Queue interface {
	JobSource
	JobSink
}

// Open connects the transport selected by cfg.Transport.
func Open(ctx context.Context, cfg config.QueueConfig) (Queue, error) {
	switch cfg.Transport {
	case "redis":
		return NewRedisQueue(ctx, cfg.URL, cfg.Key)
	case "nats":
		return NewNATSQueue(ctx, cfg.URL, cfg.Key)
	default:
		return nil, fmt.Errorf("unknown queue transport %q", cfg.Transport)
	}
}
