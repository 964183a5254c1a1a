package room

import (
	"context"
	"time"

	"github.com/flickfooty/backend/internal/logger"
)

type writeJob struct {
	name string
	fn   func(ctx context.Context) error
}

// writer runs a room's durable writes in order on its own goroutine, so the
// coordinator never blocks on Redis or Postgres.
type writer struct {
	roomID  string
	jobs    chan writeJob
	done    chan struct{}
	timeout time.Duration
}

func newWriter(roomID string, size int, timeout time.Duration) *writer {
	w := &writer{
		roomID:  roomID,
		jobs:    make(chan writeJob, size),
		done:    make(chan struct{}),
		timeout: timeout,
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.done)
	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := job.fn(ctx); err != nil {
			logger.Errorf("[STORE] %s failed for room %s: %v", job.name, w.roomID, err)
		}
		cancel()
	}
}

// enqueue must only be called from the owning coordinator goroutine.
func (w *writer) enqueue(name string, fn func(ctx context.Context) error) {
	select {
	case w.jobs <- writeJob{name: name, fn: fn}:
	default:
		logger.Warnf("[STORE] write queue full for room %s, dropping %s", w.roomID, name)
	}
}

// close drains pending jobs and waits for the goroutine to exit.
func (w *writer) close() {
	close(w.jobs)
	<-w.done
}
