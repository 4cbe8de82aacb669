// Package audit records one ActionLog per invocation. Recording is
// best-effort: writes run in the background and their errors are logged and
// discarded, never returned to the caller.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gonbaum/composite/pkg/eventbus"
	"github.com/gonbaum/composite/pkg/events"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
)

// DefaultWriteTimeout bounds a single background write.
const DefaultWriteTimeout = 10 * time.Second

// Writer persists an audit record somewhere.
type Writer interface {
	Write(ctx context.Context, entry *models.ActionLog) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, entry *models.ActionLog) error

func (f WriterFunc) Write(ctx context.Context, entry *models.ActionLog) error {
	return f(ctx, entry)
}

// Recorder fans each record out to its writers without blocking the caller.
type Recorder struct {
	writers []Writer
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewRecorder(logger *slog.Logger, timeout time.Duration, writers ...Writer) *Recorder {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	return &Recorder{
		writers: writers,
		timeout: timeout,
		logger:  logger.With("module", "audit"),
	}
}

// Record schedules entry for writing and returns immediately. A nil Recorder
// records nothing.
func (r *Recorder) Record(entry *models.ActionLog) {
	if r == nil || entry == nil || len(r.writers) == 0 {
		return
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		for _, w := range r.writers {
			err := w.Write(ctx, entry)
			if err != nil {
				r.logger.Warn("Failed to write audit record", "action", entry.ActionName, "error", err)
			}
		}
	}()
}

// Wait blocks until every scheduled write has finished or ctx is done.
func (r *Recorder) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StoreWriter appends records to an ActionLogRepository.
type StoreWriter struct {
	repo persistence.ActionLogRepository
}

func NewStoreWriter(repo persistence.ActionLogRepository) *StoreWriter {
	return &StoreWriter{repo: repo}
}

func (w *StoreWriter) Write(ctx context.Context, entry *models.ActionLog) error {
	return w.repo.Append(ctx, entry)
}

// BusWriter publishes records as action.executed events.
type BusWriter struct {
	publisher eventbus.EventPublisher
	hostID    string
}

func NewBusWriter(publisher eventbus.EventPublisher, hostID string) *BusWriter {
	return &BusWriter{publisher: publisher, hostID: hostID}
}

func (w *BusWriter) Write(ctx context.Context, entry *models.ActionLog) error {
	return w.publisher.Publish(ctx, entry.ActionName, events.NewActionExecuted(w.hostID, entry))
}

// ErrUnexpectedEvent indicates a handler received an event of another type.
var ErrUnexpectedEvent = errors.New("unexpected event")

// Consume returns an event handler that appends received records to repo.
// It is the receiving end of BusWriter.
func Consume(repo persistence.ActionLogRepository) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		executed, ok := event.(*events.ActionExecuted)
		if !ok || executed.Log == nil {
			return ErrUnexpectedEvent
		}

		return repo.Append(ctx, executed.Log)
	}
}
