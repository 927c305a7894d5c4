package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodia/pkg/platform/audit/store/postgres"
	txcontext "custodia/pkg/platform/tx"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// OutboxStore is the outbox side of the postgres audit store.
type OutboxStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer delivers a record to the message bus.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Worker relays committed outbox rows to Kafka. Each batch is fetched,
// published and marked inside one database transaction, so a crash between
// publish and mark re-delivers rather than loses events.
type Worker struct {
	db        *sql.DB
	store     OutboxStore
	producer  Producer
	topic     string
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		w.interval = d
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		w.batchSize = n
	}
}

func NewWorker(db *sql.DB, store OutboxStore, producer Producer, topic string, opts ...Option) *Worker {
	w := &Worker{
		db:        db,
		store:     store,
		producer:  producer,
		topic:     topic,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil {
				w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were delivered.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	sqlTx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	txCtx := txcontext.WithTx(ctx, sqlTx)

	entries, err := w.store.FetchUnpublished(txCtx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if err := w.producer.Publish(ctx, w.topic, []byte(e.AggregateID), e.Payload); err != nil {
			break
		}
		ids = append(ids, e.ID)
	}

	if err := w.store.MarkPublished(txCtx, ids, time.Now()); err != nil {
		return 0, err
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	if len(ids) < len(entries) {
		return len(ids), fmt.Errorf("published %d of %d outbox entries", len(ids), len(entries))
	}
	return len(ids), nil
}
