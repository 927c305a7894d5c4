// Package security provides a non-blocking audit publisher for security
// events such as rejected transfers. Emit never fails the caller: events are
// buffered and flushed to the store by Run.
package security

import (
	"context"
	"log/slog"
	"time"

	audit "custodia/pkg/platform/audit"
	"custodia/pkg/requestcontext"
)

const (
	defaultFlushInterval = 500 * time.Millisecond
	defaultBatchSize     = 100
)

// Publisher buffers security events and persists them in the background.
type Publisher struct {
	store         audit.Store
	buffer        *ringBuffer
	logger        *slog.Logger
	flushInterval time.Duration
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithCapacity(n int) Option {
	return func(p *Publisher) {
		p.buffer = newRingBuffer(n)
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		p.flushInterval = d
	}
}

// New creates a security publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        newRingBuffer(0),
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit buffers the event. It never blocks on the store.
func (p *Publisher) Emit(ctx context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityWarning
	}
	p.buffer.enqueue(event)
}

// Run flushes buffered events until ctx is cancelled, then drains.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Flush(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush writes every buffered event. Store failures are logged and the
// event is dropped.
func (p *Publisher) Flush(ctx context.Context) {
	for {
		batch := p.buffer.dequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event.ToEvent()); err != nil && p.logger != nil {
				p.logger.WarnContext(ctx, "failed to persist security audit event",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int {
	return p.buffer.len()
}

// Dropped returns the number of events lost to buffer overflow.
func (p *Publisher) Dropped() int64 {
	return p.buffer.droppedCount()
}
