// Package catalog mirrors rule set registrations to an external policy
// catalog. Delivery is best-effort: entries are queued after the registry
// change commits, and a failed or dropped notification never affects the
// operation that produced it.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"custodia/internal/policy/metrics"
	"custodia/pkg/platform/circuit"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 2 * time.Second
)

// Entry is the catalog message for one registry change.
type Entry struct {
	Event        string    `json:"event"`
	RuleSetID    string    `json:"rule_set_id"`
	RuleType     string    `json:"rule_type"`
	Mode         string    `json:"mode"`
	EvaluatorRef string    `json:"evaluator_ref"`
	Priority     uint32    `json:"priority"`
	Roles        []string  `json:"roles,omitempty"`
	Active       bool      `json:"active"`
	At           time.Time `json:"at"`
}

const (
	EventRegistered  = "rule_set_registered"
	EventDeactivated = "rule_set_deactivated"
)

// Publisher delivers one message to the catalog topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Notifier queues catalog entries and publishes them from Run.
type Notifier struct {
	publisher      Publisher
	topic          string
	queue          chan Entry
	breaker        *circuit.Breaker
	logger         *slog.Logger
	metrics        *metrics.Metrics
	publishTimeout time.Duration
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queue = make(chan Entry, size)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(n *Notifier) {
		n.breaker = b
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		n.publishTimeout = d
	}
}

func New(publisher Publisher, topic string, opts ...Option) *Notifier {
	n := &Notifier{
		publisher:      publisher,
		topic:          topic,
		queue:          make(chan Entry, defaultQueueSize),
		breaker:        circuit.New("policy-catalog"),
		logger:         slog.Default(),
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify enqueues entry without blocking. A full queue drops the entry.
func (n *Notifier) Notify(ctx context.Context, entry Entry) {
	select {
	case n.queue <- entry:
	default:
		n.metrics.IncrementCatalog("dropped")
		n.logger.WarnContext(ctx, "policy catalog queue full, notification dropped",
			"rule_set_id", entry.RuleSetID,
			"event", entry.Event,
		)
	}
}

// Run publishes queued entries until ctx is cancelled, then drains what is
// already queued. It always returns nil.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-n.queue:
			n.publish(ctx, entry)
		case <-ctx.Done():
			n.drain()
			return nil
		}
	}
}

func (n *Notifier) drain() {
	ctx := context.Background()
	for {
		select {
		case entry := <-n.queue:
			n.publish(ctx, entry)
		default:
			return
		}
	}
}

func (n *Notifier) publish(ctx context.Context, entry Entry) {
	value, err := json.Marshal(entry)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to encode catalog entry", "error", err)
		n.metrics.IncrementCatalog("failed")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, n.publishTimeout)
	defer cancel()
	if err := n.publisher.Publish(pubCtx, n.topic, []byte(entry.RuleSetID), value); err != nil {
		n.metrics.IncrementCatalog("failed")
		_, change := n.breaker.RecordFailure()
		if change.Opened {
			n.metrics.SetCatalogCircuitOpen(true)
			n.logger.WarnContext(ctx, "policy catalog circuit opened", "breaker", n.breaker.Name())
		}
		n.logger.WarnContext(ctx, "policy catalog notification failed",
			"rule_set_id", entry.RuleSetID,
			"event", entry.Event,
			"breaker_state", n.breaker.State().String(),
			"error", err,
		)
		return
	}
	n.metrics.IncrementCatalog("published")
	if _, change := n.breaker.RecordSuccess(); change.Closed {
		n.metrics.SetCatalogCircuitOpen(false)
		n.logger.InfoContext(ctx, "policy catalog circuit closed", "breaker", n.breaker.Name())
	}
}
