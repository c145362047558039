package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/twmb/franz-go/pkg/kgo"

	"presence/internal/platform/config"
	auditpg "presence/pkg/platform/audit/store/postgres"
)

var (
	relayPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_outbox_published_total",
		Help: "Outbox entries published to Kafka",
	})
	relayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_outbox_relay_failures_total",
		Help: "Relay batches that failed to publish",
	})
	relayBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presence_outbox_breaker_state",
		Help: "Relay circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)

// Outbox is the pending-entry source the relay drains.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]auditpg.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Relay periodically publishes pending outbox entries. Fetch, publish and
// mark happen inside one transaction so a failed publish leaves rows pending.
type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	runInTx   func(ctx context.Context, fn func(ctx context.Context) error) error
	breaker   *gobreaker.CircuitBreaker[int]
	logger    *slog.Logger
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithTxRunner scopes each batch to a transaction (see tx.Run).
func WithTxRunner(run func(ctx context.Context, fn func(ctx context.Context) error) error) Option {
	return func(r *Relay) {
		r.runInTx = run
	}
}

func NewRelay(outbox Outbox, producer Producer, cfg config.Kafka, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     cfg.Topic,
		batchSize: cfg.BatchSize,
		interval:  cfg.RelayInterval,
		runInTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "outbox-relay",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			relayBreakerState.Set(float64(to))
			r.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were delivered.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.runInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchPending(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		records := make([]*kgo.Record, 0, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			records = append(records, &kgo.Record{
				Topic: r.topic,
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: []kgo.RecordHeader{
					{Key: "event_type", Value: []byte(e.EventType)},
					{Key: "aggregate_type", Value: []byte(e.AggregateType)},
				},
				Timestamp: e.CreatedAt,
			})
			ids = append(ids, e.ID)
		}

		n, err := r.breaker.Execute(func() (int, error) {
			if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
				return 0, err
			}
			return len(records), nil
		})
		if err != nil {
			relayFailures.Inc()
			return fmt.Errorf("publish outbox batch: %w", err)
		}

		if err := r.outbox.MarkPublished(ctx, ids); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		published = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	relayPublished.Add(float64(published))
	return published, nil
}
