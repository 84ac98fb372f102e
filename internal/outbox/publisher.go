// Package outbox relays appointment events written by the schedule transactions to Kafka.
package outbox

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"garagebook/internal/domain"
	"garagebook/internal/store"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Config struct {
	TopicPrefix string
	PollEvery   time.Duration
	BatchSize   int
}

type Publisher struct {
	outbox    store.Outbox
	writer    MessageWriter
	logger    *slog.Logger
	prefix    string
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(outbox store.Outbox, writer MessageWriter, logger *slog.Logger, cfg Config) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		outbox:    outbox,
		writer:    writer,
		logger:    logger.With("component", "outbox"),
		prefix:    cfg.TopicPrefix,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// NewKafkaWriter returns a writer that hashes message keys, keeping every event of one
// appointment on one partition.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Run publishes pending events every poll interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	p.logger.Info("outbox publisher started", "poll_every", p.pollEvery.String(), "batch_size", p.batchSize)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			for {
				n, err := p.PublishOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Error("outbox publish failed", "error", err)
					}
					break
				}
				if n < p.batchSize {
					break
				}
			}
		}
	}
}

// PublishOnce sends at most one batch and reports how many events were marked published.
func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	n, err := p.outbox.PublishPending(ctx, p.batchSize, func(ctx context.Context, events []domain.OutboxEvent) error {
		msgs := make([]kafka.Message, 0, len(events))
		for _, ev := range events {
			msgs = append(msgs, p.message(ctx, ev))
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
	if n > 0 {
		p.logger.Debug("outbox events published", "count", n)
	}
	return n, err
}

func (p *Publisher) message(ctx context.Context, ev domain.OutboxEvent) kafka.Message {
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(strconv.FormatInt(ev.ID, 10))},
		{Key: "event_type", Value: []byte(ev.EventType)},
	}
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return kafka.Message{
		Topic:   p.prefix + ev.EventType,
		Key:     []byte(strconv.FormatInt(ev.AggregateID, 10)),
		Value:   ev.Payload,
		Headers: carrier.headers,
		Time:    ev.CreatedAt,
	}
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}
