// Package events publishes recognition results to Kafka. Without brokers the
// publisher only logs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/metrics"
	"github.com/rbright/hark/internal/result"
	"github.com/segmentio/kafka-go"
)

// Utterance is emitted for every endpointed utterance.
type Utterance struct {
	ID       string        `json:"id"`
	StreamID string        `json:"stream_id"`
	Source   string        `json:"source,omitempty"`
	Index    int           `json:"index"`
	Start    float32       `json:"start"`
	End      float32       `json:"end"`
	Result   result.Result `json:"result"`
	Emitted  time.Time     `json:"emitted"`
}

// Keyword is emitted for every keyword detection.
type Keyword struct {
	ID       string        `json:"id"`
	StreamID string        `json:"stream_id"`
	Source   string        `json:"source,omitempty"`
	Keyword  string        `json:"keyword"`
	Result   result.Result `json:"result"`
	Emitted  time.Time     `json:"emitted"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes utterance and keyword events to separate topics.
type Publisher struct {
	utterances   messageWriter
	keywords     messageWriter
	utteranceTop string
	keywordTop   string
	principal    string
	enabled      bool
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// New builds a publisher from cfg. Disabled config or empty brokers yield a
// log-only publisher.
func New(cfg config.EventsConfig, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		utteranceTop: cfg.Topic,
		keywordTop:   cfg.KeywordTopic,
		principal:    cfg.Principal,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info("kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	transport := &kafka.Transport{Dial: dialer.DialFunc}
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	p.utterances = newWriter(cfg.Topic)
	if cfg.KeywordTopic != "" {
		p.keywords = newWriter(cfg.KeywordTopic)
	}
	p.enabled = true

	logger.Info("kafka publisher initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"keyword_topic", cfg.KeywordTopic,
		"principal", cfg.Principal,
	)
	return p
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishUtterance sends an endpointed utterance keyed by its stream id.
func (p *Publisher) PublishUtterance(ctx context.Context, u Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Emitted.IsZero() {
		u.Emitted = p.now().UTC()
	}
	return p.publish(ctx, p.utterances, p.utteranceTop, "utterance", u.StreamID, u)
}

// PublishKeyword sends a keyword detection keyed by its stream id.
func (p *Publisher) PublishKeyword(ctx context.Context, k Keyword) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.Emitted.IsZero() {
		k.Emitted = p.now().UTC()
	}
	if k.Keyword == "" {
		k.Keyword = k.Result.Keyword
	}
	return p.publish(ctx, p.keywords, p.keywordTop, "keyword", k.StreamID, k)
}

func (p *Publisher) publish(ctx context.Context, w messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	p.logger.Debug("publishing event",
		"principal", p.principal,
		"topic", topic,
		"key", key,
		"payload", json.RawMessage(payload),
	)

	if !p.enabled || w == nil {
		p.metrics.RecordPublish(eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("kafka write failed", "topic", topic, "key", key, "error", err)
		p.metrics.RecordPublish(eventType, err, time.Since(start).Seconds())
		return fmt.Errorf("publish %s event to %s: %w", eventType, topic, err)
	}

	p.metrics.RecordPublish(eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close flushes and closes the writers.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range []messageWriter{p.utterances, p.keywords} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			p.logger.Error("error closing kafka writer", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Shutdown closes the publisher when a service container owns it.
func (p *Publisher) Shutdown() error {
	return p.Close()
}
