// Package bus wraps the Kafka transport between the event generator and
// the stream processor. Messages are keyed by customer id so each
// customer's events land on one partition and are observed in commit
// order; delivery is at-least-once.
package bus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"churnpulse/pkg/churn"
)

// Config carries broker addresses, topic, consumer group and the TLS
// client-certificate material the broker requires.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string // consumers only; a fresh id replays from the earliest offset
	CertFile string
	KeyFile  string
	CAFile   string
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("bus: no brokers configured")
	}
	if c.Topic == "" {
		return errors.New("bus: no topic configured")
	}
	return nil
}

// TLSConfig builds the client TLS configuration from the configured
// certificate, key and CA files. Returns nil when no material is
// configured (plaintext brokers, used by tests).
func (c Config) TLSConfig() (*tls.Config, error) {
	if c.CertFile == "" && c.KeyFile == "" && c.CAFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	caPEM, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", c.CAFile)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Producer publishes events onto the topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer. RequireOne acks keep publish outcomes
// unambiguous enough that the generator never fabricates a duplicate on
// failure; an errored publish is surfaced, logged, and not retried.
func NewProducer(cfg Config) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 30 * time.Second,
		Transport:    &kafka.Transport{TLS: tlsCfg},
	}
	return &Producer{writer: w}, nil
}

// Publish sends one event, keyed by its customer id.
func (p *Producer) Publish(ctx context.Context, ev churn.Event) error {
	key, value, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("publish %s for %s: %w", ev.EventType, ev.UserID, err)
	}
	return nil
}

func (p *Producer) Close() error { return p.writer.Close() }

// Encode serializes an event into its partition key and JSON payload.
func Encode(ev churn.Event) (key, value []byte, err error) {
	value, err = json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal event: %w", err)
	}
	return []byte(ev.UserID), value, nil
}

// Decode parses a message payload back into an event.
func Decode(value []byte) (churn.Event, error) {
	var ev churn.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return churn.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

// Consumer reads events as part of a consumer group. Offsets are
// committed explicitly after a message is handled, so a message in
// flight during a crash is redelivered.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer builds the group consumer. New groups start at the
// earliest offset, which is what lets an operator force a full-history
// replay by picking a fresh group id.
func NewConsumer(cfg Config) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, errors.New("bus: no consumer group configured")
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
			TLS:       tlsCfg,
		},
	})
	return &Consumer{reader: r}, nil
}

// Message pairs a decoded event with the raw message needed for the
// offset commit.
type Message struct {
	Event churn.Event
	raw   kafka.Message
}

// Fetch blocks until the next message is available or ctx is done.
func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	ev, err := Decode(m.Value)
	if err != nil {
		// Malformed payloads are committed and skipped, never redelivered.
		_ = c.reader.CommitMessages(ctx, m)
		return Message{}, err
	}
	return Message{Event: ev, raw: m}, nil
}

// Commit acknowledges one handled message.
func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.reader.CommitMessages(ctx, m.raw)
}

func (c *Consumer) Close() error { return c.reader.Close() }
