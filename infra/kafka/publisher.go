// Package kafka streams composite schedules to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/kilianp07/smartcharging/core/factory"
	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/core/publisher"
	"github.com/kilianp07/smartcharging/infra/logger"
)

// Config holds the producer settings.
type Config struct {
	Brokers  []string `json:"brokers"`
	Topic    string   `json:"topic"`
	ClientID string   `json:"client_id"`
	// Compression is one of none, gzip, snappy, lz4 or zstd.
	Compression string `json:"compression"`
}

// SetDefaults fills the topic, client id and compression.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "composite-schedules"
	}
	if c.ClientID == "" {
		c.ClientID = "smartcharging"
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
}

// Validate checks that brokers are set and the compression codec is known.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	var codec sarama.CompressionCodec
	if err := codec.UnmarshalText([]byte(c.Compression)); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	return nil
}

// SaramaConfig builds the producer configuration.
func (c Config) SaramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = c.ClientID
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Retry.Max = 3
	if err := cfg.Producer.Compression.UnmarshalText([]byte(c.Compression)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Message is the record value.
type Message struct {
	MessageID string                  `json:"message_id"`
	StationID string                  `json:"station_id"`
	SentAt    time.Time               `json:"sent_at"`
	Schedule  model.CompositeSchedule `json:"schedule"`
}

// Publisher sends one record per composite schedule, keyed by
// "<station>/<evse>" so that the schedules of an outlet stay ordered.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	log      logger.Logger
}

// New connects a synchronous producer to the brokers.
func New(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := cfg.SaramaConfig()
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic), nil
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(p sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic, log: logger.New("kafka_publisher")}
}

func (p *Publisher) Name() string { return "kafka" }

// Key returns the record key of an outlet.
func Key(stationID string, evseID int) string {
	return stationID + "/" + strconv.Itoa(evseID)
}

// Publish sends cs and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, stationID string, cs model.CompositeSchedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(Message{
		MessageID: uuid.NewString(),
		StationID: stationID,
		SentAt:    time.Now().UTC(),
		Schedule:  cs,
	})
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(Key(stationID, cs.EvseID)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
			{Key: []byte("unit"), Value: []byte(cs.ChargingRateUnit)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send schedule for evse %d: %w", cs.EvseID, err)
	}
	p.log.Debugf("schedule for evse %d sent to %s[%d]@%d", cs.EvseID, p.topic, partition, offset)
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

func init() {
	_ = publisher.Register("kafka", func(conf map[string]any) (publisher.SchedulePublisher, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c)
	})
}
