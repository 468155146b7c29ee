package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"go-data-pipeline/internal/logger"
)

// KafkaConfig configures the Kafka notifier.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether enough settings are present to publish.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Kafka publishes notifications to a topic, keyed by pipeline name so all
// outcomes of one pipeline land on the same partition.
type Kafka struct {
	writer messageWriter
	log    *logger.Logger
}

// NewKafka creates a Kafka notifier. The writer connects lazily on first publish.
func NewKafka(cfg KafkaConfig, log *logger.Logger) (*Kafka, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("kafka notifier needs brokers and a topic")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("notify.kafka")

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("writer: "+msg, map[string]interface{}{
				"args": fmt.Sprintf("%v", args),
			})
		}),
	}

	log.Info("Kafka notifier initialized", logger.Fields("brokers", cfg.Brokers, "topic", cfg.Topic))
	return &Kafka{writer: w, log: log}, nil
}

func (k *Kafka) Notify(ctx context.Context, n Notification) error {
	msg, err := message(n)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Warn("Kafka publish failed", logger.ErrorFields(err, logger.FieldPipeline, n.Pipeline))
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func message(n Notification) (kafkago.Message, error) {
	value, err := json.Marshal(n)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encode notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.Pipeline),
		Value: value,
		Time:  n.Timestamp,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(n.Status)},
		},
	}, nil
}
