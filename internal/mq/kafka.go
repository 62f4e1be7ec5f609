package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ewastehub/apiserver/config"
	"github.com/segmentio/kafka-go"
)

// KafkaClient wraps kafka-go writers and readers keyed by topic.
type KafkaClient struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	return &KafkaClient{
		brokers: cfg.Brokers,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

// Publish sends a message to the named topic.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	headers := make([]kafka.Header, 0, len(attrs))
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	messageID := newMessageID()
	msg := kafka.Message{
		Key:     []byte(messageID),
		Value:   data,
		Headers: headers,
	}
	if err := k.writer(channel).WriteMessages(ctx, msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named topic.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: k.brokers,
		Topic:   channel,
		GroupID: channel + "-consumer",
	})
	defer func() {
		_ = reader.Close()
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		attrs := make(map[string]string, len(msg.Headers))
		for _, header := range msg.Headers {
			attrs[header.Key] = string(header.Value)
		}
		message := Message{
			ID:         string(msg.Key),
			Data:       msg.Value,
			Attributes: attrs,
		}
		if err := handler(ctx, message); err != nil {
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// Close closes all topic writers.
func (k *KafkaClient) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstErr error
	for _, writer := range k.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	k.writers = make(map[string]*kafka.Writer)
	return firstErr
}

func (k *KafkaClient) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if writer, ok := k.writers[topic]; ok {
		return writer
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = writer
	return writer
}
