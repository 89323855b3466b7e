package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Send publishes one message. Headers become Kafka record headers; an empty
// key leaves partition assignment to the balancer.
func (p *Producer) Send(ctx context.Context, topic, key string, headers map[string]string, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Value: value,
	}
	if key != "" {
		msg.Key = []byte(key)
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error { return p.writer.Close() }
