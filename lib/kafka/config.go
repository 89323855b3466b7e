package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string
	GroupID string
}

// Ping dials the first broker to verify connectivity at startup.
func (c Config) Ping(ctx context.Context) error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", c.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker %s: %w", c.Brokers[0], err)
	}
	return conn.Close()
}
