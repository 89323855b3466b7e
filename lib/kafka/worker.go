package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Message struct {
	Topic   string
	Key     string
	Headers map[string]string
	Value   []byte
	Raw     kafka.Message
}

type Handler func(ctx context.Context, msg Message) error

// reader is the slice of kafka.Reader the worker uses. FetchMessage is used
// instead of ReadMessage: on a consumer-group reader, ReadMessage commits
// the offset on fetch, before the handler ran.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type topicPartition struct {
	topic     string
	partition int
}

// Worker is a consumer-group reader that feeds each partition's messages to
// the handler serially, in offset order. A message is committed only when
// its handler returns nil; after a handler error the partition keeps being
// drained but nothing further is committed on it, because committing a
// younger offset would silently skip the failed one. Redelivery after a
// rebalance or restart is the sole retry mechanism, and the dedup claim
// downstream makes the re-run of already-processed younger messages a skip.
type Worker struct {
	r      reader
	sem    chan struct{}
	handle Handler
	log    *logrus.Entry
}

func NewWorker(cfg Config, group string, topics []string, concurrency int, log *logrus.Entry, handler Handler) *Worker {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1e3,
		MaxBytes:    10e6,
	})
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{r: r, sem: make(chan struct{}, concurrency), handle: handler, log: log}
}

// Run blocks fetching messages until the reader fails or ctx ends.
// Partitions are consumed concurrently with each other; the semaphore bounds
// total in-flight handlers.
func (w *Worker) Run(ctx context.Context) error {
	queues := make(map[topicPartition]chan kafka.Message)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		m, err := w.r.FetchMessage(ctx)
		if err != nil {
			for _, q := range queues {
				close(q)
			}
			return err
		}

		tp := topicPartition{m.Topic, m.Partition}
		q, ok := queues[tp]
		if !ok {
			q = make(chan kafka.Message, 16)
			queues[tp] = q
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.consumePartition(ctx, q)
			}()
		}
		q <- m
	}
}

func (w *Worker) consumePartition(ctx context.Context, q <-chan kafka.Message) {
	stalled := false
	for m := range q {
		w.sem <- struct{}{}
		err := w.process(ctx, m)
		<-w.sem

		if err != nil {
			if !stalled {
				w.log.WithError(err).WithFields(logrus.Fields{
					"topic":     m.Topic,
					"partition": m.Partition,
					"offset":    m.Offset,
				}).Error("handler failed, freezing commits on partition until redelivery")
			}
			stalled = true
			continue
		}
		if stalled {
			// an older offset on this partition failed; committing this one
			// would skip it
			continue
		}
		if err := w.r.CommitMessages(ctx, m); err != nil {
			w.log.WithError(err).WithField("topic", m.Topic).Error("commit failed")
		}
	}
}

func (w *Worker) process(ctx context.Context, m kafka.Message) error {
	h := map[string]string{}
	for _, x := range m.Headers {
		h[string(x.Key)] = string(x.Value)
	}
	return w.handle(ctx, Message{
		Topic:   m.Topic,
		Key:     string(m.Key),
		Headers: h,
		Value:   m.Value,
		Raw:     m,
	})
}

func (w *Worker) Close() error { return w.r.Close() }
