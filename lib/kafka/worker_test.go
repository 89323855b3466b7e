package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	mu       sync.Mutex
	messages []kafkago.Message
	next     int
	commits  []kafkago.Message
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.messages) {
		return kafkago.Message{}, io.EOF
	}
	m := r.messages[r.next]
	r.next++
	return m, nil
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) committedOffsets(topic string, partition int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.commits {
		if m.Topic == topic && m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestWorker(r *scriptedReader, handler Handler) *Worker {
	return &Worker{r: r, sem: make(chan struct{}, 4), handle: handler, log: testLogger()}
}

func msg(topic string, partition int, offset int64, value string) kafkago.Message {
	return kafkago.Message{Topic: topic, Partition: partition, Offset: offset, Value: []byte(value)}
}

func runToEnd(t *testing.T, w *Worker) {
	t.Helper()
	err := w.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestWorkerCommitsOnlyAfterSuccess(t *testing.T) {
	r := &scriptedReader{messages: []kafkago.Message{
		msg("t", 0, 0, "a"),
		msg("t", 0, 1, "b"),
	}}

	var handled []string
	var mu sync.Mutex
	w := newTestWorker(r, func(ctx context.Context, m Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, string(m.Value))
		return nil
	})

	runToEnd(t, w)
	assert.Equal(t, []string{"a", "b"}, handled)
	assert.Equal(t, []int64{0, 1}, r.committedOffsets("t", 0))
}

func TestWorkerDoesNotCommitFailedMessage(t *testing.T) {
	r := &scriptedReader{messages: []kafkago.Message{msg("t", 0, 0, "a")}}

	w := newTestWorker(r, func(ctx context.Context, m Message) error {
		return errors.New("db down")
	})

	runToEnd(t, w)
	assert.Empty(t, r.commits)
}

func TestWorkerFreezesPartitionAfterFailure(t *testing.T) {
	r := &scriptedReader{messages: []kafkago.Message{
		msg("t", 0, 0, "ok"),
		msg("t", 0, 1, "boom"),
		msg("t", 0, 2, "ok"),
	}}

	var handled []int64
	var mu sync.Mutex
	w := newTestWorker(r, func(ctx context.Context, m Message) error {
		mu.Lock()
		handled = append(handled, m.Raw.Offset)
		mu.Unlock()
		if string(m.Value) == "boom" {
			return errors.New("db down")
		}
		return nil
	})

	runToEnd(t, w)

	// every message reaches the handler, in offset order
	assert.Equal(t, []int64{0, 1, 2}, handled)
	// committing offset 2 would skip the failed offset 1, so only 0 commits
	assert.Equal(t, []int64{0}, r.committedOffsets("t", 0))
}

func TestWorkerFailureDoesNotAffectOtherPartitions(t *testing.T) {
	r := &scriptedReader{messages: []kafkago.Message{
		msg("t", 0, 0, "boom"),
		msg("t", 1, 0, "ok"),
		msg("t", 1, 1, "ok"),
	}}

	w := newTestWorker(r, func(ctx context.Context, m Message) error {
		if string(m.Value) == "boom" {
			return errors.New("db down")
		}
		return nil
	})

	runToEnd(t, w)
	assert.Empty(t, r.committedOffsets("t", 0))
	assert.Equal(t, []int64{0, 1}, r.committedOffsets("t", 1))
}

func TestWorkerCarriesHeadersAndKey(t *testing.T) {
	m := msg("t", 0, 0, `{"orderId":1}`)
	m.Key = []byte("1")
	m.Headers = []kafkago.Header{{Key: "eventType", Value: []byte("ORDER_CREATED")}}
	r := &scriptedReader{messages: []kafkago.Message{m}}

	var got Message
	w := newTestWorker(r, func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	})

	runToEnd(t, w)
	assert.Equal(t, "1", got.Key)
	assert.Equal(t, "ORDER_CREATED", got.Headers["eventType"])
}
