package outbox

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
	kafkalib "github.com/distributed-system-hk251/saga-choreography/lib/kafka"
)

// Sender publishes one message to a topic. *kafka.Producer satisfies it.
type Sender interface {
	Send(ctx context.Context, topic, key string, headers map[string]string, value []byte) error
}

var _ Sender = (*kafkalib.Producer)(nil)

// Relay polls the service's outbox and republishes pending rows, standing in
// for a CDC connector. Lifecycle events go to the service's relay topic;
// command events go to the topic named after their event type. Every message
// carries eventType and eventId headers and is keyed by aggregate id so
// same-aggregate events land on one partition.
//
// While an older row of an aggregate waits out its retry backoff, younger
// rows of that aggregate are held back, so retries never reorder events
// within a partition.
type Relay struct {
	db         *gorm.DB
	producer   Sender
	relayTopic string

	interval       time.Duration
	batchSize      int
	maxRetries     int
	baseRetryDelay time.Duration

	stopCh chan struct{}
	log    *logrus.Entry
}

func NewRelay(db *gorm.DB, producer Sender, relayTopic string, log *logrus.Entry) *Relay {
	return &Relay{
		db:             db,
		producer:       producer,
		relayTopic:     relayTopic,
		interval:       time.Second,
		batchSize:      50,
		maxRetries:     5,
		baseRetryDelay: 500 * time.Millisecond,
		stopCh:         make(chan struct{}),
		log:            log,
	}
}

func (r *Relay) Start() {
	go r.processLoop()
}

func (r *Relay) Stop() {
	close(r.stopCh)
}

func (r *Relay) processLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.processPending()
		case <-r.stopCh:
			r.log.Info("stopping outbox relay")
			return
		}
	}
}

// topicFor routes an entry to its destination topic.
func topicFor(kind event.Kind, relayTopic string) string {
	switch kind {
	case event.KindPaymentAuthorize, event.KindStockReserveRelease, event.KindNotificationSend:
		return string(kind)
	default:
		return relayTopic
	}
}

func (r *Relay) processPending() {
	entries, err := r.pendingEntries()
	if err != nil {
		r.log.WithError(err).Error("failed to fetch outbox entries")
		return
	}
	if len(entries) == 0 {
		return
	}
	blocked, err := r.blockedAggregates()
	if err != nil {
		r.log.WithError(err).Error("failed to fetch blocked aggregates")
		return
	}

	published, failures := r.dispatchBatch(entries, blocked)
	for _, entry := range published {
		r.markProcessed(entry)
	}
	for _, f := range failures {
		r.markFailed(f.entry, f.cause)
	}
}

type failure struct {
	entry Entry
	cause error
}

// dispatchBatch publishes entries in commit order. An entry whose aggregate
// is blocked, either by an older row still in its backoff window or by a
// failure earlier in this batch, is held back untouched so it cannot
// overtake the older row on the partition.
func (r *Relay) dispatchBatch(entries []Entry, blocked map[string]bool) (published []Entry, failures []failure) {
	for _, entry := range entries {
		if blocked[entry.AggregateID] {
			continue
		}
		if err := r.publish(entry); err != nil {
			blocked[entry.AggregateID] = true
			failures = append(failures, failure{entry: entry, cause: err})
			continue
		}
		published = append(published, entry)
	}
	return published, failures
}

func (r *Relay) publish(entry Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	topic := topicFor(event.Kind(entry.EventType), r.relayTopic)
	headers := map[string]string{
		"eventType": entry.EventType,
		"eventId":   entry.ID.String(),
	}
	return r.producer.Send(ctx, topic, entry.AggregateID, headers, entry.Payload)
}

// pendingEntries fetches rows in commit order: fresh rows plus rows whose
// exponential backoff window has elapsed.
func (r *Relay) pendingEntries() ([]Entry, error) {
	var entries []Entry
	err := r.db.
		Where("status = ? AND retry_count < ?", StatusPending, r.maxRetries).
		Where(
			"retry_count = 0 OR NOW() >= DATE_ADD(processed_at, INTERVAL POWER(2, retry_count - 1) * ? SECOND)",
			r.baseRetryDelay.Seconds(),
		).
		Order("created_at ASC").
		Limit(r.batchSize).
		Find(&entries).Error
	return entries, err
}

// blockedAggregates lists aggregates with a row still waiting out its retry
// backoff. Permanently failed rows do not block their aggregate: they need an
// operator, and holding the aggregate until then would wedge it.
func (r *Relay) blockedAggregates() (map[string]bool, error) {
	var ids []string
	err := r.db.Model(&Entry{}).
		Distinct("aggregate_id").
		Where("status = ? AND retry_count > 0 AND retry_count < ?", StatusPending, r.maxRetries).
		Where(
			"NOW() < DATE_ADD(processed_at, INTERVAL POWER(2, retry_count - 1) * ? SECOND)",
			r.baseRetryDelay.Seconds(),
		).
		Pluck("aggregate_id", &ids).Error
	if err != nil {
		return nil, err
	}
	blocked := make(map[string]bool, len(ids))
	for _, id := range ids {
		blocked[id] = true
	}
	return blocked, nil
}

func (r *Relay) markProcessed(entry Entry) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       StatusProcessed,
		"processed_at": &now,
		"last_error":   nil,
	}
	if err := r.db.Model(&entry).Updates(updates).Error; err != nil {
		r.log.WithError(err).WithField("entry_id", entry.ID).Error("failed to mark outbox entry processed")
	}
}

func (r *Relay) markFailed(entry Entry, cause error) {
	newRetryCount := entry.RetryCount + 1
	status := StatusPending
	if newRetryCount >= r.maxRetries {
		status = StatusFailed
		r.log.WithField("entry_id", entry.ID).Errorf("outbox entry failed permanently after %d retries: %v", r.maxRetries, cause)
	}

	now := time.Now()
	errorString := cause.Error()
	updates := map[string]interface{}{
		"status":       status,
		"retry_count":  newRetryCount,
		"last_error":   &errorString,
		"processed_at": &now,
	}
	if err := r.db.Model(&entry).Updates(updates).Error; err != nil {
		r.log.WithError(err).WithField("entry_id", entry.ID).Error("failed to update outbox retry state")
	}
}
