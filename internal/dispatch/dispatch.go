// Package dispatch routes inbound bus messages to saga handlers. A handler is
// keyed by (topic, eventType) and runs inside one fresh transaction together
// with the dedup claim, so its state writes and outbox writes commit or roll
// back as a unit.
package dispatch

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
	kafkalib "github.com/distributed-system-hk251/saga-choreography/lib/kafka"
)

// Handler processes one decoded event inside the dispatcher's transaction.
// Returning an error rolls the transaction back and leaves the message
// uncommitted for redelivery; business outcomes are never errors.
type Handler func(ctx context.Context, tx *gorm.DB, p event.Payload) error

// TxRunner is satisfied by *gorm.DB.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// Deduper claims events inside the handler transaction. A nil Deduper
// disables deduplication.
type Deduper interface {
	Claim(tx *gorm.DB, group, aggregateID, eventType, eventID string) (bool, error)
}

type key struct {
	topic string
	kind  event.Kind
}

type Dispatcher struct {
	db       TxRunner
	dedup    Deduper
	group    string
	handlers map[key]Handler
	log      *logrus.Entry
}

func New(db TxRunner, dedup Deduper, group string, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		db:       db,
		dedup:    dedup,
		group:    group,
		handlers: make(map[key]Handler),
		log:      log,
	}
}

// Register binds a handler to a (topic, eventType) pair. The kind must belong
// to the topic's closed set; a mismatch is a wiring bug caught at startup.
func (d *Dispatcher) Register(topic string, kind event.Kind, h Handler) {
	for _, k := range event.KindsByTopic[topic] {
		if k == kind {
			d.handlers[key{topic, kind}] = h
			return
		}
	}
	panic(fmt.Sprintf("dispatch: kind %s is not carried by topic %s", kind, topic))
}

// HandleMessage adapts the dispatcher to the kafka worker callback.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg kafkalib.Message) error {
	return d.Dispatch(ctx, msg.Topic, msg.Headers, msg.Value)
}

func (d *Dispatcher) Dispatch(ctx context.Context, topic string, headers map[string]string, raw []byte) error {
	log := d.log.WithField("topic", topic)

	body, err := event.Unwrap(raw)
	if err != nil {
		// transport/parse error: drop, no retry
		log.WithError(err).Warn("dropping unparseable message")
		return nil
	}

	kind, ok := event.KindOf(headers, body, topic)
	if !ok {
		log.Debug("message without resolvable event type, ignoring")
		return nil
	}

	h, ok := d.handlers[key{topic, kind}]
	if !ok {
		// not subscribed to this kind on this topic
		return nil
	}

	p, err := event.Decode(kind, body)
	if err != nil {
		log.WithError(err).WithField("event_type", kind).Warn("dropping undecodable event")
		return nil
	}

	eventID := event.IDOf(headers, body)

	return d.db.Transaction(func(tx *gorm.DB) error {
		if d.dedup != nil && eventID != "" {
			fresh, err := d.dedup.Claim(tx, d.group, p.AggregateID(), string(kind), eventID)
			if err != nil {
				return err
			}
			if !fresh {
				log.WithFields(logrus.Fields{
					"event_type": kind,
					"event_id":   eventID,
				}).Info("duplicate delivery, skipping handler")
				return nil
			}
		}
		return h(ctx, tx, p)
	})
}
