package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// ErrNoTransaction is returned when Record is called outside an open
// transaction. The state mutation and its event must commit or roll back
// together, so the writer never opens a transaction of its own.
var ErrNoTransaction = errors.New("outbox: Record requires an open transaction")

type Writer struct {
	log *logrus.Entry
}

func NewWriter(log *logrus.Entry) *Writer {
	return &Writer{log: log}
}

// Record appends one immutable outbox row inside the caller's transaction.
func (w *Writer) Record(tx *gorm.DB, aggregateType, aggregateID string, p event.Payload) error {
	if tx == nil {
		return ErrNoTransaction
	}
	if _, ok := tx.Statement.ConnPool.(gorm.TxCommitter); !ok {
		return ErrNoTransaction
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s payload: %w", p.EventKind(), err)
	}

	entry := &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(p.EventKind()),
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}

	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("outbox: insert entry: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"event_type":   entry.EventType,
		"aggregate_id": entry.AggregateID,
	}).Debug("outbox entry recorded")
	return nil
}
