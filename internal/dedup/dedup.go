// Package dedup makes handler idempotency an explicit contract. Each consumer
// group claims every (aggregate, eventType, eventId) it processes inside the
// handler's own transaction; a redelivered message finds its claim and is
// skipped, so non-idempotent arithmetic like stock release cannot run twice.
package dedup

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ProcessedEvent struct {
	ConsumerGroup string    `gorm:"size:64;primaryKey"`
	AggregateID   string    `gorm:"size:64;primaryKey"`
	EventType     string    `gorm:"size:64;primaryKey"`
	EventID       string    `gorm:"size:36;primaryKey"`
	ProcessedAt   time.Time `gorm:"autoCreateTime"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }

type Guard struct{}

// Claim records the event as processed within tx. It reports false when an
// earlier delivery already claimed it. Two in-flight deliveries of the same
// event can both pass the existence check; the primary key then aborts the
// loser's transaction and its redelivery is skipped here.
func (Guard) Claim(tx *gorm.DB, group, aggregateID, eventType, eventID string) (bool, error) {
	var n int64
	err := tx.Model(&ProcessedEvent{}).
		Where("consumer_group = ? AND aggregate_id = ? AND event_type = ? AND event_id = ?",
			group, aggregateID, eventType, eventID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("dedup: lookup claim: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	claim := &ProcessedEvent{
		ConsumerGroup: group,
		AggregateID:   aggregateID,
		EventType:     eventType,
		EventID:       eventID,
	}
	if err := tx.Create(claim).Error; err != nil {
		return false, fmt.Errorf("dedup: insert claim: %w", err)
	}
	return true, nil
}
