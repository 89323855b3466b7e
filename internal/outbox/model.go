package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Entry is one undelivered domain event. Rows are append-only for business
// code; only the relay worker touches status, processed_at, retry_count and
// last_error.
type Entry struct {
	ID            uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	AggregateType string         `json:"aggregate_type" gorm:"size:64"`
	AggregateID   string         `json:"aggregate_id" gorm:"size:64;index"`
	EventType     string         `json:"event_type" gorm:"size:64"`
	Payload       datatypes.JSON `json:"payload" gorm:"type:json"`
	Status        string         `json:"status" gorm:"size:16;default:'pending';index"`
	CreatedAt     time.Time      `json:"created_at"`
	ProcessedAt   *time.Time     `json:"processed_at"`
	RetryCount    int            `json:"retry_count" gorm:"default:0"`
	LastError     *string        `json:"last_error"`
}

func (Entry) TableName() string { return "outbox" }
