package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusFailed   Status = "FAILED"
	StatusRefund   Status = "REFUND"
	StatusCanceled Status = "CANCELLED"
)

const MethodCardPayment = "CARD_PAYMENT"

type Payment struct {
	ID         int             `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int             `gorm:"not null;index" json:"order_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method     string          `gorm:"size:32;not null" json:"method"`
	Status     Status          `gorm:"size:32;not null" json:"status"`
	FailReason *string         `gorm:"size:255" json:"fail_reason,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }
