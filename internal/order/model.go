package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// Order is owned exclusively by this service. Items are a value-object
// collection created with the order and never referenced outside it.
type Order struct {
	ID          int             `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int             `json:"user_id" gorm:"index;not null"`
	Status      Status          `json:"status" gorm:"size:32;not null"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2)"`
	FailReason  *string         `json:"fail_reason"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	OrderID   int `json:"-" gorm:"primaryKey"`
	ProductID int `json:"product_id" gorm:"primaryKey"`
	Quantity  int `json:"quantity" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// EventItems converts the item rows to their wire shape.
func (o *Order) EventItems() []event.Item {
	items := make([]event.Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, event.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

func (o *Order) failReason() string {
	if o.FailReason == nil {
		return ""
	}
	return *o.FailReason
}
