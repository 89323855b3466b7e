// Package event defines the closed set of saga event kinds, their payload
// shapes, and the decoding of relay envelopes. Adding a new kind means adding
// a constant, a payload struct, a Decode case, and a KindsByTopic entry, so
// the change is visible everywhere it matters at compile time.
package event

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the logical event type carried as the eventType message attribute.
type Kind string

const (
	KindOrderCreated       Kind = "ORDER_CREATED"
	KindOrderStatusUpdated Kind = "ORDER_STATUS_UPDATED"

	KindStockReserveSucceeded Kind = "STOCK_RESERVE_SUCCEEDED"
	KindStockReserveFailed    Kind = "STOCK_RESERVE_FAILED"

	KindPaymentAuthorize          Kind = "PAYMENT_AUTHORIZE"
	KindPaymentAuthorizeSucceeded Kind = "PAYMENT_AUTHORIZE_SUCCEEDED"
	KindPaymentAuthorizeFailed    Kind = "PAYMENT_AUTHORIZE_FAILED"
	KindPaymentRefunded           Kind = "PAYMENT_REFUNDED"

	KindStockReserveRelease Kind = "STOCK_RESERVE_RELEASE"
	KindNotificationSend    Kind = "NOTIFICATION_SEND"
)

// Topics. The three relay topics carry each service's outbox lifecycle
// events; the remaining topics carry a single command kind each.
const (
	TopicOrderRelay   = "order-outbox-relay"
	TopicProductRelay = "product-outbox-relay"
	TopicPaymentRelay = "payment-outbox-relay"

	TopicPaymentAuthorize    = "PAYMENT_AUTHORIZE"
	TopicStockReserveRelease = "STOCK_RESERVE_RELEASE"
	TopicNotificationSend    = "NOTIFICATION_SEND"
)

// KindsByTopic is the closed set of kinds each topic may carry.
var KindsByTopic = map[string][]Kind{
	TopicOrderRelay:          {KindOrderCreated, KindOrderStatusUpdated},
	TopicProductRelay:        {KindStockReserveSucceeded, KindStockReserveFailed},
	TopicPaymentRelay:        {KindPaymentAuthorizeSucceeded, KindPaymentAuthorizeFailed, KindPaymentRefunded},
	TopicPaymentAuthorize:    {KindPaymentAuthorize},
	TopicStockReserveRelease: {KindStockReserveRelease},
	TopicNotificationSend:    {KindNotificationSend},
}

var ErrUnknownKind = errors.New("unknown event kind")

// NewID mints the eventId producers stamp on every payload.
func NewID() string { return uuid.NewString() }

// Payload is implemented by every event body. AggregateID keys partitioning
// and the dedup claim; for all saga events it is the order id.
type Payload interface {
	EventKind() Kind
	AggregateID() string
}

// Item is one order line as carried on the wire.
type Item struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// OrderEvent is the body of ORDER_CREATED and ORDER_STATUS_UPDATED.
type OrderEvent struct {
	EventID     string          `json:"eventId,omitempty"`
	OrderID     int             `json:"orderId"`
	UserID      int             `json:"userId"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	FailReason  string          `json:"failReason,omitempty"`
	Items       []Item          `json:"items"`
	RequestID   string          `json:"requestId,omitempty"`

	kind Kind
}

func (e OrderEvent) EventKind() Kind     { return e.kind }
func (e OrderEvent) AggregateID() string { return strconv.Itoa(e.OrderID) }

// WithKind tags an OrderEvent as created or status-updated.
func (e OrderEvent) WithKind(k Kind) OrderEvent {
	e.kind = k
	return e
}

type StockReserveSucceeded struct {
	EventID string `json:"eventId,omitempty"`
	OrderID int    `json:"orderId"`
	Items   []Item `json:"items"`
}

func (e StockReserveSucceeded) EventKind() Kind     { return KindStockReserveSucceeded }
func (e StockReserveSucceeded) AggregateID() string { return strconv.Itoa(e.OrderID) }

type StockReserveFailed struct {
	EventID string `json:"eventId,omitempty"`
	OrderID int    `json:"orderId"`
	Reason  string `json:"reason"`
}

func (e StockReserveFailed) EventKind() Kind     { return KindStockReserveFailed }
func (e StockReserveFailed) AggregateID() string { return strconv.Itoa(e.OrderID) }

type PaymentAuthorize struct {
	EventID string          `json:"eventId,omitempty"`
	OrderID int             `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

func (e PaymentAuthorize) EventKind() Kind     { return KindPaymentAuthorize }
func (e PaymentAuthorize) AggregateID() string { return strconv.Itoa(e.OrderID) }

type PaymentAuthorizeSucceeded struct {
	EventID   string          `json:"eventId,omitempty"`
	PaymentID int             `json:"paymentId"`
	OrderID   int             `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
}

func (e PaymentAuthorizeSucceeded) EventKind() Kind     { return KindPaymentAuthorizeSucceeded }
func (e PaymentAuthorizeSucceeded) AggregateID() string { return strconv.Itoa(e.OrderID) }

type PaymentAuthorizeFailed struct {
	EventID   string `json:"eventId,omitempty"`
	PaymentID int    `json:"paymentId"`
	OrderID   int    `json:"orderId"`
	Reason    string `json:"reason"`
}

func (e PaymentAuthorizeFailed) EventKind() Kind     { return KindPaymentAuthorizeFailed }
func (e PaymentAuthorizeFailed) AggregateID() string { return strconv.Itoa(e.OrderID) }

type PaymentRefunded struct {
	EventID   string          `json:"eventId,omitempty"`
	PaymentID int             `json:"paymentId"`
	OrderID   int             `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

func (e PaymentRefunded) EventKind() Kind     { return KindPaymentRefunded }
func (e PaymentRefunded) AggregateID() string { return strconv.Itoa(e.OrderID) }

type StockReserveRelease struct {
	EventID string `json:"eventId,omitempty"`
	OrderID int    `json:"orderId"`
	Items   []Item `json:"items"`
}

func (e StockReserveRelease) EventKind() Kind     { return KindStockReserveRelease }
func (e StockReserveRelease) AggregateID() string { return strconv.Itoa(e.OrderID) }

type NotificationSend struct {
	EventID string `json:"eventId,omitempty"`
	OrderID int    `json:"orderId"`
	UserID  int    `json:"userId,omitempty"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e NotificationSend) EventKind() Kind     { return KindNotificationSend }
func (e NotificationSend) AggregateID() string { return strconv.Itoa(e.OrderID) }

// Decode parses a bare event body into its typed payload. The switch is
// exhaustive over the closed kind set; anything else is ErrUnknownKind.
func Decode(kind Kind, body []byte) (Payload, error) {
	switch kind {
	case KindOrderCreated, KindOrderStatusUpdated:
		var p OrderEvent
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p.WithKind(kind), nil
	case KindStockReserveSucceeded:
		var p StockReserveSucceeded
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindStockReserveFailed:
		var p StockReserveFailed
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindPaymentAuthorize:
		var p PaymentAuthorize
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindPaymentAuthorizeSucceeded:
		var p PaymentAuthorizeSucceeded
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindPaymentAuthorizeFailed:
		var p PaymentAuthorizeFailed
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindPaymentRefunded:
		var p PaymentRefunded
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindStockReserveRelease:
		var p StockReserveRelease
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindNotificationSend:
		var p NotificationSend
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
