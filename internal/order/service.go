package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// TxRunner is satisfied by *gorm.DB.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// EventSink records an outbox event inside the given transaction.
type EventSink interface {
	Record(tx *gorm.DB, aggregateType, aggregateID string, p event.Payload) error
}

// Pricer resolves the total amount for an item list. The inventory service
// owns prices, so this crosses a service boundary.
type Pricer interface {
	TotalAmount(ctx context.Context, items []event.Item) (decimal.Decimal, error)
}

const aggregateType = "Order"

// Service owns Order.status and drives the saga: every inbound event mutates
// the order and queues the follow-on outbox events in one transaction.
type Service struct {
	db     TxRunner
	repo   Repo
	outbox EventSink
	pricer Pricer
	log    *logrus.Entry
}

func NewService(db TxRunner, repo Repo, outbox EventSink, pricer Pricer, log *logrus.Entry) *Service {
	return &Service{db: db, repo: repo, outbox: outbox, pricer: pricer, log: log}
}

// CreateOrder persists a PENDING order and its ORDER_CREATED event together.
// Pricing happens before the transaction opens; it is a remote call.
func (s *Service) CreateOrder(ctx context.Context, userID int, items []event.Item, requestID string) (*Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	total, err := s.pricer.TotalAmount(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("calculate total amount: %w", err)
	}

	o := &Order{
		UserID:      userID,
		Status:      StatusPending,
		TotalAmount: total,
		CreatedAt:   time.Now(),
	}
	for _, it := range items {
		o.Items = append(o.Items, OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(tx, o); err != nil {
			return err
		}
		return s.outbox.Record(tx, aggregateType, o.aggregateID(), s.orderEvent(o, event.KindOrderCreated, requestID))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"order_id": o.ID, "request_id": requestID}).Info("order created")
	return o, nil
}

// CancelOrder cancels from PENDING or STOCK_RESERVED, releasing stock when it
// was already reserved.
func (s *Service) CancelOrder(ctx context.Context, orderID int, reason string) (*Order, error) {
	var out *Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		o, err := s.repo.FindForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(StatusCanceled) {
			return fmt.Errorf("order %d cannot be canceled from status %s", orderID, o.Status)
		}
		wasReserved := o.Status == StatusStockReserved

		if err := s.applyStatus(tx, o, StatusCanceled, &reason); err != nil {
			return err
		}
		msg := fmt.Sprintf("Order #%d has been cancelled. Reason: %s", o.ID, orDefault(reason, "Customer request"))
		if err := s.notify(tx, o, "ORDER_CANCELLED", msg); err != nil {
			return err
		}
		if wasReserved {
			if err := s.releaseStock(tx, o); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("order_id", orderID).Info("order canceled")
	return out, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// HandleStockReserveSucceeded moves PENDING to STOCK_RESERVED and queues the
// payment authorization command.
func (s *Service) HandleStockReserveSucceeded(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.StockReserveSucceeded)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	o, applied, err := s.transition(tx, evt.OrderID, StatusStockReserved, nil)
	if err != nil || !applied {
		return err
	}

	return s.outbox.Record(tx, aggregateType, o.aggregateID(), event.PaymentAuthorize{
		EventID: event.NewID(),
		OrderID: o.ID,
		Amount:  o.TotalAmount,
	})
}

// HandleStockReserveFailed moves PENDING to STOCK_FAILED and tells the
// customer. No payment was attempted, so nothing is released.
func (s *Service) HandleStockReserveFailed(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.StockReserveFailed)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	reason := orDefault(evt.Reason, "Stock not available")
	o, applied, err := s.transition(tx, evt.OrderID, StatusStockFailed, &reason)
	if err != nil || !applied {
		return err
	}

	msg := fmt.Sprintf("Order #%d cannot be processed. Reason: %s. Please try again later.", o.ID, reason)
	return s.notify(tx, o, "STOCK_RESERVE_FAILED", msg)
}

// HandlePaymentSucceeded moves STOCK_RESERVED to PAID.
func (s *Service) HandlePaymentSucceeded(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.PaymentAuthorizeSucceeded)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	o, applied, err := s.transition(tx, evt.OrderID, StatusPaid, nil)
	if err != nil || !applied {
		return err
	}

	msg := fmt.Sprintf("Payment successful for order #%d. Total amount: %s. Your order is being processed.", o.ID, o.TotalAmount)
	return s.notify(tx, o, "PAYMENT_SUCCESS", msg)
}

// HandlePaymentFailed is the payment compensation: PAYMENT_FAILED status,
// customer notification, and release of the reserved stock, all in tx.
func (s *Service) HandlePaymentFailed(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.PaymentAuthorizeFailed)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	reason := orDefault(evt.Reason, "Unknown")
	o, applied, err := s.transition(tx, evt.OrderID, StatusPaymentFailed, &reason)
	if err != nil || !applied {
		return err
	}

	msg := fmt.Sprintf("Payment failed for order #%d. Reason: %s", o.ID, reason)
	if err := s.notify(tx, o, "PAYMENT_FAILED", msg); err != nil {
		return err
	}
	return s.releaseStock(tx, o)
}

// HandlePaymentRefunded compensates a refunded payment the same way.
func (s *Service) HandlePaymentRefunded(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.PaymentRefunded)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	reason := orDefault(evt.Reason, "Customer request")
	o, applied, err := s.transition(tx, evt.OrderID, StatusRefunded, &reason)
	if err != nil || !applied {
		return err
	}

	msg := fmt.Sprintf("Order #%d has been refunded. Amount: %s. Reason: %s", o.ID, o.TotalAmount, reason)
	if err := s.notify(tx, o, "PAYMENT_REFUND", msg); err != nil {
		return err
	}
	return s.releaseStock(tx, o)
}

// transition loads the order under lock and applies the edge. A missing
// order aborts the handler; an illegal edge is a warn-and-skip so redelivered
// or reordered events cannot corrupt a terminal state.
func (s *Service) transition(tx *gorm.DB, orderID int, to Status, failReason *string) (*Order, bool, error) {
	o, err := s.repo.FindForUpdate(tx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !o.Status.CanTransition(to) {
		s.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     o.Status,
			"to":       to,
		}).Warn("illegal status transition, skipping event")
		return o, false, nil
	}
	if err := s.applyStatus(tx, o, to, failReason); err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// applyStatus writes the new status and its ORDER_STATUS_UPDATED event.
func (s *Service) applyStatus(tx *gorm.DB, o *Order, to Status, failReason *string) error {
	o.Status = to
	o.FailReason = failReason
	if err := s.repo.Save(tx, o); err != nil {
		return err
	}
	return s.outbox.Record(tx, aggregateType, o.aggregateID(), s.orderEvent(o, event.KindOrderStatusUpdated, "system"))
}

func (s *Service) notify(tx *gorm.DB, o *Order, notifType, message string) error {
	return s.outbox.Record(tx, aggregateType, o.aggregateID(), event.NotificationSend{
		EventID: event.NewID(),
		OrderID: o.ID,
		UserID:  o.UserID,
		Type:    notifType,
		Message: message,
	})
}

func (s *Service) releaseStock(tx *gorm.DB, o *Order) error {
	return s.outbox.Record(tx, aggregateType, o.aggregateID(), event.StockReserveRelease{
		EventID: event.NewID(),
		OrderID: o.ID,
		Items:   o.EventItems(),
	})
}

func (s *Service) orderEvent(o *Order, kind event.Kind, requestID string) event.Payload {
	return event.OrderEvent{
		EventID:     event.NewID(),
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		FailReason:  o.failReason(),
		Items:       o.EventItems(),
		RequestID:   requestID,
	}.WithKind(kind)
}

func (o *Order) aggregateID() string {
	return fmt.Sprintf("%d", o.ID)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
