package payment

import (
	"context"
	"database/sql"
	"fmt"

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

const aggregateType = "Order"

type Service struct {
	db      TxRunner
	repo    Repo
	gateway Gateway
	outbox  EventSink
	log     *logrus.Entry
}

func NewService(db TxRunner, repo Repo, gateway Gateway, outbox EventSink, log *logrus.Entry) *Service {
	return &Service{db: db, repo: repo, gateway: gateway, outbox: outbox, log: log}
}

// HandlePaymentAuthorize charges the order and records the result plus its
// outcome event in one transaction. A second delivery for an order that
// already has a payment row is a no-op regardless of dedup state.
func (s *Service) HandlePaymentAuthorize(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.PaymentAuthorize)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	exists, err := s.repo.ExistsByOrderID(tx, evt.OrderID)
	if err != nil {
		return err
	}
	if exists {
		s.log.WithField("order_id", evt.OrderID).Warn("payment already recorded for order, skipping authorization")
		return nil
	}

	authorized, reason, err := s.gateway.Authorize(ctx, evt.OrderID, evt.Amount)
	if err != nil {
		return fmt.Errorf("payment gateway: %w", err)
	}

	pay := &Payment{
		OrderID: evt.OrderID,
		Amount:  evt.Amount,
		Method:  MethodCardPayment,
	}
	if authorized {
		pay.Status = StatusPaid
	} else {
		pay.Status = StatusFailed
		pay.FailReason = &reason
	}
	if err := s.repo.Create(tx, pay); err != nil {
		return err
	}

	aggregateID := fmt.Sprintf("%d", evt.OrderID)
	if !authorized {
		s.log.WithFields(logrus.Fields{"order_id": evt.OrderID, "reason": reason}).Info("payment declined")
		return s.outbox.Record(tx, aggregateType, aggregateID, event.PaymentAuthorizeFailed{
			EventID:   event.NewID(),
			PaymentID: pay.ID,
			OrderID:   evt.OrderID,
			Reason:    reason,
		})
	}

	s.log.WithFields(logrus.Fields{"order_id": evt.OrderID, "amount": evt.Amount}).Info("payment authorized")
	return s.outbox.Record(tx, aggregateType, aggregateID, event.PaymentAuthorizeSucceeded{
		EventID:   event.NewID(),
		PaymentID: pay.ID,
		OrderID:   evt.OrderID,
		Amount:    evt.Amount,
	})
}

// Refund reverses a PAID payment and queues PAYMENT_REFUNDED so the order
// and inventory services run their compensations.
func (s *Service) Refund(ctx context.Context, orderID int, reason string) (*Payment, error) {
	var out *Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pay, err := s.repo.FindByOrderIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if pay.Status != StatusPaid {
			return fmt.Errorf("payment for order %d is %s, only PAID payments can be refunded", orderID, pay.Status)
		}

		pay.Status = StatusRefund
		if err := s.repo.Save(tx, pay); err != nil {
			return err
		}

		out = pay
		return s.outbox.Record(tx, aggregateType, fmt.Sprintf("%d", orderID), event.PaymentRefunded{
			EventID:   event.NewID(),
			PaymentID: pay.ID,
			OrderID:   orderID,
			Amount:    pay.Amount,
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("order_id", orderID).Info("payment refunded")
	return out, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID int) (*Payment, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}
