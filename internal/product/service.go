package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// EventSink records an outbox event inside the given transaction.
type EventSink interface {
	Record(tx *gorm.DB, aggregateType, aggregateID string, p event.Payload) error
}

// Stock movements belong to an order's saga, so outbox rows key on the order.
const aggregateType = "Order"

type Service struct {
	repo   Repo
	ledger *Ledger
	outbox EventSink
	cache  *Cache
	log    *logrus.Entry
}

func NewService(repo Repo, ledger *Ledger, outbox EventSink, cache *Cache, log *logrus.Entry) *Service {
	return &Service{repo: repo, ledger: ledger, outbox: outbox, cache: cache, log: log}
}

// HandleOrderCreated attempts the reservation for a new order and answers
// with exactly one of STOCK_RESERVE_SUCCEEDED or STOCK_RESERVE_FAILED. The
// stock movement and the answer commit in the same transaction.
func (s *Service) HandleOrderCreated(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.OrderEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}
	if evt.Status != "PENDING" {
		s.log.WithFields(logrus.Fields{"order_id": evt.OrderID, "status": evt.Status}).
			Warn("ORDER_CREATED with non-pending status, skipping reservation")
		return nil
	}

	outcome, err := s.ledger.Reserve(tx, evt.Items)
	if err != nil {
		return err
	}

	aggregateID := fmt.Sprintf("%d", evt.OrderID)
	if outcome.Code != ReserveOK {
		s.log.WithFields(logrus.Fields{"order_id": evt.OrderID, "reason": outcome.Reason()}).
			Info("stock reservation failed")
		return s.outbox.Record(tx, aggregateType, aggregateID, event.StockReserveFailed{
			EventID: event.NewID(),
			OrderID: evt.OrderID,
			Reason:  outcome.Reason(),
		})
	}

	s.invalidate(ctx, evt.Items)
	s.log.WithField("order_id", evt.OrderID).Info("stock reserved")
	return s.outbox.Record(tx, aggregateType, aggregateID, event.StockReserveSucceeded{
		EventID: event.NewID(),
		OrderID: evt.OrderID,
		Items:   evt.Items,
	})
}

// HandleStockReserveRelease returns stock after a payment failure, refund,
// or cancellation. A product that vanished from the catalog is logged and
// the message dropped; redelivering it can never succeed.
func (s *Service) HandleStockReserveRelease(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.StockReserveRelease)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	if err := s.ledger.Release(tx, evt.Items); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.WithError(err).WithField("order_id", evt.OrderID).
				Error("cannot release stock for missing product, dropping event")
			return nil
		}
		return err
	}

	s.invalidate(ctx, evt.Items)
	s.log.WithField("order_id", evt.OrderID).Info("reserved stock released")
	return nil
}

// TotalAmount prices an item list against the current catalog.
func (s *Service) TotalAmount(ctx context.Context, items []event.Item) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, it := range items {
		p, err := s.cache.Get(ctx, it.ProductID, s.repo.FindByID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total, nil
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id int) (*Product, error) {
	return s.cache.Get(ctx, id, s.repo.FindByID)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) invalidate(ctx context.Context, items []event.Item) {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	s.cache.Invalidate(ctx, ids...)
}
