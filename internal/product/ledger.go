package product

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// ReserveCode classifies the business outcome of a reservation attempt.
// These are results, not errors: an order asking for more stock than exists
// is a normal saga branch, not a fault.
type ReserveCode int

const (
	ReserveOK ReserveCode = iota
	ReserveInsufficientStock
	ReserveProductNotFound
)

type ReserveOutcome struct {
	Code      ReserveCode
	ProductID int // the product that blocked the reservation, when Code != ReserveOK
}

func (o ReserveOutcome) Reason() string {
	switch o.Code {
	case ReserveInsufficientStock:
		return fmt.Sprintf("Insufficient stock for product %d", o.ProductID)
	case ReserveProductNotFound:
		return fmt.Sprintf("Product %d not found", o.ProductID)
	default:
		return ""
	}
}

// Ledger applies stock movements. All methods run inside a caller-owned
// transaction so the movement and its outbox event commit together.
type Ledger struct {
	repo Repo
}

func NewLedger(repo Repo) *Ledger {
	return &Ledger{repo: repo}
}

// Reserve decrements stock for every item, or nothing at all. The check
// phase locks each row and validates before any write happens, so a failed
// reservation never leaves a partial decrement behind. Duplicate product
// lines are summed first, so two lines of 3 demand 6 units against one
// stock read. Rows are locked in productID order to keep concurrent
// reservations deadlock-free.
func (l *Ledger) Reserve(tx *gorm.DB, items []event.Item) (ReserveOutcome, error) {
	sorted := collapseByProduct(items)

	locked := make(map[int]*Product, len(sorted))
	for _, it := range sorted {
		p, err := l.repo.LockByID(tx, it.ProductID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ReserveOutcome{Code: ReserveProductNotFound, ProductID: it.ProductID}, nil
			}
			return ReserveOutcome{}, err
		}
		if p.Stock < it.Quantity {
			return ReserveOutcome{Code: ReserveInsufficientStock, ProductID: it.ProductID}, nil
		}
		locked[it.ProductID] = p
	}

	for _, it := range sorted {
		p := locked[it.ProductID]
		if err := l.repo.UpdateStock(tx, p.ID, p.Stock-it.Quantity); err != nil {
			return ReserveOutcome{}, err
		}
	}
	return ReserveOutcome{Code: ReserveOK}, nil
}

// Release returns previously reserved stock, with the same lock-then-apply
// shape as Reserve so a missing product leaves no partial increment. A
// missing product here means the catalog changed underneath a live saga and
// is reported as an error wrapping ErrNotFound.
func (l *Ledger) Release(tx *gorm.DB, items []event.Item) error {
	sorted := collapseByProduct(items)

	locked := make(map[int]*Product, len(sorted))
	for _, it := range sorted {
		p, err := l.repo.LockByID(tx, it.ProductID)
		if err != nil {
			return fmt.Errorf("release stock for product %d: %w", it.ProductID, err)
		}
		locked[it.ProductID] = p
	}

	for _, it := range sorted {
		p := locked[it.ProductID]
		if err := l.repo.UpdateStock(tx, p.ID, p.Stock+it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// collapseByProduct sums quantities per product and returns one line per
// product, sorted by id. Keying the movement on distinct products keeps a
// duplicated line from being validated twice against the same stock read.
func collapseByProduct(items []event.Item) []event.Item {
	byProduct := make(map[int]int, len(items))
	for _, it := range items {
		byProduct[it.ProductID] += it.Quantity
	}
	out := make([]event.Item, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, event.Item{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
