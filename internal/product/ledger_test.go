package product

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

type memRepo struct {
	mu       sync.Mutex
	nextID   int
	products map[int]*Product
}

func newMemRepo(products ...*Product) *memRepo {
	r := &memRepo{nextID: 1, products: map[int]*Product{}}
	for _, p := range products {
		cp := *p
		r.products[p.ID] = &cp
		if p.ID >= r.nextID {
			r.nextID = p.ID + 1
		}
	}
	return r
}

func (r *memRepo) Create(ctx context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id int) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) List(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) LockByID(tx *gorm.DB, id int) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) UpdateStock(tx *gorm.DB, id, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id].Stock = stock
	return nil
}

func (r *memRepo) stock(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReserveDecrementsStock(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 5})
	ledger := NewLedger(repo)

	outcome, err := ledger.Reserve(nil, []event.Item{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, ReserveOK, outcome.Code)
	assert.Equal(t, 2, repo.stock(1))
}

func TestReserveInsufficientStockOnSecondOrder(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 5})
	ledger := NewLedger(repo)

	outcome, err := ledger.Reserve(nil, []event.Item{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, ReserveOK, outcome.Code)

	outcome, err = ledger.Reserve(nil, []event.Item{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, ReserveInsufficientStock, outcome.Code)
	assert.Equal(t, 1, outcome.ProductID)
	assert.Contains(t, outcome.Reason(), "Insufficient stock")

	// the failed attempt must not touch the remaining stock
	assert.Equal(t, 2, repo.stock(1))
}

func TestReserveUnknownProduct(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(repo)

	outcome, err := ledger.Reserve(nil, []event.Item{{ProductID: 9, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, ReserveProductNotFound, outcome.Code)
	assert.Equal(t, 9, outcome.ProductID)
}

func TestReserveIsAllOrNothing(t *testing.T) {
	repo := newMemRepo(
		&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 10},
		&Product{ID: 2, Name: "Mouse", Price: price("10.00"), Stock: 1},
	)
	ledger := NewLedger(repo)

	outcome, err := ledger.Reserve(nil, []event.Item{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, ReserveInsufficientStock, outcome.Code)
	assert.Equal(t, 2, outcome.ProductID)

	// product 1 had enough, yet nothing may be decremented
	assert.Equal(t, 10, repo.stock(1))
	assert.Equal(t, 1, repo.stock(2))
}

func TestReserveSumsDuplicateProductLines(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 5})
	ledger := NewLedger(repo)

	// two lines of 3 demand 6 units, more than the 5 in stock
	outcome, err := ledger.Reserve(nil, []event.Item{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, ReserveInsufficientStock, outcome.Code)
	assert.Equal(t, 5, repo.stock(1))
}

func TestReserveDuplicateProductLinesWithinStock(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 6})
	ledger := NewLedger(repo)

	outcome, err := ledger.Reserve(nil, []event.Item{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, ReserveOK, outcome.Code)
	assert.Equal(t, 0, repo.stock(1))
}

func TestReleaseSumsDuplicateProductLines(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 0})
	ledger := NewLedger(repo)

	require.NoError(t, ledger.Release(nil, []event.Item{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	}))
	assert.Equal(t, 6, repo.stock(1))
}

func TestReleaseRestoresReservedStock(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 5})
	ledger := NewLedger(repo)

	items := []event.Item{{ProductID: 1, Quantity: 4}}
	outcome, err := ledger.Reserve(nil, items)
	require.NoError(t, err)
	require.Equal(t, ReserveOK, outcome.Code)

	require.NoError(t, ledger.Release(nil, items))
	assert.Equal(t, 5, repo.stock(1))
}

func TestReleaseUnknownProductFails(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 5})
	ledger := NewLedger(repo)

	err := ledger.Release(nil, []event.Item{
		{ProductID: 1, Quantity: 1},
		{ProductID: 9, Quantity: 1},
	})
	require.ErrorIs(t, err, ErrNotFound)
	// lock phase fails before any increment is applied
	assert.Equal(t, 5, repo.stock(1))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	repo := newMemRepo(&Product{ID: 1, Name: "Keyboard", Price: price("25.00"), Stock: 10})
	ledger := NewLedger(repo)

	// serialize as the row lock would
	var txMu sync.Mutex
	var wg sync.WaitGroup
	var ok int32
	results := make(chan ReserveCode, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txMu.Lock()
			defer txMu.Unlock()
			outcome, err := ledger.Reserve(nil, []event.Item{{ProductID: 1, Quantity: 1}})
			if err != nil {
				t.Error(err)
				return
			}
			results <- outcome.Code
		}()
	}
	wg.Wait()
	close(results)

	for code := range results {
		if code == ReserveOK {
			ok++
		}
	}
	assert.EqualValues(t, 10, ok)
	assert.Equal(t, 0, repo.stock(1))
}
