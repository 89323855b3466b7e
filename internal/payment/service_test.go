package payment

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

type fakeRunner struct{}

func (fakeRunner) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	return fc(nil)
}

type memRepo struct {
	mu       sync.Mutex
	nextID   int
	payments map[int]*Payment // by order id
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, payments: map[int]*Payment{}}
}

func (r *memRepo) Create(tx *gorm.DB, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	cp := *p
	r.payments[p.OrderID] = &cp
	return nil
}

func (r *memRepo) Save(tx *gorm.DB, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.OrderID] = &cp
	return nil
}

func (r *memRepo) ExistsByOrderID(tx *gorm.DB, orderID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.payments[orderID]
	return ok, nil
}

func (r *memRepo) FindByOrderIDForUpdate(tx *gorm.DB, orderID int) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) FindByOrderID(ctx context.Context, orderID int) (*Payment, error) {
	return r.FindByOrderIDForUpdate(nil, orderID)
}

type memSink struct {
	events []event.Payload
}

func (s *memSink) Record(tx *gorm.DB, aggregateType, aggregateID string, p event.Payload) error {
	s.events = append(s.events, p)
	return nil
}

type scriptedGateway struct {
	ok     bool
	reason string
	err    error
	calls  int
}

func (g *scriptedGateway) Authorize(ctx context.Context, orderID int, amount decimal.Decimal) (bool, string, error) {
	g.calls++
	return g.ok, g.reason, g.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestService(gw *scriptedGateway) (*Service, *memRepo, *memSink) {
	repo := newMemRepo()
	sink := &memSink{}
	svc := NewService(fakeRunner{}, repo, gw, sink, testLogger())
	return svc, repo, sink
}

func authorize(orderID int, amount string) event.PaymentAuthorize {
	return event.PaymentAuthorize{
		EventID: event.NewID(),
		OrderID: orderID,
		Amount:  decimal.RequireFromString(amount),
	}
}

func TestHandlePaymentAuthorizeSuccess(t *testing.T) {
	svc, repo, sink := newTestService(&scriptedGateway{ok: true})

	err := svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00"))
	require.NoError(t, err)

	p, err := repo.FindByOrderID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	assert.Equal(t, MethodCardPayment, p.Method)
	assert.Nil(t, p.FailReason)

	require.Len(t, sink.events, 1)
	evt, ok := sink.events[0].(event.PaymentAuthorizeSucceeded)
	require.True(t, ok)
	assert.Equal(t, 7, evt.OrderID)
	assert.Equal(t, p.ID, evt.PaymentID)
	assert.True(t, evt.Amount.Equal(decimal.RequireFromString("120.00")))
}

func TestHandlePaymentAuthorizeDeclined(t *testing.T) {
	svc, repo, sink := newTestService(&scriptedGateway{ok: false, reason: "Payment declined by gateway"})

	err := svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00"))
	require.NoError(t, err)

	p, err := repo.FindByOrderID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	require.NotNil(t, p.FailReason)
	assert.Equal(t, "Payment declined by gateway", *p.FailReason)

	require.Len(t, sink.events, 1)
	evt, ok := sink.events[0].(event.PaymentAuthorizeFailed)
	require.True(t, ok)
	assert.Equal(t, "Payment declined by gateway", evt.Reason)
}

func TestHandlePaymentAuthorizeDuplicateIsNoop(t *testing.T) {
	gw := &scriptedGateway{ok: true}
	svc, _, sink := newTestService(gw)

	require.NoError(t, svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00")))
	require.NoError(t, svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00")))

	// the order is charged once, one outcome event
	assert.Equal(t, 1, gw.calls)
	assert.Len(t, sink.events, 1)
}

func TestHandlePaymentAuthorizeGatewayError(t *testing.T) {
	svc, repo, sink := newTestService(&scriptedGateway{err: context.DeadlineExceeded})

	err := svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00"))
	assert.Error(t, err)

	// transport error: nothing recorded, message stays uncommitted for retry
	_, err = repo.FindByOrderID(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, sink.events)
}

func TestRefundPaidPayment(t *testing.T) {
	svc, repo, sink := newTestService(&scriptedGateway{ok: true})
	require.NoError(t, svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00")))

	p, err := svc.Refund(context.Background(), 7, "Damaged item")
	require.NoError(t, err)
	assert.Equal(t, StatusRefund, p.Status)

	stored, _ := repo.FindByOrderID(context.Background(), 7)
	assert.Equal(t, StatusRefund, stored.Status)

	require.Len(t, sink.events, 2)
	evt, ok := sink.events[1].(event.PaymentRefunded)
	require.True(t, ok)
	assert.Equal(t, 7, evt.OrderID)
	assert.Equal(t, "Damaged item", evt.Reason)
	assert.True(t, evt.Amount.Equal(decimal.RequireFromString("120.00")))
}

func TestRefundRejectsNonPaidPayment(t *testing.T) {
	svc, _, sink := newTestService(&scriptedGateway{ok: false, reason: "Payment declined by gateway"})
	require.NoError(t, svc.HandlePaymentAuthorize(context.Background(), nil, authorize(7, "120.00")))

	_, err := svc.Refund(context.Background(), 7, "whatever")
	assert.Error(t, err)
	assert.Len(t, sink.events, 1)
}

func TestRefundUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(&scriptedGateway{})

	_, err := svc.Refund(context.Background(), 404, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
