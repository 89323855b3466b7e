package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusStockReserved},
		{StatusPending, StatusStockFailed},
		{StatusPending, StatusCanceled},
		{StatusStockReserved, StatusPaid},
		{StatusStockReserved, StatusPaymentFailed},
		{StatusStockReserved, StatusCanceled},
		{StatusPaid, StatusCompleted},
		{StatusPaid, StatusRefunded},
	}
	for _, tc := range allowed {
		assert.Truef(t, tc.from.CanTransition(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusPaid},
		{StatusStockFailed, StatusStockReserved},
		{StatusCanceled, StatusPaid},
		{StatusPaid, StatusPending},
		{StatusRefunded, StatusPaid},
		{StatusPaymentFailed, StatusPaid},
		{StatusCompleted, StatusRefunded},
	}
	for _, tc := range denied {
		assert.Falsef(t, tc.from.CanTransition(tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusStockFailed, StatusPaymentFailed, StatusCompleted, StatusCanceled, StatusRefunded} {
		assert.Truef(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusStockReserved, StatusPaid} {
		assert.Falsef(t, s.Terminal(), "%s should not be terminal", s)
	}
}
