package payment

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway authorizes a charge. ok=false with a reason is a declined payment,
// not an error; err is reserved for transport-level failures.
type Gateway interface {
	Authorize(ctx context.Context, orderID int, amount decimal.Decimal) (ok bool, reason string, err error)
}

// Simulator stands in for a real payment provider. Charges strictly above
// the ceiling are always declined; the rest succeed at successRate after a
// short randomized processing delay. roll and sleep are injectable for
// tests.
type Simulator struct {
	ceiling     decimal.Decimal
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration

	roll  func() float64
	sleep func(context.Context, time.Duration)
}

func NewSimulator() *Simulator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Simulator{
		ceiling:     decimal.NewFromInt(10000),
		successRate: 0.8,
		minDelay:    100 * time.Millisecond,
		maxDelay:    500 * time.Millisecond,
		roll:        rng.Float64,
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
}

func (s *Simulator) Authorize(ctx context.Context, orderID int, amount decimal.Decimal) (bool, string, error) {
	delay := s.minDelay + time.Duration(s.roll()*float64(s.maxDelay-s.minDelay))
	s.sleep(ctx, delay)
	if err := ctx.Err(); err != nil {
		return false, "", err
	}

	if amount.GreaterThan(s.ceiling) {
		return false, "Amount exceeds the allowed limit", nil
	}
	if s.roll() >= s.successRate {
		return false, "Payment declined by gateway", nil
	}
	return true, "", nil
}
