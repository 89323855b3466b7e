package order

type Status string

const (
	StatusPending        Status = "PENDING"         // just created, waiting for stock reservation
	StatusStockReserved  Status = "STOCK_RESERVED"  // inventory confirmed stock
	StatusStockFailed    Status = "STOCK_FAILED"    // reservation failed, terminal
	StatusPaymentPending Status = "PAYMENT_PENDING" // kept for compatibility, no saga edge uses it
	StatusPaid           Status = "PAID"            // payment authorized
	StatusPaymentFailed  Status = "PAYMENT_FAILED"  // payment declined, terminal
	StatusCompleted      Status = "COMPLETED"       // fulfilled, terminal
	StatusCanceled       Status = "CANCELED"        // canceled by user or system, terminal
	StatusRefunded       Status = "REFUNDED"        // payment refunded, terminal
)

// transitions are the only legal status edges. Handlers never write a status
// outside this table.
var transitions = map[Status][]Status{
	StatusPending:       {StatusStockReserved, StatusStockFailed, StatusCanceled},
	StatusStockReserved: {StatusPaid, StatusPaymentFailed, StatusCanceled},
	StatusPaid:          {StatusCompleted, StatusRefunded},
}

func (s Status) CanTransition(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
