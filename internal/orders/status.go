package orders

type Status string

const (
	StatusCreated              Status = "CREATED"
	StatusAwaitingPayment      Status = "AWAITING_PAYMENT"
	StatusUnderpaidRetry       Status = "UNDERPAID_RETRY"
	StatusPaid                 Status = "PAID"
	StatusPaidAwaitingShipment Status = "PAID_AWAITING_SHIPMENT"
	StatusFulfilled            Status = "FULFILLED"

	StatusCancelledTimeout        Status = "CANCELLED_TIMEOUT"
	StatusCancelledByUser         Status = "CANCELLED_BY_USER"
	StatusCancelledUnderpaidFinal Status = "CANCELLED_UNDERPAID_FINAL"
	StatusCancelledAfterPaid      Status = "CANCELLED_AFTER_PAID"
)

// validNext: satu-satunya sumber kebenaran transisi legal.
// UNDERPAID_RETRY boleh loop ke dirinya sendiri (retry berikutnya).
var validNext = map[Status]map[Status]bool{
	StatusCreated: {
		StatusAwaitingPayment: true,
		StatusCancelledByUser: true,
	},
	StatusAwaitingPayment: {
		StatusPaid:                    true,
		StatusUnderpaidRetry:          true,
		StatusCancelledTimeout:        true,
		StatusCancelledByUser:         true,
		StatusCancelledUnderpaidFinal: true,
	},
	StatusUnderpaidRetry: {
		StatusPaid:                    true,
		StatusUnderpaidRetry:          true,
		StatusCancelledTimeout:        true,
		StatusCancelledByUser:         true,
		StatusCancelledUnderpaidFinal: true,
	},
	StatusPaid: {
		StatusPaidAwaitingShipment: true,
		StatusCancelledAfterPaid:   true,
	},
	StatusPaidAwaitingShipment: {
		StatusFulfilled:          true,
		StatusCancelledAfterPaid: true,
	},
	StatusFulfilled:               {},
	StatusCancelledTimeout:        {},
	StatusCancelledByUser:         {},
	StatusCancelledUnderpaidFinal: {},
	StatusCancelledAfterPaid:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal: tidak ada transisi keluar lagi.
func Terminal(s Status) bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// Cancelled reports whether s is a cancellation outcome (any flavour).
func Cancelled(s Status) bool {
	switch s {
	case StatusCancelledTimeout, StatusCancelledByUser,
		StatusCancelledUnderpaidFinal, StatusCancelledAfterPaid:
		return true
	}
	return false
}

// AwaitingPayment reports whether s accepts payment observations.
func AwaitingPayment(s Status) bool {
	return s == StatusAwaitingPayment || s == StatusUnderpaidRetry
}
