package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusCreated, StatusAwaitingPayment},
		{StatusCreated, StatusCancelledByUser},
		{StatusAwaitingPayment, StatusPaid},
		{StatusAwaitingPayment, StatusUnderpaidRetry},
		{StatusAwaitingPayment, StatusCancelledTimeout},
		{StatusAwaitingPayment, StatusCancelledByUser},
		{StatusAwaitingPayment, StatusCancelledUnderpaidFinal},
		{StatusUnderpaidRetry, StatusPaid},
		{StatusUnderpaidRetry, StatusUnderpaidRetry}, // retry berikutnya
		{StatusUnderpaidRetry, StatusCancelledTimeout},
		{StatusUnderpaidRetry, StatusCancelledUnderpaidFinal},
		{StatusPaid, StatusPaidAwaitingShipment},
		{StatusPaid, StatusCancelledAfterPaid},
		{StatusPaidAwaitingShipment, StatusFulfilled},
		{StatusPaidAwaitingShipment, StatusCancelledAfterPaid},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s should be legal", tr.from, tr.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusCreated, StatusPaid},                      // belum dibuka untuk payment
		{StatusPaid, StatusAwaitingPayment},              // uang masuk tidak bisa mundur
		{StatusCancelledTimeout, StatusAwaitingPayment},  // cancel tidak pernah re-open
		{StatusCancelledTimeout, StatusPaid},             // late payment tidak diterapkan
		{StatusCancelledUnderpaidFinal, StatusPaid},
		{StatusFulfilled, StatusCancelledAfterPaid},   // sudah final
		{StatusAwaitingPayment, StatusFulfilled},      // harus lewat PAID
		{StatusUnderpaidRetry, StatusAwaitingPayment}, // retry loop ke dirinya sendiri
		{StatusAwaitingPayment, StatusCancelledAfterPaid},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s should be illegal", tr.from, tr.to)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{
		StatusFulfilled, StatusCancelledTimeout, StatusCancelledByUser,
		StatusCancelledUnderpaidFinal, StatusCancelledAfterPaid,
	} {
		assert.True(t, Terminal(s), "%s should be terminal", s)
	}
	for _, s := range []Status{
		StatusCreated, StatusAwaitingPayment, StatusUnderpaidRetry,
		StatusPaid, StatusPaidAwaitingShipment,
	} {
		assert.False(t, Terminal(s), "%s should not be terminal", s)
	}
	assert.False(t, Terminal(Status("BOGUS")), "unknown status is not terminal")
}

func TestCancelled(t *testing.T) {
	assert.True(t, Cancelled(StatusCancelledTimeout))
	assert.True(t, Cancelled(StatusCancelledByUser))
	assert.True(t, Cancelled(StatusCancelledUnderpaidFinal))
	assert.True(t, Cancelled(StatusCancelledAfterPaid))
	assert.False(t, Cancelled(StatusFulfilled))
	assert.False(t, Cancelled(StatusPaid))
}

func TestAwaitingPayment(t *testing.T) {
	assert.True(t, AwaitingPayment(StatusAwaitingPayment))
	assert.True(t, AwaitingPayment(StatusUnderpaidRetry))
	assert.False(t, AwaitingPayment(StatusCreated))
	assert.False(t, AwaitingPayment(StatusPaid))
}
