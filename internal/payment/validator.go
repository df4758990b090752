// Package payment classifies observed payment amounts against what an order
// requires. Pure functions over shopspring decimals: no state, no I/O, full
// precision down to one base unit of an 8-decimal asset.
package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Result string

const (
	ResultExact            Result = "EXACT"
	ResultMinorOverpayment Result = "MINOR_OVERPAYMENT"
	ResultOverpayment      Result = "OVERPAYMENT"
	ResultUnderpayment     Result = "UNDERPAYMENT"
	ResultExpired          Result = "EXPIRED"
)

// Paid reports whether the result settles the order in full.
func (r Result) Paid() bool {
	return r == ResultExact || r == ResultMinorOverpayment || r == ResultOverpayment
}

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrMalformedAmount  = errors.New("malformed amount")
)

var hundred = decimal.NewFromInt(100)

// Rules holds the configured percentages. TolerancePct is the band above the
// required amount still treated as paid-in-full (default 0.1).
type Rules struct {
	TolerancePct           decimal.Decimal
	UnderpaymentPenaltyPct decimal.Decimal
	LatePenaltyPct         decimal.Decimal
}

// Validate classifies paid vs required against the given deadline.
// Precedence: expiry dulu (deadline-specific; caller kirim sub-deadline saat
// evaluasi retry window), lalu banding diff_pct terhadap toleransi. Batas
// toleransi inklusif di sisi overpayment: paid == required*(1+tol) masih
// MINOR_OVERPAYMENT.
func (r Rules) Validate(paid, required decimal.Decimal, currencyPaid, currencyRequired string, now, deadline time.Time) (Result, error) {
	if currencyPaid != currencyRequired {
		return "", fmt.Errorf("%w: paid %s, required %s", ErrCurrencyMismatch, currencyPaid, currencyRequired)
	}
	if paid.IsNegative() {
		return "", fmt.Errorf("%w: negative paid amount %s", ErrMalformedAmount, paid)
	}
	if required.Sign() <= 0 {
		return "", fmt.Errorf("%w: required amount %s", ErrMalformedAmount, required)
	}

	if !deadline.IsZero() && now.After(deadline) {
		return ResultExpired, nil
	}

	diffPct := paid.Sub(required).Div(required)
	tol := r.TolerancePct.Div(hundred)

	switch {
	case diffPct.IsZero():
		return ResultExact, nil
	case diffPct.Sign() > 0 && diffPct.Cmp(tol) <= 0:
		return ResultMinorOverpayment, nil
	case diffPct.Cmp(tol) > 0:
		return ResultOverpayment, nil
	default:
		// setiap kekurangan, sekecil apa pun
		return ResultUnderpayment, nil
	}
}

// Penalty splits orderValue into (penalty, net) at penaltyPct percent.
// The penalty is truncated to 2 decimal places, never rounded up: a computed
// penalty below one cent collapses to 0.00 and the customer keeps the full
// amount. Behaviour tests pin this down, do not "fix" it.
func Penalty(orderValue, penaltyPct decimal.Decimal) (penalty, net decimal.Decimal) {
	penalty = orderValue.Mul(penaltyPct).Div(hundred).Truncate(2)
	if penalty.IsNegative() {
		penalty = decimal.Zero
	}
	if penalty.GreaterThan(orderValue) {
		penalty = orderValue
	}
	return penalty, orderValue.Sub(penalty)
}
