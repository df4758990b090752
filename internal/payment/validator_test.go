package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() Rules {
	return Rules{
		TolerancePct:           decimal.RequireFromString("0.1"),
		UnderpaymentPenaltyPct: decimal.RequireFromString("5"),
		LatePenaltyPct:         decimal.RequireFromString("5"),
	}
}

func TestValidateClassification(t *testing.T) {
	rules := testRules()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Hour)

	cases := []struct {
		name     string
		paid     string
		required string
		want     Result
	}{
		{"exact", "1.00000000", "1.00000000", ResultExact},
		{"exact large", "250000", "250000", ResultExact},
		{"minor overpayment inside tolerance", "100.05", "100", ResultMinorOverpayment},
		{"tolerance boundary is inclusive", "100.1", "100", ResultMinorOverpayment},
		{"just above tolerance", "100.100001", "100", ResultOverpayment},
		{"overpayment", "105", "100", ResultOverpayment},
		{"double paid", "2", "1", ResultOverpayment},
		{"underpayment", "0.5", "1", ResultUnderpayment},
		{"one base unit short of 8-decimal asset", "0.99999999", "1.00000000", ResultUnderpayment},
		{"no dead zone below zero", "99.9999", "100", ResultUnderpayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rules.Validate(
				decimal.RequireFromString(tc.paid),
				decimal.RequireFromString(tc.required),
				"BTC", "BTC", now, deadline)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestValidateExpiry(t *testing.T) {
	rules := testRules()
	deadline := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("past deadline wins regardless of amount", func(t *testing.T) {
		res, err := rules.Validate(
			decimal.RequireFromString("100"), decimal.RequireFromString("100"),
			"BTC", "BTC", deadline.Add(time.Second), deadline)
		require.NoError(t, err)
		assert.Equal(t, ResultExpired, res)
	})

	t.Run("exactly at deadline still counts", func(t *testing.T) {
		res, err := rules.Validate(
			decimal.RequireFromString("100"), decimal.RequireFromString("100"),
			"BTC", "BTC", deadline, deadline)
		require.NoError(t, err)
		assert.Equal(t, ResultExact, res)
	})

	t.Run("zero deadline skips expiry check", func(t *testing.T) {
		res, err := rules.Validate(
			decimal.RequireFromString("100"), decimal.RequireFromString("100"),
			"BTC", "BTC", deadline.Add(time.Hour), time.Time{})
		require.NoError(t, err)
		assert.Equal(t, ResultExact, res)
	})
}

func TestValidateRejections(t *testing.T) {
	rules := testRules()
	now := time.Now()
	deadline := now.Add(time.Hour)

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := rules.Validate(
			decimal.RequireFromString("1"), decimal.RequireFromString("1"),
			"LTC", "BTC", now, deadline)
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("negative paid amount", func(t *testing.T) {
		_, err := rules.Validate(
			decimal.RequireFromString("-1"), decimal.RequireFromString("1"),
			"BTC", "BTC", now, deadline)
		assert.ErrorIs(t, err, ErrMalformedAmount)
	})

	t.Run("zero required amount", func(t *testing.T) {
		_, err := rules.Validate(
			decimal.RequireFromString("1"), decimal.Zero,
			"BTC", "BTC", now, deadline)
		assert.ErrorIs(t, err, ErrMalformedAmount)
	})
}

func TestResultPaid(t *testing.T) {
	assert.True(t, ResultExact.Paid())
	assert.True(t, ResultMinorOverpayment.Paid())
	assert.True(t, ResultOverpayment.Paid())
	assert.False(t, ResultUnderpayment.Paid())
	assert.False(t, ResultExpired.Paid())
}

func TestPenalty(t *testing.T) {
	cases := []struct {
		name        string
		value       string
		pct         string
		wantPenalty string
		wantNet     string
	}{
		{"whole", "100", "5", "5", "95"},
		{"cents", "45", "5", "2.25", "42.75"},
		{"sub-cent rounds down to zero, customer keeps it", "0.01", "5", "0", "0.01"},
		{"truncates, never rounds up", "10.99", "5", "0.54", "10.45"},
		{"zero percent", "100", "0", "0", "100"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pen, net := Penalty(decimal.RequireFromString(tc.value), decimal.RequireFromString(tc.pct))
			assert.True(t, pen.Equal(decimal.RequireFromString(tc.wantPenalty)),
				"penalty = %s, want %s", pen, tc.wantPenalty)
			assert.True(t, net.Equal(decimal.RequireFromString(tc.wantNet)),
				"net = %s, want %s", net, tc.wantNet)
		})
	}
}

func TestPenaltyNeverExceedsValue(t *testing.T) {
	pen, net := Penalty(decimal.RequireFromString("10"), decimal.RequireFromString("150"))
	assert.True(t, pen.Equal(decimal.RequireFromString("10")))
	assert.True(t, net.IsZero())
}
