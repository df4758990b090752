package httpx

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
)

// GET /orders/{id} punya satu bentuk payload, baik dari cache maupun DB:
// statusBody satu-satunya penulis key status cache.
func TestStatusBodyShape(t *testing.T) {
	o := orders.Order{
		ID:         "o1",
		Status:     orders.StatusUnderpaidRetry,
		TotalPrice: decimal.RequireFromString("1.5"),
		AmountPaid: decimal.RequireFromString("0.4"),
		RetryCount: 1,
	}

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(statusBody(o), &got))
	assert.Len(t, got, 4)
	for _, k := range []string{"status", "total", "amount_paid", "retry_count"} {
		assert.Contains(t, got, k)
	}

	var status string
	require.NoError(t, json.Unmarshal(got["status"], &status))
	assert.Equal(t, string(orders.StatusUnderpaidRetry), status)
}
