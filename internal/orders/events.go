package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
	EventViolation      = "PaymentViolation"
	EventWalletCredited = "WalletCredited"
)

// Violation types, emitted once per terminal violation.
const (
	ViolationUnderpaymentFinal = "UNDERPAYMENT_FINAL"
	ViolationLatePayment       = "LATE_PAYMENT"
	ViolationUserCancelLate    = "USER_CANCELLATION_LATE"
	ViolationTimeout           = "TIMEOUT"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`                  // payload spesifik
}

// ---- Payload tipe per event ----

type OrderCreatedPayload struct {
	OrderID    string          `json:"order_id"`
	ExternalID string          `json:"external_id"`
	UserID     string          `json:"user_id"`
	Currency   string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	WalletUsed decimal.Decimal `json:"wallet_used"`
	Deadline   time.Time       `json:"deadline"`
}

type OrderPaidPayload struct {
	OrderID    string          `json:"order_id"`
	Currency   string          `json:"currency"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	RetryCount int             `json:"retry_count"`
}

type OrderCancelledPayload struct {
	OrderID     string `json:"order_id"`
	FinalStatus Status `json:"final_status"`
	Actor       string `json:"actor,omitempty"` // user | system
	Reason      string `json:"reason,omitempty"`
	Refund      bool   `json:"refund"` // true untuk cancel-after-paid
}

// ViolationPayload is anonymized by construction: order_id is carried only so
// the recorder can check the order exists, it is never persisted with the row.
type ViolationPayload struct {
	OrderID        string          `json:"order_id"`
	ViolationType  string          `json:"violation_type"`
	OrderValue     decimal.Decimal `json:"order_value"`
	PenaltyApplied decimal.Decimal `json:"penalty_applied"`
	RetryCount     int             `json:"retry_count"`
}

type WalletCreditPayload struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"` // kelebihan bayar di atas toleransi
}
