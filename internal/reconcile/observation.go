package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
)

// Observation is one payment signal for an order: a webhook callback or a
// polled balance reading. Ephemeral, consumed once per reconciliation
// attempt, deduplicated by content hash.
type Observation struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	ObservedAt time.Time       `json:"observed_at"`
	Source     Source          `json:"source"`
}

// Hash keys the dedup entry. Dua webhook duplikat menghasilkan hash sama;
// pembayaran kedua yang sah (amount/timestamp beda) menghasilkan hash baru.
func (o Observation) Hash() string {
	h := sha256.New()
	h.Write([]byte(o.Amount.String()))
	h.Write([]byte{0})
	h.Write([]byte(o.Currency))
	h.Write([]byte{0})
	h.Write([]byte(o.ObservedAt.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(o.Source))
	return hex.EncodeToString(h.Sum(nil))
}
