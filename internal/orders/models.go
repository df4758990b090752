package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	SKU       string
	Name      string
	Currency  string // ticker, e.g. BTC
	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID         string
	ExternalID string
	UserID     string
	Status     Status // lihat status.go
	Currency   string
	TotalPrice decimal.Decimal
	AmountPaid decimal.Decimal // akumulasi lintas underpayment retry
	WalletUsed decimal.Decimal // kredit wallet dipakai saat checkout, <= TotalPrice
	RetryCount int
	// PayDeadline is the current payment deadline: the original checkout
	// window while AWAITING_PAYMENT, the shortened sub-deadline while
	// UNDERPAID_RETRY. Zero until the order is opened for payment.
	PayDeadline time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Owed: sisa tagihan yang masih harus dibayar.
func (o Order) Owed() decimal.Decimal {
	return o.TotalPrice.Sub(o.WalletUsed).Sub(o.AmountPaid)
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Qty       int
	Price     decimal.Decimal
}
