package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ItemInputSKU struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type Repo struct{ DB *pgxpool.Pool }

// Transition is a compare-and-swap request against one order row. The WHERE
// clause matches both the prior status and the prior retry_count, so two
// concurrent UNDERPAID_RETRY -> UNDERPAID_RETRY attempts can never both land.
type Transition struct {
	OrderID        string
	From, To       Status
	FromRetryCount int

	// optional field updates, applied atomically with the status change
	RetryCount *int
	AmountPaid *decimal.Decimal
	Deadline   *time.Time
}

// CreateOrderTx: idempotent via external_id.
// - jika external_id sudah ada -> return existing order_id + total (existed=true).
// Harga diambil dari table products (hindari trust dari client), wallet credit
// divalidasi terhadap invariant wallet_used <= total_price.
func (r *Repo) CreateOrderTx(ctx context.Context, externalID, userID, currency string, walletUsed decimal.Decimal, items []ItemInputSKU) (orderID string, total decimal.Decimal, existed bool, err error) {
	// cek existing by external_id
	row := r.DB.QueryRow(ctx, `SELECT id, total_price FROM orders WHERE external_id=$1`, externalID)
	if err = row.Scan(&orderID, &total); err == nil {
		return orderID, total, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", decimal.Zero, false, err
	}

	if walletUsed.IsNegative() {
		return "", decimal.Zero, false, fmt.Errorf("negative wallet credit")
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", decimal.Zero, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ambil id & price dari sku
	skus := make([]any, 0, len(items))
	params := ""
	for i, it := range items {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		skus = append(skus, it.SKU)
	}
	rows, err := tx.Query(ctx, `SELECT id, sku, currency, price FROM products WHERE sku IN (`+params+`)`, skus...)
	if err != nil {
		return "", decimal.Zero, false, err
	}
	type pp struct {
		id, sku, currency string
		price             decimal.Decimal
	}
	bySKU := map[string]pp{}
	for rows.Next() {
		var p pp
		if err := rows.Scan(&p.id, &p.sku, &p.currency, &p.price); err != nil {
			return "", decimal.Zero, false, err
		}
		bySKU[p.sku] = p
	}
	if err := rows.Err(); err != nil {
		return "", decimal.Zero, false, err
	}

	total = decimal.Zero
	for _, it := range items {
		p, ok := bySKU[it.SKU]
		if !ok {
			return "", decimal.Zero, false, fmt.Errorf("product not found: sku=%s", it.SKU)
		}
		if p.currency != currency {
			return "", decimal.Zero, false, fmt.Errorf("sku=%s priced in %s, order currency %s", it.SKU, p.currency, currency)
		}
		if it.Qty <= 0 {
			return "", decimal.Zero, false, fmt.Errorf("invalid qty for sku=%s", it.SKU)
		}
		total = total.Add(p.price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}

	if walletUsed.GreaterThan(total) {
		return "", decimal.Zero, false, fmt.Errorf("wallet credit %s exceeds order total %s", walletUsed, total)
	}

	orderID = uuid.NewString()
	if _, err = tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, status, currency, total_price, amount_paid, wallet_used, retry_count)
		VALUES ($1, $2, $3, 'CREATED', $4, $5, 0, $6, 0)
	`, orderID, externalID, userID, currency, total, walletUsed); err != nil {
		return "", decimal.Zero, false, err
	}
	for _, it := range items {
		p := bySKU[it.SKU]
		if _, err = tx.Exec(ctx, `INSERT INTO order_items(order_id, product_id, qty, price)
		                          VALUES ($1,$2,$3,$4)`, orderID, p.id, it.Qty, p.price); err != nil {
			return "", decimal.Zero, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", decimal.Zero, false, err
	}
	return orderID, total, false, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var status string
	var deadline *time.Time
	err := r.DB.QueryRow(ctx, `
		SELECT id, external_id, user_id, status, currency, total_price, amount_paid,
		       wallet_used, retry_count, pay_deadline, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.ExternalID, &o.UserID, &status, &o.Currency, &o.TotalPrice,
			&o.AmountPaid, &o.WalletUsed, &o.RetryCount, &deadline, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if deadline != nil {
		o.PayDeadline = *deadline
	}
	return o, nil
}

// ApplyTransition applies t as a single CAS UPDATE. Returns
// ErrIllegalTransition for moves outside the validNext table,
// ErrStaleTransition when the row has moved on since it was read, and
// ErrNotFound when the order id does not exist.
func (r *Repo) ApplyTransition(ctx context.Context, t Transition) error {
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.From, t.To)
	}

	set := "status=$1, updated_at=now()"
	args := []any{string(t.To)}
	n := 2
	if t.RetryCount != nil {
		set += fmt.Sprintf(", retry_count=$%d", n)
		args = append(args, *t.RetryCount)
		n++
	}
	if t.AmountPaid != nil {
		set += fmt.Sprintf(", amount_paid=$%d", n)
		args = append(args, *t.AmountPaid)
		n++
	}
	if t.Deadline != nil {
		set += fmt.Sprintf(", pay_deadline=$%d", n)
		args = append(args, *t.Deadline)
		n++
	}
	sql := fmt.Sprintf(`UPDATE orders SET %s WHERE id=$%d AND status=$%d AND retry_count=$%d`, set, n, n+1, n+2)
	args = append(args, t.OrderID, string(t.From), t.FromRetryCount)

	ct, err := r.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// 0 rows: bedakan stale vs not found
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, t.OrderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleTransition
}

// ListExpired returns ids of payable orders whose deadline has passed.
// Dipakai sweeper; transisinya sendiri tetap lewat jalur CAS.
func (r *Repo) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status IN ('AWAITING_PAYMENT','UNDERPAID_RETRY') AND pay_deadline < $1
		ORDER BY pay_deadline
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, currency, price, created_at, updated_at
                                FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Currency, &p.Price, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
