package violations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
)

type Repo struct{ DB *pgxpool.Pool }

// Record persists one anonymized violation row and returns its id.
// order_id hanya dipakai untuk cek eksistensi, tidak ikut disimpan, tidak ada
// identitas user di table violations.
func (r *Repo) Record(ctx context.Context, v orders.ViolationPayload) (string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, v.OrderID).Scan(&exists); err != nil {
		return "", err
	}
	if !exists {
		return "", orders.ErrNotFound
	}

	id := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO violations(id, violation_type, order_value, penalty_applied, retry_count)
		VALUES ($1, $2, $3, $4, $5)
	`, id, v.ViolationType, v.OrderValue, v.PenaltyApplied, v.RetryCount); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// MarkRefunded flags the purchase stats of a cancelled-after-paid order so the
// analytics side stops counting them as revenue.
func (r *Repo) MarkRefunded(ctx context.Context, orderID string) (int64, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE purchase_stats SET refunded=true WHERE order_id=$1 AND NOT refunded`, orderID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
