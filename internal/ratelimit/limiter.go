// Package ratelimit gates how often a user may trigger checkout and payment
// actions. Fixed windows per (user, operation); counters live in an injected
// store so prod uses Redis and tests use memory. Counter loss on restart is
// an accepted trade-off, never a money-correctness hazard.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Operation string

const (
	OpOrderCreate      Operation = "order_create"
	OpPaymentCheck     Operation = "payment_check"
	OpWalletTopup      Operation = "wallet_topup"
	OpCartCheckout     Operation = "cart_checkout"
	OpAnnouncementSend Operation = "announcement_send"
)

// Operations lists every known kind; New menolak konfigurasi yang bolong
// supaya limit yang hilang ketahuan saat startup, bukan saat request.
var Operations = []Operation{
	OpOrderCreate, OpPaymentCheck, OpWalletTopup, OpCartCheckout, OpAnnouncementSend,
}

type Rule struct {
	Max    int64
	Window time.Duration
}

// CounterStore increments the counter behind key and returns the new count.
// A window that has elapsed counts as a fresh counter starting at 1.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Limiter struct {
	store CounterStore
	rules map[Operation]Rule
}

func New(store CounterStore, rules map[Operation]Rule) (*Limiter, error) {
	for _, op := range Operations {
		r, ok := rules[op]
		if !ok {
			return nil, fmt.Errorf("ratelimit: no rule configured for %q", op)
		}
		if r.Max <= 0 || r.Window <= 0 {
			return nil, fmt.Errorf("ratelimit: invalid rule for %q: max=%d window=%s", op, r.Max, r.Window)
		}
	}
	return &Limiter{store: store, rules: rules}, nil
}

// Allow increments the (userID, op) counter and reports whether the call is
// within the configured max. Counters per kind independen: menghabiskan
// payment_check tidak pernah memblokir order_create.
func (l *Limiter) Allow(ctx context.Context, userID string, op Operation) (bool, error) {
	rule := l.rules[op]
	key := string(op) + ":" + userID
	n, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		return false, err
	}
	return n <= rule.Max, nil
}
