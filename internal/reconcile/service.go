// Package reconcile drives orders through the payment lifecycle: it classifies
// incoming observations, applies the resulting transition through the order
// store's CAS primitive, and emits violation / lifecycle events. At most one
// terminal transition lands per order no matter how many webhooks, polls, and
// sweepers race for it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-crypto-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/payment"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/redisx"
)

// casAttempts bounds the re-read-and-retry loop on ErrStaleTransition.
// Kalah race 3x berturut-turut praktis berarti order sudah final.
const casAttempts = 3

type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	ApplyTransition(ctx context.Context, t orders.Transition) error
}

// Publisher matches kafkax.Producer.Publish.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Deduper claims an observation key exactly once. Claim-first (bukan
// mark-after-success): webhook duplikat yang datang barengan tidak boleh
// dua-duanya masuk loop CAS, karena yang kalah race akan re-read state baru
// dan menaikkan retry_count sekali lagi untuk attempt yang sama.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Service struct {
	Store OrderStore
	Dedup Deduper
	Rules payment.Rules

	PPaid      Publisher // checkout.order.paid
	PCancelled Publisher // checkout.order.cancelled
	PViolation Publisher // checkout.violation
	PWallet    Publisher // checkout.wallet.credit

	MaxRetries    int           // underpayment second chances (default 2)
	PaymentWindow time.Duration // CREATED -> deadline awal
	RetryWindow   time.Duration // sub-deadline per underpayment retry
	CancelGrace   time.Duration // cancel bebas strike selama ini sejak created

	ServiceName string
	Now         func() time.Time // nil = time.Now
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// OpenForPayment moves a freshly checked-out order into AWAITING_PAYMENT and
// stamps its deadline. Idempotent: sudah terbuka -> balikin status apa adanya.
func (s *Service) OpenForPayment(ctx context.Context, orderID string) (orders.Status, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.Status != orders.StatusCreated {
		return o.Status, nil
	}
	deadline := s.now().Add(s.PaymentWindow)
	err = s.Store.ApplyTransition(ctx, orders.Transition{
		OrderID:        orderID,
		From:           orders.StatusCreated,
		To:             orders.StatusAwaitingPayment,
		FromRetryCount: 0,
		Deadline:       &deadline,
	})
	if errors.Is(err, orders.ErrStaleTransition) {
		o, gerr := s.Store.GetOrder(ctx, orderID)
		if gerr != nil {
			return "", gerr
		}
		return o.Status, nil
	}
	if err != nil {
		return "", err
	}
	return orders.StatusAwaitingPayment, nil
}

// Reconcile applies one payment observation to an order. Idempotent per
// observation hash; replays return the current status without side effects.
// Stale CAS losses are retried against a fresh read, bounded by casAttempts.
func (s *Service) Reconcile(ctx context.Context, orderID string, obs Observation) (orders.Status, error) {
	obsKey := fmt.Sprintf(redisx.KeyObservation, orderID, obs.Hash())
	claimed, err := s.Dedup.Claim(ctx, obsKey, redisx.TTLObservation)
	if err != nil {
		// dedup store down bukan replay: jangan bilang sukses ke pengirim,
		// biarkan delivery-nya di-retry
		return "", fmt.Errorf("claim observation for order %s: %w", orderID, err)
	}
	if !claimed {
		// replay: balikin status sekarang, tanpa side effect
		o, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return "", err
		}
		return o.Status, nil
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		o, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return "", err
		}

		// Order sudah settle: replay/duplicate dibuang diam-diam.
		switch o.Status {
		case orders.StatusPaid, orders.StatusPaidAwaitingShipment, orders.StatusFulfilled:
			log.Printf("reconcile: order=%s already %s, dropping observation", orderID, o.Status)
			return o.Status, nil
		}
		// Pembayaran nyasar setelah cancel: catat LATE_PAYMENT, jangan
		// pernah re-open order.
		if orders.Cancelled(o.Status) {
			log.Printf("reconcile: order=%s already %s, recording late payment", orderID, o.Status)
			pen, _ := payment.Penalty(o.TotalPrice, s.Rules.LatePenaltyPct)
			s.emitViolation(o, orders.ViolationLatePayment, pen)
			return o.Status, nil
		}
		if !orders.AwaitingPayment(o.Status) {
			return o.Status, fmt.Errorf("%w: order %s is %s, not payable", orders.ErrIllegalTransition, orderID, o.Status)
		}

		// PayDeadline di sini sudah deadline yang berlaku: window awal untuk
		// AWAITING_PAYMENT, sub-deadline untuk UNDERPAID_RETRY.
		res, err := s.Rules.Validate(obs.Amount, o.Owed(), obs.Currency, o.Currency, s.now(), o.PayDeadline)
		if err != nil {
			return o.Status, err // ValidationError: reject, no state change
		}

		t, after := s.plan(o, obs, res)
		err = s.Store.ApplyTransition(ctx, t)
		if errors.Is(err, orders.ErrStaleTransition) {
			continue // kalah race -> re-read
		}
		if err != nil {
			return o.Status, err
		}
		after()
		return t.To, nil
	}
	return "", orders.ErrStaleTransition
}

// plan maps a validation result onto the CAS transition plus the side effects
// to run once it lands.
func (s *Service) plan(o orders.Order, obs Observation, res payment.Result) (orders.Transition, func()) {
	t := orders.Transition{
		OrderID:        o.ID,
		From:           o.Status,
		FromRetryCount: o.RetryCount,
	}

	switch {
	case res.Paid():
		paid := o.AmountPaid.Add(obs.Amount)
		t.To = orders.StatusPaid
		t.AmountPaid = &paid
		excess := decimal.Zero
		if res == payment.ResultOverpayment {
			// di atas toleransi: kelebihan jadi kandidat wallet credit,
			// diselesaikan di luar core ini
			excess = obs.Amount.Sub(o.Owed())
		}
		return t, func() {
			s.emit(s.PPaid, orders.EventOrderPaid, o.ID, orders.OrderPaidPayload{
				OrderID: o.ID, Currency: o.Currency, AmountPaid: paid, RetryCount: o.RetryCount,
			})
			if excess.Sign() > 0 {
				s.emit(s.PWallet, orders.EventWalletCredited, o.ID, orders.WalletCreditPayload{
					OrderID: o.ID, UserID: o.UserID, Currency: o.Currency, Amount: excess,
				})
			}
		}

	case res == payment.ResultUnderpayment && o.RetryCount < s.MaxRetries:
		rc := o.RetryCount + 1
		paid := o.AmountPaid.Add(obs.Amount)
		dl := s.now().Add(s.RetryWindow)
		t.To = orders.StatusUnderpaidRetry
		t.RetryCount = &rc
		t.AmountPaid = &paid
		t.Deadline = &dl
		return t, func() {
			log.Printf("reconcile: order=%s underpaid, retry %d/%d, new deadline %s",
				o.ID, rc, s.MaxRetries, dl.Format(time.RFC3339))
		}

	case res == payment.ResultUnderpayment:
		// strike ketiga: final
		t.To = orders.StatusCancelledUnderpaidFinal
		pen, _ := payment.Penalty(o.TotalPrice, s.Rules.UnderpaymentPenaltyPct)
		return t, func() {
			s.emitViolation(o, orders.ViolationUnderpaymentFinal, pen)
			s.emitCancelled(o.ID, orders.StatusCancelledUnderpaidFinal, "system", "underpayment limit reached", false)
		}

	default: // payment.ResultExpired
		t.To = orders.StatusCancelledTimeout
		return t, func() {
			s.emitViolation(o, orders.ViolationTimeout, decimal.Zero)
			s.emitCancelled(o.ID, orders.StatusCancelledTimeout, "system", "payment deadline passed", false)
		}
	}
}

// RequestCancel handles a user/admin cancellation. Terminal orders reject with
// ErrTerminalState (beda dengan late payment yang dibuang diam-diam). Cancel
// di luar grace period tetap jalan tapi kena strike USER_CANCELLATION_LATE.
func (s *Service) RequestCancel(ctx context.Context, orderID, actor, reason string) (orders.Status, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		o, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return "", err
		}
		if orders.Terminal(o.Status) {
			return o.Status, fmt.Errorf("%w: %s", orders.ErrTerminalState, o.Status)
		}

		t := orders.Transition{
			OrderID:        orderID,
			From:           o.Status,
			FromRetryCount: o.RetryCount,
		}
		var after func()

		switch o.Status {
		case orders.StatusPaid, orders.StatusPaidAwaitingShipment:
			// refund path; analytics refund marking dikerjakan recorder
			t.To = orders.StatusCancelledAfterPaid
			after = func() { s.emitCancelled(orderID, t.To, actor, reason, true) }
		default:
			t.To = orders.StatusCancelledByUser
			late := s.now().After(o.CreatedAt.Add(s.CancelGrace))
			after = func() {
				if late {
					pen, _ := payment.Penalty(o.TotalPrice, s.Rules.LatePenaltyPct)
					s.emitViolation(o, orders.ViolationUserCancelLate, pen)
				}
				s.emitCancelled(orderID, t.To, actor, reason, false)
			}
		}

		err = s.Store.ApplyTransition(ctx, t)
		if errors.Is(err, orders.ErrStaleTransition) {
			continue
		}
		if err != nil {
			return o.Status, err
		}
		after()
		return t.To, nil
	}
	return "", orders.ErrStaleTransition
}

// CheckTimeout expires an overdue order through the same CAS path as webhook
// triggers, so it cannot race past a payment being accepted concurrently.
// Aman dipanggil berulang: sudah lewat dari AWAITING/RETRY -> no-op.
func (s *Service) CheckTimeout(ctx context.Context, orderID string) (orders.Status, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		o, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return "", err
		}
		if !orders.AwaitingPayment(o.Status) {
			return o.Status, nil
		}
		if o.PayDeadline.IsZero() || !s.now().After(o.PayDeadline) {
			return o.Status, nil
		}

		err = s.Store.ApplyTransition(ctx, orders.Transition{
			OrderID:        orderID,
			From:           o.Status,
			To:             orders.StatusCancelledTimeout,
			FromRetryCount: o.RetryCount,
		})
		if errors.Is(err, orders.ErrStaleTransition) {
			continue
		}
		if err != nil {
			return o.Status, err
		}
		s.emitViolation(o, orders.ViolationTimeout, decimal.Zero)
		s.emitCancelled(orderID, orders.StatusCancelledTimeout, "system", "payment deadline passed", false)
		return orders.StatusCancelledTimeout, nil
	}
	return "", orders.ErrStaleTransition
}

func (s *Service) emitViolation(o orders.Order, vtype string, penalty decimal.Decimal) {
	s.emit(s.PViolation, orders.EventViolation, o.ID, orders.ViolationPayload{
		OrderID:        o.ID,
		ViolationType:  vtype,
		OrderValue:     o.TotalPrice,
		PenaltyApplied: penalty,
		RetryCount:     o.RetryCount,
	})
}

func (s *Service) emitCancelled(orderID string, final orders.Status, actor, reason string, refund bool) {
	s.emit(s.PCancelled, orders.EventOrderCancelled, orderID, orders.OrderCancelledPayload{
		OrderID: orderID, FinalStatus: final, Actor: actor, Reason: reason, Refund: refund,
	})
}

func (s *Service) emit(p Publisher, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
