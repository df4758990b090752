package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-crypto-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/payment"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/ratelimit"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/reconcile"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/redisx"
)

type CheckoutHandler struct {
	Repo     *orders.Repo
	Recon    *reconcile.Service
	Limiter  *ratelimit.Limiter
	Producer *kafkax.Producer // checkout.order.created
	Redis    *redis.Client
	Service  string
}

type CreateOrderReq struct {
	ExternalID string                `json:"external_id"`
	UserID     string                `json:"user_id"`
	Currency   string                `json:"currency"`
	WalletUsed decimal.Decimal       `json:"wallet_used"`
	Items      []orders.ItemInputSKU `json:"items"`
}

type CreateOrderResp struct {
	OrderID    string          `json:"order_id"`
	Total      decimal.Decimal `json:"total"`
	Status     orders.Status   `json:"status"`
	Deadline   time.Time       `json:"deadline"`
	Idempotent bool            `json:"idempotent"`
}

type PaymentReq struct {
	UserID     string           `json:"user_id"`
	Amount     decimal.Decimal  `json:"amount"`
	Currency   string           `json:"currency"`
	ObservedAt time.Time        `json:"observed_at"`
	Source     reconcile.Source `json:"source"` // webhook | poll
}

type CancelReq struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type StatusResp struct {
	Status orders.Status `json:"status"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/{id}/payments", h.recordPayment)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *CheckoutHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ExternalID == "" || req.UserID == "" || req.Currency == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if ok, err := h.Limiter.Allow(ctx, req.UserID, ratelimit.OpOrderCreate); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	} else if !ok {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "order_create rate limit exceeded"})
		return
	}

	orderID, total, existed, err := h.Repo.CreateOrderTx(ctx, req.ExternalID, req.UserID, req.Currency, req.WalletUsed, req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	status, err := h.Recon.OpenForPayment(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	o, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// idempotency shortcut di Redis (DB tetap jadi kebenaran)
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
	_ = h.Redis.Set(ctx, idemKey, orderID, redisx.TTLIdempotency).Err()
	h.invalidateStatus(ctx, orderID)

	if !existed {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderCreated,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       r.Header.Get("X-Request-Id"),
			CorrelationID: orderID,
		}
		ev.Payload = kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    orderID,
			ExternalID: req.ExternalID,
			UserID:     req.UserID,
			Currency:   req.Currency,
			Total:      total,
			WalletUsed: req.WalletUsed,
			Deadline:   o.PayDeadline,
		})
		h.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	writeJSON(w, http.StatusAccepted, CreateOrderResp{
		OrderID: orderID, Total: total, Status: status, Deadline: o.PayDeadline, Idempotent: existed,
	})
}

// recordPayment is the observation ingress. Webhook delivery is assumed
// already authenticated upstream; poll requests are user-triggered and kena
// rate limit payment_check.
func (h *CheckoutHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req PaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Currency == "" || req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	if req.ObservedAt.IsZero() {
		req.ObservedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if req.Source == reconcile.SourcePoll && req.UserID != "" {
		if ok, err := h.Limiter.Allow(ctx, req.UserID, ratelimit.OpPaymentCheck); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "payment_check rate limit exceeded"})
			return
		}
	}

	status, err := h.Recon.Reconcile(ctx, orderID, reconcile.Observation{
		Amount:     req.Amount,
		Currency:   req.Currency,
		ObservedAt: req.ObservedAt,
		Source:     req.Source,
	})
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	case errors.Is(err, payment.ErrCurrencyMismatch), errors.Is(err, payment.ErrMalformedAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.invalidateStatus(ctx, orderID)
	writeJSON(w, http.StatusOK, StatusResp{Status: status})
}

func (h *CheckoutHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req CancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Actor == "" {
		req.Actor = "user"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, err := h.Recon.RequestCancel(ctx, orderID, req.Actor, req.Reason)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	case errors.Is(err, orders.ErrTerminalState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "status": string(status)})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.invalidateStatus(ctx, orderID)
	writeJSON(w, http.StatusOK, StatusResp{Status: status})
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) fallback DB
	o, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	b := statusBody(o)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// statusBody is the one payload shape cached under KeyOrderStatus; hanya
// getOrder yang menulis key ini, jalur mutasi cuma invalidasi.
func statusBody(o orders.Order) []byte {
	b, _ := json.Marshal(map[string]any{
		"status":      o.Status,
		"total":       o.TotalPrice,
		"amount_paid": o.AmountPaid,
		"retry_count": o.RetryCount,
	})
	return b
}

func (h *CheckoutHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CheckoutHandler) invalidateStatus(ctx context.Context, orderID string) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Del(ctx, key).Err()
}
