// Package violations is the recorder side of the violation sink: it consumes
// terminal violation events and cancellation events off Kafka and persists
// anonymized statistics. Consumer of the lifecycle, never a mutator of orders.
package violations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-crypto-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/redisx"
)

type Service struct {
	Repo        *Repo
	Redis       *redis.Client
	ServiceName string
}

// HandleViolation: dipasang sebagai handler consumer topic checkout.violation.
func (s *Service) HandleViolation(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventViolation {
		return nil
	} // ignore

	// dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, "recorder", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.ViolationPayload](env.Payload)
	if err != nil {
		return err
	}

	id, err := s.Repo.Record(ctx, p)
	if errors.Is(err, orders.ErrNotFound) {
		// jangan bikin consumer loop mati gara-gara order hilang
		log.Printf("violations: order %s not found, dropping %s", p.OrderID, p.ViolationType)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("violations: recorded %s id=%s value=%s penalty=%s retries=%d",
		p.ViolationType, id, p.OrderValue, p.PenaltyApplied, p.RetryCount)
	return nil
}

// HandleCancelled marks refunds for cancel-after-paid events.
func (s *Service) HandleCancelled(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCancelled {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "recorder", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}
	if !p.Refund {
		return nil
	}

	n, err := s.Repo.MarkRefunded(ctx, p.OrderID)
	if err != nil {
		return err
	}
	log.Printf("violations: order %s refunded, %d stat rows flagged", p.OrderID, n)
	return nil
}
