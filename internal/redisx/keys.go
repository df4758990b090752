package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", ...}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"

	// Dedup payment observation: obs:{order_id}:{sha256 observation}
	KeyObservation = "obs:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLObservation = 48 * time.Hour
)
