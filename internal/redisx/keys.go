package redisx

import "time"

const (
	// Order snapshot cache: order:snapshot:{order_id} -> serialized Order
	KeyOrderSnapshot = "order:snapshot:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderSnapshot = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
)
