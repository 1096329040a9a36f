package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderReserved = "OrderReserved"
)

// Envelope is the versioned wrapper every published event rides in.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderReservedPayload is emitted after a reservation commits: the order is
// durable and every line's stock has been decremented.
type OrderReservedPayload struct {
	Order Order `json:"order"`
}
