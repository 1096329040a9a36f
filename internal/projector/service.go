package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/arioseto/go-order-reservations/internal/kafka"
	"github.com/arioseto/go-order-reservations/internal/orders"
	"github.com/arioseto/go-order-reservations/internal/redisx"
)

// Service keeps the Redis order-snapshot cache warm from the reserved-order
// stream, off the write path.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderReserved is wired as the consumer handler for orders.reserved.
func (s *Service) HandleOrderReserved(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderReserved {
		return nil
	}

	// dedup by event id: redelivery must not refresh TTLs twice
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderReservedPayload](env.Payload)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(redisx.KeyOrderSnapshot, p.Order.ID)
	if err := s.Redis.Set(ctx, key, kafkax.MustMarshal(p.Order), redisx.TTLOrderSnapshot).Err(); err != nil {
		return err
	}
	return s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}
