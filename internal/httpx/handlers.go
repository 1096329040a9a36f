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

	kafkax "github.com/arioseto/go-order-reservations/internal/kafka"
	"github.com/arioseto/go-order-reservations/internal/orders"
	"github.com/arioseto/go-order-reservations/internal/redisx"
)

// API exposes the reservation engine and the plain CRUD collaborators over
// HTTP. Redis and Producer are optional; without them reads skip the cache
// and no events are published.
type API struct {
	Engine   *orders.Engine
	Store    orders.Store
	Redis    *redis.Client
	Producer *kafkax.Producer
	Service  string
}

type CreateCustomerReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateProductReq struct {
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type CreateOrderReq struct {
	CustomerID string               `json:"customer_id"`
	Items      []orders.LineRequest `json:"items"`
}

func (a *API) Register(r *chi.Mux) {
	r.Post("/customers", a.createCustomer)
	r.Post("/products", a.createProduct)
	r.Get("/products", a.listProducts)
	r.Post("/orders", a.createOrder)
	r.Get("/orders/{id}", a.getOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var unknownProduct *orders.UnknownProductError
	var insufficient *orders.InsufficientStockError
	var invalidQty *orders.InvalidQuantityError

	switch {
	case errors.Is(err, orders.ErrEmptyOrder):
		writeJSON(w, http.StatusUnprocessableEntity, errBody(err))
	case errors.As(err, &invalidQty):
		writeJSON(w, http.StatusBadRequest, errBody(err))
	case errors.Is(err, orders.ErrUnknownCustomer):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, orders.ErrNoSuchProducts):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.As(err, &unknownProduct):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(), "product_id": unknownProduct.ProductID,
		})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(), "product_id": insufficient.ProductID,
		})
	case errors.Is(err, orders.ErrEmailTaken), errors.Is(err, orders.ErrProductNameTaken):
		writeJSON(w, http.StatusConflict, errBody(err))
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, orders.ErrTransientContention):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errBody(err))
	default:
		writeJSON(w, http.StatusServiceUnavailable, errBody(orders.ErrStoreUnavailable))
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// friendly pre-check; the store's unique constraint settles races
	if _, err := a.Store.CustomerByEmail(ctx, req.Email); err == nil {
		writeError(w, orders.ErrEmailTaken)
		return
	}

	c, err := a.Store.CreateCustomer(ctx, req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Name == "" || req.PriceCents < 0 || req.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := a.Store.CreateProduct(ctx, req.Name, req.PriceCents, req.Stock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := a.Store.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing customer_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Engine.Reserve(ctx, req.CustomerID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	a.cacheOrder(ctx, o)
	a.publishReserved(r, o)

	writeJSON(w, http.StatusCreated, o)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if a.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderSnapshot, orderID)
		if s, err := a.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := a.Store.OrderByID(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	a.cacheOrder(ctx, &o)
	writeJSON(w, http.StatusOK, o)
}

func (a *API) cacheOrder(ctx context.Context, o *orders.Order) {
	if a.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderSnapshot, o.ID)
	_ = a.Redis.Set(ctx, key, kafkax.MustMarshal(o), redisx.TTLOrderSnapshot).Err()
}

func (a *API) publishReserved(r *http.Request, o *orders.Order) {
	if a.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderReserved,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      a.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.OrderReservedPayload{Order: *o}),
	}
	a.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderReserved)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
