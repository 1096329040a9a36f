package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arioseto/go-order-reservations/internal/config"
	"github.com/arioseto/go-order-reservations/internal/httpx"
	kafkax "github.com/arioseto/go-order-reservations/internal/kafka"
	"github.com/arioseto/go-order-reservations/internal/orders"
	"github.com/arioseto/go-order-reservations/internal/postgres"
	"github.com/arioseto/go-order-reservations/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store orders.Store
	switch cfg.StoreBackend {
	case "memory":
		store = orders.NewMemoryStore()
		log.Println("using in-memory store")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		store = &orders.PgxStore{DB: db, LockWait: cfg.ReserveLockWait}
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderReserved, 1024)
	prod.Start(ctx)

	engine := &orders.Engine{
		Customers:    store,
		Products:     store,
		Reservations: store,
		MaxAttempts:  cfg.ReserveAttempts,
	}

	router := httpx.NewRouter()
	api := &httpx.API{
		Engine:   engine,
		Store:    store,
		Redis:    rdb,
		Producer: prod,
		Service:  cfg.ServiceName,
	}
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events and stop the loop
	prod.WaitClosed()
}
