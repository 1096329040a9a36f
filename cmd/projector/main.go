package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arioseto/go-order-reservations/internal/config"
	kafkax "github.com/arioseto/go-order-reservations/internal/kafka"
	"github.com/arioseto/go-order-reservations/internal/orders"
	"github.com/arioseto/go-order-reservations/internal/projector"
	"github.com/arioseto/go-order-reservations/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-projector",
	}

	group := getenv("PROJECTOR_GROUP", "order-projector")
	workers := atoi(getenv("PROJECTOR_WORKERS", "4"))
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderReserved, workers)

	go func() {
		log.Printf("projector started: group=%s topic=%s workers=%d", group, orders.TopicOrderReserved, workers)
		if err := cons.Start(ctx, svc.HandleOrderReserved); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down projector...")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return 1
	}
	return i
}
