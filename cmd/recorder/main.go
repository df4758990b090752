package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-crypto-checkout.git/internal/config"
	kafkax "github.com/ariefcatur/go-crypto-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/violations"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &violations.Service{
		Repo:        &violations.Repo{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-recorder",
	}

	group := getenv("RECORDER_GROUP", "violation-recorder")
	workers := mustAtoi(os.Getenv("RECORDER_WORKERS"), "4")

	// dua consumer: violation stats + refund marking dari cancel-after-paid
	cViolation := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicViolation, workers)
	cCancelled := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCancelled, workers)

	go func() {
		log.Printf("recorder consumer started: group=%s topic=%s workers=%d", group, orders.TopicViolation, workers)
		if err := cViolation.Start(ctx, svc.HandleViolation); err != nil {
			log.Printf("violation consumer exit: %v", err)
			cancel()
		}
	}()
	go func() {
		log.Printf("recorder consumer started: group=%s topic=%s workers=%d", group, orders.TopicOrderCancelled, workers)
		if err := cCancelled.Start(ctx, svc.HandleCancelled); err != nil {
			log.Printf("cancelled consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down recorder...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
