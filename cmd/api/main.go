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

	"github.com/ariefcatur/go-crypto-checkout.git/internal/config"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-crypto-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/payment"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/ratelimit"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/reconcile"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (satu per topic, key = order_id)
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pViolation := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicViolation, 1024)
	pWallet := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicWalletCredit, 1024)
	producers := []*kafkax.Producer{pCreated, pPaid, pCancelled, pViolation, pWallet}
	for _, p := range producers {
		p.Start(ctx)
	}

	// Rate limiter: konfigurasi bolong = fatal di sini, bukan pas request
	limiter, err := ratelimit.New(&ratelimit.RedisStore{R: rdb}, cfg.RateLimits)
	if err != nil {
		log.Fatalf("ratelimit: %v", err)
	}

	repo := &orders.Repo{DB: db}
	recon := &reconcile.Service{
		Store: repo,
		Dedup: redisx.Dedup{R: rdb},
		Rules: payment.Rules{
			TolerancePct:           cfg.TolerancePct,
			UnderpaymentPenaltyPct: cfg.UnderpaymentPenaltyPct,
			LatePenaltyPct:         cfg.LatePenaltyPct,
		},
		PPaid:         pPaid,
		PCancelled:    pCancelled,
		PViolation:    pViolation,
		PWallet:       pWallet,
		MaxRetries:    cfg.MaxRetries,
		PaymentWindow: cfg.PaymentWindow,
		RetryWindow:   cfg.RetryWindow,
		CancelGrace:   cfg.CancelGrace,
		ServiceName:   cfg.ServiceName,
	}

	router := httpx.NewRouter()
	h := &httpx.CheckoutHandler{
		Repo:     repo,
		Recon:    recon,
		Limiter:  limiter,
		Producer: pCreated,
		Redis:    rdb,
		Service:  cfg.ServiceName,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
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
	for _, p := range producers {
		p.Close() // tutup inbox -> flush & close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
