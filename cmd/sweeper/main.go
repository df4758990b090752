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
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-crypto-checkout.git/internal/config"
	kafkax "github.com/ariefcatur/go-crypto-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/orders"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/payment"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/reconcile"
	"github.com/ariefcatur/go-crypto-checkout.git/internal/redisx"
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

// Sweeper: time-driven timeout detection. Setiap interval, scan order yang
// deadline-nya lewat dan dorong lewat CheckTimeout, jalur CAS yang sama
// dengan webhook, jadi tidak bisa nyalip pembayaran yang lagi di-accept.
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

	// Producer hidup sampai Close, bukan sampai ctx: event dari sweep yang
	// lagi jalan saat shutdown harus tetap ke-flush.
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(context.Background())
	pViolation := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicViolation, 1024)
	pViolation.Start(context.Background())

	repo := &orders.Repo{DB: db}
	recon := &reconcile.Service{
		Store: repo,
		Dedup: redisx.Dedup{R: rdb},
		Rules: payment.Rules{
			TolerancePct:           cfg.TolerancePct,
			UnderpaymentPenaltyPct: cfg.UnderpaymentPenaltyPct,
			LatePenaltyPct:         cfg.LatePenaltyPct,
		},
		PCancelled:    pCancelled,
		PViolation:    pViolation,
		MaxRetries:    cfg.MaxRetries,
		PaymentWindow: cfg.PaymentWindow,
		RetryWindow:   cfg.RetryWindow,
		CancelGrace:   cfg.CancelGrace,
		ServiceName:   cfg.ServiceName + "-sweeper",
	}

	interval, err := time.ParseDuration(getenv("SWEEP_INTERVAL", "30s"))
	if err != nil {
		log.Fatalf("SWEEP_INTERVAL: %v", err)
	}
	batch := mustAtoi(os.Getenv("SWEEP_BATCH"), "100")
	workers := mustAtoi(os.Getenv("SWEEP_WORKERS"), "8")

	done := make(chan struct{})
	go func() {
		defer close(done)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				sweep(ctx, repo, recon, batch, workers)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down sweeper...")
	cancel()
	<-done // sweep terakhir selesai dulu, jangan Publish ke inbox yang sudah ditutup
	pCancelled.Close()
	pViolation.Close()
	pCancelled.WaitClosed()
	pViolation.WaitClosed()
}

func sweep(ctx context.Context, repo *orders.Repo, recon *reconcile.Service, batch, workers int) {
	ids, err := repo.ListExpired(ctx, time.Now(), batch)
	if err != nil {
		log.Printf("sweep: list expired: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			status, err := recon.CheckTimeout(gctx, id)
			if err != nil {
				log.Printf("sweep: order=%s: %v", id, err)
				return nil // satu order gagal jangan hentikan batch
			}
			if status == orders.StatusCancelledTimeout {
				log.Printf("sweep: order=%s timed out", id)
			}
			return nil
		})
	}
	_ = g.Wait()
}
