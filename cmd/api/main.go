package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alltrip/orders-api/internal/app"
	"github.com/alltrip/orders-api/internal/clock"
	"github.com/alltrip/orders-api/internal/config"
	"github.com/alltrip/orders-api/internal/fulfillment"
	"github.com/alltrip/orders-api/internal/inventory"
	"github.com/alltrip/orders-api/internal/payment"
	"github.com/alltrip/orders-api/internal/storage/postgres"
	transporthttp "github.com/alltrip/orders-api/internal/transport/http"
	"github.com/alltrip/orders-api/internal/worker"
	"github.com/alltrip/orders-api/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()
	loadEnvFile(logger)
	cfg := config.New()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	orderRepo := postgres.NewOrderRepository(pool)
	outbox := postgres.NewOutboxRepository(pool)

	duffel := inventory.NewDuffel(cfg.DuffelBaseURL, cfg.DuffelToken, logger)
	stripe := payment.NewStripe(payment.Credentials{
		Default:    cfg.StripeDefaultKey,
		ByCurrency: cfg.StripeKeys,
	}, logger)
	notifier := fulfillment.NewEmailNotifier(cfg.ResendAPIKey, cfg.EmailFrom, logger)

	clk := clock.NewSystem()
	orderSvc := app.NewOrderService(orderRepo, duffel, stripe, notifier, outbox, clk,
		app.WithTimeouts(app.Timeouts{
			Inventory: cfg.InventoryTimeout,
			Payment:   cfg.PaymentTimeout,
			Notify:    cfg.NotifyTimeout,
		}),
		app.WithLogger(logger),
	)

	notifyWorker := worker.NewNotifyWorker(outbox, orderRepo, notifier, clk, cfg.OutboxPollInterval, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: transporthttp.NewRouter(orderSvc, cfg.CORSOrigins, logger),
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go notifyWorker.Run(workerCtx)

	log.Printf("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

// loadEnvFile fills the environment from a .env file found in the current
// or a parent directory. Variables already set win.
func loadEnvFile(logger *log.Logger) {
	dir, err := os.Getwd()
	if err != nil {
		logger.Printf("WARN: locate .env: %v", err)
		return
	}

	var path string
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if path == "" {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Printf("WARN: open %s: %v", path, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Printf("WARN: set %s from %s: %v", key, path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Printf("WARN: read %s: %v", path, err)
		return
	}
	logger.Printf("loaded env from %s", path)
}
