package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phone-otp-gate/internal/config"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/infrastructure/dynamo"
	jwtinfra "github.com/phone-otp-gate/internal/infrastructure/jwt"
	"github.com/phone-otp-gate/internal/infrastructure/memory"
	"github.com/phone-otp-gate/internal/infrastructure/postgres"
	redisinfra "github.com/phone-otp-gate/internal/infrastructure/redis"
	"github.com/phone-otp-gate/internal/infrastructure/sns"
	"github.com/phone-otp-gate/internal/pkg/metrics"
	transporthttp "github.com/phone-otp-gate/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamo client: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	var kv domain.KeyValueStore
	switch cfg.OTPStoreBackend {
	case "redis":
		client, err := redisinfra.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		kv = redisinfra.NewStore(client, "otp_gate")
	case "dynamo":
		kv = dynamo.NewKVStore(dynamoClient, cfg.DynamoTables.KeyValue)
	case "memory":
		log.Println("WARN: using in-process OTP store; state is lost on restart")
		kv = memory.NewStore()
	default:
		log.Fatalf("unknown OTP_STORE_BACKEND %q", cfg.OTPStoreBackend)
	}

	var ledgerRepo transporthttp.AddressVerificationRepository
	switch cfg.LedgerBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		repo := postgres.NewAddressVerificationRepo(pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("postgres migrate: %v", err)
		}
		ledgerRepo = repo
	default:
		ledgerRepo = dynamo.NewAddressVerificationRepo(dynamoClient, cfg.DynamoTables.AddressVerification)
	}

	// SNS SMS sender (falls back to logging the message in development).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
		smsSender = sns.LogSender{}
	}

	counters := dynamo.NewCounterRepo(dynamoClient, cfg.DynamoTables.Counters)
	deps := &transporthttp.Deps{
		CustomerRepo:            dynamo.NewCustomerRepo(dynamoClient, cfg.DynamoTables.Customers, counters),
		AddressRepo:             dynamo.NewAddressRepo(dynamoClient, cfg.DynamoTables.Addresses, counters),
		CartRepo:                dynamo.NewCartRepo(dynamoClient, cfg.DynamoTables.Carts),
		AddressVerificationRepo: ledgerRepo,
		KV:                      kv,
		SMSSender:               smsSender,
	}

	// JWT provider (optional; without keys every caller is a guest).
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.JWTProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	router, err := transporthttp.NewRouter(cfg, deps)
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, otp_store=%s, ledger=%s)",
			cfg.AppPort, cfg.AppEnv, cfg.OTPStoreBackend, cfg.LedgerBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
