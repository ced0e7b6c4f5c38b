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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"qc-ledger/internal/accounts"
	"qc-ledger/internal/admin"
	"qc-ledger/internal/auth"
	"qc-ledger/internal/broker"
	"qc-ledger/internal/config"
	"qc-ledger/internal/db"
	"qc-ledger/internal/httpserver"
	"qc-ledger/internal/ident"
	"qc-ledger/internal/ledger"
	"qc-ledger/internal/marketdata"
	"qc-ledger/internal/metrics"
	"qc-ledger/internal/notify"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/storage/memory"
	"qc-ledger/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	var store storage.Store
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		store = postgres.NewStore(pool)
	default:
		store = memory.NewStore()
	}
	defer store.Close()

	var publisher broker.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = broker.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("[api] publishing ledger events to kafka topic %s", cfg.KafkaTopic)
	} else {
		publisher = broker.NewDisabledPublisher()
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	demoStarting, err := decimal.NewFromString(cfg.DemoStartingBal)
	if err != nil {
		log.Fatal(err)
	}
	faucetMax, err := decimal.NewFromString(cfg.FaucetMax)
	if err != nil {
		log.Fatal(err)
	}

	bus := marketdata.NewBus()
	notifySvc := notify.NewService(store)
	accountsSvc := accounts.NewService(store, notifySvc, m)
	ledgerSvc := ledger.NewService(store, m)
	marketSvc := marketdata.NewService(store, bus)
	authSvc := auth.NewService(store, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, demoStarting)
	adminSvc := admin.NewService(store, notifySvc, publisher, m, cfg.JWTIssuer, []byte(cfg.AdminJWTSecret))

	if cfg.AdminUsername != "" && cfg.AdminPasswordHash != "" {
		err := store.UpsertAdmin(ctx, storage.AdminUser{
			ID:           ident.New("adm"),
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("[api] bootstrap admin %s ready", cfg.AdminUsername)
	}

	resolve := func(ctx context.Context, userID string) (string, error) {
		acc, err := accountsSvc.AccountForUser(ctx, userID)
		if err != nil {
			return "", err
		}
		return acc.ID, nil
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:     auth.NewHandler(authSvc),
		AccountsHandler: accounts.NewHandler(accountsSvc, cfg.FaucetEnabled, faucetMax),
		LedgerHandler:   ledger.NewHandler(ledgerSvc, resolve),
		NotifyHandler:   notify.NewHandler(notifySvc, resolve),
		MarketHandler:   marketdata.NewHandler(marketSvc),
		AdminHandler:    admin.NewHandler(adminSvc),
		AuthService:     authSvc,
		AdminService:    adminSvc,
		InternalToken:   cfg.InternalToken,
		PricesWS:        httpserver.NewPricesWSHandler(bus, cfg.WebSocketOrigin),
		Registry:        registry,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("server listening on %s (store: %s)", cfg.HTTPAddr, cfg.StoreBackend)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
