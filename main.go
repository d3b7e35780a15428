package main

import (
	"context"
	"database/sql"
	_ "embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-ledger/config"
	"storefront-ledger/handler"
	"storefront-ledger/metrics"
	"storefront-ledger/service"
	"storefront-ledger/store"
)

//go:embed migrations.sql
var migrationSQL string

// initialCatalog is seeded once into an empty store at startup.
func initialCatalog() []store.ProductSeed {
	mk := func(id int64, name string, price int64, stock int) store.ProductSeed {
		return store.ProductSeed{ID: id, Name: name, Price: decimal.NewFromInt(price), Stock: stock}
	}
	return []store.ProductSeed{
		mk(1, "T-shirt", 2, 10),
		mk(2, "Apple", 2, 10),
		mk(3, "Banana", 1, 15),
		mk(4, "Milk", 3, 8),
		mk(5, "Bread", 2, 12),
		mk(6, "Sushi", 2, 12),
		mk(7, "Ice cream", 3, 6),
		mk(8, "Ramen", 2, 9),
		mk(9, "Cheese", 2, 2),
		mk(10, "Noodle", 3, 20),
	}
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.PostgresDSN == "" {
		log.Info("no POSTGRES_DSN set, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("database migrations executed")
	return &store.PostgresStore{DB: db, MaxRetries: cfg.TxMaxRetries}, nil
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()

	st, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}
	defer st.Close()

	svc := service.NewService(st)
	if err := svc.SeedCatalog(initialCatalog()); err != nil {
		log.Fatal("catalog seed failed", zap.Error(err))
	}

	met := metrics.New("api")
	h := handler.NewHandler(svc, log, met)

	r := mux.NewRouter()
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	log.Info("shutdown signal", zap.String("signal", s.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
}
