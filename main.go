package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hamdibenjarrar/DinarWise/api"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/config"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/hamdibenjarrar/DinarWise/internal/storage"
	"github.com/hamdibenjarrar/DinarWise/logging"
	"github.com/rs/cors"
)

const shutdownTimeout = 10 * time.Second

// backend is everything the server needs from a storage implementation.
type backend interface {
	auth.Storage
	finance.Persistence
	budget.Storage
	api.Pinger
	Close() error
}

func newCors(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", api.TraceHeader},
		ExposedHeaders:   []string{api.TraceHeader, "Content-Disposition"},
		AllowCredentials: true,
	})
}

func openStorage(cfg *config.Config) (backend, error) {
	if cfg.DBDriver == config.DriverMemory {
		logging.Logger.Warn("using in-memory storage, data is lost on restart")
		return storage.NewInMemoryStorage(), nil
	}
	db, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.LogLevel, cfg.AppEnv, cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logging.Logger.Info("application starting...")

	db, err := openStorage(cfg)
	if err != nil {
		logging.Logger.Errorf("failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	logging.Logger.Infof("storage ready: %s", db.GetStorageType())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := finance.NewRegistry(db, cfg.PersistenceTimeout, cfg.StoreIdleTTL)
	defer registry.Close()
	go registry.Janitor(ctx, time.Minute)

	handlers := api.NewApi(auth.NewService(db, cfg.SessionTTL), registry, db, db)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newCors(cfg.CORSOrigins).Handler(api.NewRouter(handlers)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Logger.Infof("Starting server on port: %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Errorf("failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logging.Logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Errorf("graceful shutdown failed: %v", err)
	}
}
