package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"banking-ledger-api/internal/config"
	"banking-ledger-api/internal/events"
	eventskafka "banking-ledger-api/internal/events/kafka"
	"banking-ledger-api/internal/handler"
	"banking-ledger-api/internal/logger"
	"banking-ledger-api/internal/repository"
	"banking-ledger-api/internal/repository/memory"
	"banking-ledger-api/internal/repository/postgres"
	"banking-ledger-api/internal/service"
)

const version = "1.0.0"

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", err, nil)
		os.Exit(1)
	}

	store, db, err := initStore(cfg)
	if err != nil {
		logger.Error("failed to initialize store", err, nil)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	publisher := initPublisher(cfg.Kafka)
	if closer, ok := publisher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	ledger := service.NewLedgerService(store, publisher)

	accountHandler := handler.NewAccountHandler(ledger)
	healthHandler := handler.NewHealthHandler(db, version)
	router := handler.NewRouter(accountHandler, healthHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsMiddleware(loggingMiddleware(router)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", logger.Fields{"port": cfg.Server.Port, "store": cfg.Store.Driver})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info("server exited", nil)
}

// initStore builds the configured backend. The returned *sql.DB is nil for
// the in-memory store.
func initStore(cfg *config.Config) (repository.Store, *sql.DB, error) {
	if cfg.Store.Driver == "memory" {
		logger.Info("using in-memory store", nil)
		return memory.NewStore(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db, cfg.Store.MigrationsDir); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established", logger.Fields{"database": cfg.Database.Database})
	return postgres.NewStore(db), db, nil
}

func initPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.Noop{}
	}
	logger.Info("kafka publisher enabled", logger.Fields{"topic": cfg.Topic})
	return eventskafka.NewPublisher(cfg.Brokers, cfg.Topic)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		logger.Info("request", logger.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start).String(),
		})
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
