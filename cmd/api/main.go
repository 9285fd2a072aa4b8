// cmd/api/main.go
// Main entry point for the API server
// This file bootstraps all components and starts the server

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/app"
	"github.com/sonuprasad23/spark/internal/auth"
	"github.com/sonuprasad23/spark/internal/common/logger"
	"github.com/sonuprasad23/spark/internal/common/utils"
	"github.com/sonuprasad23/spark/internal/config"
	"github.com/sonuprasad23/spark/internal/matching"
	"github.com/sonuprasad23/spark/internal/rooms"
	"github.com/sonuprasad23/spark/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spark: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load and validate configuration
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// 3. Logger
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()
	if envErr != nil {
		log.Debug("no .env file, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Stores, gateways and services
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	// 5. Routes
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, requestLogger(log))
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// jobs carry their own deadline
	scheduler.RegisterRoutes(router, scheduler.NewHandler(a.Runner, cfg.JobToken))
	if cfg.JobToken == "" {
		log.Info("JOB_TOKEN not set, /internal/jobs is disabled")
	}

	authMiddleware := auth.NewMiddleware(a.Verifier, log)
	api := router.NewRoute().Subrouter()
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	matching.RegisterRoutes(api, matching.NewHandler(a.Matching), authMiddleware)
	rooms.RegisterRoutes(api, rooms.NewHandler(a.Rooms), authMiddleware)

	// 6. In-process scheduler
	if cfg.SchedulerEnabled {
		scheduler.NewScheduler(a.Runner, app.Schedule(cfg), log).Start(ctx)
	}

	// 7. Serve until signalled
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.JobTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithData(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// requestLogger logs one line per request
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	log = log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
