// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"apimetrics/platform/alerts"
	"apimetrics/platform/shared/logger"
	"apimetrics/platform/telemetry"
)

// Run is the exported entry point for the APImetrics platform service.
//
// It connects to PostgreSQL, wires the ingestion and alerting
// components, starts the background alert sweeper, and serves HTTP
// until SIGINT/SIGTERM. The function blocks for the life of the
// process.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8080)
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - API_KEYS: comma-separated key:user_id pairs for ingest auth
//   - REDIS_URL: enables Redis-backed alert cooldowns (optional)
//   - SENDGRID_API_KEY: enables real email delivery (optional)
//   - SENDGRID_FROM_EMAIL: alert sender address (optional)
//   - PRICING_FILE: YAML pricing overrides (optional)
//   - SWEEP_INTERVAL: alert sweep cadence, e.g. "2m" (default: 5m)
func Run() {
	log := logger.New("server")

	db, err := openDatabase()
	if err != nil {
		log.ErrorWithErr("", "", "Failed to connect to database", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	// Telemetry pipeline
	callRepo := telemetry.NewPostgresRepository(db)
	aggregator := telemetry.NewAggregator(callRepo)
	ingestService := telemetry.NewService(callRepo, aggregator)

	pricing := telemetry.DefaultPricing()
	if path := os.Getenv("PRICING_FILE"); path != "" {
		if err := pricing.LoadOverrides(path); err != nil {
			log.ErrorWithErr("", "", "Failed to load pricing overrides, using defaults", err, map[string]interface{}{
				"path": path,
			})
		}
	}

	auth := parseAPIKeys(os.Getenv("API_KEYS"))
	if len(auth) == 0 {
		log.Warn("", "", "No API_KEYS configured, all ingest requests will be rejected", nil)
	}

	// Alerting pipeline
	alertRepo := alerts.NewPostgresRepository(db)
	dispatcher := alerts.NewDispatcher(buildEmailSender(log), nil)
	evaluator := alerts.NewEvaluator(alertRepo, dispatcher, buildCooldownStore(log))
	sweeper := alerts.NewSweeper(evaluator, sweepInterval(log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Setup router
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler(db)).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	telemetry.NewHandler(ingestService, callRepo, pricing, auth).RegisterRoutes(r)
	alerts.NewHandler(alertRepo, evaluator).RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      c.Handler(r),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("", "", "APImetrics platform listening", map[string]interface{}{
		"port": port,
	})

	select {
	case <-ctx.Done():
		log.Info("", "", "Shutdown signal received", nil)
	case err := <-errCh:
		log.ErrorWithErr("", "", "HTTP server failed", err, nil)
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr("", "", "HTTP shutdown incomplete", err, nil)
	}
}

func openDatabase() (*sql.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// parseAPIKeys parses "key1:user1,key2:user2" into a static
// authenticator. Malformed pairs are skipped.
func parseAPIKeys(raw string) telemetry.StaticAuthenticator {
	auth := telemetry.StaticAuthenticator{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, userID, ok := strings.Cut(pair, ":")
		if !ok || key == "" || userID == "" {
			continue
		}
		auth[key] = userID
	}
	return auth
}

func buildEmailSender(log *logger.Logger) alerts.EmailSender {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		log.Info("", "", "SENDGRID_API_KEY not set, email alerts will be logged only", nil)
		return alerts.NewLogSender()
	}
	return alerts.NewSendGridSender(apiKey, os.Getenv("SENDGRID_FROM_EMAIL"), "", nil)
}

// buildCooldownStore returns a Redis-backed store when REDIS_URL is
// set. Without one, alerts re-fire on every sweep while the condition
// holds.
func buildCooldownStore(log *logger.Logger) alerts.CooldownStore {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.ErrorWithErr("", "", "Invalid REDIS_URL, alert cooldowns disabled", err, nil)
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.ErrorWithErr("", "", "Redis unreachable, alert cooldowns disabled", err, nil)
		return nil
	}

	log.Info("", "", "Alert cooldowns enabled via Redis", nil)
	return alerts.NewRedisCooldownStore(client)
}

func sweepInterval(log *logger.Logger) time.Duration {
	raw := os.Getenv("SWEEP_INTERVAL")
	if raw == "" {
		return 0 // sweeper default
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.ErrorWithErr("", "", "Invalid SWEEP_INTERVAL, using default", err, nil)
		return 0
	}
	return d
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := `{"status":"healthy"}`
		if err := db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = `{"status":"unhealthy","reason":"database unreachable"}`
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
