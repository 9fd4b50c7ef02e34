/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine HTTP server. Handles
  configuration, dependency wiring, and graceful shutdown.

CONFIGURATION:
  Flags override environment; a .env file is loaded when present.
    -port / PORT                  HTTP server port (default: 8080)
    -db / LEDGER_DB               SQLite database path (default: ledger.db)
    -opening / OPENING_BALANCE    Opening balance, applied once at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the database, exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/meridian/agent-ledger/api"
	"github.com/meridian/agent-ledger/engine"
	"github.com/meridian/agent-ledger/internal/logger"
	"github.com/meridian/agent-ledger/ledger"
	"github.com/meridian/agent-ledger/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("LEDGER_DB", "ledger.db"), "SQLite database path")
	opening := flag.String("opening", envStr("OPENING_BALANCE", ""), "opening balance in USD (set once)")
	flag.Parse()

	log := logger.New()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	if *opening != "" {
		balance, err := decimal.NewFromString(*opening)
		if err != nil {
			log.Fatal().Str("opening", *opening).Msg("opening balance is not a number")
		}
		if err := store.SetOpeningBalance(context.Background(), balance); err != nil {
			log.Fatal().Err(err).Msg("failed to store opening balance")
		}
	}

	eng := engine.New(store, ledger.NewCalculator(nil), logger.WithComponent(log, "engine"))
	handler := api.NewHandler(eng, logger.WithComponent(log, "api"))
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
