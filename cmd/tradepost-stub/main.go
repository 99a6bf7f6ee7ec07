// ABOUTME: Entry point for the tradepost-stub development backend.
// ABOUTME: Serves the chat REST and streaming contract against local SQLite.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
	"github.com/tradepost-app/tradepost-chat/internal/devserver"
)

const banner = `
    ╭────────────────────────────────╮
    │       tradepost stub           │
    ╰────────────────────────────────╯
`

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", "tradepost-stub.db", "SQLite database path")
	seed := flag.Bool("seed", false, "Seed a demo conversation on startup")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if err := run(*addr, *dbPath, *seed, *logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, dbPath string, seed bool, logLevel, logFormat string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	logger := setupLogger(logLevel, logFormat)

	store, err := devserver.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if seed {
		if err := seedDemo(ctx, store); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
		logger.Info("demo conversation seeded", "buyer", "demo-buyer", "seller", "demo-seller")
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Listen:   %s\n", addr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Println()

	srv := devserver.NewServer(store, logger)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting stub backend", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// seedDemo inserts a conversation with a short message history so the TUI
// has something to show out of the box.
func seedDemo(ctx context.Context, store *devserver.Store) error {
	err := store.SeedConversation(ctx, chat.Conversation{
		ID:          "demo-conversation",
		ListingID:   "demo-listing",
		ListingName: "Vintage road bike",
		BuyerID:     "demo-buyer",
		BuyerName:   "Demo Buyer",
		SellerID:    "demo-seller",
		SellerName:  "Demo Seller",
	})
	if err != nil {
		// Re-running against an existing database is fine.
		return nil
	}

	openers := []struct {
		sender, text string
	}{
		{"demo-buyer", "Hi! Is the bike still available?"},
		{"demo-seller", "It is. Want to come take a look?"},
	}
	for _, m := range openers {
		if _, err := store.SaveMessage(ctx, "demo-conversation", m.sender, m.text); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
