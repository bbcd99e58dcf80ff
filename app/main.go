package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yichya/rss-pipe/app/api"
	"github.com/yichya/rss-pipe/app/cfg"
	"github.com/yichya/rss-pipe/app/database"
	"github.com/yichya/rss-pipe/app/fever"
	"github.com/yichya/rss-pipe/app/metrics"
	"github.com/yichya/rss-pipe/app/pipe"
	"github.com/yichya/rss-pipe/app/proxy"
	"github.com/yichya/rss-pipe/app/push"
	"github.com/yichya/rss-pipe/app/transform"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting rss-pipe", "version", appCfg.Version,
		"db", appCfg.DBPath, "bind", appCfg.BindAddr,
		"proxy", appCfg.ProxyAddr, "fever", appCfg.FeverPath)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry, func() float64 {
		count, err := database.NewItemRepository(db).GetUnreadCount()
		if err != nil {
			slog.Error("Failed to count unread items", "error", err)
			return 0
		}
		return float64(count)
	})

	gateway, err := proxy.NewGateway(appCfg.ProxyAddr)
	if err != nil {
		slog.Error("Failed to configure egress gateway", "proxy", appCfg.ProxyAddr, "error", err)
		os.Exit(1)
	}

	notifier := push.NewClient(appCfg.BarkAddr)
	engine := transform.NewEngine(appCfg.ScriptPath)

	p := pipe.NewPipe(db, gateway, notifier, collector, engine)
	p.Start()
	defer p.Stop()

	handler := api.NewHandler(p, metrics.Handler(registry))
	feverHandler := fever.NewHandler(db, appCfg.FeverAuth)
	server := api.NewServer(handler, feverHandler)

	httpServer := &http.Server{
		Addr:         appCfg.BindAddr,
		Handler:      server,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", appCfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Pipe and database are stopped via defer
	slog.Info("Shutdown complete")
}
