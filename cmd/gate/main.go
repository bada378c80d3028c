package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/api"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/config"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/factory"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log := logger.New(cfg.Debug)
	logger.Init()
	log.Info("Starting xtcp-gate...",
		"database", cfg.DatabaseType,
		"runtime", cfg.Runtime,
		"discovery", cfg.DiscoveryMode,
		"tls_mode", cfg.TLSMode,
		"max_clients", cfg.MaxClients)

	// Start health server
	healthServer := api.NewHealthServer(":" + cfg.HealthServerPort)
	healthServer.Start()

	// Create backend resolver
	resolverFactory := factory.NewResolverFactory(cfg)
	resolver, clientset, err := resolverFactory.Create(ctx)
	if err != nil {
		logger.Fatal("Failed to create backend resolver", "error", err)
	}

	// Create TLS provider (optional)
	var tlsProvider core.TLSProvider
	if cfg.TLSEnabled {
		tlsFactory := factory.NewTLSFactory(cfg)
		tlsProvider, err = tlsFactory.Create(ctx, clientset)
		if err != nil {
			logger.Fatal("Failed to create TLS provider", "error", err)
		}

		if err := tlsFactory.EnsureCertificate(ctx, tlsProvider); err != nil {
			logger.Fatal("Failed to ensure certificate", "error", err)
		}
		log.Info("TLS enabled and configured")
	} else {
		log.Warn("TLS is disabled - connections will not be encrypted")
	}

	// Create protocol-specific connection handler
	proxyFactory := factory.NewProxyFactory(cfg)
	handler, err := proxyFactory.Create(ctx, tlsProvider, resolver)
	if err != nil {
		logger.Fatal("Failed to create connection handler", "error", err)
	}

	// Create the gate server; it opens its own listener inside Run.
	server := core.NewServer(cfg.ListenPort, cfg.MaxClients, handler, log)

	// A termination signal initiates shutdown; Run drains and returns.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("Received termination signal", "signal", sig.String())
		healthServer.SetReady(false)
		if err := server.Stop(); err != nil {
			log.Error("Stop failed", "error", err)
		}
	}()

	healthServer.SetReady(true)

	// Serve until shutdown completes (blocking)
	if err := server.Run(); err != nil {
		logger.Fatal("Server exited with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("Health server shutdown failed", "error", err)
	}
	log.Info("Shutdown complete")
}
