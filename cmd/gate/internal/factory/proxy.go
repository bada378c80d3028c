package factory

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/config"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/proxy/postgres"
)

// ProxyFactory creates protocol-specific connection handlers
type ProxyFactory struct {
	cfg *config.Config
}

// NewProxyFactory creates a new proxy factory
func NewProxyFactory(cfg *config.Config) *ProxyFactory {
	return &ProxyFactory{cfg: cfg}
}

// Create creates a connection handler based on database type
func (f *ProxyFactory) Create(ctx context.Context, tlsProvider core.TLSProvider, resolver core.BackendResolver) (core.ConnectionHandler, error) {
	switch f.cfg.DatabaseType {
	case "postgresql":
		return f.createPostgresHandler(ctx, tlsProvider, resolver)
	case "mysql":
		return nil, fmt.Errorf("MySQL handler not yet implemented")
	case "mongodb":
		return nil, fmt.Errorf("MongoDB handler not yet implemented")
	default:
		return nil, fmt.Errorf("unknown database type: %s", f.cfg.DatabaseType)
	}
}

func (f *ProxyFactory) createPostgresHandler(ctx context.Context, tlsProvider core.TLSProvider, resolver core.BackendResolver) (core.ConnectionHandler, error) {
	logger.Info("Creating PostgreSQL connection handler", "tls_enabled", f.cfg.TLSEnabled)

	var tlsConfig *tls.Config
	if f.cfg.TLSEnabled && tlsProvider != nil {
		cert, err := tlsProvider.GetCertificate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate for PostgreSQL handler: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
		}
	} else {
		logger.Warn("TLS is disabled. Connections will not be encrypted!")
	}

	return &postgres.Proxy{
		TLSConfig: tlsConfig,
		Resolver:  resolver,
	}, nil
}
