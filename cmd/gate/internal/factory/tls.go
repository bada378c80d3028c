package factory

import (
	"context"
	"fmt"

	k8s "k8s.io/client-go/kubernetes"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/config"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/discovery/kubernetes"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/discovery/memory"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/storage/filesystem"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/utils"
)

// TLSFactory creates TLS providers based on configuration
type TLSFactory struct {
	cfg *config.Config
}

// NewTLSFactory creates a new TLS factory
func NewTLSFactory(cfg *config.Config) *TLSFactory {
	return &TLSFactory{cfg: cfg}
}

// Create creates a TLS provider based on configuration
func (f *TLSFactory) Create(ctx context.Context, clientset *k8s.Clientset) (core.TLSProvider, error) {
	switch f.cfg.TLSMode {
	case config.TLSModeFile:
		logger.Info("Creating file-based TLS provider", "cert", f.cfg.TLSCertFile, "key", f.cfg.TLSKeyFile)
		return filesystem.NewTLSProvider(f.cfg.TLSCertFile, f.cfg.TLSKeyFile), nil

	case config.TLSModeKubernetes:
		if clientset == nil {
			return nil, fmt.Errorf("kubernetes TLS mode requires kubernetes client (use DISCOVERY_MODE=kubernetes or provide KUBECONFIG)")
		}
		logger.Info("Creating kubernetes TLS provider", "namespace", f.cfg.Namespace, "secret", f.cfg.TLSSecretName)
		return kubernetes.NewK8sTLSProvider(clientset, f.cfg.Namespace, f.cfg.TLSSecretName), nil

	case config.TLSModeMemory:
		logger.Info("Creating memory TLS provider")
		return memory.NewTLSProvider(), nil

	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", f.cfg.TLSMode)
	}
}

// EnsureCertificate makes sure the provider can hand out a certificate,
// generating and storing a self-signed one when allowed.
func (f *TLSFactory) EnsureCertificate(ctx context.Context, provider core.TLSProvider) error {
	if _, err := provider.GetCertificate(ctx); err == nil {
		return nil
	} else if !f.cfg.TLSGenerate {
		return fmt.Errorf("certificate not found and TLS_GENERATE=false: %w", err)
	}

	logger.Info("Certificate not found, generating a self-signed one...")

	certPEM, keyPEM, err := utils.GenerateSelfSignedCert()
	if err != nil {
		return fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}

	if err := provider.Store(ctx, certPEM, keyPEM); err != nil {
		// Another instance may have won the store race; use its certificate.
		logger.Warn("Failed to store certificate, attempting to load existing cert", "error", err)
		if _, loadErr := provider.GetCertificate(ctx); loadErr != nil {
			return fmt.Errorf("failed to load certificate after store failure: %w", loadErr)
		}
		logger.Info("Loaded certificate created by another instance")
		return nil
	}

	logger.Info("Generated and stored self-signed certificate")
	return nil
}
