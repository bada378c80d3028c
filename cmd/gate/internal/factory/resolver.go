package factory

import (
	"context"
	"fmt"
	"os"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/config"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/discovery/kubernetes"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/discovery/memory"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
)

// ResolverFactory creates backend resolvers based on configuration
type ResolverFactory struct {
	cfg *config.Config
}

// NewResolverFactory creates a new resolver factory
func NewResolverFactory(cfg *config.Config) *ResolverFactory {
	return &ResolverFactory{cfg: cfg}
}

// Create creates a backend resolver based on configuration. The returned
// clientset is non-nil only for kubernetes discovery and is shared with the
// TLS factory.
func (f *ResolverFactory) Create(ctx context.Context) (core.BackendResolver, *k8s.Clientset, error) {
	switch f.cfg.DiscoveryMode {
	case config.DiscoveryStatic:
		return f.createStaticResolver()
	case config.DiscoveryKubernetes:
		return f.createKubernetesResolver()
	default:
		return nil, nil, fmt.Errorf("unknown discovery mode: %s", f.cfg.DiscoveryMode)
	}
}

func (f *ResolverFactory) createStaticResolver() (core.BackendResolver, *k8s.Clientset, error) {
	logger.Info("Creating static backend resolver", "backends", f.cfg.StaticBackends)

	resolver, err := memory.NewResolver(f.cfg.StaticBackends)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create static resolver: %w", err)
	}

	return resolver, nil, nil
}

func (f *ResolverFactory) createKubernetesResolver() (core.BackendResolver, *k8s.Clientset, error) {
	logger.Info("Creating kubernetes backend resolver",
		"runtime", f.cfg.Runtime,
		"kubeconfig", f.cfg.KubeConfigPath,
		"context", f.cfg.KubeContext)

	kubeconfig := f.cfg.KubeConfigPath
	if f.cfg.Runtime != config.RuntimeKubernetes && kubeconfig == "" {
		if home := os.Getenv("HOME"); home != "" {
			kubeconfig = home + "/.kube/config"
		}
	}

	overrides := &clientcmd.ConfigOverrides{}
	if f.cfg.KubeContext != "" {
		overrides.CurrentContext = f.cfg.KubeContext
	}

	var restCfg *rest.Config
	var err error

	// Try kubeconfig first (VM/container runtime or explicit config).
	if kubeconfig != "" {
		restCfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
			overrides,
		).ClientConfig()
		if err != nil {
			logger.Warn("Failed to load kubeconfig, will try in-cluster config", "error", err)
		}
	}

	// Fall back to in-cluster config.
	if restCfg == nil {
		restCfg, err = clientcmd.BuildConfigFromFlags("", "")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kubernetes config (tried kubeconfig and in-cluster): %w", err)
		}
	}

	clientset, err := k8s.NewForConfig(restCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	resolver := kubernetes.NewK8sResolver(clientset)
	logger.Info("Kubernetes resolver created")
	return resolver, clientset, nil
}
