package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
)

// Resolver maps deployment keys to static backend addresses.
type Resolver struct {
	backends map[string]string
	mu       sync.RWMutex
}

// NewResolver creates a memory resolver from a comma-separated mapping string.
// Format: "deployment_id[.pool]=host:port,..."
// Example: "db1=localhost:5432,db1.pool=localhost:6432"
func NewResolver(mappingStr string) (*Resolver, error) {
	backends := make(map[string]string)
	if mappingStr == "" {
		return &Resolver{backends: backends}, nil
	}

	for _, pair := range strings.Split(mappingStr, ",") {
		key, addr, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			return nil, fmt.Errorf("invalid backend mapping: %q", pair)
		}
		backends[strings.TrimSpace(key)] = strings.TrimSpace(addr)
	}

	return &Resolver{backends: backends}, nil
}

func (r *Resolver) Resolve(ctx context.Context, metadata core.RoutingMetadata, databaseType core.DatabaseType) (string, error) {
	deploymentID, ok := metadata["deployment_id"]
	if !ok {
		return "", fmt.Errorf("metadata missing 'deployment_id'")
	}

	key := deploymentID
	if metadata["pooled"] == "true" {
		key += ".pool"
	}

	r.mu.RLock()
	addr, ok := r.backends[key]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("backend not found for key: %s", key)
	}

	logger.Debug("Resolved static backend", "key", key, "addr", addr)
	return addr, nil
}
