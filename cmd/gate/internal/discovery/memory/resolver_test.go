package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
)

func TestNewResolver(t *testing.T) {
	r, err := NewResolver("db1=localhost:5432, db1.pool = localhost:6432")
	require.NoError(t, err)

	addr, err := r.Resolve(context.Background(),
		core.RoutingMetadata{"deployment_id": "db1"}, core.DatabaseTypePostgresql)
	require.NoError(t, err)
	assert.Equal(t, "localhost:5432", addr)

	addr, err = r.Resolve(context.Background(),
		core.RoutingMetadata{"deployment_id": "db1", "pooled": "true"}, core.DatabaseTypePostgresql)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6432", addr)
}

func TestNewResolverRejectsMalformedMapping(t *testing.T) {
	_, err := NewResolver("db1")
	require.Error(t, err)
}

func TestResolveUnknownBackend(t *testing.T) {
	r, err := NewResolver("db1=localhost:5432")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(),
		core.RoutingMetadata{"deployment_id": "db2"}, core.DatabaseTypePostgresql)
	require.Error(t, err)

	_, err = r.Resolve(context.Background(), core.RoutingMetadata{}, core.DatabaseTypePostgresql)
	require.Error(t, err)
}
