package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("STATIC_BACKENDS", "db1=localhost:5432")
	t.Setenv("TLS_ENABLED", "false")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgresql", cfg.DatabaseType)
	assert.Equal(t, 5432, cfg.ListenPort)
	assert.Equal(t, 64, cfg.MaxClients)
	assert.Equal(t, DiscoveryStatic, cfg.DiscoveryMode)
	assert.False(t, cfg.TLSEnabled)
}

func TestLoadFromEnvValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unsupported database type",
			env:     map[string]string{"DATABASE_TYPE": "oracle"},
			wantErr: "unsupported DATABASE_TYPE",
		},
		{
			name:    "listen port out of range",
			env:     map[string]string{"LISTEN_PORT": "70000"},
			wantErr: "LISTEN_PORT",
		},
		{
			name:    "non-positive max clients",
			env:     map[string]string{"MAX_CLIENTS": "0"},
			wantErr: "MAX_CLIENTS",
		},
		{
			name: "file TLS without cert paths",
			env:  map[string]string{"TLS_MODE": "file"},
			wantErr: "TLS_CERT_FILE and TLS_KEY_FILE",
		},
		{
			name: "kubernetes TLS with static discovery",
			env: map[string]string{
				"TLS_MODE":        "kubernetes",
				"TLS_SECRET_NAME": "gate-tls",
				"STATIC_BACKENDS": "db1=localhost:5432",
			},
			wantErr: "kubernetes TLS mode requires kubernetes discovery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Keep validation away from auto-detected modes unless the
			// case overrides them.
			t.Setenv("STATIC_BACKENDS", "db1=localhost:5432")
			t.Setenv("TLS_ENABLED", "true")
			t.Setenv("TLS_MODE", "memory")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetermineTLSMode(t *testing.T) {
	t.Setenv("TLS_MODE", "")
	t.Setenv("TLS_CERT_FILE", "/etc/tls/cert.pem")
	assert.Equal(t, TLSModeFile, determineTLSMode())

	t.Setenv("TLS_CERT_FILE", "")
	t.Setenv("TLS_SECRET_NAME", "gate-tls")
	assert.Equal(t, TLSModeKubernetes, determineTLSMode())

	t.Setenv("TLS_SECRET_NAME", "")
	assert.Equal(t, TLSModeMemory, determineTLSMode())
}
