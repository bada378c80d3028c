package postgres

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const protocolVersion30 = 196608

func buildStartupPayload(pairs ...string) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, protocolVersion30)
	for _, s := range pairs {
		payload = append(payload, s...)
		payload = append(payload, 0)
	}
	payload = append(payload, 0)
	return payload
}

func TestParseStartupParams(t *testing.T) {
	payload := buildStartupPayload("user", "alice.db1", "database", "app")

	params, err := parseStartupParams(payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"user":     "alice.db1",
		"database": "app",
	}, params)
}

func TestParseStartupParamsRejectsGarbage(t *testing.T) {
	_, err := parseStartupParams([]byte{0, 0})
	require.Error(t, err)

	// Key with no terminated value.
	payload := buildStartupPayload()
	payload = payload[:len(payload)-1]
	payload = append(payload, 'u', 's', 'e', 'r', 0, 'x')
	_, err = parseStartupParams(payload)
	require.Error(t, err)
}

func TestApplyRouting(t *testing.T) {
	tests := []struct {
		name string
		user string
		want map[string]string
	}{
		{
			name: "plain deployment",
			user: "alice.db1",
			want: map[string]string{
				"user": "alice.db1", "pooled": "false",
				"deployment_id": "db1", "username": "alice",
			},
		},
		{
			name: "pooled deployment",
			user: "alice.db1.pool",
			want: map[string]string{
				"user": "alice.db1.pool", "pooled": "true",
				"deployment_id": "db1", "username": "alice",
			},
		},
		{
			name: "dotted username",
			user: "alice.smith.db1",
			want: map[string]string{
				"user": "alice.smith.db1", "pooled": "false",
				"deployment_id": "db1", "username": "alice.smith",
			},
		},
		{
			name: "no deployment id",
			user: "alice",
			want: map[string]string{"user": "alice", "pooled": "false"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]string{"user": tt.user}
			applyRouting(params)
			assert.Equal(t, tt.want, params)
		})
	}
}

func TestForwardedStartupMessageKeepsOriginalBytes(t *testing.T) {
	payload := buildStartupPayload("user", "alice", "database", "app")
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(4+len(payload)))

	params, err := parseStartupParams(payload)
	require.NoError(t, err)
	applyRouting(params)

	raw := forwardedStartupMessage(header, payload, params)
	assert.Equal(t, append(append([]byte{}, header...), payload...), raw)
}

func TestForwardedStartupMessageRewritesUser(t *testing.T) {
	payload := buildStartupPayload("user", "alice.db1", "database", "app")
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(4+len(payload)))

	params, err := parseStartupParams(payload)
	require.NoError(t, err)
	applyRouting(params)

	raw := forwardedStartupMessage(header, payload, params)
	require.NotNil(t, raw)

	// The rebuilt message must be self-describing and carry the
	// backend-facing username with the routing keys stripped.
	require.GreaterOrEqual(t, len(raw), 8)
	assert.EqualValues(t, len(raw), binary.BigEndian.Uint32(raw[0:4]))
	assert.EqualValues(t, protocolVersion30, binary.BigEndian.Uint32(raw[4:8]))

	rebuilt, err := parseStartupParams(raw[4:])
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"user":     "alice",
		"database": "app",
	}, rebuilt)
}
