package core

import (
	"context"
	"crypto/tls"
	"net"
)

// DatabaseType identifies the wire protocol spoken by a backend.
type DatabaseType string

const (
	DatabaseTypePostgresql DatabaseType = "postgresql"
	DatabaseTypeMysql      DatabaseType = "mysql"
	DatabaseTypeMongodb    DatabaseType = "mongodb"
)

// RoutingMetadata contains information extracted from the protocol handshake
// used to determine the destination backend (e.g., "deployment_id": "finance").
type RoutingMetadata map[string]string

// ConnectionHandler processes a single accepted client connection.
// It takes full ownership of the connection from hand-off until it returns,
// including closing it. The server releases the connection's admission permit
// when HandleConnection returns, on every exit path, so a handler must not
// outlive its call (spawn-and-forget inside a handler leaks capacity).
type ConnectionHandler interface {
	HandleConnection(conn net.Conn)
}

// BackendResolver defines how to find a backend address based on metadata.
// It is purely a lookup mechanism and knows nothing about the network.
type BackendResolver interface {
	Resolve(ctx context.Context, metadata RoutingMetadata, databaseType DatabaseType) (string, error)
}

// TLSProvider defines how to retrieve and persist the server certificate.
// It abstracts away the storage mechanism (K8s Secret, File, Memory, etc.).
type TLSProvider interface {
	GetCertificate(ctx context.Context) (*tls.Certificate, error)
	Store(ctx context.Context, certPEM, keyPEM []byte) error
}
