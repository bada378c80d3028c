package postgres

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
)

const resolveTimeout = 5 * time.Second

// ErrorResponse represents a PostgreSQL error response
type ErrorResponse struct {
	Severity string
	Code     string
	Message  string
}

// Proxy is the core.ConnectionHandler for PostgreSQL clients: it performs the
// startup handshake, resolves the backend from the username-embedded routing
// metadata, and pipes bytes both ways until either side hangs up.
type Proxy struct {
	TLSConfig *tls.Config
	Resolver  core.BackendResolver
}

// HandleConnection takes full ownership of the client connection lifecycle.
// When it returns, the gate releases the connection's admission permit.
func (p *Proxy) HandleConnection(clientConn net.Conn) {
	defer clientConn.Close()

	// Capture the address up front: handshake reassigns clientConn and
	// returns a nil conn on failure.
	remote := clientConn.RemoteAddr()

	metadata, clientConn, rawStartupMsg, err := p.handshake(clientConn)
	if err != nil {
		logger.Error("Handshake failed", "error", err, "remote_addr", remote)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	backendAddr, err := p.Resolver.Resolve(ctx, metadata, core.DatabaseTypePostgresql)
	if err != nil {
		logger.Error("Resolution failed", "error", err, "remote_addr", remote)
		_ = p.sendErrorResponse(clientConn, &ErrorResponse{
			Severity: "FATAL",
			Code:     "08001", // sqlclient_unable_to_establish_sqlconnection
			Message:  fmt.Sprintf("resolution failed: %v", err),
		})
		return
	}

	backendConn, err := net.Dial("tcp", backendAddr)
	if err != nil {
		logger.Error("Dial failed", "backend_addr", backendAddr, "error", err, "remote_addr", remote)
		_ = p.sendErrorResponse(clientConn, &ErrorResponse{
			Severity: "FATAL",
			Code:     "08001",
			Message:  fmt.Sprintf("failed to connect to backend %s: %v", backendAddr, err),
		})
		return
	}
	defer backendConn.Close()

	if _, err := backendConn.Write(rawStartupMsg); err != nil {
		logger.Error("Failed to forward startup message", "error", err, "remote_addr", remote)
		return
	}

	pipe(clientConn, backendConn)
}

// pipe copies in both directions until both sides are done.
func pipe(clientConn, backendConn net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, _ = io.Copy(backendConn, clientConn)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(clientConn, backendConn)
	}()

	wg.Wait()
}

func (p *Proxy) sendErrorResponse(conn net.Conn, errResp *ErrorResponse) error {
	var fields []byte
	fields = append(fields, 'S')
	fields = append(fields, []byte(errResp.Severity)...)
	fields = append(fields, 0)
	fields = append(fields, 'C')
	fields = append(fields, []byte(errResp.Code)...)
	fields = append(fields, 0)
	fields = append(fields, 'M')
	fields = append(fields, []byte(errResp.Message)...)
	fields = append(fields, 0)
	fields = append(fields, 0) // Final null terminator

	msg := make([]byte, 1+4+len(fields))
	msg[0] = 'E'
	binary.BigEndian.PutUint32(msg[1:5], uint32(4+len(fields)))
	copy(msg[5:], fields)

	_, writeErr := conn.Write(msg)
	if writeErr != nil {
		logger.Error("Error sending error response", "remote_addr", conn.RemoteAddr(), "error", writeErr)
	} else {
		logger.Info("Sent error response", "remote_addr", conn.RemoteAddr(), "severity", errResp.Severity, "code", errResp.Code, "message", errResp.Message)
	}
	return writeErr
}
