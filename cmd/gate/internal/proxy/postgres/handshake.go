package postgres

import (
	"bytes"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/core"
	"github.com/hasirciogluhq/xtcp-gate/cmd/gate/internal/logger"
)

const sslRequestCode = 80877103

// handshake reads the client's startup exchange: an optional SSLRequest with
// TLS upgrade, then the StartupMessage. It returns the routing metadata, the
// connection to keep using (wrapped in TLS when negotiated), and the startup
// message bytes to forward to the backend.
func (p *Proxy) handshake(conn net.Conn) (core.RoutingMetadata, net.Conn, []byte, error) {
	return p.readStartup(conn, false)
}

// readStartup reads one startup-phase message. sslSeen records that an
// SSLRequest was already answered on this connection; a second one is a
// protocol violation, which also bounds the recursion through negotiateTLS.
func (p *Proxy) readStartup(conn net.Conn, sslSeen bool) (core.RoutingMetadata, net.Conn, []byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read message length: %w", err)
	}

	length := int32(binary.BigEndian.Uint32(header))
	if length < 4 {
		return nil, nil, nil, fmt.Errorf("invalid message length: %d", length)
	}

	payload := make([]byte, length-4)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read message body: %w", err)
	}

	if len(payload) >= 4 && int32(binary.BigEndian.Uint32(payload[0:4])) == sslRequestCode {
		if sslSeen {
			return nil, nil, nil, fmt.Errorf("protocol violation: repeated SSLRequest")
		}
		return p.negotiateTLS(conn)
	}

	params, err := parseStartupParams(payload)
	if err != nil {
		return nil, nil, nil, err
	}
	applyRouting(params)

	if user, ok := params["user"]; ok {
		logger.Info("Connection requested", "user", user, "remote_addr", conn.RemoteAddr())
	}

	rawStartupMsg := forwardedStartupMessage(header, payload, params)
	return core.RoutingMetadata(params), conn, rawStartupMsg, nil
}

// negotiateTLS answers an SSLRequest and, when TLS is configured, upgrades the
// connection before reading the real StartupMessage from the encrypted stream.
func (p *Proxy) negotiateTLS(conn net.Conn) (core.RoutingMetadata, net.Conn, []byte, error) {
	if p.TLSConfig == nil {
		// 'N' rejects SSL; the client retries with a plain StartupMessage.
		if _, err := conn.Write([]byte{'N'}); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to write SSL rejection response: %w", err)
		}
		logger.Info("SSL request rejected - TLS is disabled", "remote_addr", conn.RemoteAddr())
		return p.readStartup(conn, true)
	}

	if _, err := conn.Write([]byte{'S'}); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to write SSL response: %w", err)
	}

	tlsConn := tls.Server(conn, p.TLSConfig)
	if err := tlsConn.Handshake(); err != nil {
		_ = p.sendErrorResponse(conn, &ErrorResponse{
			Severity: "FATAL",
			Code:     "08006",
			Message:  fmt.Sprintf("TLS handshake failed: %v", err),
		})
		return nil, nil, nil, fmt.Errorf("tls handshake failed: %w", err)
	}

	state := tlsConn.ConnectionState()
	logger.Info("TLS handshake successful",
		"protocol", tlsVersionName(state.Version),
		"cipher_suite", tls.CipherSuiteName(state.CipherSuite),
		"remote_addr", conn.RemoteAddr())

	return p.readStartup(tlsConn, true)
}

// parseStartupParams decodes the null-terminated key/value pairs that follow
// the protocol version in a StartupMessage.
func parseStartupParams(payload []byte) (map[string]string, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("startup message too short")
	}

	params := make(map[string]string)
	buf := bytes.NewBuffer(payload[4:]) // Skip protocol version

	for {
		key, err := buf.ReadString(0)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		key = key[:len(key)-1]
		if key == "" {
			break
		}

		value, err := buf.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("malformed startup message")
		}
		params[key] = value[:len(value)-1]
	}

	return params, nil
}

// applyRouting derives deployment_id, pooled and the backend-facing username
// from a user of the form "user.deployment_id[.pool]".
func applyRouting(params map[string]string) {
	user, ok := params["user"]
	if !ok {
		return
	}

	parts := strings.Split(user, ".")
	if len(parts) < 2 {
		params["pooled"] = "false"
		return
	}

	if parts[len(parts)-1] == "pool" {
		params["pooled"] = "true"
		if len(parts) >= 3 {
			params["deployment_id"] = parts[len(parts)-2]
			params["username"] = strings.Join(parts[:len(parts)-2], ".")
		}
		return
	}

	params["pooled"] = "false"
	params["deployment_id"] = parts[len(parts)-1]
	params["username"] = strings.Join(parts[:len(parts)-1], ".")
}

// forwardedStartupMessage returns the startup message to send to the backend:
// the original bytes when the username is untouched, otherwise a rebuilt
// message carrying the backend-facing username without the routing keys.
func forwardedStartupMessage(header, payload []byte, params map[string]string) []byte {
	originalUser, ok := params["user"]
	if !ok {
		return nil
	}

	newUser, ok := params["username"]
	if !ok || newUser == originalUser {
		raw := make([]byte, len(header)+len(payload))
		copy(raw, header)
		copy(raw[4:], payload)
		return raw
	}

	protocolVersion := binary.BigEndian.Uint32(payload[0:4])
	buildParams := make(map[string]string)
	for k, v := range params {
		if k != "deployment_id" && k != "pooled" && k != "username" {
			buildParams[k] = v
		}
	}
	buildParams["user"] = newUser
	return rebuildStartupMessage(protocolVersion, buildParams)
}

func rebuildStartupMessage(protocolVersion uint32, params map[string]string) []byte {
	totalLength := 4 + 4 // Length field + protocol version
	for key, value := range params {
		totalLength += len(key) + 1 + len(value) + 1
	}
	totalLength++ // Final null byte

	msg := make([]byte, totalLength)
	binary.BigEndian.PutUint32(msg[0:4], uint32(totalLength))
	binary.BigEndian.PutUint32(msg[4:8], protocolVersion)

	offset := 8
	for key, value := range params {
		copy(msg[offset:], key)
		offset += len(key)
		msg[offset] = 0
		offset++
		copy(msg[offset:], value)
		offset += len(value)
		msg[offset] = 0
		offset++
	}
	msg[offset] = 0
	return msg
}

func tlsVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLSv1.0"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("Unknown (%x)", version)
	}
}
