package postgres

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sslRequestMessage() []byte {
	msg := make([]byte, 8)
	binary.BigEndian.PutUint32(msg[0:4], 8)
	binary.BigEndian.PutUint32(msg[4:8], sslRequestCode)
	return msg
}

func TestHandleConnectionSurvivesHandshakeFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, err := ln.Accept()
	require.NoError(t, err)

	// A client that hangs up before sending a startup message, the way a
	// port scanner or TCP health check does.
	require.NoError(t, client.Close())

	p := &Proxy{}
	require.NotPanics(t, func() { p.HandleConnection(server) })
}

func TestHandshakeRejectsRepeatedSSLRequest(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write(sslRequestMessage())

		// Consume the 'N' rejection, then violate the protocol by asking
		// again instead of sending the StartupMessage.
		reply := make([]byte, 1)
		client.Read(reply)
		client.Write(sslRequestMessage())
	}()

	p := &Proxy{} // no TLSConfig, so the first SSLRequest gets 'N'
	_, _, _, err := p.handshake(server)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSLRequest")
}
