package utils

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCert()
	require.NoError(t, err)

	// The pair must round-trip through the standard loader used everywhere
	// a provider hands the certificate to a tls.Config.
	_, err = tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
}
