package swis

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-cleanhttp"
)

// ErrClientUnavailable means the HTTP client for the inventory server could
// not be built on this host (unreadable trust bundle and similar).
var ErrClientUnavailable = errors.New("remote client unavailable")

// TransportOptions tune the HTTP client used for a session.
type TransportOptions struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string
	// Insecure skips certificate verification (SWIS ships self-signed certs).
	Insecure bool
}

// NewHTTPClient builds a pooled client. No client-level timeout is set;
// requests are bounded by the caller's context and transport defaults.
func NewHTTPClient(opts TransportOptions) (*http.Client, error) {
	transport := cleanhttp.DefaultPooledTransport()

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read CA bundle: %w", ErrClientUnavailable, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrClientUnavailable, opts.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	if opts.Insecure {
		tlsConfig.InsecureSkipVerify = true
	}
	transport.TLSClientConfig = tlsConfig

	return &http.Client{Transport: transport}, nil
}
