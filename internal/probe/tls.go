package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"uptimeninja/internal/monitor"
)

// CertInspector reads the leaf certificate of a TLS endpoint.
type CertInspector struct {
	// Roots overrides the system pool; used by tests.
	Roots *x509.CertPool
	now   func() time.Time
}

func NewCertInspector() *CertInspector {
	return &CertInspector{now: time.Now}
}

// HostPort strips the scheme and path from target and adds port 443 when none
// is given. "https://a.com/x" and "a.com" both yield "a.com:443".
func HostPort(target string) (host, addr string, err error) {
	s := strings.TrimSpace(target)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "", "", errors.New("empty hostname")
	}
	if h, p, splitErr := net.SplitHostPort(s); splitErr == nil {
		return h, net.JoinHostPort(h, p), nil
	}
	s = strings.Trim(s, "[]")
	return s, net.JoinHostPort(s, "443"), nil
}

// Inspect completes a TLS handshake and returns the leaf validity window.
// The handshake accepts any chain so expired or self-signed certificates
// can still be reported; Valid carries the verification result.
func (c *CertInspector) Inspect(ctx context.Context, target string) (monitor.CertMeta, error) {
	host, addr, err := HostPort(target)
	if err != nil {
		return monitor.CertMeta{}, err
	}
	d := &tls.Dialer{Config: &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true, //nolint:gosec // verified manually below
		MinVersion:         tls.VersionTLS12,
	}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return monitor.CertMeta{}, fmt.Errorf("tls dial %s: %w", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return monitor.CertMeta{}, errors.New("no peer certificate")
	}
	leaf := state.PeerCertificates[0]

	inter := x509.NewCertPool()
	for _, ic := range state.PeerCertificates[1:] {
		inter.AddCert(ic)
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	_, verr := leaf.Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         c.Roots,
		Intermediates: inter,
		CurrentTime:   now(),
	})
	return monitor.CertMeta{
		ValidFrom: leaf.NotBefore,
		ValidTo:   leaf.NotAfter,
		Valid:     verr == nil,
	}, nil
}
