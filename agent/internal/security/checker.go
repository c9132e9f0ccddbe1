package security

import (
	"context"
	"crypto/tls"
	"log/slog"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/relaxlab/qexp/agent/internal/config"
)

// Certificate states.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// ExpiryWarnDays is how close to NotAfter a certificate counts as expiring.
const ExpiryWarnDays = 30

const dialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate served by one source endpoint.
type CertStatus struct {
	SourceID string
	Endpoint string
	AuthType string
	Status   string
	DaysLeft int
	Issuer   string
	NotAfter time.Time
	Err      error
}

// Check dials the TLS endpoint for the given source and returns a CertStatus
// describing the leaf certificate.
//
// Returns nil for sources without an https endpoint (files, synthetic
// generators, plain-HTTP exporters). Uses a 10-second dial timeout so an
// unreachable instrument does not stall the agent.
func Check(ctx context.Context, src config.Source, now time.Time) *CertStatus {
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{
		SourceID: src.ID,
		Endpoint: src.Endpoint,
		AuthType: src.Auth.Mode,
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		cs.Err = err
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = StatusExpired
	case daysLeft <= ExpiryWarnDays:
		cs.Status = StatusExpiring
	default:
		cs.Status = StatusValid
	}
	return cs
}

// Audit checks every source and logs a warning for certificates that are
// expiring, expired or unreachable. It returns the statuses it collected.
func Audit(ctx context.Context, srcs []config.Source, now time.Time) []*CertStatus {
	var out []*CertStatus
	for _, src := range srcs {
		cs := Check(ctx, src, now)
		if cs == nil {
			continue
		}
		out = append(out, cs)
		switch cs.Status {
		case StatusValid:
			slog.Debug("security: certificate valid", "source", cs.SourceID, "days_left", cs.DaysLeft)
		case StatusUnreachable:
			slog.Warn("security: tls endpoint unreachable", "source", cs.SourceID, "endpoint", cs.Endpoint, "err", cs.Err)
		default:
			slog.Warn("security: certificate needs renewal",
				"source", cs.SourceID,
				"status", cs.Status,
				"days_left", cs.DaysLeft,
				"not_after", cs.NotAfter,
				"issuer", cs.Issuer,
			)
		}
	}
	return out
}
