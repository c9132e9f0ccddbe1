package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/relaxlab/qexp/agent/internal/compute"
	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/pkg/transport"
	"github.com/relaxlab/qexp/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers compute.Results and ships them to qexp-server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest snapshot is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	mu     sync.RWMutex
	cfg    config.AgentConfig
	buf    chan *types.FitSnapshot
	dialFn dialFunc // injectable for tests
}

// dialFunc opens a gRPC connection. Abstracted so tests can point the
// shipper at an in-process server.
type dialFunc func(endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *types.FitSnapshot, cfg.BufferSize),
		dialFn: defaultDial,
	}
}

// SetAuth swaps the server credentials used for subsequent sends. Endpoint
// and buffer size changes need a restart.
func (s *Shipper) SetAuth(auth config.AuthConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ServerAuth = auth
}

// Ship converts a compute.Result to a snapshot and enqueues it.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(res *compute.Result) {
	snap := toSnapshot(res)
	for {
		select {
		case s.buf <- snap:
			return
		default:
		}
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest snapshot",
				"key", snap.Key(), "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending returns the number of buffered snapshots.
func (s *Shipper) Pending() int {
	return len(s.buf)
}

// Run drains the buffer, sending snapshots to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()
	endpoint := s.cfg.ServerEndpoint

	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.RLock()
		cfg := s.cfg
		s.mu.RUnlock()

		conn, err := s.dialFn(endpoint, cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", endpoint,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: connected", "endpoint", endpoint)

		delivered, err := s.drain(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if delivered {
			bo.reset()
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", endpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain reads from the buffer and sends snapshots until a send fails with a
// transient error or ctx is cancelled. It reports whether anything was
// delivered on this connection.
func (s *Shipper) drain(ctx context.Context, conn grpc.ClientConnInterface) (bool, error) {
	client := transport.NewResultServiceClient(conn)
	var delivered bool

	for {
		select {
		case <-ctx.Done():
			return delivered, nil

		case snap := <-s.buf:
			sendCtx, cancel := context.WithTimeout(s.outgoing(ctx), sendTimeout)
			resp, err := client.SendResult(sendCtx, snap)
			cancel()

			if err != nil {
				// Permanent errors (unauthenticated, invalid arg) → log and discard.
				if isPermanentError(err) {
					slog.Error("shipper: permanent send error, discarding snapshot",
						"key", snap.Key(), "err", err)
					continue
				}
				// Transient errors → requeue if there's room and reconnect.
				select {
				case s.buf <- snap:
				default:
				}
				return delivered, fmt.Errorf("send: %w", err)
			}

			delivered = true
			if !resp.Ok {
				slog.Warn("shipper: server rejected snapshot",
					"key", snap.Key(), "message", resp.Message)
			} else {
				slog.Debug("shipper: snapshot delivered", "key", snap.Key(), "state", snap.State)
			}
		}
	}
}

// outgoing attaches the API key to ctx when the server expects one.
func (s *Shipper) outgoing(ctx context.Context) context.Context {
	s.mu.RLock()
	auth := s.cfg.ServerAuth
	s.mu.RUnlock()

	if auth.Mode == "apikey" && auth.KeyEnv != "" {
		return metadata.AppendToOutgoingContext(ctx, auth.EffectiveHeader(), auth.Key())
	}
	return ctx
}

// isPermanentError returns true for gRPC errors that indicate the snapshot
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// defaultDial creates a gRPC client for endpoint with auth configured from
// cfg. The connection is established lazily on the first send.
func defaultDial(endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(endpoint, opts...)
}

// dialOptions builds grpc.DialOption slice based on the server auth config.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	switch cfg.ServerAuth.Mode {
	case "mtls":
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil

	default: // apikey travels as metadata; "none" or empty is plaintext for local dev
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
}

// buildMTLSCreds loads client certificate and optional CA from the auth config.
func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
