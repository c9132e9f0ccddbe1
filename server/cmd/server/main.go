package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/relaxlab/qexp/pkg/transport"
	"github.com/relaxlab/qexp/pkg/types"
	"github.com/relaxlab/qexp/server/internal/alerts"
	"github.com/relaxlab/qexp/server/internal/api"
	"github.com/relaxlab/qexp/server/internal/auth"
	"github.com/relaxlab/qexp/server/internal/config"
	"github.com/relaxlab/qexp/server/internal/metrics"
	"github.com/relaxlab/qexp/server/internal/receiver"
	"github.com/relaxlab/qexp/server/internal/store"
	"github.com/relaxlab/qexp/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("qexp-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"auth_header", cfg.Server.Auth.EffectiveHeader(),
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	// Fit store with background TTL eviction.
	st := store.New(cfg.Server.Snapshot.TTL)
	st.OnEvict(func(s *types.FitSnapshot) { m.ForgetQubit(s.SourceID, s.Qubit) })
	go st.Run(ctx)

	// Alerts engine, evaluated on every incoming snapshot.
	alertEngine, err := alerts.New(cfg.Server.Alerts)
	if err != nil {
		slog.Error("invalid alert rules", "err", err)
		os.Exit(1)
	}

	// WebSocket hub: periodic snapshots plus immediate alert events.
	hub := ws.New(st, cfg.Server.Stream.Interval)
	go hub.Run(ctx)

	alertEngine.OnEvent(func(a *alerts.Alert) {
		m.AlertEvents.WithLabelValues(a.RuleName, a.State).Inc()
		hub.Publish(ws.EventAlert, a)
	})

	m.RegisterGauge("qubits_tracked", "Qubits currently held in the store.", func() float64 { return float64(st.Count()) })
	m.RegisterGauge("alerts_firing", "Alerts currently firing.", func() float64 { return float64(alertEngine.FiringCount()) })
	m.RegisterGauge("stream_clients", "Connected WebSocket clients.", func() float64 { return float64(hub.Count()) })

	// One guard serves both listeners. Health checks and /metrics stay open
	// so orchestrators and scrapers need no key.
	guard := auth.NewGuard(cfg.Server.Auth,
		"/api/v1/health",
		"/grpc.health.v1.Health/Check",
	)

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(guard.UnaryInterceptor(), m.GRPCUnaryInterceptor()))
	transport.RegisterResultServiceServer(grpcSrv, receiver.New(st, alertEngine, m))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(transport.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	m.InitializeGRPC(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port",
			"port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API, WebSocket hub and /metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", guard.Middleware(api.New(st, alertEngine, m)))
	httpMux.Handle("/ws/stream", guard.Middleware(hub))
	httpMux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           m.HTTPMiddleware(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("qexp-server shutting down")
	healthSrv.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
