package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the agent section is present; every server field takes its default.
	p := writeConfig(t, `agent:
  server_endpoint: "localhost:50051"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Snapshot.TTL != DefaultSnapshotTTL {
		t.Errorf("snapshot.ttl: got %v, want %v", cfg.Server.Snapshot.TTL, DefaultSnapshotTTL)
	}
	if cfg.Server.Stream.Interval != DefaultStreamInterval {
		t.Errorf("stream.interval: got %v, want %v", cfg.Server.Stream.Interval, DefaultStreamInterval)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-lab-key
  snapshot:
    ttl: 10m
  stream:
    interval: 2s
  alerts:
    rules:
      - name: short-t1
        condition: "t1_us < 20"
        severity: critical
        cooldown: 30m
    webhooks:
      - type: slack
        url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("grpc_port: got %d, want 9090", cfg.Server.GRPCPort)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-lab-key" {
		t.Errorf("header: got %q, want x-lab-key", cfg.Server.Auth.EffectiveHeader())
	}
	if cfg.Server.Snapshot.TTL != 10*time.Minute {
		t.Errorf("snapshot.ttl: got %v, want 10m", cfg.Server.Snapshot.TTL)
	}
	if cfg.Server.Stream.Interval != 2*time.Second {
		t.Errorf("stream.interval: got %v, want 2s", cfg.Server.Stream.Interval)
	}
	if len(cfg.Server.Alerts.Rules) != 1 || cfg.Server.Alerts.Rules[0].Cooldown != 30*time.Minute {
		t.Errorf("alerts.rules: got %+v", cfg.Server.Alerts.Rules)
	}
	if len(cfg.Server.Alerts.Webhooks) != 1 || cfg.Server.Alerts.Webhooks[0].Type != "slack" {
		t.Errorf("alerts.webhooks: got %+v", cfg.Server.Alerts.Webhooks)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEAMS_URL", "https://teams.example.com/webhook")
	w := WebhookConfig{Type: "teams", URLEnv: "TEAMS_URL"}
	if got := w.URL(); got != "https://teams.example.com/webhook" {
		t.Errorf("URL(): got %q", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n"},
		{"port out of range", "server:\n  grpc_port: 70000\n"},
		{"same ports", "server:\n  grpc_port: 8080\n  http_port: 8080\n"},
		{"negative ttl", "server:\n  snapshot:\n    ttl: -1m\n"},
		{"rule without condition", "server:\n  alerts:\n    rules:\n      - name: x\n"},
		{"unknown severity", "server:\n  alerts:\n    rules:\n      - name: x\n        condition: \"t1_us < 5\"\n        severity: loud\n"},
		{"unknown webhook", "server:\n  alerts:\n    webhooks:\n      - type: pager\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
