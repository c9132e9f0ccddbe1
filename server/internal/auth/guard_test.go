package auth

import (
	"errors"
	"testing"

	"github.com/relaxlab/qexp/server/internal/config"
)

func TestNewGuard_ResolvesKeyFromEnv(t *testing.T) {
	t.Setenv("QEXP_TEST_KEY", "lab-secret")

	g := NewGuard(config.AuthConfig{Mode: "apikey", KeyEnv: "QEXP_TEST_KEY", Header: "X-Lab-Key"})
	if !g.Enabled() {
		t.Fatal("guard should be enabled")
	}
	if g.Header() != "x-lab-key" {
		t.Errorf("Header: got %q, want x-lab-key", g.Header())
	}
	if err := g.Check("/api/v1/qubits", "lab-secret"); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestNewGuard_Disabled(t *testing.T) {
	t.Setenv("QEXP_TEST_KEY", "lab-secret")

	tests := []struct {
		name string
		cfg  config.AuthConfig
	}{
		{"mode none", config.AuthConfig{Mode: "none", KeyEnv: "QEXP_TEST_KEY"}},
		{"mtls", config.AuthConfig{Mode: "mtls", KeyEnv: "QEXP_TEST_KEY"}},
		{"apikey without env", config.AuthConfig{Mode: "apikey"}},
		{"apikey with unset env", config.AuthConfig{Mode: "apikey", KeyEnv: "QEXP_UNSET_KEY"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGuard(tc.cfg)
			if g.Enabled() {
				t.Fatal("guard should be disabled")
			}
			if err := g.Check("/api/v1/qubits", ""); err != nil {
				t.Errorf("Check: %v", err)
			}
		})
	}
	if h := NewGuard(config.AuthConfig{}).Header(); h != "x-api-key" {
		t.Errorf("default header: got %q", h)
	}
}

func TestGuard_Check(t *testing.T) {
	g := &Guard{
		header: "x-api-key",
		key:    "secret",
		open:   map[string]bool{"/api/v1/health": true},
	}

	tests := []struct {
		name   string
		target string
		got    string
		want   error
	}{
		{"correct key", "/api/v1/qubits", "secret", nil},
		{"wrong key", "/api/v1/qubits", "secrex", ErrInvalidKey},
		{"key prefix", "/api/v1/qubits", "sec", ErrInvalidKey},
		{"missing key", "/api/v1/qubits", "", ErrMissingKey},
		{"open target", "/api/v1/health", "", nil},
		{"open target ignores bad key", "/api/v1/health", "nope", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := g.Check(tc.target, tc.got); !errors.Is(err, tc.want) {
				t.Errorf("Check: got %v, want %v", err, tc.want)
			}
		})
	}
}
