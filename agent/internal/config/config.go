package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relaxlab/qexp/pkg/decay"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval    = 30 * time.Second
	DefaultShipInterval      = 15 * time.Second
	DefaultBufferSize        = 1000
	DefaultT1Min             = 10e-6
	DefaultT1Max             = 200e-6
	DefaultMaxRelativeStderr = 0.1
	DefaultSyntheticShots    = 2000
	DefaultSyntheticPoints   = 21
)

// Config is the agent's view of config.yaml. The `server:` section of the
// same file is read by the server binary and ignored here.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of qexp-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// ScrapeInterval controls how often each source is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// ShipInterval controls how often buffered results are sent to the server.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of results held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Fit tunes the decay estimator.
	Fit FitConfig `yaml:"fit"`

	// Quality sets the thresholds used to grade a fit.
	Quality QualityConfig `yaml:"quality"`

	// Sources is the list of measurement sources to poll.
	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to qexp-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// FitConfig holds the estimator's initial guess and stopping rules.
type FitConfig struct {
	InitialAmplitude float64 `yaml:"initial_amplitude"`
	InitialDecay     float64 `yaml:"initial_decay"`
	InitialOffset    float64 `yaml:"initial_offset"`
	MaxIterations    int     `yaml:"max_iterations"`
	Tolerance        float64 `yaml:"tolerance"`

	// MinPoints is the number of distinct delays to collect before fitting.
	// Values below decay.MinPoints are rejected.
	MinPoints int `yaml:"min_points"`
}

// Options converts the config into estimator options.
func (f FitConfig) Options() decay.Options {
	return decay.Options{
		Initial: decay.Params{
			Amplitude:     f.InitialAmplitude,
			DecayConstant: f.InitialDecay,
			Offset:        f.InitialOffset,
		},
		MaxIterations: f.MaxIterations,
		Tolerance:     f.Tolerance,
	}
}

// QualityConfig bounds what counts as a trustworthy T1.
type QualityConfig struct {
	// T1Min and T1Max bound the plausible decay constant, in seconds.
	T1Min float64 `yaml:"t1_min"`
	T1Max float64 `yaml:"t1_max"`

	// MaxRelativeStderr is the stderr/T ratio at which precision earns no credit.
	MaxRelativeStderr float64 `yaml:"max_relative_stderr"`
}

// Source describes one measurement source.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is one of: prometheus | file | synthetic.
	Type string `yaml:"type"`

	// Endpoint is the metrics URL of an instrument exporter (prometheus).
	Endpoint string `yaml:"endpoint"`

	// Path is the sweep JSON file (file).
	Path string `yaml:"path"`

	// Synthetic configures generated sweeps (synthetic).
	Synthetic SyntheticConfig `yaml:"synthetic"`

	// Auth configures how the agent authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// SyntheticConfig describes a generated relaxation sweep.
type SyntheticConfig struct {
	Qubits     []int   `yaml:"qubits"`
	T1         float64 `yaml:"t1"`
	Amplitude  float64 `yaml:"amplitude"`
	Offset     float64 `yaml:"offset"`
	MaxDelay   float64 `yaml:"max_delay"`
	Points     int     `yaml:"points"`
	Shots      int     `yaml:"shots"`
	NoiseLevel float64 `yaml:"noise_level"`
	Seed       uint64  `yaml:"seed"`
}

// AuthConfig specifies the authentication mode for a source or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields: used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header (or gRPC metadata key) carrying the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns Header, or "x-api-key" when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applySourceDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	opts := decay.DefaultOptions()
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			ShipInterval:   DefaultShipInterval,
			BufferSize:     DefaultBufferSize,
			Fit: FitConfig{
				InitialAmplitude: opts.Initial.Amplitude,
				InitialDecay:     opts.Initial.DecayConstant,
				InitialOffset:    opts.Initial.Offset,
				MaxIterations:    opts.MaxIterations,
				Tolerance:        opts.Tolerance,
				MinPoints:        decay.MinPoints,
			},
			Quality: QualityConfig{
				T1Min:             DefaultT1Min,
				T1Max:             DefaultT1Max,
				MaxRelativeStderr: DefaultMaxRelativeStderr,
			},
		},
	}
}

// applySourceDefaults fills per-source fields that cannot be expressed in
// defaults() because the slice is only known after parsing.
func applySourceDefaults(cfg *Config) {
	for i := range cfg.Agent.Sources {
		syn := &cfg.Agent.Sources[i].Synthetic
		if cfg.Agent.Sources[i].Type != "synthetic" {
			continue
		}
		if len(syn.Qubits) == 0 {
			syn.Qubits = []int{0}
		}
		if syn.T1 == 0 {
			syn.T1 = decay.DefaultDecayConstant
		}
		if syn.Amplitude == 0 {
			syn.Amplitude = 1
		}
		if syn.MaxDelay == 0 {
			syn.MaxDelay = 4 * syn.T1
		}
		if syn.Points == 0 {
			syn.Points = DefaultSyntheticPoints
		}
		if syn.Shots == 0 {
			syn.Shots = DefaultSyntheticShots
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.Fit.InitialDecay <= 0 {
		return fmt.Errorf("agent.fit.initial_decay must be positive")
	}
	if a.Fit.MaxIterations <= 0 {
		return fmt.Errorf("agent.fit.max_iterations must be positive")
	}
	if a.Fit.Tolerance <= 0 {
		return fmt.Errorf("agent.fit.tolerance must be positive")
	}
	if a.Fit.MinPoints < decay.MinPoints {
		return fmt.Errorf("agent.fit.min_points must be at least %d", decay.MinPoints)
	}
	if a.Quality.T1Min < 0 || a.Quality.T1Max <= a.Quality.T1Min {
		return fmt.Errorf("agent.quality: t1_max must exceed t1_min >= 0")
	}
	if a.Quality.MaxRelativeStderr <= 0 {
		return fmt.Errorf("agent.quality.max_relative_stderr must be positive")
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Type {
		case "prometheus":
			if src.Endpoint == "" {
				return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
			}
		case "file":
			if src.Path == "" {
				return fmt.Errorf("sources[%d] %q: path is required", i, src.ID)
			}
		case "synthetic":
			if err := validateSynthetic(src.Synthetic); err != nil {
				return fmt.Errorf("sources[%d] %q: %w", i, src.ID, err)
			}
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}

		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}

	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}
	return nil
}

func validateSynthetic(s SyntheticConfig) error {
	if s.T1 <= 0 {
		return fmt.Errorf("synthetic.t1 must be positive")
	}
	if s.MaxDelay <= 0 {
		return fmt.Errorf("synthetic.max_delay must be positive")
	}
	if s.Points < decay.MinPoints {
		return fmt.Errorf("synthetic.points must be at least %d", decay.MinPoints)
	}
	if s.Shots <= 0 {
		return fmt.Errorf("synthetic.shots must be positive")
	}
	if s.NoiseLevel < 0 {
		return fmt.Errorf("synthetic.noise_level must not be negative")
	}
	for _, q := range s.Qubits {
		if q < 0 {
			return fmt.Errorf("synthetic.qubits: negative index %d", q)
		}
	}
	return nil
}
