package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
//
// It is built once at process start and treated as immutable afterwards.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Credentials CredentialsConfig `toml:"credentials"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Server      ServerConfig      `toml:"server"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
	APIBaseURL   string `toml:"api_base_url"`
}

// UpstreamConfig tunes calls to the catalog API.
type UpstreamConfig struct {
	RequestTimeout     Duration `toml:"request_timeout"`
	TokenMargin        Duration `toml:"token_margin"`
	TrackBatchSize     int      `toml:"track_batch_size"`
	FeatureBatchSize   int      `toml:"feature_batch_size"`
	FeatureConcurrency int      `toml:"feature_concurrency"`
	RequestsPerSecond  float64  `toml:"requests_per_second"`
	MaxIDs             int      `toml:"max_ids"`
}

// ServerConfig contains HTTP and gRPC server settings.
type ServerConfig struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	GRPCPort          int      `toml:"grpc_port"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
}

// TelemetryConfig toggles OpenTelemetry instrumentation.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// HTTPAddr returns the listen address for the HTTP server.
func (s ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the listen address for the gRPC server.
func (s ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// LoadConfig reads a TOML configuration file from path on top of [DefaultConfig].
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists (falling back to defaults otherwise), applies environment overrides and validates the result.
func ResolveConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := config.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables. lookup defaults to [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	strs := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_TOKEN_URL":     &c.Credentials.Spotify.TokenURL,
		"SPOTIFY_API_BASE_URL":  &c.Credentials.Spotify.APIBaseURL,
		"LOG_LEVEL":             &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"PORT":      &c.Server.Port,
		"GRPC_PORT": &c.Server.GRPCPort,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
		}
		*dst = n
	}

	return nil
}

// Validate checks that credentials are present and numeric settings are usable.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required", ErrMissingCredentials)
	}
	if sp.TokenURL == "" || sp.APIBaseURL == "" {
		return fmt.Errorf("%w: token_url and api_base_url are required", ErrInvalidConfig)
	}

	up := c.Upstream
	switch {
	case up.RequestTimeout.Duration <= 0:
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	case up.TokenMargin.Duration < 0:
		return fmt.Errorf("%w: token_margin must not be negative", ErrInvalidConfig)
	case up.TrackBatchSize < 1:
		return fmt.Errorf("%w: track_batch_size must be at least 1", ErrInvalidConfig)
	case up.FeatureBatchSize < 1:
		return fmt.Errorf("%w: feature_batch_size must be at least 1", ErrInvalidConfig)
	case up.FeatureConcurrency < 1:
		return fmt.Errorf("%w: feature_concurrency must be at least 1", ErrInvalidConfig)
	case up.RequestsPerSecond < 0:
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidConfig)
	case up.MaxIDs < 1:
		return fmt.Errorf("%w: max_ids must be at least 1", ErrInvalidConfig)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 || c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("%w: ports must be within 0-65535", ErrInvalidConfig)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
