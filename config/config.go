package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the sinkd configuration file.
type Config struct {
	ListenAddress    string `toml:"ListenAddress" yaml:"listenAddress"`
	DataDir          string `toml:"DataDir" yaml:"dataDir"`
	Environment      string `toml:"Environment" yaml:"environment"`
	LogLevel         string `toml:"LogLevel" yaml:"logLevel"`
	Contract         string `toml:"Contract" yaml:"contract"`
	Admin            string `toml:"Admin" yaml:"admin"`
	SourceAsset      string `toml:"SourceAsset" yaml:"sourceAsset"`
	CertificateAsset string `toml:"CertificateAsset" yaml:"certificateAsset"`
	// GenesisFile optionally funds accounts and tunes the deployment on first
	// start.
	GenesisFile string `toml:"GenesisFile" yaml:"genesisFile"`

	Indexer   Indexer   `toml:"indexer" yaml:"indexer"`
	Auth      Auth      `toml:"auth" yaml:"auth"`
	RateLimit RateLimit `toml:"rate_limit" yaml:"rateLimit"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
	Host      Host      `toml:"host" yaml:"host"`
}

// Indexer configures the retirement index.
type Indexer struct {
	// DSN is a postgres:// URL or a SQLite path. Empty selects
	// DataDir/retirements.db.
	DSN string `toml:"DSN" yaml:"dsn"`
	// Disabled turns the index off together with the listing RPCs.
	Disabled bool `toml:"Disabled" yaml:"disabled"`
}

// Auth configures bearer capability tokens. Without a secret only signed
// approvals are accepted.
type Auth struct {
	JWTSecret    string   `toml:"JWTSecret" yaml:"jwtSecret"`
	JWTSecretEnv string   `toml:"JWTSecretEnv" yaml:"jwtSecretEnv"`
	Issuer       string   `toml:"Issuer" yaml:"issuer"`
	Audience     string   `toml:"Audience" yaml:"audience"`
	ClockSkew    Duration `toml:"ClockSkew" yaml:"clockSkew"`
}

// RateLimit bounds requests per client address.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int `toml:"Burst" yaml:"burst"`
	// TrustedProxies lists peers (IPs or CIDRs) whose X-Real-IP and
	// X-Forwarded-For headers identify the client.
	TrustedProxies []string `toml:"TrustedProxies" yaml:"trustedProxies"`
}

// Logging configures the optional rotated log file.
type Logging struct {
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}

// Host configures the execution host.
type Host struct {
	InitialLedger  uint32   `toml:"InitialLedger" yaml:"initialLedger"`
	MinInstanceTTL uint32   `toml:"MinInstanceTTL" yaml:"minInstanceTTL"`
	LedgerInterval Duration `toml:"LedgerInterval" yaml:"ledgerInterval"`
}

// Duration decodes Go duration strings ("5s", "2m") from TOML and YAML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// ErrUnsupportedFormat is returned for config files that are neither TOML
// nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Load reads, defaults and validates the configuration at path. The format is
// chosen by extension: .yaml and .yml use YAML, everything else TOML.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".toml", "":
		meta, err := toml.Decode(string(raw), cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write persists cfg as TOML, creating parent directories as needed.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// JWTSecretValue returns the configured secret, preferring the environment
// variable when one is named and set.
func (c *Config) JWTSecretValue() string {
	if env := strings.TrimSpace(c.Auth.JWTSecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(c.Auth.JWTSecret)
}

// IndexerDSN returns the effective indexer DSN.
func (c *Config) IndexerDSN() string {
	if dsn := strings.TrimSpace(c.Indexer.DSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.DataDir, "retirements.db")
}
