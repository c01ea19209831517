package config

import (
	"strings"
	"time"
)

const (
	DefaultListenAddress     = ":8545"
	DefaultDataDir           = "./sorocarbon-data"
	DefaultEnvironment       = "local"
	DefaultRequestsPerMinute = 120
	DefaultBurst             = 20
	DefaultLogMaxSizeMB      = 100
	DefaultLogMaxBackups     = 5
	DefaultLogMaxAgeDays     = 28
	DefaultMinInstanceTTL    = 4096
	DefaultInitialLedger     = 1
	DefaultLedgerInterval    = 5 * time.Second
	DefaultClockSkew         = 2 * time.Minute
)

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = DefaultEnvironment
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultBurst
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
	if c.Auth.ClockSkew.Duration == 0 {
		c.Auth.ClockSkew.Duration = DefaultClockSkew
	}
	if c.Host.InitialLedger == 0 {
		c.Host.InitialLedger = DefaultInitialLedger
	}
	if c.Host.MinInstanceTTL == 0 {
		c.Host.MinInstanceTTL = DefaultMinInstanceTTL
	}
	if c.Host.LedgerInterval.Duration == 0 {
		c.Host.LedgerInterval.Duration = DefaultLedgerInterval
	}
}
