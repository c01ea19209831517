package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	admin, err := crypto.DecodeAddress(c.Admin)
	if err != nil {
		return fmt.Errorf("config: Admin: %w", err)
	}
	if admin.IsContract() {
		return fmt.Errorf("config: Admin must be an account address")
	}
	for name, value := range map[string]string{
		"Contract":         c.Contract,
		"SourceAsset":      c.SourceAsset,
		"CertificateAsset": c.CertificateAsset,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		addr, err := crypto.DecodeAddress(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		if !addr.IsContract() {
			return fmt.Errorf("config: %s must be a contract address", name)
		}
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate_limit values must not be negative")
	}
	for _, entry := range c.RateLimit.TrustedProxies {
		if !validProxy(strings.TrimSpace(entry)) {
			return fmt.Errorf("config: rate_limit.TrustedProxies: %q is not an IP or CIDR", entry)
		}
	}
	if c.Host.LedgerInterval.Duration < 0 {
		return fmt.Errorf("config: host.LedgerInterval must not be negative")
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("config: telemetry.SampleRatio must be within [0, 1]")
	}
	return nil
}

func validProxy(entry string) bool {
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

// Deployment identifies the contract and assets served by the node.
type Deployment struct {
	Contract         crypto.Address
	Admin            crypto.Address
	SourceAsset      crypto.Address
	CertificateAsset crypto.Address
}

// Deployment resolves configured identities. Unset contract identities are
// derived deterministically from the environment name.
func (c *Config) Deployment() (Deployment, error) {
	admin, err := crypto.DecodeAddress(c.Admin)
	if err != nil {
		return Deployment{}, fmt.Errorf("config: Admin: %w", err)
	}
	resolve := func(value, seed string) (crypto.Address, error) {
		if strings.TrimSpace(value) == "" {
			return crypto.ContractAddress([]byte("sorocarbon/" + c.Environment + "/" + seed)), nil
		}
		return crypto.DecodeAddress(value)
	}
	d := Deployment{Admin: admin}
	if d.Contract, err = resolve(c.Contract, "sink"); err != nil {
		return Deployment{}, err
	}
	if d.SourceAsset, err = resolve(c.SourceAsset, "asset/CARBON"); err != nil {
		return Deployment{}, err
	}
	if d.CertificateAsset, err = resolve(c.CertificateAsset, "asset/CarbonSINK"); err != nil {
		return Deployment{}, err
	}
	return d, nil
}
