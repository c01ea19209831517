package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

const (
	DefaultSourceCode      = "CARBON"
	DefaultCertificateCode = "CarbonSINK"
)

// Spec is the on-disk genesis description. Empty identities fall back to the
// node configuration.
type Spec struct {
	Admin             string        `json:"admin,omitempty"`
	Issuer            string        `json:"issuer,omitempty"`
	Contract          string        `json:"contract,omitempty"`
	SourceAsset       AssetSpec     `json:"sourceAsset"`
	CertificateAsset  AssetSpec     `json:"certificateAsset"`
	MinimumSinkAmount *int64        `json:"minimumSinkAmount,omitempty"`
	Accounts          []AccountSpec `json:"accounts"`
}

type AssetSpec struct {
	Address string `json:"address,omitempty"`
	Code    string `json:"code,omitempty"`
}

// AccountSpec opens an account. SourceTonnes is a decimal tonne amount of
// the source asset minted at genesis.
type AccountSpec struct {
	Address              string `json:"address"`
	SourceTonnes         string `json:"sourceTonnes,omitempty"`
	SourceTrustline      bool   `json:"sourceTrustline,omitempty"`
	CertificateTrustline bool   `json:"certificateTrustline,omitempty"`
}

// Plan is a validated deployment.
type Plan struct {
	Admin            crypto.Address
	Issuer           crypto.Address
	Contract         crypto.Address
	SourceAsset      crypto.Address
	SourceCode       string
	CertificateAsset crypto.Address
	CertificateCode  string
	Minimum          *int64
	Accounts         []Account
}

type Account struct {
	Address              crypto.Address
	SourceBalance        int64
	SourceTrustline      bool
	CertificateTrustline bool
}

// NewPlan returns a plan deploying contract with two fresh assets and no
// funded accounts. The admin issues the source asset.
func NewPlan(admin, contract, sourceAsset, certificateAsset crypto.Address) *Plan {
	return &Plan{
		Admin:            admin,
		Issuer:           admin,
		Contract:         contract,
		SourceAsset:      sourceAsset,
		SourceCode:       DefaultSourceCode,
		CertificateAsset: certificateAsset,
		CertificateCode:  DefaultCertificateCode,
	}
}

// Load reads the spec at path and resolves it against base.
func Load(path string, base *Plan) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	plan, err := spec.Resolve(base)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return plan, nil
}

// Resolve validates s and merges it over base.
func (s *Spec) Resolve(base *Plan) (*Plan, error) {
	plan := &Plan{}
	if base != nil {
		*plan = *base
		plan.Accounts = nil
	}
	var err error
	if plan.Admin, err = override(plan.Admin, s.Admin, "admin", false); err != nil {
		return nil, err
	}
	if plan.Issuer, err = override(plan.Issuer, s.Issuer, "issuer", false); err != nil {
		return nil, err
	}
	if plan.Issuer.IsZero() {
		plan.Issuer = plan.Admin
	}
	if plan.Contract, err = override(plan.Contract, s.Contract, "contract", true); err != nil {
		return nil, err
	}
	if plan.SourceAsset, err = override(plan.SourceAsset, s.SourceAsset.Address, "sourceAsset.address", true); err != nil {
		return nil, err
	}
	if plan.CertificateAsset, err = override(plan.CertificateAsset, s.CertificateAsset.Address, "certificateAsset.address", true); err != nil {
		return nil, err
	}
	if code := strings.TrimSpace(s.SourceAsset.Code); code != "" {
		plan.SourceCode = code
	}
	if code := strings.TrimSpace(s.CertificateAsset.Code); code != "" {
		plan.CertificateCode = code
	}
	if s.MinimumSinkAmount != nil {
		if *s.MinimumSinkAmount < 0 {
			return nil, fmt.Errorf("minimumSinkAmount must not be negative")
		}
		minimum := *s.MinimumSinkAmount
		plan.Minimum = &minimum
	}

	seen := make(map[string]struct{}, len(s.Accounts))
	for i, acct := range s.Accounts {
		addr, err := crypto.DecodeAddress(acct.Address)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if addr.IsContract() {
			return nil, fmt.Errorf("accounts[%d]: %s is not an account address", i, addr)
		}
		if _, dup := seen[addr.String()]; dup {
			return nil, fmt.Errorf("accounts[%d]: duplicate address %s", i, addr)
		}
		seen[addr.String()] = struct{}{}
		balance, err := events.ParseTonnes(acct.SourceTonnes)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d].sourceTonnes: %w", i, err)
		}
		plan.Accounts = append(plan.Accounts, Account{
			Address:              addr,
			SourceBalance:        balance,
			SourceTrustline:      acct.SourceTrustline || balance > 0,
			CertificateTrustline: acct.CertificateTrustline,
		})
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks that every identity is set and of the right kind.
func (p *Plan) Validate() error {
	switch {
	case p.Admin.IsZero() || p.Admin.IsContract():
		return fmt.Errorf("admin must be an account address")
	case p.Issuer.IsZero() || p.Issuer.IsContract():
		return fmt.Errorf("issuer must be an account address")
	case !p.Contract.IsContract():
		return fmt.Errorf("contract must be a contract address")
	case !p.SourceAsset.IsContract() || !p.CertificateAsset.IsContract():
		return fmt.Errorf("assets must be contract addresses")
	case p.SourceAsset.Equal(p.CertificateAsset):
		return fmt.Errorf("source and certificate assets must differ")
	case p.SourceCode == "" || p.CertificateCode == "":
		return fmt.Errorf("asset codes must be set")
	}
	return nil
}

func override(current crypto.Address, raw, field string, contract bool) (crypto.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return current, nil
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr.IsContract() != contract {
		return crypto.Address{}, fmt.Errorf("%s: unexpected address kind %s", field, addr)
	}
	return addr, nil
}
