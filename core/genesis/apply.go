package genesis

import (
	"context"
	"fmt"
	"math"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/native/asset"
	"github.com/stellarcarbon/sorocarbon/native/sink"
)

// Deployed reports whether contract already has an instance on node.
func Deployed(ctx context.Context, node *core.Node, contract crypto.Address) (bool, error) {
	var exists bool
	inv := auth.Invocation{Contract: contract, Function: "genesis_probe"}
	err := node.Invoke(ctx, inv, auth.None{}, func(env *core.Env) error {
		var err error
		exists, err = env.State().InstanceExists(contract)
		return err
	})
	return exists, err
}

// Apply deploys plan in a single invocation: accounts, both assets, the
// configured trustlines and balances, and the initialized sink contract. It
// returns false without changes when the contract is already deployed.
func Apply(ctx context.Context, node *core.Node, contract *sink.Contract, plan *Plan) (bool, error) {
	if err := plan.Validate(); err != nil {
		return false, err
	}
	if !contract.ID().Equal(plan.Contract) {
		return false, fmt.Errorf("genesis: contract %s does not match plan %s", contract.ID(), plan.Contract)
	}
	deployed, err := Deployed(ctx, node, plan.Contract)
	if err != nil || deployed {
		return false, err
	}

	trusted := auth.Static{plan.Admin, plan.Issuer}
	for _, acct := range plan.Accounts {
		trusted = append(trusted, acct.Address)
	}
	inv := auth.Invocation{Contract: plan.Contract, Function: "genesis"}
	err = node.Invoke(ctx, inv, trusted, func(env *core.Env) error {
		return apply(env, contract, plan)
	})
	if err != nil {
		return false, fmt.Errorf("genesis: %w", err)
	}
	return true, nil
}

func apply(env *core.Env, contract *sink.Contract, plan *Plan) error {
	for _, addr := range []crypto.Address{plan.Admin, plan.Issuer} {
		if err := asset.CreateAccount(env, addr); err != nil {
			return err
		}
	}
	for _, acct := range plan.Accounts {
		if err := asset.CreateAccount(env, acct.Address); err != nil {
			return err
		}
	}

	source, err := ensureAsset(env, plan.SourceAsset, plan.SourceCode, plan.Issuer, plan.Issuer, false)
	if err != nil {
		return err
	}
	certificate, err := ensureAsset(env, plan.CertificateAsset, plan.CertificateCode, plan.Issuer, plan.Contract, true)
	if err != nil {
		return err
	}

	for _, acct := range plan.Accounts {
		if acct.SourceTrustline {
			if err := source.CreateTrustline(env, acct.Address, math.MaxInt64); err != nil {
				return fmt.Errorf("%s trustline for %s: %w", plan.SourceCode, acct.Address, err)
			}
		}
		if acct.SourceBalance > 0 {
			if err := source.Mint(env, acct.Address, acct.SourceBalance); err != nil {
				return fmt.Errorf("mint %s to %s: %w", plan.SourceCode, acct.Address, err)
			}
		}
		if acct.CertificateTrustline {
			if err := certificate.CreateTrustline(env, acct.Address, math.MaxInt64); err != nil {
				return fmt.Errorf("%s trustline for %s: %w", plan.CertificateCode, acct.Address, err)
			}
		}
	}

	if err := contract.Initialize(env, plan.Admin, plan.SourceAsset, plan.CertificateAsset); err != nil {
		return err
	}
	if plan.Minimum != nil {
		if err := contract.SetMinimum(env, *plan.Minimum); err != nil {
			return err
		}
	}
	return nil
}

// ensureAsset initializes the asset at id unless it already exists.
func ensureAsset(env *core.Env, id crypto.Address, code string, issuer, admin crypto.Address, authRequired bool) (*asset.Contract, error) {
	record, err := env.State().Asset(id)
	if err != nil {
		return nil, err
	}
	c := asset.New(id)
	if record != nil {
		return c, nil
	}
	if err := c.Initialize(env, code, issuer, admin, authRequired); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", code, err)
	}
	return c, nil
}
