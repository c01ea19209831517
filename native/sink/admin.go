package sink

import (
	"fmt"

	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

// admin enters the contract and aborts unless the stored admin authorized
// the invocation.
func (c *Contract) admin(env *core.Env) (*core.Env, *PolicyStore, crypto.Address, error) {
	env, store, err := c.enter(env)
	if err != nil {
		return nil, nil, crypto.Address{}, err
	}
	admin, err := store.Admin()
	if err != nil {
		return nil, nil, crypto.Address{}, core.Abort(err)
	}
	if err := env.RequireAuth(admin); err != nil {
		return nil, nil, crypto.Address{}, err
	}
	return env, store, admin, nil
}

// SetMinimum changes the minimum sink amount.
func (c *Contract) SetMinimum(env *core.Env, amount int64) error {
	env, store, _, err := c.admin(env)
	if err != nil {
		return err
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	if err := store.SetMinimum(amount); err != nil {
		return core.Abort(err)
	}
	env.Emit(events.MinimumUpdated{Contract: c.id, Minimum: amount, Ledger: env.Ledger()})
	return nil
}

// Activate lets Sink accept orders again.
func (c *Contract) Activate(env *core.Env) error {
	return c.setActive(env, true)
}

// Deactivate makes Sink refuse orders with ErrContractDeactivated.
func (c *Contract) Deactivate(env *core.Env) error {
	return c.setActive(env, false)
}

func (c *Contract) setActive(env *core.Env, active bool) error {
	env, store, _, err := c.admin(env)
	if err != nil {
		return err
	}
	if err := store.SetActive(active); err != nil {
		return core.Abort(err)
	}
	env.Emit(events.ActivationChanged{Contract: c.id, Active: active, Ledger: env.Ledger()})
	return nil
}

// ResetAdmin hands the certificate asset's admin role to the contract admin
// and deactivates the contract. The instance can no longer mint afterwards.
func (c *Contract) ResetAdmin(env *core.Env) (crypto.Address, error) {
	env, store, admin, err := c.admin(env)
	if err != nil {
		return crypto.Address{}, err
	}
	certificateID, err := store.CertificateAsset()
	if err != nil {
		return crypto.Address{}, core.Abort(err)
	}
	certificate, err := c.resolve(env, certificateID)
	if err != nil {
		return crypto.Address{}, err
	}
	if err := certificate.SetAdmin(env, admin); err != nil {
		return crypto.Address{}, c.classify(env, StepSetAdmin, err)
	}
	if err := store.SetActive(false); err != nil {
		return crypto.Address{}, core.Abort(err)
	}
	env.Emit(events.AdminReset{Contract: c.id, CertificateAsset: certificateID, Admin: admin, Ledger: env.Ledger()})
	env.Emit(events.ActivationChanged{Contract: c.id, Active: false, Ledger: env.Ledger()})
	c.logger.Warn("certificate admin handed back", "admin", admin.String(), "asset", certificateID.String())
	return admin, nil
}

// SetSuccessor records the address of the instance that replaces this one.
func (c *Contract) SetSuccessor(env *core.Env, successor crypto.Address) error {
	env, store, _, err := c.admin(env)
	if err != nil {
		return err
	}
	if successor.IsZero() {
		return core.Abort(fmt.Errorf("sink: successor must not be empty"))
	}
	if err := store.SetSuccessor(successor); err != nil {
		return core.Abort(err)
	}
	env.Emit(events.SuccessorSet{Contract: c.id, Successor: successor, Ledger: env.Ledger()})
	return nil
}
