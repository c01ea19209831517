package core

import (
	"context"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/core/state"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

// scope is shared by every frame of one invocation.
type scope struct {
	root        auth.Invocation
	auth        auth.Context
	authorized  map[string]struct{}
	events      []events.Event
	diagnostics []events.Event
}

// Env is the execution environment of one contract frame. Nested calls into
// other contracts get their own frame through Frame but share the storage
// transaction, the authorization record and the event buffers.
type Env struct {
	ctx            context.Context
	state          *state.Manager
	ledger         uint32
	minInstanceTTL uint32
	contract       crypto.Address
	caller         crypto.Address
	scope          *scope
}

// Context returns the request context the invocation started with.
func (e *Env) Context() context.Context { return e.ctx }

// State returns the state manager bound to the invocation's transaction.
func (e *Env) State() *state.Manager { return e.state }

// Ledger returns the ledger sequence the invocation executes at.
func (e *Env) Ledger() uint32 { return e.ledger }

// MinInstanceTTL is the lifetime, in ledgers, granted to new instances.
func (e *Env) MinInstanceTTL() uint32 { return e.minInstanceTTL }

// CurrentContract returns the contract executing in this frame.
func (e *Env) CurrentContract() crypto.Address { return e.contract }

// Caller returns the contract that called into this frame, zero at the root.
func (e *Env) Caller() crypto.Address { return e.caller }

// Invocation returns the root invocation.
func (e *Env) Invocation() auth.Invocation { return e.scope.root }

// Frame returns an environment for a nested call into contract.
func (e *Env) Frame(contract crypto.Address) *Env {
	child := *e
	child.caller = e.contract
	child.contract = contract
	return &child
}

// Instance opens the current contract's instance storage.
func (e *Env) Instance() (*state.Instance, error) {
	return e.state.Instance(e.contract, e.ledger)
}

// RequireAuth aborts unless addr authorized the root invocation. A contract is
// implicitly authorized towards the contracts it calls directly. Once an
// address is authorized it stays authorized for the rest of the invocation.
func (e *Env) RequireAuth(addr crypto.Address) error {
	if addr.IsZero() {
		return Abortf("%w: empty address", auth.ErrUnauthorized)
	}
	if !e.caller.IsZero() && addr.Equal(e.caller) {
		return nil
	}
	key := addr.String()
	if _, ok := e.scope.authorized[key]; ok {
		return nil
	}
	ac := e.scope.auth
	if ac == nil {
		ac = auth.None{}
	}
	if err := ac.Require(e, addr, e.scope.root); err != nil {
		return Abort(err)
	}
	e.scope.authorized[key] = struct{}{}
	return nil
}

// ConsumeNonce implements auth.Verifier.
func (e *Env) ConsumeNonce(addr crypto.Address, nonce uint64, expirationLedger uint32) error {
	return e.state.ConsumeNonce(addr, nonce, expirationLedger)
}

// Emit buffers a contract event. Buffered events are published only when the
// invocation commits.
func (e *Env) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.scope.events = append(e.scope.events, evt)
}

// Diagnose buffers a diagnostic event. Diagnostics are published whether or
// not the invocation commits.
func (e *Env) Diagnose(evt events.Event) {
	if evt == nil {
		return
	}
	e.scope.diagnostics = append(e.scope.diagnostics, evt)
}
