package state

import (
	"errors"
	"fmt"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

var (
	// ErrArchived is returned for any access to an instance whose TTL lapsed.
	ErrArchived = errors.New("state: contract instance archived")
	// ErrInstanceMissing is returned when no instance exists for a contract.
	ErrInstanceMissing = errors.New("state: contract instance not found")
	// ErrInstanceExists is returned when creating an instance twice.
	ErrInstanceExists = errors.New("state: contract instance already exists")
)

type instanceLifetime struct {
	LiveUntil uint64
}

// Instance is the per-contract key/value area that shares a single TTL. A
// handle is bound to the ledger sequence it was opened at.
type Instance struct {
	m         *Manager
	contract  crypto.Address
	ledger    uint32
	liveUntil uint32
}

func instanceTTLKey(contract crypto.Address) []byte {
	return joinKey(instanceTTLPrefix, contract.Key())
}

func instanceKey(contract crypto.Address, key string) []byte {
	return joinKey(instancePrefix, contract.Key(), []byte(key))
}

// InstanceExists reports whether an instance was ever created for contract,
// archived or not.
func (m *Manager) InstanceExists(contract crypto.Address) (bool, error) {
	return m.KVHas(instanceTTLKey(contract))
}

// CreateInstance allocates the instance for contract. The creating ledger
// counts towards minTTL, so the resulting TTL is minTTL-1.
func (m *Manager) CreateInstance(contract crypto.Address, ledger, minTTL uint32) (*Instance, error) {
	if contract.IsZero() {
		return nil, fmt.Errorf("state: instance contract must not be empty")
	}
	if minTTL == 0 {
		return nil, fmt.Errorf("state: minimum instance ttl must be positive")
	}
	exists, err := m.InstanceExists(contract)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrInstanceExists
	}
	liveUntil := ledger + minTTL - 1
	if err := m.KVPut(instanceTTLKey(contract), instanceLifetime{LiveUntil: uint64(liveUntil)}); err != nil {
		return nil, err
	}
	return &Instance{m: m, contract: contract, ledger: ledger, liveUntil: liveUntil}, nil
}

// Instance opens the instance for contract at ledger.
func (m *Manager) Instance(contract crypto.Address, ledger uint32) (*Instance, error) {
	var lifetime instanceLifetime
	ok, err := m.KVGet(instanceTTLKey(contract), &lifetime)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInstanceMissing
	}
	if uint64(ledger) > lifetime.LiveUntil {
		return nil, fmt.Errorf("%w: live until %d, current ledger %d", ErrArchived, lifetime.LiveUntil, ledger)
	}
	return &Instance{m: m, contract: contract, ledger: ledger, liveUntil: uint32(lifetime.LiveUntil)}, nil
}

// Contract returns the owning contract.
func (i *Instance) Contract() crypto.Address { return i.contract }

// LiveUntil returns the last ledger at which the instance is live.
func (i *Instance) LiveUntil() uint32 { return i.liveUntil }

// TTL returns the number of ledgers the instance remains live after the
// current one.
func (i *Instance) TTL() uint32 { return i.liveUntil - i.ledger }

// ExtendTTL sets live_until to ledger+extendTo when the current TTL is below
// threshold. It never shortens the lifetime and reports whether it wrote.
func (i *Instance) ExtendTTL(threshold, extendTo uint32) (bool, error) {
	if i.TTL() >= threshold {
		return false, nil
	}
	target := i.ledger + extendTo
	if target <= i.liveUntil {
		return false, nil
	}
	if err := i.m.KVPut(instanceTTLKey(i.contract), instanceLifetime{LiveUntil: uint64(target)}); err != nil {
		return false, err
	}
	i.liveUntil = target
	return true, nil
}

// Get decodes the value stored under key into out.
func (i *Instance) Get(key string, out interface{}) (bool, error) {
	return i.m.KVGet(instanceKey(i.contract, key), out)
}

// Put stores value under key.
func (i *Instance) Put(key string, value interface{}) error {
	return i.m.KVPut(instanceKey(i.contract, key), value)
}

// Has reports whether key is set.
func (i *Instance) Has(key string) (bool, error) {
	return i.m.KVHas(instanceKey(i.contract, key))
}

// Delete removes key.
func (i *Instance) Delete(key string) error {
	return i.m.KVDelete(instanceKey(i.contract, key))
}
