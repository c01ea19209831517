package auth

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// ErrUnauthorized is returned when an address did not authorize an invocation.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Invocation identifies a contract call that an address may authorize.
type Invocation struct {
	Contract crypto.Address
	Function string
	Args     []string
}

type signingPayload struct {
	Domain           string
	Contract         []byte
	Function         string
	Args             []string
	Nonce            uint64
	ExpirationLedger uint64
}

const signingDomain = "sorocarbon/auth/v1"

// Digest returns the keccak256 hash a signer commits to when approving inv.
func (inv Invocation) Digest(nonce uint64, expirationLedger uint32) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(signingPayload{
		Domain:           signingDomain,
		Contract:         inv.Contract.Key(),
		Function:         inv.Function,
		Args:             inv.Args,
		Nonce:            nonce,
		ExpirationLedger: uint64(expirationLedger),
	})
	if err != nil {
		return nil, fmt.Errorf("auth: encode invocation: %w", err)
	}
	return ethcrypto.Keccak256(encoded), nil
}

func (inv Invocation) String() string {
	return fmt.Sprintf("%s.%s", inv.Contract, inv.Function)
}

// Verifier exposes the host facilities a credential check needs.
type Verifier interface {
	Ledger() uint32
	ConsumeNonce(addr crypto.Address, nonce uint64, expirationLedger uint32) error
}

// Context decides whether addr authorized inv. Implementations return an
// error wrapping ErrUnauthorized when it did not.
type Context interface {
	Require(v Verifier, addr crypto.Address, inv Invocation) error
}

// None authorizes nothing.
type None struct{}

func (None) Require(_ Verifier, addr crypto.Address, inv Invocation) error {
	return fmt.Errorf("%w: %s did not authorize %s", ErrUnauthorized, addr, inv)
}

// Set tries each context in order and succeeds on the first that authorizes.
type Set []Context

func (s Set) Require(v Verifier, addr crypto.Address, inv Invocation) error {
	var errs []error
	for _, c := range s {
		if c == nil {
			continue
		}
		err := c.Require(v, addr, inv)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return None{}.Require(v, addr, inv)
	}
	return errors.Join(errs...)
}

// Static authorizes a fixed list of addresses for every invocation. It backs
// operator bootstrap and in-process tests.
type Static []crypto.Address

func (s Static) Require(v Verifier, addr crypto.Address, inv Invocation) error {
	for _, allowed := range s {
		if allowed.Equal(addr) {
			return nil
		}
	}
	return None{}.Require(v, addr, inv)
}
