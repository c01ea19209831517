package auth

import (
	"fmt"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// Approval is a signer's secp256k1 signature over one invocation, valid until
// ExpirationLedger and usable once.
type Approval struct {
	Signer           crypto.Address `json:"signer"`
	Nonce            uint64         `json:"nonce"`
	ExpirationLedger uint32         `json:"expirationLedger"`
	Signature        []byte         `json:"signature"`
}

// Sign produces an approval of inv by key.
func Sign(key *crypto.PrivateKey, inv Invocation, nonce uint64, expirationLedger uint32) (Approval, error) {
	digest, err := inv.Digest(nonce, expirationLedger)
	if err != nil {
		return Approval{}, err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return Approval{}, fmt.Errorf("auth: sign invocation: %w", err)
	}
	return Approval{
		Signer:           key.PubKey().Address(),
		Nonce:            nonce,
		ExpirationLedger: expirationLedger,
		Signature:        sig,
	}, nil
}

// Verify checks the signature and expiry of a against inv and consumes its
// nonce.
func (a Approval) Verify(v Verifier, inv Invocation) error {
	if v.Ledger() > a.ExpirationLedger {
		return fmt.Errorf("%w: approval by %s expired at ledger %d", ErrUnauthorized, a.Signer, a.ExpirationLedger)
	}
	digest, err := inv.Digest(a.Nonce, a.ExpirationLedger)
	if err != nil {
		return err
	}
	recovered, err := crypto.RecoverAddress(digest, a.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !recovered.Equal(a.Signer) {
		return fmt.Errorf("%w: signature does not match %s", ErrUnauthorized, a.Signer)
	}
	if err := v.ConsumeNonce(a.Signer, a.Nonce, a.ExpirationLedger); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// Approvals authorizes addresses that supplied a valid signed approval.
type Approvals []Approval

func (as Approvals) Require(v Verifier, addr crypto.Address, inv Invocation) error {
	for _, a := range as {
		if !a.Signer.Equal(addr) {
			continue
		}
		return a.Verify(v, inv)
	}
	return None{}.Require(v, addr, inv)
}
