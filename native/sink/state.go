package sink

import (
	"fmt"

	"github.com/stellarcarbon/sorocarbon/core/state"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

// Instance storage keys.
const (
	KeyAdmin              = "Admin"
	KeySourceAssetID      = "SourceAssetID"
	KeyCertificateAssetID = "CertificateAssetID"
	KeyIsActive           = "IsActive"
	KeyMinimumAmount      = "MinimumAmount"
	KeySuccessor          = "Successor"
	KeyRetirementSequence = "RetirementSequence"
)

// DefaultMinimumAmount is 100 kg.
const DefaultMinimumAmount int64 = 1_000_000

// PolicyStore reads and writes the contract configuration in instance
// storage. It performs no authorization.
type PolicyStore struct {
	inst *state.Instance
}

func NewPolicyStore(inst *state.Instance) *PolicyStore {
	return &PolicyStore{inst: inst}
}

// Initialize writes every field with its default.
func (s *PolicyStore) Initialize(admin, sourceAsset, certificateAsset crypto.Address) error {
	if err := s.putAddress(KeyAdmin, admin); err != nil {
		return err
	}
	if err := s.putAddress(KeySourceAssetID, sourceAsset); err != nil {
		return err
	}
	if err := s.putAddress(KeyCertificateAssetID, certificateAsset); err != nil {
		return err
	}
	if err := s.SetActive(true); err != nil {
		return err
	}
	if err := s.SetMinimum(DefaultMinimumAmount); err != nil {
		return err
	}
	return s.inst.Delete(KeySuccessor)
}

func (s *PolicyStore) putAddress(key string, addr crypto.Address) error {
	if addr.IsZero() {
		return fmt.Errorf("sink: %s must not be empty", key)
	}
	return s.inst.Put(key, addr.Key())
}

func (s *PolicyStore) address(key string) (crypto.Address, bool, error) {
	var raw []byte
	ok, err := s.inst.Get(key, &raw)
	if err != nil || !ok {
		return crypto.Address{}, ok, err
	}
	addr, err := crypto.AddressFromKey(raw)
	return addr, true, err
}

func (s *PolicyStore) requiredAddress(key string) (crypto.Address, error) {
	addr, ok, err := s.address(key)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, fmt.Errorf("%w: %s unset", ErrNotInitialized, key)
	}
	return addr, nil
}

func (s *PolicyStore) Admin() (crypto.Address, error) {
	return s.requiredAddress(KeyAdmin)
}

func (s *PolicyStore) SourceAsset() (crypto.Address, error) {
	return s.requiredAddress(KeySourceAssetID)
}

func (s *PolicyStore) CertificateAsset() (crypto.Address, error) {
	return s.requiredAddress(KeyCertificateAssetID)
}

func (s *PolicyStore) IsActive() (bool, error) {
	var active bool
	ok, err := s.inst.Get(KeyIsActive, &active)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %s unset", ErrNotInitialized, KeyIsActive)
	}
	return active, nil
}

func (s *PolicyStore) SetActive(active bool) error {
	return s.inst.Put(KeyIsActive, active)
}

func (s *PolicyStore) Minimum() (int64, error) {
	var minimum uint64
	ok, err := s.inst.Get(KeyMinimumAmount, &minimum)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s unset", ErrNotInitialized, KeyMinimumAmount)
	}
	return int64(minimum), nil
}

// SetMinimum stores amount. Negative values are refused; callers report them
// as ErrNegativeAmount.
func (s *PolicyStore) SetMinimum(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("sink: minimum must not be negative")
	}
	return s.inst.Put(KeyMinimumAmount, uint64(amount))
}

// Successor returns the successor pointer and whether it is set.
func (s *PolicyStore) Successor() (crypto.Address, bool, error) {
	return s.address(KeySuccessor)
}

func (s *PolicyStore) SetSuccessor(addr crypto.Address) error {
	return s.putAddress(KeySuccessor, addr)
}

// NextRetirement increments and returns the per-instance retirement counter.
func (s *PolicyStore) NextRetirement() (uint64, error) {
	var seq uint64
	if _, err := s.inst.Get(KeyRetirementSequence, &seq); err != nil {
		return 0, err
	}
	seq++
	return seq, s.inst.Put(KeyRetirementSequence, seq)
}
