package state

import (
	"fmt"
	"math/big"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// AssetRecord is the persisted metadata of an asset service.
type AssetRecord struct {
	Code         string
	Issuer       []byte
	Admin        []byte
	AuthRequired bool
}

// Trustline is a holder's balance row for one asset.
type Trustline struct {
	Balance    *big.Int
	Limit      *big.Int
	Authorized bool
}

type accountRecord struct {
	Exists bool
}

func assetKey(asset crypto.Address) []byte {
	return joinKey(assetPrefix, asset.Key())
}

func trustlineKey(asset, holder crypto.Address) []byte {
	return joinKey(trustlinePrefix, asset.Key(), holder.Key())
}

func accountKey(addr crypto.Address) []byte {
	return joinKey(accountPrefix, addr.Key())
}

// Asset loads the metadata for asset. A nil record means the asset does not
// exist.
func (m *Manager) Asset(asset crypto.Address) (*AssetRecord, error) {
	record := new(AssetRecord)
	ok, err := m.KVGet(assetKey(asset), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return record, nil
}

// PutAsset stores the metadata for asset.
func (m *Manager) PutAsset(asset crypto.Address, record *AssetRecord) error {
	if record == nil {
		return fmt.Errorf("state: asset record must not be nil")
	}
	return m.KVPut(assetKey(asset), record)
}

// Trustline loads the balance row of holder for asset. A nil row means no
// trustline exists.
func (m *Manager) Trustline(asset, holder crypto.Address) (*Trustline, error) {
	line := new(Trustline)
	ok, err := m.KVGet(trustlineKey(asset, holder), line)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if line.Balance == nil {
		line.Balance = big.NewInt(0)
	}
	if line.Limit == nil {
		line.Limit = big.NewInt(0)
	}
	return line, nil
}

// PutTrustline stores the balance row of holder for asset.
func (m *Manager) PutTrustline(asset, holder crypto.Address, line *Trustline) error {
	if line == nil {
		return fmt.Errorf("state: trustline must not be nil")
	}
	if line.Balance == nil {
		line.Balance = big.NewInt(0)
	}
	if line.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance not allowed")
	}
	if line.Limit == nil {
		line.Limit = big.NewInt(0)
	}
	return m.KVPut(trustlineKey(asset, holder), line)
}

// AccountExists reports whether addr was created.
func (m *Manager) AccountExists(addr crypto.Address) (bool, error) {
	return m.KVHas(accountKey(addr))
}

// CreateAccount marks addr as an existing account. Creating an existing
// account is a no-op.
func (m *Manager) CreateAccount(addr crypto.Address) error {
	if addr.IsZero() {
		return fmt.Errorf("state: account address must not be empty")
	}
	return m.KVPut(accountKey(addr), accountRecord{Exists: true})
}
