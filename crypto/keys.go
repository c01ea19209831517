package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part of an encoded address.
type AddressPrefix string

const (
	// AccountPrefix marks externally owned accounts (funders, recipients, admins).
	AccountPrefix AddressPrefix = "sca"
	// ContractPrefix marks contract instances and asset services.
	ContractPrefix AddressPrefix = "scc"
)

// AddressLength is the size of the raw address payload.
const AddressLength = 20

// ErrInvalidAddress is returned when an encoded address cannot be decoded.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// Address represents a 20-byte identity with a human-readable prefix.
// The zero value is the empty address.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
	set    bool
}

// NewAddress builds an address from a prefix and a 20-byte payload.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: payload must be %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	switch prefix {
	case AccountPrefix, ContractPrefix:
	default:
		return Address{}, fmt.Errorf("%w: unknown prefix %q", ErrInvalidAddress, prefix)
	}
	addr := Address{prefix: prefix, set: true}
	copy(addr.bytes[:], b)
	return addr, nil
}

// MustNewAddress is like NewAddress but panics on malformed input. It is
// intended for constants and tests.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// ContractAddress derives a deterministic contract identity from a seed.
func ContractAddress(seed []byte) Address {
	digest := crypto.Keccak256(seed)
	return MustNewAddress(ContractPrefix, digest[len(digest)-AddressLength:])
}

func (a Address) String() string {
	if !a.set {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw payload.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Array returns the raw payload as a fixed-size array.
func (a Address) Array() [AddressLength]byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return !a.set
}

// IsContract reports whether the address identifies a contract.
func (a Address) IsContract() bool {
	return a.set && a.prefix == ContractPrefix
}

// Equal reports whether both addresses carry the same prefix and payload.
func (a Address) Equal(other Address) bool {
	return a.set == other.set && a.prefix == other.prefix && bytes.Equal(a.bytes[:], other.bytes[:])
}

// Key returns a compact binary form (prefix byte + payload) used for storage
// keys and persisted records.
func (a Address) Key() []byte {
	if !a.set {
		return nil
	}
	out := make([]byte, 1+AddressLength)
	if a.prefix == ContractPrefix {
		out[0] = 'c'
	} else {
		out[0] = 'a'
	}
	copy(out[1:], a.bytes[:])
	return out
}

// AddressFromKey reverses Key.
func AddressFromKey(key []byte) (Address, error) {
	if len(key) == 0 {
		return Address{}, nil
	}
	if len(key) != 1+AddressLength {
		return Address{}, fmt.Errorf("%w: key length %d", ErrInvalidAddress, len(key))
	}
	switch key[0] {
	case 'c':
		return NewAddress(ContractPrefix, key[1:])
	case 'a':
		return NewAddress(AccountPrefix, key[1:])
	default:
		return Address{}, fmt.Errorf("%w: key tag %q", ErrInvalidAddress, key[0])
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("%w: invalid bech32 string: %v", ErrInvalidAddress, err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: error converting bits: %v", ErrInvalidAddress, err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Sign produces a 65-byte recoverable secp256k1 signature over digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, k.PrivateKey)
}

func (k *PublicKey) Address() Address {
	return MustNewAddress(AccountPrefix, ethAddress(k).Bytes())
}

func ethAddress(k *PublicKey) common.Address {
	return crypto.PubkeyToAddress(*k.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// RecoverAddress returns the account address that produced signature over digest.
func RecoverAddress(digest, signature []byte) (Address, error) {
	if len(signature) != 65 {
		return Address{}, fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(signature))
	}
	pub, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return Address{}, err
	}
	return (&PublicKey{pub}).Address(), nil
}
