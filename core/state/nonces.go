package state

import (
	"errors"
	"strconv"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// ErrNonceUsed is returned when a signature nonce is replayed.
var ErrNonceUsed = errors.New("state: nonce already consumed")

type nonceRecord struct {
	ExpirationLedger uint64
}

// nonceBucket lists the nonce records whose approvals expire at one ledger.
type nonceBucket struct {
	Keys [][]byte
}

// nonceCursor is the lowest expiration ledger not yet swept.
type nonceCursor struct {
	Ledger uint64
}

func nonceKey(addr crypto.Address, nonce uint64) []byte {
	return joinKey(noncePrefix, addr.Key(), []byte(strconv.FormatUint(nonce, 10)))
}

func nonceExpiryKey(ledger uint64) []byte {
	return joinKey(nonceExpiryPrefix, []byte(strconv.FormatUint(ledger, 10)))
}

// ConsumeNonce records nonce for addr, failing when it was already used.
func (m *Manager) ConsumeNonce(addr crypto.Address, nonce uint64, expirationLedger uint32) error {
	key := nonceKey(addr, nonce)
	used, err := m.KVHas(key)
	if err != nil {
		return err
	}
	if used {
		return ErrNonceUsed
	}
	if err := m.KVPut(key, nonceRecord{ExpirationLedger: uint64(expirationLedger)}); err != nil {
		return err
	}
	return m.trackNonceExpiry(key, uint64(expirationLedger))
}

func (m *Manager) trackNonceExpiry(key []byte, expiration uint64) error {
	bucketKey := nonceExpiryKey(expiration)
	var bucket nonceBucket
	if _, err := m.KVGet(bucketKey, &bucket); err != nil {
		return err
	}
	bucket.Keys = append(bucket.Keys, key)
	if err := m.KVPut(bucketKey, bucket); err != nil {
		return err
	}
	var cursor nonceCursor
	found, err := m.KVGet(nonceCursorKey, &cursor)
	if err != nil {
		return err
	}
	if found && cursor.Ledger <= expiration {
		return nil
	}
	return m.KVPut(nonceCursorKey, nonceCursor{Ledger: expiration})
}

// PruneNonces deletes the records of nonces whose approvals expired before
// ledger. An approval past its expiration is rejected before its nonce is
// checked, so those records can no longer block a replay. At most maxLedgers
// expiration ledgers are swept per call; zero means no limit. It returns the
// number of nonce records removed.
func (m *Manager) PruneNonces(ledger uint32, maxLedgers uint32) (int, error) {
	var cursor nonceCursor
	found, err := m.KVGet(nonceCursorKey, &cursor)
	if err != nil || !found {
		return 0, err
	}
	removed := 0
	next := cursor.Ledger
	for swept := uint32(0); next < uint64(ledger); next, swept = next+1, swept+1 {
		if maxLedgers != 0 && swept >= maxLedgers {
			break
		}
		bucketKey := nonceExpiryKey(next)
		var bucket nonceBucket
		ok, err := m.KVGet(bucketKey, &bucket)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		for _, key := range bucket.Keys {
			if err := m.KVDelete(key); err != nil {
				return removed, err
			}
			removed++
		}
		if err := m.KVDelete(bucketKey); err != nil {
			return removed, err
		}
	}
	if next == cursor.Ledger {
		return removed, nil
	}
	return removed, m.KVPut(nonceCursorKey, nonceCursor{Ledger: next})
}
