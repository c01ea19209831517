package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	"lukechampine.com/blake3"
)

const headerIdempotency = "Idempotency-Key"

var bucketIdempotency = []byte("idempotency")

// IdempotencyRecord is a cached response for a retried mutating request.
type IdempotencyRecord struct {
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"storedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// IdempotencyStore persists responses keyed by client-supplied idempotency
// keys so that retried sink orders are not executed twice.
type IdempotencyStore struct {
	db *bolt.DB
}

// OpenIdempotencyStore opens or creates the store at path.
func OpenIdempotencyStore(path string, options *bolt.Options) (*IdempotencyStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdempotency)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &IdempotencyStore{db: db}, nil
}

// Close releases the Bolt handle.
func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the live record for key. Expired records are removed.
func (s *IdempotencyStore) Get(key string, now time.Time) (IdempotencyRecord, bool, error) {
	var record IdempotencyRecord
	found := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
		if now.After(record.ExpiresAt) {
			record = IdempotencyRecord{}
			return bucket.Delete([]byte(key))
		}
		found = true
		return nil
	})
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return record, found, nil
}

// Put stores record under key.
func (s *IdempotencyStore) Put(key string, record IdempotencyRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdempotency).Put([]byte(key), payload)
	})
}

// idempotencyKey scopes the client key to the method, the identities the
// request claims to act for and the exact params. A retry must repeat the
// same signed params to replay the stored response.
func idempotencyKey(method, key string, identities []string, params []json.RawMessage) string {
	h := blake3.New(32, nil)
	for _, part := range []string{method, strings.TrimSpace(key), strings.Join(identities, ",")} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	for _, raw := range params {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			_, _ = h.Write(raw)
		} else {
			_, _ = h.Write(compact.Bytes())
		}
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// cacheable reports whether a response may be replayed. Aborted and
// unauthorized calls changed nothing and must stay retryable.
func cacheable(status int, rpcErr *RPCError) bool {
	if status >= http.StatusInternalServerError {
		return false
	}
	if rpcErr == nil {
		return true
	}
	switch rpcErr.Code {
	case codeAborted, codeUnauthorized, codeRateLimited, codeUnavailable:
		return false
	}
	return true
}
