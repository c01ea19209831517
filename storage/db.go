package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNotFound is returned when a key is absent from the database.
var ErrNotFound = errors.New("storage: key not found")

// Reader exposes point lookups.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Writer exposes point mutations.
type Writer interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Tx is an isolated unit of work. Reads observe the transaction's own writes.
// Nothing is visible to other readers until Commit; Discard drops every write.
type Tx interface {
	Reader
	Writer
	Commit() error
	Discard()
}

// Database is a generic interface for a key-value store with atomic
// transactions. Only one transaction may be open at a time.
type Database interface {
	Reader
	Writer
	Begin() (Tx, error)
	Close()
}

// LevelDB is a key-value store backed by goleveldb, either on disk or in
// memory.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB returns a LevelDB instance over in-memory storage. Used by tests
// and ephemeral deployments.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// The memory backend has no failure modes on open.
		panic(err)
	}
	return &LevelDB{db: db}
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	return value, mapErr(err)
}

// Has reports whether key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Delete removes key. Deleting a missing key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Begin opens a write transaction. It blocks while another transaction is
// open.
func (ldb *LevelDB) Begin() (Tx, error) {
	tr, err := ldb.db.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &levelTx{tr: tr}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}

type levelTx struct {
	tr   *leveldb.Transaction
	done bool
}

func (t *levelTx) Get(key []byte) ([]byte, error) {
	value, err := t.tr.Get(key, nil)
	return value, mapErr(err)
}

func (t *levelTx) Has(key []byte) (bool, error) {
	return t.tr.Has(key, nil)
}

func (t *levelTx) Put(key []byte, value []byte) error {
	return t.tr.Put(key, value, nil)
}

func (t *levelTx) Delete(key []byte) error {
	return t.tr.Delete(key, nil)
}

func (t *levelTx) Commit() error {
	if t.done {
		return errors.New("storage: transaction already closed")
	}
	t.done = true
	return t.tr.Commit()
}

func (t *levelTx) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.tr.Discard()
}

func mapErr(err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
