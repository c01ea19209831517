package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBGetMissing(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTxCommitPublishesWrites(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("k"), []byte("v")))

	got, err := tx.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, tx.Commit())

	got, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestTxDiscardDropsWrites(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	require.NoError(t, db.Put([]byte("keep"), []byte("1")))

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("drop"), []byte("2")))
	require.NoError(t, tx.Delete([]byte("keep")))
	tx.Discard()
	tx.Discard()

	has, err := db.Has([]byte("drop"))
	require.NoError(t, err)
	require.False(t, has)
	got, err := db.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	require.Error(t, tx.Commit())
}

func TestLevelDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("a"), []byte("b")))
	db.Close()

	db, err = NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)
}
