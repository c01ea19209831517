package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gorm.io/gorm"

	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store, err := New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func addr(prefix crypto.AddressPrefix, b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = b
	return crypto.MustNewAddress(prefix, raw)
}

func retired(receipt string, funder crypto.Address, project string, amount int64, ledger uint32) events.SinkRetired {
	return events.SinkRetired{
		Contract:  addr(crypto.ContractPrefix, 1),
		Funder:    funder,
		Recipient: addr(crypto.AccountPrefix, 9),
		Requested: amount + 1234,
		Amount:    amount,
		ProjectID: project,
		MemoText:  "memo",
		Email:     "someone@example.com",
		Ledger:    ledger,
		ReceiptID: receipt,
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	evt := retired("r1", addr(crypto.AccountPrefix, 2), "VCS-1", 1_000_000, 10)

	require.NoError(t, store.Record(ctx, evt))
	require.NoError(t, store.Record(ctx, evt))

	rows, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, evt.Funder.String(), rows[0].Funder)
	require.NotEqual(t, uuid.Nil, rows[0].ID)

	require.Error(t, store.Record(ctx, retired("", evt.Funder, "VCS-1", 1, 1)))
}

func TestEmitIgnoresOtherEvents(t *testing.T) {
	store := newTestStore(t)
	store.Emit(events.MinimumUpdated{Contract: addr(crypto.ContractPrefix, 1), Minimum: 5})
	store.Emit(retired("r1", addr(crypto.AccountPrefix, 2), "VCS-1", 10_000, 3))

	rows, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestListAndTotalsFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := addr(crypto.AccountPrefix, 2)
	bob := addr(crypto.AccountPrefix, 3)

	require.NoError(t, store.Record(ctx, retired("r1", alice, "VCS-1", 1_000_000, 10)))
	require.NoError(t, store.Record(ctx, retired("r2", alice, "VCS-2", 2_500_000, 11)))
	require.NoError(t, store.Record(ctx, retired("r3", bob, "VCS-1", 10_000_000, 12)))

	rows, err := store.List(ctx, Filter{Funder: alice.String()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "r1", rows[0].ReceiptID)
	require.Equal(t, "r2", rows[1].ReceiptID)

	rows, err = store.List(ctx, Filter{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "r3", rows[0].ReceiptID)

	rows, err = store.List(ctx, Filter{FromLedger: 11, ToLedger: 11})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	totals, err := store.Totals(ctx, Filter{ProjectID: "VCS-1"})
	require.NoError(t, err)
	require.EqualValues(t, 2, totals.Count)
	require.EqualValues(t, 11_000_000, totals.Amount)
	require.Equal(t, "1.1000000", totals.Tonnes.StringFixed(7))

	empty, err := store.Totals(ctx, Filter{Funder: addr(crypto.AccountPrefix, 7).String()})
	require.NoError(t, err)
	require.Zero(t, empty.Count)
	require.True(t, empty.Tonnes.IsZero())
}

func TestExportParquet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := addr(crypto.AccountPrefix, 2)
	require.NoError(t, store.Record(ctx, retired("r1", alice, "VCS-1", 1_000_000, 10)))
	require.NoError(t, store.Record(ctx, retired("r2", alice, "VCS-2", 30_000, 11)))

	path := filepath.Join(t.TempDir(), "retirements.parquet")
	n, err := store.ExportParquet(ctx, path, Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	require.Equal(t, "PAR1", string(raw[:4]))
	require.Equal(t, "PAR1", string(raw[len(raw)-4:]))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 2, pr.GetNumRows())

	rows := make([]parquetRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "r1", rows[0].ReceiptID)
	require.Equal(t, alice.String(), rows[0].Funder)
	require.EqualValues(t, 1_000_000, rows[0].Amount)
	require.Equal(t, "0.1000000", rows[0].Tonnes)
	require.Equal(t, "VCS-2", rows[1].ProjectID)
	require.EqualValues(t, 11, rows[1].Ledger)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ", nil)
	require.ErrorIs(t, err, ErrDSNRequired)
}
