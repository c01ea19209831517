package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

func TestAttestAndProve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := addr(crypto.AccountPrefix, 2)
	bob := addr(crypto.AccountPrefix, 3)
	require.NoError(t, store.Record(ctx, retired("r1", alice, "VCS-1", 1_000_000, 10)))
	require.NoError(t, store.Record(ctx, retired("r2", bob, "VCS-1", 2_000_000, 11)))
	require.NoError(t, store.Record(ctx, retired("r3", alice, "VCS-2", 3_000_000, 12)))

	att, err := store.Attest(ctx, Filter{ProjectID: "VCS-1"})
	require.NoError(t, err)
	require.Equal(t, 2, att.Count)
	require.EqualValues(t, 3_000_000, att.Amount)
	require.Len(t, att.Root, 64)

	again, err := store.Attest(ctx, Filter{ProjectID: "VCS-1", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, att, again)

	proof, err := store.Prove(ctx, Filter{ProjectID: "VCS-1"}, "r2")
	require.NoError(t, err)
	require.Equal(t, att.Root, proof.Root)

	rows, err := store.List(ctx, Filter{Funder: bob.String()})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	ok, err := VerifyReceipt(rows[0], proof)
	require.NoError(t, err)
	require.True(t, ok)

	tampered := rows[0]
	tampered.Amount++
	ok, err = VerifyReceipt(tampered, proof)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Prove(ctx, Filter{ProjectID: "VCS-1"}, "r3")
	require.ErrorIs(t, err, ErrReceiptNotFound)

	_, err = store.Attest(ctx, Filter{ProjectID: "none"})
	require.ErrorIs(t, err, ErrNoRetirements)
}
