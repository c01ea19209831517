package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/core/state"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/storage"
)

func newTestNode(t *testing.T) (*Node, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := NewNode(db, HostConfig{InitialLedger: 100_000, MinInstanceTTL: 35_001}, nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node, db
}

var testContract = crypto.ContractAddress([]byte("test-contract"))

func testInvocation(fn string) auth.Invocation {
	return auth.Invocation{Contract: testContract, Function: fn}
}

func TestInvokeCommitsAndPublishes(t *testing.T) {
	node, _ := newTestNode(t)
	var published, diagnosed events.Recorder
	node.SetEventEmitter(&published)
	node.SetDiagnosticEmitter(&diagnosed)

	err := node.Invoke(context.Background(), testInvocation("put"), nil, func(env *Env) error {
		env.Emit(events.ActivationChanged{Contract: env.CurrentContract(), Active: true})
		env.Diagnose(events.SinkDiagnostic{Step: "noop"})
		return env.State().KVPut([]byte("k"), uint64(7))
	})
	require.NoError(t, err)
	require.Len(t, published.Events(), 1)
	require.Len(t, diagnosed.Events(), 1)

	var got uint64
	err = node.Invoke(context.Background(), testInvocation("get"), nil, func(env *Env) error {
		ok, err := env.State().KVGet([]byte("k"), &got)
		require.True(t, ok)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint64(7), got)
}

func TestInvokeDiscardsOnError(t *testing.T) {
	node, _ := newTestNode(t)
	var published, diagnosed events.Recorder
	node.SetEventEmitter(&published)
	node.SetDiagnosticEmitter(&diagnosed)

	typed := errors.New("typed failure")
	err := node.Invoke(context.Background(), testInvocation("put"), nil, func(env *Env) error {
		require.NoError(t, env.State().KVPut([]byte("k"), uint64(7)))
		env.Emit(events.ActivationChanged{Active: false})
		env.Diagnose(events.SinkDiagnostic{Step: "burn", Result: 1069})
		return typed
	})
	require.ErrorIs(t, err, typed)
	require.False(t, IsAbort(err))
	require.Empty(t, published.Events())
	require.Len(t, diagnosed.Events(), 1)

	err = node.Invoke(context.Background(), testInvocation("get"), nil, func(env *Env) error {
		has, err := env.State().KVHas([]byte("k"))
		require.False(t, has)
		return err
	})
	require.NoError(t, err)
}

func TestInvokeRecoversPanics(t *testing.T) {
	node, _ := newTestNode(t)
	err := node.Invoke(context.Background(), testInvocation("boom"), nil, func(env *Env) error {
		require.NoError(t, env.State().KVPut([]byte("k"), uint64(1)))
		panic("boom")
	})
	require.True(t, IsAbort(err))

	err = node.Invoke(context.Background(), testInvocation("get"), nil, func(env *Env) error {
		has, err := env.State().KVHas([]byte("k"))
		require.False(t, has)
		return err
	})
	require.NoError(t, err)
}

func TestInvokeHonoursCancelledContext(t *testing.T) {
	node, _ := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := node.Invoke(ctx, testInvocation("noop"), nil, func(*Env) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestRequireAuth(t *testing.T) {
	node, _ := newTestNode(t)
	admin := crypto.MustNewAddress(crypto.AccountPrefix, []byte("admin-admin-admin-ad"))
	other := crypto.MustNewAddress(crypto.AccountPrefix, []byte("other-other-other-ot"))
	asset := crypto.ContractAddress([]byte("asset"))

	err := node.Invoke(context.Background(), testInvocation("admin"), auth.Static{admin}, func(env *Env) error {
		if err := env.RequireAuth(admin); err != nil {
			return err
		}
		// The calling contract is implicitly authorized in a nested frame.
		nested := env.Frame(asset)
		require.True(t, nested.Caller().Equal(testContract))
		if err := nested.RequireAuth(testContract); err != nil {
			return err
		}
		// Authorization of the root invocation carries into nested frames.
		return nested.RequireAuth(admin)
	})
	require.NoError(t, err)

	err = node.Invoke(context.Background(), testInvocation("admin"), auth.Static{admin}, func(env *Env) error {
		return env.RequireAuth(other)
	})
	require.True(t, IsAbort(err))
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	err = node.Invoke(context.Background(), testInvocation("admin"), nil, func(env *Env) error {
		return env.RequireAuth(testContract)
	})
	require.True(t, IsAbort(err))
}

func TestLedgerPersists(t *testing.T) {
	node, db := newTestNode(t)
	require.Equal(t, uint32(100_000), node.Ledger())
	next, err := node.AdvanceLedger(17_280)
	require.NoError(t, err)
	require.Equal(t, uint32(117_280), next)

	reopened, err := NewNode(db, HostConfig{InitialLedger: 1}, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(117_280), reopened.Ledger())
}

func TestAbortWrapping(t *testing.T) {
	base := errors.New("cause")
	err := Abort(base)
	require.True(t, IsAbort(err))
	require.ErrorIs(t, err, base)
	require.Same(t, err, Abort(err))
	require.Nil(t, Abort(nil))
	require.False(t, IsAbort(base))
}

func TestPruneNoncesFollowsLedger(t *testing.T) {
	node, _ := newTestNode(t)
	signer := crypto.MustNewAddress(crypto.AccountPrefix, make([]byte, 20))
	consume := func(nonce uint64, expiration uint32) error {
		return node.Invoke(context.Background(), testInvocation("nonce"), nil, func(env *Env) error {
			return env.ConsumeNonce(signer, nonce, expiration)
		})
	}
	require.NoError(t, consume(1, 100_002))

	removed, err := node.PruneNonces(0)
	require.NoError(t, err)
	require.Zero(t, removed)

	_, err = node.AdvanceLedger(3)
	require.NoError(t, err)
	removed, err = node.PruneNonces(0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.NoError(t, consume(1, 100_010))
	require.ErrorIs(t, consume(1, 100_010), state.ErrNonceUsed)
}
