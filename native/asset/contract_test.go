package asset

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/storage"
)

type harness struct {
	t      *testing.T
	node   *core.Node
	id     crypto.Address
	admin  crypto.Address
	holder crypto.Address
}

func address(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address()
}

func newHarness(t *testing.T, authRequired bool) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, core.HostConfig{InitialLedger: 1}, nil)
	require.NoError(t, err)
	h := &harness{
		t:      t,
		node:   node,
		id:     crypto.ContractAddress([]byte("CARBON")),
		admin:  address(t),
		holder: address(t),
	}
	require.NoError(t, h.run(auth.Static{h.admin, h.holder}, func(env *core.Env) error {
		if err := CreateAccount(env, h.holder); err != nil {
			return err
		}
		return New(h.id).Initialize(env, "carbon", h.admin, h.admin, authRequired)
	}))
	return h
}

func (h *harness) run(ac auth.Context, fn func(env *core.Env) error) error {
	return h.node.Invoke(context.Background(), auth.Invocation{Contract: h.id, Function: "test"}, ac, fn)
}

func (h *harness) all() auth.Context { return auth.Static{h.admin, h.holder} }

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	if !errors.Is(err, code) {
		t.Fatalf("expected %v, got %v", code, err)
	}
	var coded interface{ ErrorCode() uint32 }
	require.True(t, errors.As(err, &coded))
	require.Equal(t, uint32(code), coded.ErrorCode())
}

func TestInitializeOnce(t *testing.T) {
	h := newHarness(t, false)
	err := h.run(h.all(), func(env *core.Env) error {
		return New(h.id).Initialize(env, "CARBON", h.admin, h.admin, false)
	})
	requireCode(t, err, AlreadyInitializedError)

	err = h.run(h.all(), func(env *core.Env) error {
		code, err := New(h.id).Code(env)
		require.Equal(t, "CARBON", code)
		return err
	})
	require.NoError(t, err)
}

func TestMintAndBurn(t *testing.T) {
	h := newHarness(t, false)
	c := New(h.id)

	err := h.run(h.all(), func(env *core.Env) error {
		return c.Mint(env, h.holder, 10)
	})
	requireCode(t, err, TrustlineMissingError)

	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		if err := c.CreateTrustline(env, h.holder, 1_000); err != nil {
			return err
		}
		return c.Mint(env, h.holder, 600)
	}))

	requireCode(t, h.run(h.all(), func(env *core.Env) error {
		return c.Mint(env, h.holder, 500)
	}), BalanceError)
	requireCode(t, h.run(h.all(), func(env *core.Env) error {
		return c.Mint(env, h.holder, -1)
	}), NegativeAmountError)
	requireCode(t, h.run(h.all(), func(env *core.Env) error {
		return c.Burn(env, h.holder, 601)
	}), BalanceError)

	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		return c.Burn(env, h.holder, 100)
	}))
	require.NoError(t, h.run(nil, func(env *core.Env) error {
		balance, err := c.Balance(env, h.holder)
		require.Equal(t, int64(500), balance)
		return err
	}))
}

func TestMintRequiresAdmin(t *testing.T) {
	h := newHarness(t, false)
	c := New(h.id)
	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		return c.CreateTrustline(env, h.holder, 1_000)
	}))
	err := h.run(auth.Static{h.holder}, func(env *core.Env) error {
		return c.Mint(env, h.holder, 1)
	})
	require.True(t, core.IsAbort(err))
}

func TestBurnRequiresHolder(t *testing.T) {
	h := newHarness(t, false)
	c := New(h.id)
	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		if err := c.CreateTrustline(env, h.holder, 1_000); err != nil {
			return err
		}
		return c.Mint(env, h.holder, 10)
	}))
	err := h.run(auth.Static{h.admin}, func(env *core.Env) error {
		return c.Burn(env, h.holder, 1)
	})
	require.True(t, core.IsAbort(err))
}

func TestAuthRequiredLines(t *testing.T) {
	h := newHarness(t, true)
	c := New(h.id)
	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		return c.CreateTrustline(env, h.holder, math.MaxInt64)
	}))
	requireCode(t, h.run(h.all(), func(env *core.Env) error {
		return c.Mint(env, h.holder, 1)
	}), BalanceDeauthorizedError)

	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		if err := c.SetAuthorized(env, h.holder, true); err != nil {
			return err
		}
		if err := c.Mint(env, h.holder, math.MaxInt64); err != nil {
			return err
		}
		return c.SetAuthorized(env, h.holder, false)
	}))
	require.NoError(t, h.run(nil, func(env *core.Env) error {
		authorized, err := c.Authorized(env, h.holder)
		require.False(t, authorized)
		return err
	}))

	requireCode(t, h.run(h.all(), func(env *core.Env) error {
		if err := c.SetAuthorized(env, h.holder, true); err != nil {
			return err
		}
		return c.Mint(env, h.holder, 1)
	}), OverflowError)
}

func TestSetAdminAndMissingHolders(t *testing.T) {
	h := newHarness(t, false)
	c := New(h.id)
	stranger := address(t)

	requireCode(t, h.run(h.all(), func(env *core.Env) error {
		return c.SetAuthorized(env, stranger, true)
	}), TrustlineMissingError)
	requireCode(t, h.run(auth.Static{stranger}, func(env *core.Env) error {
		return c.CreateTrustline(env, stranger, 10)
	}), AccountMissingError)

	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		return c.SetAdmin(env, stranger)
	}))
	require.NoError(t, h.run(nil, func(env *core.Env) error {
		admin, err := c.Admin(env)
		require.True(t, admin.Equal(stranger))
		return err
	}))
}

func TestLoadUnknownAsset(t *testing.T) {
	h := newHarness(t, false)
	err := h.run(nil, func(env *core.Env) error {
		_, err := Load(env, crypto.ContractAddress([]byte("missing")))
		return err
	})
	require.ErrorIs(t, err, ErrUnknownAsset)
}

func TestContractHoldersNeedNoTrustline(t *testing.T) {
	h := newHarness(t, false)
	c := New(h.id)
	vault := crypto.ContractAddress([]byte("vault"))
	require.NoError(t, h.run(h.all(), func(env *core.Env) error {
		return c.Mint(env, vault, 25)
	}))
	require.NoError(t, h.run(nil, func(env *core.Env) error {
		balance, err := c.Balance(env, vault)
		require.Equal(t, int64(25), balance)
		return err
	}))
}
