package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

type fakeVerifier struct {
	ledger uint32
	used   map[string]bool
}

func newFakeVerifier(ledger uint32) *fakeVerifier {
	return &fakeVerifier{ledger: ledger, used: map[string]bool{}}
}

func (f *fakeVerifier) Ledger() uint32 { return f.ledger }

func (f *fakeVerifier) ConsumeNonce(addr crypto.Address, nonce uint64, _ uint32) error {
	key := fmt.Sprintf("%s/%d", addr, nonce)
	if f.used[key] {
		return errors.New("nonce used")
	}
	f.used[key] = true
	return nil
}

func testInvocation() Invocation {
	return Invocation{
		Contract: crypto.ContractAddress([]byte("sink")),
		Function: "sink_carbon",
		Args:     []string{"1000000"},
	}
}

func TestApprovalRoundTrip(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	inv := testInvocation()

	approval, err := Sign(key, inv, 1, 200)
	require.NoError(t, err)
	require.True(t, approval.Signer.Equal(key.PubKey().Address()))

	v := newFakeVerifier(100)
	require.NoError(t, Approvals{approval}.Require(v, approval.Signer, inv))

	// Replays are rejected.
	err = Approvals{approval}.Require(v, approval.Signer, inv)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestApprovalRejectsTampering(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	inv := testInvocation()
	approval, err := Sign(key, inv, 1, 200)
	require.NoError(t, err)

	other := inv
	other.Args = []string{"2000000"}
	err = approval.Verify(newFakeVerifier(100), other)
	require.ErrorIs(t, err, ErrUnauthorized)

	err = approval.Verify(newFakeVerifier(201), inv)
	require.ErrorIs(t, err, ErrUnauthorized)

	stranger, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	err = Approvals{approval}.Require(newFakeVerifier(100), stranger.PubKey().Address(), inv)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokenGrants(t *testing.T) {
	tv := NewTokenVerifier(TokenConfig{HMACSecret: "secret", Issuer: "sinkd", Audience: "sink"})
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	inv := testInvocation()

	token, err := tv.Issue(Grant{
		Subject:   key.PubKey().Address(),
		Contract:  inv.Contract,
		Functions: []string{"sink_carbon"},
	}, time.Hour, time.Now())
	require.NoError(t, err)

	grant, err := tv.Verify(token)
	require.NoError(t, err)
	require.Equal(t, []string{"sink_carbon"}, grant.Functions)

	v := newFakeVerifier(1)
	require.NoError(t, Grants{grant}.Require(v, key.PubKey().Address(), inv))

	other := inv
	other.Function = "set_minimum_sink_amount"
	require.ErrorIs(t, Grants{grant}.Require(v, key.PubKey().Address(), other), ErrUnauthorized)

	bad := NewTokenVerifier(TokenConfig{HMACSecret: "other"})
	_, err = bad.Verify(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSetAndStatic(t *testing.T) {
	admin := crypto.MustNewAddress(crypto.AccountPrefix, []byte("admin-admin-admin-ad"))
	inv := testInvocation()
	v := newFakeVerifier(1)

	require.ErrorIs(t, Set{}.Require(v, admin, inv), ErrUnauthorized)
	require.ErrorIs(t, Set{None{}, Static{}}.Require(v, admin, inv), ErrUnauthorized)
	require.NoError(t, Set{None{}, Static{admin}}.Require(v, admin, inv))
}
