package sink

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/native/asset"
	"github.com/stellarcarbon/sorocarbon/storage"
)

const (
	startLedger    uint32 = 100_000
	minInstanceTTL uint32 = 35_001
	funderBalance  int64  = 50_000_000_000
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	node   *core.Node
	client *Client

	adminKey  *crypto.PrivateKey
	funderKey *crypto.PrivateKey
	admin     crypto.Address
	issuer    crypto.Address
	funder    crypto.Address
	recipient crypto.Address
	bystander crypto.Address

	carbon     crypto.Address
	carbonSink crypto.Address

	events      events.Recorder
	diagnostics events.Recorder
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, core.HostConfig{InitialLedger: startLedger, MinInstanceTTL: minInstanceTTL}, nil)
	require.NoError(t, err)

	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		node:       node,
		adminKey:   newKey(t),
		funderKey:  newKey(t),
		issuer:     newKey(t).PubKey().Address(),
		recipient:  newKey(t).PubKey().Address(),
		bystander:  newKey(t).PubKey().Address(),
		carbon:     crypto.ContractAddress([]byte("CARBON")),
		carbonSink: crypto.ContractAddress([]byte("CarbonSINK")),
	}
	f.admin = f.adminKey.PubKey().Address()
	f.funder = f.funderKey.PubKey().Address()
	node.SetEventEmitter(&f.events)
	node.SetDiagnosticEmitter(&f.diagnostics)

	contractID := crypto.ContractAddress([]byte("sink-carbon"))
	f.client = NewClient(node, New(contractID, nil, nil), nil)

	f.setup(func(env *core.Env) error {
		for _, addr := range []crypto.Address{f.admin, f.issuer, f.funder, f.recipient, f.bystander} {
			if err := asset.CreateAccount(env, addr); err != nil {
				return err
			}
		}
		carbon := asset.New(f.carbon)
		if err := carbon.Initialize(env, "CARBON", f.issuer, f.issuer, false); err != nil {
			return err
		}
		carbonSink := asset.New(f.carbonSink)
		if err := carbonSink.Initialize(env, "CarbonSINK", f.issuer, contractID, true); err != nil {
			return err
		}
		for _, holder := range []crypto.Address{f.funder, f.bystander} {
			if err := carbon.CreateTrustline(env, holder, math.MaxInt64); err != nil {
				return err
			}
			if err := carbon.Mint(env, holder, funderBalance); err != nil {
				return err
			}
		}
		for _, holder := range []crypto.Address{f.funder, f.recipient, f.bystander} {
			if err := carbonSink.CreateTrustline(env, holder, math.MaxInt64); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, f.client.Initialize(f.ctx, f.admin, f.carbon, f.carbonSink))
	f.events.Reset()
	f.diagnostics.Reset()
	return f
}

// setup runs fn with every test account authorized.
func (f *fixture) setup(fn func(env *core.Env) error) {
	f.t.Helper()
	inv := auth.Invocation{Contract: f.carbon, Function: "setup"}
	trusted := auth.Static{f.admin, f.issuer, f.funder, f.recipient, f.bystander}
	if err := f.node.Invoke(f.ctx, inv, trusted, fn); err != nil {
		f.t.Fatalf("setup: %v", err)
	}
}

func (f *fixture) balance(assetID, holder crypto.Address) int64 {
	f.t.Helper()
	var out int64
	f.setup(func(env *core.Env) error {
		var err error
		out, err = asset.New(assetID).Balance(env, holder)
		return err
	})
	return out
}

type balances map[string]int64

func (f *fixture) snapshot() balances {
	f.t.Helper()
	out := balances{}
	holders := []crypto.Address{f.admin, f.issuer, f.funder, f.recipient, f.bystander, f.client.Contract()}
	for _, assetID := range []crypto.Address{f.carbon, f.carbonSink} {
		for _, holder := range holders {
			out[assetID.String()+"/"+holder.String()] = f.balance(assetID, holder)
		}
	}
	return out
}

func (f *fixture) instanceTTL() (uint32, error) {
	f.t.Helper()
	var ttl uint32
	err := f.node.Invoke(f.ctx, auth.Invocation{Contract: f.client.Contract(), Function: "ttl"}, nil, func(env *core.Env) error {
		inst, err := env.State().Instance(f.client.Contract(), env.Ledger())
		if err != nil {
			return err
		}
		ttl = inst.TTL()
		return nil
	})
	return ttl, err
}

func (f *fixture) asAdmin() auth.Context { return auth.Static{f.admin} }

func (f *fixture) asFunder() auth.Context { return auth.Static{f.funder} }

func (f *fixture) request(amount int64) SinkRequest {
	return SinkRequest{
		Funder:    f.funder,
		Recipient: f.recipient,
		Amount:    amount,
		ProjectID: "VCS1360",
		MemoText:  "100 kg",
		Email:     "funder@example.org",
	}
}

func (f *fixture) sink(amount int64) error {
	_, err := f.client.Sink(f.ctx, f.asFunder(), f.request(amount))
	return err
}
