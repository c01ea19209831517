package genesis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/crypto"
	"github.com/stellarcarbon/sorocarbon/native/asset"
	"github.com/stellarcarbon/sorocarbon/native/sink"
	"github.com/stellarcarbon/sorocarbon/storage"
)

func account(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func basePlan(admin crypto.Address) *Plan {
	return NewPlan(admin,
		crypto.ContractAddress([]byte("genesis/sink")),
		crypto.ContractAddress([]byte("genesis/CARBON")),
		crypto.ContractAddress([]byte("genesis/CarbonSINK")))
}

func TestLoadResolvesOverBase(t *testing.T) {
	admin := account(t)
	funder := account(t)
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{
  "sourceAsset": {"code": "CARBON"},
  "certificateAsset": {"code": "CarbonSINK"},
  "minimumSinkAmount": 515000,
  "accounts": [
    {"address": %q, "sourceTonnes": "12.5", "certificateTrustline": true}
  ]
}`, funder)), 0o600))

	plan, err := Load(path, basePlan(admin))
	require.NoError(t, err)
	require.True(t, plan.Admin.Equal(admin))
	require.True(t, plan.Issuer.Equal(admin))
	require.EqualValues(t, 515000, *plan.Minimum)
	require.Len(t, plan.Accounts, 1)
	require.EqualValues(t, 125_000_000, plan.Accounts[0].SourceBalance)
	require.True(t, plan.Accounts[0].SourceTrustline)
	require.True(t, plan.Accounts[0].CertificateTrustline)
}

func TestResolveRejectsBadSpecs(t *testing.T) {
	admin := account(t)
	cases := map[string]Spec{
		"too many decimals": {Accounts: []AccountSpec{{Address: account(t).String(), SourceTonnes: "0.00000001"}}},
		"negative tonnes":   {Accounts: []AccountSpec{{Address: account(t).String(), SourceTonnes: "-1"}}},
		"contract account":  {Accounts: []AccountSpec{{Address: crypto.ContractAddress([]byte("x")).String()}}},
		"account contract":  {Contract: admin.String()},
		"negative minimum":  {MinimumSinkAmount: func() *int64 { v := int64(-1); return &v }()},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := spec.Resolve(basePlan(admin))
			require.Error(t, err)
		})
	}

	dup := account(t).String()
	_, err := (&Spec{Accounts: []AccountSpec{{Address: dup}, {Address: dup}}}).Resolve(basePlan(admin))
	require.ErrorContains(t, err, "duplicate")

	_, err = (&Spec{}).Resolve(nil)
	require.Error(t, err)
}

func TestApplyDeploysOnce(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, core.HostConfig{InitialLedger: 10, MinInstanceTTL: 35_001}, nil)
	require.NoError(t, err)

	admin := account(t)
	funder := account(t)
	recipient := account(t)
	plan := basePlan(admin)
	minimum := int64(20_000)
	plan.Minimum = &minimum
	plan.Accounts = []Account{
		{Address: funder, SourceBalance: 1_000_000, SourceTrustline: true, CertificateTrustline: true},
		{Address: recipient, CertificateTrustline: true},
	}

	contract := sink.New(plan.Contract, nil, nil)
	ctx := context.Background()
	applied, err := Apply(ctx, node, contract, plan)
	require.NoError(t, err)
	require.True(t, applied)

	client := sink.NewClient(node, contract, nil)
	got, err := client.GetMinimum(ctx)
	require.NoError(t, err)
	require.Equal(t, minimum, got)
	gotAdmin, err := client.GetAdmin(ctx)
	require.NoError(t, err)
	require.True(t, gotAdmin.Equal(admin))

	ledger, err := client.Sink(ctx, auth.Static{funder}, sink.SinkRequest{Funder: funder, Recipient: recipient, Amount: 1_000_000})
	require.NoError(t, err)
	require.Equal(t, node.Ledger(), ledger)

	var sourceBalance, certBalance int64
	require.NoError(t, node.Invoke(ctx, auth.Invocation{Contract: plan.SourceAsset, Function: "balance"}, auth.None{}, func(env *core.Env) error {
		var err error
		if sourceBalance, err = asset.New(plan.SourceAsset).Balance(env, funder); err != nil {
			return err
		}
		certBalance, err = asset.New(plan.CertificateAsset).Balance(env, recipient)
		return err
	}))
	require.Zero(t, sourceBalance)
	require.EqualValues(t, 1_000_000, certBalance)

	applied, err = Apply(ctx, node, contract, plan)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestApplyRejectsMismatchedContract(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, core.HostConfig{InitialLedger: 10}, nil)
	require.NoError(t, err)
	plan := basePlan(account(t))
	_, err = Apply(context.Background(), node, sink.New(crypto.ContractAddress([]byte("other")), nil, nil), plan)
	require.Error(t, err)
}
