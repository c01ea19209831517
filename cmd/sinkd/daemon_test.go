package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/config"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	cfg := &config.Config{
		DataDir:     t.TempDir(),
		Environment: "test",
		Admin:       key.PubKey().Address().String(),
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func rpcCall(t *testing.T, url, method string, params interface{}) map[string]json.RawMessage {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]json.RawMessage{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDaemonBootstrapsOnce(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	d, err := newDaemon(ctx, cfg, quietLogger())
	require.NoError(t, err)
	srv := httptest.NewServer(d.server.Handler())

	reply := rpcCall(t, srv.URL, "sink_isActive", nil)
	require.JSONEq(t, "true", string(reply["result"]))
	reply = rpcCall(t, srv.URL, "sink_getAdmin", nil)
	require.JSONEq(t, `"`+cfg.Admin+`"`, string(reply["result"]))

	d.tick()
	d.tick()
	require.EqualValues(t, 3, d.node.Ledger())
	srv.Close()
	require.NoError(t, d.close())

	d, err = newDaemon(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer d.close()
	require.EqualValues(t, 3, d.node.Ledger())
	deployment, err := cfg.Deployment()
	require.NoError(t, err)
	require.True(t, d.client.Contract().Equal(deployment.Contract))
}

func TestDaemonAppliesGenesisFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Indexer.Disabled = true
	funder, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	spec := map[string]interface{}{
		"minimumSinkAmount": 20_000,
		"accounts": []map[string]interface{}{{
			"address":         funder.PubKey().Address().String(),
			"sourceTonnes":    "3.5",
			"sourceTrustline": true,
		}},
	}
	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	cfg.GenesisFile = filepath.Join(cfg.DataDir, "genesis.json")
	require.NoError(t, os.WriteFile(cfg.GenesisFile, raw, 0o644))

	d, err := newDaemon(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer d.close()
	require.Nil(t, d.index)

	srv := httptest.NewServer(d.server.Handler())
	defer srv.Close()

	reply := rpcCall(t, srv.URL, "sink_getMinimumSinkAmount", nil)
	require.JSONEq(t, "20000", string(reply["result"]))

	deployment, err := cfg.Deployment()
	require.NoError(t, err)
	reply = rpcCall(t, srv.URL, "asset_balance", map[string]string{
		"asset":  deployment.SourceAsset.String(),
		"holder": funder.PubKey().Address().String(),
	})
	require.JSONEq(t, "35000000", string(reply["result"]))

	reply = rpcCall(t, srv.URL, "sink_listRetirements", nil)
	require.Contains(t, string(reply["error"]), "-32060")
}
