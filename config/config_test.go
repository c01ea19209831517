package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

var testAdmin = func() string {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0x42
	return crypto.MustNewAddress(crypto.AccountPrefix, raw).String()
}()

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "sinkd.toml", `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/sinkd"
Environment = "testnet"
Admin = "`+testAdmin+`"

[auth]
JWTSecret = "s3cret"
ClockSkew = "30s"

[rate_limit]
RequestsPerMinute = 60

[host]
MinInstanceTTL = 35001
LedgerInterval = "1s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "testnet", cfg.Environment)
	require.Equal(t, 30*time.Second, cfg.Auth.ClockSkew.Duration)
	require.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	require.Equal(t, DefaultBurst, cfg.RateLimit.Burst)
	require.EqualValues(t, 35001, cfg.Host.MinInstanceTTL)
	require.Equal(t, time.Second, cfg.Host.LedgerInterval.Duration)
	require.Equal(t, "s3cret", cfg.JWTSecretValue())
	require.Equal(t, filepath.Join("/var/lib/sinkd", "retirements.db"), cfg.IndexerDSN())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "sinkd.yaml", `admin: `+testAdmin+`
indexer:
  dsn: postgres://sink@localhost/sink
host:
  ledgerInterval: 250ms
telemetry:
  traces: true
  sampleRatio: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://sink@localhost/sink", cfg.IndexerDSN())
	require.Equal(t, 250*time.Millisecond, cfg.Host.LedgerInterval.Duration)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.EqualValues(t, DefaultMinInstanceTTL, cfg.Host.MinInstanceTTL)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "sinkd.toml", `Admin = "`+testAdmin+`"
ValidatorKeystorePath = "validator.keystore"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "ValidatorKeystorePath")
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeFile(t, "sinkd.toml", `Admin = "not-an-address"`))
	require.ErrorIs(t, err, crypto.ErrInvalidAddress)

	_, err = Load(writeFile(t, "sinkd.toml", `Admin = "`+testAdmin+`"
Contract = "`+testAdmin+`"
`))
	require.ErrorContains(t, err, "contract address")

	_, err = Load(writeFile(t, "sinkd.toml", `Admin = "`+testAdmin+`"
[host]
LedgerInterval = "soon"
`))
	require.Error(t, err)

	_, err = Load(writeFile(t, "sinkd.toml", `Admin = "`+testAdmin+`"
[host]
LedgerInterval = "-1s"
`))
	require.ErrorContains(t, err, "host.LedgerInterval must not be negative")

	_, err = Load(writeFile(t, "sinkd.toml", `Admin = "`+testAdmin+`"
[rate_limit]
TrustedProxies = ["10.0.0.0/8", "proxy.internal"]
`))
	require.ErrorContains(t, err, "proxy.internal")

	_, err = Load(writeFile(t, "sinkd.json", `{}`))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadTrustedProxies(t *testing.T) {
	cfg, err := Load(writeFile(t, "sinkd.yaml", `admin: `+testAdmin+`
rateLimit:
  trustedProxies: ["10.0.0.0/8", "192.0.2.10"]
`))
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.RateLimit.TrustedProxies)
}

func TestDeploymentDerivesIdentities(t *testing.T) {
	cfg := &Config{Admin: testAdmin}
	cfg.ApplyDefaults()
	d, err := cfg.Deployment()
	require.NoError(t, err)
	require.True(t, d.Contract.IsContract())
	require.True(t, d.SourceAsset.IsContract())
	require.False(t, d.Contract.Equal(d.SourceAsset))
	require.False(t, d.SourceAsset.Equal(d.CertificateAsset))

	again, err := cfg.Deployment()
	require.NoError(t, err)
	require.True(t, d.Contract.Equal(again.Contract))
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := &Config{Admin: testAdmin}
	cfg.ApplyDefaults()
	path := filepath.Join(t.TempDir(), "nested", "sinkd.toml")
	require.NoError(t, Write(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Host.LedgerInterval, loaded.Host.LedgerInterval)
	require.Equal(t, cfg.ListenAddress, loaded.ListenAddress)
}

func TestJWTSecretFromEnv(t *testing.T) {
	t.Setenv("SINKD_TEST_JWT", "from-env")
	cfg := &Config{Auth: Auth{JWTSecret: "inline", JWTSecretEnv: "SINKD_TEST_JWT"}}
	require.Equal(t, "from-env", cfg.JWTSecretValue())
}
