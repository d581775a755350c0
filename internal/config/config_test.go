package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadConfigDefaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://explorer.succinct.xyz", cfg.Explorer.BaseURL)
	assert.Equal(t, "wss://zkverify-volta-rpc.zkverify.io", cfg.Chain.WsURL)
	assert.Equal(t, "SettlementSp1Pallet", cfg.Chain.Pallet)
	assert.Equal(t, []string{"Program Blobstream", "Blobstream", "Program"}, cfg.Extractor.Keywords)
	assert.Empty(t, cfg.Chain.FallbackVk)
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig("nope.yaml")
	require.Error(t, err)
}

func TestLoadConfigPrefersLocalFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("explorer:\n  baseUrl: https://a.example\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yaml"), []byte("explorer:\n  baseUrl: https://b.example\nchain:\n  ss58Prefix: 42\n"), 0o644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", cfg.Explorer.BaseURL)
	assert.Equal(t, uint16(42), cfg.Chain.SS58Prefix)
	// untouched keys keep their defaults
	assert.Equal(t, "submit_proof", cfg.Chain.Call)
}

func TestOverrideFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ZKV_WS_URL", "ws://127.0.0.1:9944")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PROVER_BASE_URL", "http://prover:8080")
	t.Setenv("EVENTS_DRIVER", "nats")
	t.Setenv("NATS_URL", "nats://broker:4222")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9944", cfg.Chain.WsURL)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http", cfg.Prover.Mode)
	assert.Equal(t, "nats://broker:4222", cfg.Events.URL)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv(MnemonicEnv, "")
	require.NoError(t, os.Unsetenv(MnemonicEnv))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(MnemonicEnv+"=bottom drive obey lake curtain smoke basket hold race lonely fit walk\n"), 0o600))

	_, err := LoadConfig("")
	require.NoError(t, err)

	m, err := Mnemonic()
	require.NoError(t, err)
	assert.Equal(t, "bottom drive obey lake curtain smoke basket hold race lonely fit walk", m)
}

func TestMnemonicMissing(t *testing.T) {
	t.Setenv(MnemonicEnv, "")

	_, err := Mnemonic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), MnemonicEnv)
}
