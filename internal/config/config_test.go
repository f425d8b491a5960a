package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "Failed to create temp dir")
	defer os.RemoveAll(tmpDir)

	testConfig := `
db_path: ${DB_PATH:-./test.db}
testing: ${TESTING:-false}

log:
  level: ${LOG_LEVEL:-debug}
  format: ${LOG_FORMAT:-json}

chains:
  ethereum:
    name: ethereum
    chain_id: ${ETHEREUM_CHAIN_ID:-1}
    rpc_url: ${ETHEREUM_RPC_URL:-https://test-eth-rpc.com}
    bridge_address: "0xAE908bb4905bcA9BdE0656CC869d0F23e77875E7"
    first_block: 13566427
    is_poa: false
`

	configPath := filepath.Join(tmpDir, ".config.yaml")
	err = os.WriteFile(configPath, []byte(testConfig), 0644)
	require.NoError(t, err, "Failed to write test config")

	oldConfigPath := os.Getenv("CONFIG_PATH")
	os.Setenv("CONFIG_PATH", configPath)
	defer os.Setenv("CONFIG_PATH", oldConfigPath)

	oldLogLevel := os.Getenv("LOG_LEVEL")
	os.Setenv("LOG_LEVEL", "warn")
	defer os.Setenv("LOG_LEVEL", oldLogLevel)

	cfg, err := LoadConfig()
	require.NoError(t, err, "LoadConfig failed")
	require.NotNil(t, cfg, "Config should not be nil")

	assert.Equal(t, LogLevel("warn"), cfg.Log.Level, "Log level should match environment variable")
	assert.Equal(t, "./test.db", cfg.DBPath, "DBPath should match default value")
	assert.Equal(t, LogFormat("json"), cfg.Log.Format, "Log format should match default value")

	require.Contains(t, cfg.Chains, "ethereum")
	assert.Equal(t, "https://test-eth-rpc.com", cfg.Chains["ethereum"].RPCURL, "Ethereum RPC URL mismatch")
	assert.Equal(t, int64(1), cfg.Chains["ethereum"].ChainID, "Ethereum chain id mismatch")
	assert.False(t, cfg.Chains["ethereum"].IsPoA, "Ethereum should not require PoA middleware")
}

func TestLoadConfigWithoutYAML(t *testing.T) {
	os.Unsetenv("CONFIG_PATH")
	os.Setenv("LOG_LEVEL", "error")
	os.Setenv("ETH_RPC", "https://env-eth-rpc.com")
	defer func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("ETH_RPC")
	}()

	cfg, err := LoadConfig()
	require.NoError(t, err, "LoadConfig should fall back to environment variables")
	require.NotNil(t, cfg)

	assert.Equal(t, LogLevel("error"), cfg.Log.Level)
	require.Contains(t, cfg.Chains, "ethereum")
	assert.Equal(t, "https://env-eth-rpc.com", cfg.Chains["ethereum"].RPCURL)
	assert.True(t, cfg.Chains["ethereum"].IsPoA == false, "ethereum never requires PoA middleware")
}

func TestInterpolateEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		env      map[string]string
		expected string
	}{
		{
			name:     "Simple variable",
			content:  "value: ${TEST_VAR}",
			env:      map[string]string{"TEST_VAR": "test"},
			expected: "value: test",
		},
		{
			name:     "Variable with default",
			content:  "value: ${TEST_VAR:-default}",
			env:      map[string]string{},
			expected: "value: default",
		},
		{
			name:     "Variable with empty default",
			content:  "value: ${TEST_VAR:-}",
			env:      map[string]string{},
			expected: "value: ",
		},
		{
			name:     "Override default value",
			content:  "value: ${TEST_VAR:-default}",
			env:      map[string]string{"TEST_VAR": "override"},
			expected: "value: override",
		},
		{
			name:     "Multiple variables",
			content:  "first: ${FIRST_VAR:-one} second: ${SECOND_VAR:-two}",
			env:      map[string]string{"FIRST_VAR": "1", "SECOND_VAR": "2"},
			expected: "first: 1 second: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.env {
					os.Unsetenv(k)
				}
			}()

			result := interpolateEnvVars(tt.content)
			assert.Equal(t, tt.expected, result, "Interpolation result mismatch")
		})
	}
}
