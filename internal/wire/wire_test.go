package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeindexer/internal/config"
)

func TestNewChains_DefaultsFirstBlockAndBackfillWindow(t *testing.T) {
	cfg := &config.Config{
		Chains: map[string]config.ChainConfig{
			"ethereum": {
				Name:          "ethereum",
				ChainID:       1,
				RPCURL:        "https://eth-rpc.example",
				BridgeAddress: "0xbridge",
			},
			"bsc": {
				Name:           "bsc",
				ChainID:        56,
				RPCURL:         "https://bsc-rpc.example",
				BridgeAddress:  "0xbridge",
				FirstBlock:     999,
				BackfillWindow: 256,
				IsPoA:          true,
			},
		},
	}

	chains := NewChains(cfg)
	require.Contains(t, chains, "ethereum")
	require.Contains(t, chains, "bsc")

	eth := chains["ethereum"]
	assert.Equal(t, uint64(13566427), eth.FirstBlock, "ethereum's first block must default from the static registry table")
	assert.Equal(t, uint64(1024), eth.BackfillWindow, "ethereum's backfill window must default from the static registry table")
	assert.False(t, eth.IsPoA)

	bsc := chains["bsc"]
	assert.Equal(t, uint64(999), bsc.FirstBlock, "an explicit config value must not be overridden by the default")
	assert.Equal(t, uint64(256), bsc.BackfillWindow)
	assert.True(t, bsc.IsPoA)
}
