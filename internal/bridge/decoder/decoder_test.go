package decoder

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/logger"
)

func testLogger(t *testing.T) logger.Logger {
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return log
}

func noPoolTokens(ctx context.Context, pool string) ([]string, error) {
	return nil, assertionError{"pool token lookup should not be reached by this event"}
}

type assertionError struct{ msg string }

func (e assertionError) Error() string { return e.msg }

func last32(n *big.Int) []byte {
	b := make([]byte, 32)
	n.FillBytes(b)
	return b
}

func packNonIndexed(t *testing.T, values ...any) []byte {
	uint256Type, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	addressType, err := abi.NewType("address", "", nil)
	require.NoError(t, err)

	var args abi.Arguments
	var packArgs []any
	for _, v := range values {
		switch v.(type) {
		case *big.Int:
			args = append(args, abi.Argument{Type: uint256Type})
		case common.Address:
			args = append(args, abi.Argument{Type: addressType})
		default:
			t.Fatalf("unsupported test value type %T", v)
		}
		packArgs = append(packArgs, v)
	}
	data, err := args.Pack(packArgs...)
	require.NoError(t, err)
	return data
}

type fakeTransactionFetcher struct {
	from string
}

func (f fakeTransactionFetcher) GetTransaction(ctx context.Context, txHash string) (*rpc.Transaction, error) {
	return &rpc.Transaction{From: f.from}, nil
}

func findTopic(t *testing.T, event types.EventKind) string {
	for topic, info := range types.Topics {
		if info.Event == event {
			return topic
		}
	}
	t.Fatalf("no topic registered for event %s", event)
	return ""
}

func TestDecoder_Decode_UnknownTopic(t *testing.T) {
	d, err := New("ethereum", nil, nil, noPoolTokens, testLogger(t))
	require.NoError(t, err)

	l := rpc.Log{
		Topics: []string{"0x" + "00" + "deadbeef"},
		TxHash: "0xabc",
	}
	_, err = d.Decode(context.Background(), l, &rpc.Receipt{}, 0, 1)
	require.Error(t, err)
}

func TestDecoder_DecodeOut_TokenDeposit(t *testing.T) {
	tokenAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	userAddr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	senderAddr := common.HexToAddress("0x7777777777777777777777777777777777777777")
	amount := big.NewInt(5_000_000)

	lookup := func(chain, address string) (types.TokenMetadata, bool) {
		if types.NormalizeAddress(address) == types.NormalizeAddress(tokenAddr.Hex()) {
			return types.TokenMetadata{Address: types.NormalizeAddress(tokenAddr.Hex()), Chain: chain, Decimals: 18, Symbol: "nUSD"}, true
		}
		return types.TokenMetadata{}, false
	}

	d, err := New("ethereum", fakeTransactionFetcher{from: senderAddr.Hex()}, lookup, noPoolTokens, testLogger(t))
	require.NoError(t, err)

	topic := findTopic(t, types.EventTokenDeposit)
	data := packNonIndexed(t, big.NewInt(1), tokenAddr, amount) // chainId, token, amount

	l := rpc.Log{
		Topics: []string{topic, common.BytesToHash(userAddr.Bytes()).Hex()},
		Data:   data,
		TxHash: "0xdeposittx",
	}
	receipt := &rpc.Receipt{
		TxHash: "0xdeposittx",
		Logs: []rpc.Log{
			{Address: types.NormalizeAddress(tokenAddr.Hex()), Data: last32(amount)},
		},
	}

	result, err := d.Decode(context.Background(), l, receipt, 1700000000, 1)
	require.NoError(t, err)
	require.NotNil(t, result.Out)
	require.Nil(t, result.In)

	out := result.Out
	assert.Equal(t, types.NormalizeAddress(userAddr.Hex()), out.ToAddress)
	assert.Equal(t, types.NormalizeAddress(senderAddr.Hex()), out.FromAddress)
	assert.Equal(t, amount, out.SentValue)
	assert.Equal(t, types.NormalizeAddress(tokenAddr.Hex()), out.SentToken)
	assert.Equal(t, int64(1), out.FromChainID)
	assert.Equal(t, types.KappaFromTxHash("0xdeposittx"), out.Kappa)
}

func TestDecoder_DecodeIn_TokenWithdraw_DeductsFee(t *testing.T) {
	tokenAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	userAddr := common.HexToAddress("0x4444444444444444444444444444444444444444")
	var kappaBytes [32]byte
	copy(kappaBytes[:], common.FromHex("0xfeed000000000000000000000000000000000000000000000000000000000000"))
	amount := big.NewInt(1_000_000)
	fee := big.NewInt(1_000)

	d, err := New("ethereum", nil, nil, noPoolTokens, testLogger(t))
	require.NoError(t, err)

	topic := findTopic(t, types.EventTokenWithdraw)
	data := packNonIndexed(t, tokenAddr, amount, fee) // token, amount, fee

	l := rpc.Log{
		Topics: []string{topic, common.BytesToHash(userAddr.Bytes()).Hex(), common.BytesToHash(kappaBytes[:]).Hex()},
		Data:   data,
		TxHash: "0xwithdrawtx",
	}

	result, err := d.Decode(context.Background(), l, &rpc.Receipt{TxHash: "0xwithdrawtx"}, 1700000200, 1)
	require.NoError(t, err)
	require.NotNil(t, result.In)
	require.Nil(t, result.Out)

	in := result.In
	assert.Equal(t, types.NormalizeAddress(userAddr.Hex()), in.ToAddress)
	assert.Equal(t, types.NormalizeAddress(tokenAddr.Hex()), in.ReceivedToken)
	assert.Equal(t, new(big.Int).Sub(amount, fee), in.ReceivedValue)
	assert.Nil(t, in.SwapSuccess)
}

func TestDecoder_DecodeIn_TokenMint_ReconcilesFromReceipt(t *testing.T) {
	tokenAddr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	userAddr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	var kappaBytes [32]byte
	copy(kappaBytes[:], common.FromHex("0xbeef000000000000000000000000000000000000000000000000000000000000"))
	amount := big.NewInt(42_000)
	fee := big.NewInt(0)

	d, err := New("ethereum", nil, nil, noPoolTokens, testLogger(t))
	require.NoError(t, err)

	topic := findTopic(t, types.EventTokenMint)
	data := packNonIndexed(t, tokenAddr, amount, fee)

	l := rpc.Log{
		Topics: []string{topic, common.BytesToHash(userAddr.Bytes()).Hex(), common.BytesToHash(kappaBytes[:]).Hex()},
		Data:   data,
		TxHash: "0xminttx",
	}
	receipt := &rpc.Receipt{
		TxHash: "0xminttx",
		Logs: []rpc.Log{
			{Address: types.NormalizeAddress(tokenAddr.Hex()), Data: last32(amount)},
		},
	}

	result, err := d.Decode(context.Background(), l, receipt, 1700000300, 1)
	require.NoError(t, err)
	require.NotNil(t, result.In)

	in := result.In
	assert.Equal(t, types.NormalizeAddress(tokenAddr.Hex()), in.ReceivedToken)
	assert.Equal(t, amount, in.ReceivedValue)
}

func TestDecoder_DecodeIn_TokenMint_ReconciliationScansLogsInReverse(t *testing.T) {
	earlierAddr := common.HexToAddress("0x8888888888888888888888888888888888888888")
	laterAddr := common.HexToAddress("0x9999999999999999999999999999999999999999")
	userAddr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	var kappaBytes [32]byte
	copy(kappaBytes[:], common.FromHex("0xcafe000000000000000000000000000000000000000000000000000000000000"))
	amount := big.NewInt(10_000)
	fee := big.NewInt(0)

	d, err := New("ethereum", nil, nil, noPoolTokens, testLogger(t))
	require.NoError(t, err)

	topic := findTopic(t, types.EventTokenMint)
	data := packNonIndexed(t, earlierAddr, amount, fee)

	l := rpc.Log{
		Topics: []string{topic, common.BytesToHash(userAddr.Bytes()).Hex(), common.BytesToHash(kappaBytes[:]).Hex()},
		Data:   data,
		TxHash: "0xreversetx",
	}
	// Both logs qualify (value <= amount); a forward scan would pick the
	// earlier log, a reverse scan must pick the later one.
	receipt := &rpc.Receipt{
		TxHash: "0xreversetx",
		Logs: []rpc.Log{
			{Address: types.NormalizeAddress(earlierAddr.Hex()), Data: last32(big.NewInt(1_000))},
			{Address: types.NormalizeAddress(laterAddr.Hex()), Data: last32(amount)},
		},
	}

	result, err := d.Decode(context.Background(), l, receipt, 1700000400, 1)
	require.NoError(t, err)
	require.NotNil(t, result.In)

	assert.Equal(t, types.NormalizeAddress(laterAddr.Hex()), result.In.ReceivedToken, "reconciliation must scan receipt logs in reverse order")
	assert.Equal(t, amount, result.In.ReceivedValue)
}
