// Package decoder implements the Event Decoder (spec.md §4.C): classifies
// a raw bridge log by topic, decodes its event arguments, and enriches it
// into an OUT or IN half ready for the Correlation Store. Grounded on
// original_source/indexer/rpc.py's bridge_callback, the literal reference
// algorithm for this component, re-expressed in the teacher's decoder
// idiom (internal/core/transaction/decoder_evm.go's dispatch-by-kind
// shape).
package decoder

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/errors"
	"bridgeindexer/internal/logger"
)

// TokenLookup resolves per-chain token metadata populated once at startup
// by the Static Registry (spec.md §4.H).
type TokenLookup func(chain, address string) (types.TokenMetadata, bool)

// PoolTokenLookup resolves a pool's ordered token list, backed by the
// Static Registry's cached getToken(i) enumeration (spec.md §4.H/§9).
type PoolTokenLookup func(ctx context.Context, pool string) ([]string, error)

// TransactionFetcher resolves a transaction's sender and calldata, per
// spec.md §4.B's get_transaction(chain, hash) → {from, input, …}. Satisfied
// by *rpc.Client; narrowed to an interface so the decoder's enrichment
// logic is testable without a live node.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, txHash string) (*rpc.Transaction, error)
}

// Decoder implements the Event Decoder for one chain.
type Decoder struct {
	chain       string
	client      TransactionFetcher
	bridgeABI   abi.ABI
	lookupToken TokenLookup
	poolTokens  PoolTokenLookup
	log         logger.Logger
}

// New builds a Decoder for chain, backed by client for transaction
// sender/calldata access, lookupToken for token metadata resolution and
// poolTokens for pool token-list resolution.
func New(chain string, client TransactionFetcher, lookupToken TokenLookup, poolTokens PoolTokenLookup, log logger.Logger) (*Decoder, error) {
	bridgeABI, err := abi.JSON(bridgeABIReader())
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		chain:       chain,
		client:      client,
		bridgeABI:   bridgeABI,
		lookupToken: lookupToken,
		poolTokens:  poolTokens,
		log:         log.With(logger.String("chain", chain)),
	}
	d.checkTopics()
	return d, nil
}

// checkTopics verifies the embedded bridge ABI's event signatures hash to
// the topics recorded in types.Topics, catching a reconstructed-ABI
// mismatch at startup rather than as a silent UnknownTopic at decode time.
// A mismatch is logged, not fatal: the Topic→Event map (not the ABI) is
// what classifies incoming logs, so a stale ABI only degrades argument
// decoding, never log classification.
func (d *Decoder) checkTopics() {
	for topic, info := range types.Topics {
		got, err := d.TopicHash(string(info.Event))
		if err != nil {
			d.log.Warn("bridge ABI is missing an event named in the topic table",
				logger.String("event", string(info.Event)))
			continue
		}
		if got != topic {
			d.log.Warn("bridge ABI event signature does not hash to its recorded topic",
				logger.String("event", string(info.Event)),
				logger.String("expected_topic", topic),
				logger.String("computed_topic", got))
		}
	}
}

// Result is the single enriched half produced by decoding one log,
// per spec.md §4.C: exactly one of Out/In is set.
type Result struct {
	Out *types.OutHalf
	In  *types.InHalf
}

// Decode classifies l by topic and enriches it into an OUT or IN half,
// per spec.md §4.C's four steps: classify, decode args, enrich, emit.
// toChainID is the bridge's configured chain id for this process (used to
// fill the half that is not derivable from the log itself); fromChainID
// is this decoder's own chain id.
func (d *Decoder) Decode(ctx context.Context, l rpc.Log, receipt *rpc.Receipt, blockTime int64, chainID int64) (*Result, error) {
	if len(l.Topics) == 0 {
		return nil, errors.NewDecoderMalformedLogError(d.chain, l.TxHash, "log has no topics")
	}

	info, ok := types.LookupTopic(l.Topics[0])
	if !ok {
		return nil, errors.NewUnknownTopicError(d.chain, l.TxHash, l.Topics[0])
	}

	args, err := d.unpackEvent(string(info.Event), l)
	if err != nil {
		return nil, errors.NewDecoderMalformedLogError(d.chain, l.TxHash, err.Error())
	}

	if info.Direction == types.DirectionOut {
		out, err := d.decodeOut(ctx, info.Event, l, receipt, blockTime, chainID, args)
		if err != nil {
			return nil, err
		}
		return &Result{Out: out}, nil
	}

	in, err := d.decodeIn(ctx, info.Event, l, receipt, blockTime, chainID, args)
	if err != nil {
		return nil, err
	}
	return &Result{In: in}, nil
}

// unpackEvent decodes both the non-indexed (data) and indexed (topics)
// arguments of a bridge event into a single map, mirroring
// web3.py's contract.events[event]().processLog(log)['args'].
func (d *Decoder) unpackEvent(eventName string, l rpc.Log) (map[string]any, error) {
	event, ok := d.bridgeABI.Events[eventName]
	if !ok {
		return nil, errors.NewUnknownTopicError(d.chain, l.TxHash, l.Topics[0])
	}

	args := make(map[string]any)
	if err := d.bridgeABI.UnpackIntoMap(args, eventName, l.Data); err != nil {
		return nil, err
	}

	var indexed abi.Arguments
	for _, in := range event.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		topicHashes := make([]common.Hash, 0, len(l.Topics)-1)
		for _, t := range l.Topics[1:] {
			topicHashes = append(topicHashes, common.HexToHash(t))
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, topicHashes); err != nil {
			return nil, err
		}
	}

	return args, nil
}

// decodeOut implements spec.md §4.C's OUT enrichment rule: derive kappa
// locally, scan the receipt's logs for the first log whose emitter is a
// known token (an ERC-20 Transfer or, for WETH-style wrapping, a
// Deposit(address,uint256) log), and take that log's value as sent_value.
func (d *Decoder) decodeOut(ctx context.Context, event types.EventKind, l rpc.Log, receipt *rpc.Receipt, blockTime int64, chainID int64, args map[string]any) (*types.OutHalf, error) {
	to, ok := args["to"].(common.Address)
	if !ok {
		return nil, errors.NewDecoderMalformedLogError(d.chain, l.TxHash, "missing 'to' arg")
	}
	destChainID, _ := args["chainId"].(*big.Int)

	sentToken, sentValue, err := d.findSentToken(receipt)
	if err != nil {
		return nil, err
	}

	tx, err := d.client.GetTransaction(ctx, l.TxHash)
	if err != nil {
		return nil, err
	}

	return &types.OutHalf{
		FromTxHash:  l.TxHash,
		FromAddress: types.NormalizeAddress(tx.From),
		ToAddress:   types.NormalizeAddress(to.Hex()),
		SentValue:   sentValue,
		SentToken:   sentToken,
		FromChainID: chainID,
		ToChainID:   destChainIDOrZero(destChainID),
		SentTime:    blockTime,
		Kappa:       types.KappaFromTxHash(l.TxHash),
	}, nil
}

func destChainIDOrZero(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	return v.Int64()
}

// findSentToken scans receipt.Logs for the first log emitted by a token
// this chain knows about, per original_source/indexer/rpc.py's
// get_sent_info: a WETH-style wrap is read as Deposit(address,uint256)
// data; anything else is read as an ERC-20 Transfer's value field (the
// last 32 bytes of a non-indexed-value Transfer log's data).
func (d *Decoder) findSentToken(receipt *rpc.Receipt) (string, *big.Int, error) {
	for _, lg := range receipt.Logs {
		meta, ok := d.lookupToken(d.chain, lg.Address)
		if !ok {
			continue
		}
		if len(lg.Data) < 32 {
			continue
		}
		value := new(big.Int).SetBytes(lg.Data[len(lg.Data)-32:])
		return types.NormalizeAddress(meta.Address), value, nil
	}
	return "", nil, errors.NewSentTokenNotFoundError(d.chain, receipt.TxHash)
}

// decodeIn implements spec.md §4.C's IN enrichment rule: plain
// TokenMint/TokenWithdraw carry token+amount-fee directly; the
// AndSwap/AndRemove variants require decoding the transaction's calldata
// to find the pool address, then resolving the pool's token list to find
// the destination token by index (or a fixed fallback when the swap
// failed).
func (d *Decoder) decodeIn(ctx context.Context, event types.EventKind, l rpc.Log, receipt *rpc.Receipt, blockTime int64, chainID int64, args map[string]any) (*types.InHalf, error) {
	to, _ := args["to"].(common.Address)
	kappaBytes, _ := args["kappa"].([32]byte)
	kappa := "0x" + common.Bytes2Hex(kappaBytes[:])

	var (
		receivedToken string
		receivedValue *big.Int
		swapSuccess   *bool
	)

	switch event {
	case types.EventTokenMintAndSwap, types.EventTokenWithdrawAndRemove:
		success, _ := args["swapSuccess"].(bool)
		swapSuccess = &success

		tokenIndexTo, _ := args["tokenIndexTo"].(uint8)
		if event == types.EventTokenWithdrawAndRemove {
			tokenIndexTo, _ = args["swapTokenIndex"].(uint8)
		}

		pool, err := d.resolvePoolAddress(ctx, l.TxHash)
		if err != nil {
			return nil, err
		}
		poolTokens, err := d.poolTokens(ctx, pool)
		if err != nil {
			return nil, err
		}

		switch {
		case success:
			if int(tokenIndexTo) >= len(poolTokens) {
				return nil, errors.NewPoolTokenNotFoundError(d.chain, pool, int(tokenIndexTo))
			}
			receivedToken = poolTokens[tokenIndexTo]
		case d.chain == "ethereum":
			receivedToken = "0x1b84765de8b7566e4ceaf4d0fd3c5af52d3dde4f"
		default:
			if len(poolTokens) == 0 {
				return nil, errors.NewPoolTokenNotFoundError(d.chain, pool, 0)
			}
			receivedToken = poolTokens[0]
		}

	case types.EventTokenMint, types.EventTokenWithdraw:
		token, _ := args["token"].(common.Address)
		receivedToken = types.NormalizeAddress(token.Hex())
		if event == types.EventTokenWithdraw {
			amount, _ := args["amount"].(*big.Int)
			fee, _ := args["fee"].(*big.Int)
			if amount != nil && fee != nil {
				receivedValue = new(big.Int).Sub(amount, fee)
			}
		}

	default:
		return nil, errors.NewDecoderNotConvergedError(d.chain, l.TxHash, "event "+string(event)+" is not a recognised IN event")
	}

	receivedToken = types.ApplyMisrepresentedOverride(d.chain, receivedToken)

	if receivedValue == nil {
		found, err := d.findReceivedValue(receipt, receivedToken)
		if err != nil {
			return nil, err
		}
		receivedValue = found
	}

	if event == types.EventTokenMint {
		amount, _ := args["amount"].(*big.Int)
		if amount != nil && receivedValue.Cmp(amount) != 0 {
			token, value, err := d.findValueByAmount(receipt, amount)
			if err != nil {
				return nil, err
			}
			receivedToken = token
			receivedValue = value
		}
	}

	if swapSuccess != nil && !*swapSuccess {
		fee, _ := args["fee"].(*big.Int)
		if fee != nil {
			receivedValue = new(big.Int).Sub(receivedValue, fee)
		}
	}

	return &types.InHalf{
		ToTxHash:      l.TxHash,
		ToAddress:     types.NormalizeAddress(to.Hex()),
		ReceivedValue: receivedValue,
		ReceivedToken: receivedToken,
		ToChainID:     chainID,
		ReceivedTime:  blockTime,
		SwapSuccess:   swapSuccess,
		Kappa:         kappa,
	}, nil
}

// resolvePoolAddress decodes the transaction's calldata to find the pool
// argument of a swap-path bridge call, per bridge_callback's
// contract.decode_function_input(tx_info['input']).
func (d *Decoder) resolvePoolAddress(ctx context.Context, txHash string) (string, error) {
	tx, err := d.client.GetTransaction(ctx, txHash)
	if err != nil {
		return "", err
	}
	input := tx.Input
	if len(input) < 4 {
		return "", errors.NewDecoderMalformedLogError(d.chain, txHash, "calldata too short to contain a pool argument")
	}

	method, err := d.bridgeABI.MethodById(input[:4])
	if err != nil {
		return "", errors.NewDecoderMalformedLogError(d.chain, txHash, "unrecognised calldata selector")
	}
	decoded := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(decoded, input[4:]); err != nil {
		return "", errors.NewDecoderMalformedLogError(d.chain, txHash, "failed to decode calldata: "+err.Error())
	}
	pool, ok := decoded["pool"].(common.Address)
	if !ok {
		return "", errors.NewDecoderMalformedLogError(d.chain, txHash, "calldata has no 'pool' argument")
	}
	return types.NormalizeAddress(pool.Hex()), nil
}

// findReceivedValue scans receipt.Logs for the log matching receivedToken
// and returns its transferred value, per
// original_source/indexer/helpers.py's search_logs.
func (d *Decoder) findReceivedValue(receipt *rpc.Receipt, receivedToken string) (*big.Int, error) {
	target := types.NormalizeAddress(receivedToken)
	for _, lg := range receipt.Logs {
		if types.NormalizeAddress(lg.Address) != target {
			continue
		}
		if len(lg.Data) < 32 {
			continue
		}
		return new(big.Int).SetBytes(lg.Data[len(lg.Data)-32:]), nil
	}
	return nil, errors.NewDecoderNotConvergedError(d.chain, receipt.TxHash, "no log found for received token "+target)
}

// findValueByAmount scans receipt.Logs in reverse for the first log whose
// value is at most amount, per original_source/indexer/helpers.py's
// iterate_receipt_logs(check_reverse=True) default used by the TokenMint
// reconciliation branch of bridge_callback (original_source/indexer/
// rpc.py's get_logs call at that default).
func (d *Decoder) findValueByAmount(receipt *rpc.Receipt, amount *big.Int) (string, *big.Int, error) {
	for i := len(receipt.Logs) - 1; i >= 0; i-- {
		lg := receipt.Logs[i]
		if len(lg.Data) < 32 {
			continue
		}
		value := new(big.Int).SetBytes(lg.Data[len(lg.Data)-32:])
		if value.Cmp(amount) <= 0 {
			return types.NormalizeAddress(lg.Address), value, nil
		}
	}
	return "", nil, errors.NewDecoderNotConvergedError(d.chain, receipt.TxHash, "no log found with value <= amount")
}

// eventSignature reconstructs an event's canonical signature string, used
// only to sanity-check the embedded ABI's topic hashes against
// types.Topics at startup (internal/bridge/registry wires this check).
func eventSignature(name string, inputs abi.Arguments) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, in := range inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(in.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// TopicHash returns the keccak256 topic hash for a bridge event name,
// used by registry wiring to verify the embedded ABI agrees with
// types.Topics.
func (d *Decoder) TopicHash(eventName string) (string, error) {
	event, ok := d.bridgeABI.Events[eventName]
	if !ok {
		return "", errors.NewUnknownTopicError(d.chain, "", eventName)
	}
	sig := eventSignature(event.RawName, event.Inputs)
	return "0x" + common.Bytes2Hex(crypto.Keccak256([]byte(sig))), nil
}
