// Package registry implements the Static Registry (spec.md §4.H): the
// per-chain table of bridge/pool addresses plus the token-metadata cache
// populated once at startup by reading each token contract, with a
// bounded-concurrency fan-out grounded on
// internal/core/blockchain/factory.go's cache-or-create idiom.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"bridgeindexer/internal/bridge/rpc"
	"bridgeindexer/internal/bridge/types"
	"bridgeindexer/internal/errors"
	"bridgeindexer/internal/logger"
)

// tokenMetadataConcurrency bounds the startup token-metadata fan-out, per
// spec.md §4.H ("bounded at 24 concurrent calls"), restored from
// original_source/indexer/contract.py's gevent.pool.Pool(size=24).
const tokenMetadataConcurrency = 24

const erc20ABIJSON = `[
  {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// basePoolABIJSON carries only the single view method the Static Registry
// needs to enumerate a pool's token list (spec.md §4.H/§9).
const basePoolABIJSON = `[
  {"constant":true,"inputs":[{"name":"index","type":"uint8"}],"name":"getToken","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// maxPoolTokens bounds the pool-enumeration loop, per spec.md §4.H.
const maxPoolTokens = 256

// Registry holds the token-metadata cache for one chain, read once at
// startup and immutable thereafter (spec.md §3).
type Registry struct {
	chain     types.Chain
	client    *rpc.Client
	erc20ABI  abi.ABI
	poolABI   abi.ABI
	tokens    map[string]types.TokenMetadata
	tokensMu  sync.RWMutex
	poolCache map[string][]string
	poolMu    sync.RWMutex
	log       logger.Logger
}

// New builds a Registry for chain, backed by client for on-chain reads.
func New(chain types.Chain, client *rpc.Client, log logger.Logger) (*Registry, error) {
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, err
	}
	poolABI, err := abi.JSON(strings.NewReader(basePoolABIJSON))
	if err != nil {
		return nil, err
	}
	return &Registry{
		chain:     chain,
		client:    client,
		erc20ABI:  erc20ABI,
		poolABI:   poolABI,
		tokens:    make(map[string]types.TokenMetadata),
		poolCache: make(map[string][]string),
		log:       log.With(logger.String("chain", chain.Name)),
	}, nil
}

// LoadTokens reads decimals/name/symbol for every address in addresses,
// fanning the calls out with a bound of tokenMetadataConcurrency
// in-flight requests at a time, per spec.md §4.H.
func (r *Registry) LoadTokens(ctx context.Context, addresses []string) error {
	sem := make(chan struct{}, tokenMetadataConcurrency)
	var wg sync.WaitGroup
	errCh := make(chan error, len(addresses))

	for _, addr := range addresses {
		addr := addr
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			meta, err := r.readTokenMetadata(ctx, addr)
			if err != nil {
				errCh <- err
				return
			}

			r.tokensMu.Lock()
			r.tokens[types.TokenKey(r.chain.Name, addr)] = meta
			r.tokensMu.Unlock()
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) readTokenMetadata(ctx context.Context, address string) (types.TokenMetadata, error) {
	decimalsData, err := r.erc20ABI.Pack("decimals")
	if err != nil {
		return types.TokenMetadata{}, err
	}
	decimalsResult, err := r.client.CallContract(ctx, address, decimalsData)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	var decimals uint8
	if err := r.erc20ABI.UnpackIntoInterface(&decimals, "decimals", decimalsResult); err != nil {
		return types.TokenMetadata{}, err
	}

	symbolData, err := r.erc20ABI.Pack("symbol")
	if err != nil {
		return types.TokenMetadata{}, err
	}
	symbolResult, err := r.client.CallContract(ctx, address, symbolData)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	var symbol string
	_ = r.erc20ABI.UnpackIntoInterface(&symbol, "symbol", symbolResult)

	nameData, err := r.erc20ABI.Pack("name")
	if err != nil {
		return types.TokenMetadata{}, err
	}
	nameResult, err := r.client.CallContract(ctx, address, nameData)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	var name string
	_ = r.erc20ABI.UnpackIntoInterface(&name, "name", nameResult)

	return types.TokenMetadata{
		Address:  types.NormalizeAddress(address),
		Chain:    r.chain.Name,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}, nil
}

// Lookup resolves token metadata for (chain, address), implementing the
// decoder.TokenLookup signature.
func (r *Registry) Lookup(chain, address string) (types.TokenMetadata, bool) {
	r.tokensMu.RLock()
	defer r.tokensMu.RUnlock()
	meta, ok := r.tokens[types.TokenKey(chain, address)]
	return meta, ok
}

// PoolTokens returns the cached ordered token list for pool, reading it
// via getToken(i) (i = 0, 1, 2, ...) until the call reverts on first use,
// per spec.md §4.H/§9. It implements the decoder.PoolTokenLookup signature,
// so the Event Decoder's AndSwap/AndRemove enrichment path resolves a
// pool's token list through this single cached reader rather than
// re-enumerating the chain on every decoded swap event.
func (r *Registry) PoolTokens(ctx context.Context, pool string) ([]string, error) {
	r.poolMu.RLock()
	cached, ok := r.poolCache[pool]
	r.poolMu.RUnlock()
	if ok {
		return cached, nil
	}

	var tokens []string
	for i := 0; i < maxPoolTokens; i++ {
		data, err := r.poolABI.Pack("getToken", uint8(i))
		if err != nil {
			return nil, err
		}
		result, err := r.client.CallContract(ctx, pool, data)
		if err != nil {
			if errors.IsRetryable(err) {
				return nil, err
			}
			break
		}
		var addr common.Address
		if err := r.poolABI.UnpackIntoInterface(&addr, "getToken", result); err != nil {
			break
		}
		tokens = append(tokens, types.NormalizeAddress(addr.Hex()))
	}

	if len(tokens) == 0 {
		return nil, errors.NewPoolTokenNotFoundError(r.chain.Name, pool, 0)
	}

	r.poolMu.Lock()
	r.poolCache[pool] = tokens
	r.poolMu.Unlock()

	return tokens, nil
}
