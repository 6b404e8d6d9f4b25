package swap

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/clock"
	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/multicall"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

const stateViewABI = `[
	{"constant":true,"inputs":[{"name":"poolId","type":"bytes32"}],"name":"getLiquidity","outputs":[{"name":"","type":"uint128"}],"type":"function"}
]`

// quoteExactInputSingleParams mirrors the quoter's struct argument
// (spec.md §4.8 step 5): passed as a tuple, never pre-encoded to bytes.
type quoteExactInputSingleParams struct {
	PoolKey      PoolKey
	ZeroForOne   bool
	ExactAmount  *big.Int
	HookData     []byte
}

const quoterABI = `[
	{
		"inputs": [
			{
				"components": [
					{"name": "poolKey", "type": "tuple", "components": [
						{"name": "currency0", "type": "address"},
						{"name": "currency1", "type": "address"},
						{"name": "fee", "type": "uint24"},
						{"name": "tickSpacing", "type": "int24"},
						{"name": "hooks", "type": "address"}
					]},
					{"name": "zeroForOne", "type": "bool"},
					{"name": "exactAmount", "type": "uint128"},
					{"name": "hookData", "type": "bytes"}
				],
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"name": "amountOut", "type": "uint256"},
			{"name": "gasEstimate", "type": "uint256"}
		],
		"type": "function"
	}
]`

var (
	parsedStateView abi.ABI
	parsedQuoter    abi.ABI
)

func init() {
	var err error
	parsedStateView, err = abi.JSON(strings.NewReader(stateViewABI))
	if err != nil {
		panic("swap: invalid state-view ABI: " + err.Error())
	}
	parsedQuoter, err = abi.JSON(strings.NewReader(quoterABI))
	if err != nil {
		panic("swap: invalid quoter ABI: " + err.Error())
	}
}

// MulticallReader is the subset of internal/multicall.Reader this
// package needs.
type MulticallReader interface {
	Aggregate3(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error)
}

// Caller is the subset of internal/rpcclient.Client this package needs
// for the quoter eth_call.
type Caller interface {
	CallContract(ctx context.Context, msg rpcclient.CallMsg) ([]byte, error)
}

// Planner selects a fee-tier pool by liquidity and builds Universal
// Router call-data for an exact-input single-hop swap.
type Planner struct {
	multicall        MulticallReader
	caller           Caller
	clock            clock.Clock
	stateViewAddress common.Address
	quoterAddress    common.Address
	routerAddress    common.Address
}

// New constructs a Planner.
func New(mc MulticallReader, caller Caller, clk clock.Clock, cfg *config.Config) *Planner {
	return &Planner{
		multicall:        mc,
		caller:           caller,
		clock:            clk,
		stateViewAddress: cfg.StateViewAddress,
		quoterAddress:    cfg.QuoterAddress,
		routerAddress:    cfg.UniversalRouterAddress,
	}
}

// Plan is the output of planning a swap: the chosen pool, the quoted
// output, and the Universal Router call-data ready to broadcast.
type Plan struct {
	PoolKey      PoolKey
	Fee          uint32
	QuotedOut    *big.Int
	MinAmountOut *big.Int
	RouterData   []byte
	Value        *big.Int
}

// Plan implements spec.md §4.8 steps 1-6: scan the four canonical fee
// tiers for the tier with max liquidity, quote the swap, and build the
// router call-data with the requested slippage tolerance.
func (p *Planner) Plan(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, recipient common.Address, slippageBps int, isNativeIn bool) (Plan, error) {
	tier, key, err := p.selectTier(ctx, tokenIn, tokenOut)
	if err != nil {
		return Plan{}, err
	}

	zeroForOne := key.ZeroForOne(tokenIn)
	quotedOut, err := p.quote(ctx, key, zeroForOne, amountIn)
	if err != nil {
		return Plan{}, err
	}

	minAmountOut := applySlippage(quotedOut, slippageBps)
	deadline := big.NewInt(p.clock.Now().Add(20 * time.Minute).Unix())

	routerData, err := encodeExactInputSingleExecute(key, zeroForOne, amountIn, minAmountOut, recipient, deadline)
	if err != nil {
		return Plan{}, walleterr.Wrap(walleterr.CodeRPCError, "failed to encode universal router calldata", err)
	}

	value := new(big.Int)
	if isNativeIn {
		value = new(big.Int).Set(amountIn)
	}

	return Plan{
		PoolKey:      key,
		Fee:          tier.Fee,
		QuotedOut:    quotedOut,
		MinAmountOut: minAmountOut,
		RouterData:   routerData,
		Value:        value,
	}, nil
}

// selectTier implements steps 1-4: batch-read getLiquidity for all four
// canonical fee tiers and pick the max, failing no-pool if every call
// failed or every liquidity is zero.
func (p *Planner) selectTier(ctx context.Context, tokenA, tokenB common.Address) (config.FeeTier, PoolKey, error) {
	keys := make([]PoolKey, len(config.FeeTiers))
	calls := make([]multicall.Call, len(config.FeeTiers))
	for i, tier := range config.FeeTiers {
		key := NewPoolKey(tokenA, tokenB, tier)
		keys[i] = key

		poolID, err := key.PoolID()
		if err != nil {
			return config.FeeTier{}, PoolKey{}, err
		}
		data, err := parsedStateView.Pack("getLiquidity", poolID)
		if err != nil {
			return config.FeeTier{}, PoolKey{}, err
		}
		calls[i] = multicall.Call{Target: p.stateViewAddress, AllowFailure: true, CallData: data}
	}

	results, err := p.multicall.Aggregate3(ctx, calls)
	if err != nil {
		return config.FeeTier{}, PoolKey{}, err
	}

	bestIdx := -1
	best := new(big.Int)
	for i, res := range results {
		if !res.Success {
			continue
		}
		var liquidity *big.Int
		if err := parsedStateView.UnpackIntoInterface(&liquidity, "getLiquidity", res.ReturnData); err != nil {
			continue
		}
		if liquidity.Cmp(best) > 0 {
			best = liquidity
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		return config.FeeTier{}, PoolKey{}, walleterr.New(walleterr.CodeNoPool, "no pool with nonzero liquidity across any fee tier")
	}
	return config.FeeTiers[bestIdx], keys[bestIdx], nil
}

func applySlippage(quotedOut *big.Int, slippageBps int) *big.Int {
	out := new(big.Int).Mul(quotedOut, big.NewInt(int64(10000-slippageBps)))
	return out.Div(out, big.NewInt(10000))
}
