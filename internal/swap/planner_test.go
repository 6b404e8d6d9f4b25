package swap

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arcpay/voicewallet/internal/clock"
	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/multicall"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// fakeMulticall returns a fixed set of per-call results regardless of
// the calls passed in, in the order supplied by the test.
type fakeMulticall struct {
	results []multicall.Result
	err     error
}

func (f *fakeMulticall) Aggregate3(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeCaller answers eth_call with canned ABI-encoded output bytes.
type fakeCaller struct {
	data []byte
	err  error
}

func (f *fakeCaller) CallContract(ctx context.Context, msg rpcclient.CallMsg) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func liquidityResult(t *testing.T, success bool, liquidity int64) multicall.Result {
	t.Helper()
	if !success {
		return multicall.Result{Success: false, ReturnData: []byte{}}
	}
	packed, err := parsedStateView.Methods["getLiquidity"].Outputs.Pack(big.NewInt(liquidity))
	require.NoError(t, err)
	return multicall.Result{Success: true, ReturnData: packed}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.StateViewAddress = common.HexToAddress("0x10")
	cfg.QuoterAddress = common.HexToAddress("0x11")
	cfg.UniversalRouterAddress = common.HexToAddress("0x12")
	return cfg
}

func TestSelectTier_PicksHighestLiquidityTier(t *testing.T) {
	mc := &fakeMulticall{results: []multicall.Result{
		liquidityResult(t, true, 100),
		liquidityResult(t, true, 9000),
		liquidityResult(t, false, 0),
		liquidityResult(t, true, 500),
	}}
	p := New(mc, &fakeCaller{}, clock.NewFake(time.Now()), testConfig())

	tier, key, err := p.selectTier(context.Background(), tokenLow, tokenHigh)
	require.NoError(t, err)
	require.Equal(t, config.FeeTiers[1], tier)
	require.Equal(t, uint32(500), key.Fee)
}

func TestSelectTier_FailsWithNoPoolWhenAllCallsFail(t *testing.T) {
	mc := &fakeMulticall{results: []multicall.Result{
		liquidityResult(t, false, 0),
		liquidityResult(t, false, 0),
		liquidityResult(t, false, 0),
		liquidityResult(t, false, 0),
	}}
	p := New(mc, &fakeCaller{}, clock.NewFake(time.Now()), testConfig())

	_, _, err := p.selectTier(context.Background(), tokenLow, tokenHigh)
	require.Error(t, err)
	require.Equal(t, walleterr.CodeNoPool, err.(*walleterr.Error).Code)
}

func TestSelectTier_FailsWithNoPoolWhenEveryTierIsZeroLiquidity(t *testing.T) {
	mc := &fakeMulticall{results: []multicall.Result{
		liquidityResult(t, true, 0),
		liquidityResult(t, true, 0),
		liquidityResult(t, true, 0),
		liquidityResult(t, true, 0),
	}}
	p := New(mc, &fakeCaller{}, clock.NewFake(time.Now()), testConfig())

	_, _, err := p.selectTier(context.Background(), tokenLow, tokenHigh)
	require.Error(t, err)
	require.Equal(t, walleterr.CodeNoPool, err.(*walleterr.Error).Code)
}

func TestQuote_UnpacksAmountOut(t *testing.T) {
	cfg := testConfig()
	key := NewPoolKey(tokenLow, tokenHigh, config.FeeTiers[1])
	packed, err := parsedQuoter.Methods["quoteExactInputSingle"].Outputs.Pack(big.NewInt(990_000), big.NewInt(150_000))
	require.NoError(t, err)

	p := New(&fakeMulticall{}, &fakeCaller{data: packed}, clock.NewFake(time.Now()), cfg)

	out, err := p.quote(context.Background(), key, true, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(990_000), out)
}

func TestPlan_BuildsRouterCalldataWithSlippageApplied(t *testing.T) {
	cfg := testConfig()
	mc := &fakeMulticall{results: []multicall.Result{
		liquidityResult(t, true, 100),
		liquidityResult(t, true, 9000),
		liquidityResult(t, false, 0),
		liquidityResult(t, true, 500),
	}}
	quotePacked, err := parsedQuoter.Methods["quoteExactInputSingle"].Outputs.Pack(big.NewInt(1_000_000), big.NewInt(150_000))
	require.NoError(t, err)

	p := New(mc, &fakeCaller{data: quotePacked}, clock.NewFake(time.Now()), cfg)

	plan, err := p.Plan(context.Background(), tokenLow, tokenHigh, big.NewInt(2_000_000), common.HexToAddress("0x99"), 50, false)
	require.NoError(t, err)

	require.Equal(t, uint32(500), plan.Fee)
	require.Equal(t, big.NewInt(1_000_000), plan.QuotedOut)
	require.Equal(t, big.NewInt(995_000), plan.MinAmountOut) // 1_000_000 * 9950/10000
	require.NotEmpty(t, plan.RouterData)

	var decodedArgs struct {
		Commands []byte
		Inputs   [][]byte
		Deadline *big.Int
	}
	require.NoError(t, parsedExecute.Methods["execute"].Inputs.UnpackIntoInterface(&decodedArgs, plan.RouterData[4:]))
	require.Equal(t, []byte{commandExactInputSingle}, decodedArgs.Commands)
	require.Len(t, decodedArgs.Inputs, 1)
}

func TestPlan_SetsValueOnlyForNativeIn(t *testing.T) {
	cfg := testConfig()
	mc := &fakeMulticall{results: []multicall.Result{
		liquidityResult(t, true, 100),
		liquidityResult(t, false, 0),
		liquidityResult(t, false, 0),
		liquidityResult(t, false, 0),
	}}
	quotePacked, err := parsedQuoter.Methods["quoteExactInputSingle"].Outputs.Pack(big.NewInt(500_000), big.NewInt(50_000))
	require.NoError(t, err)
	p := New(mc, &fakeCaller{data: quotePacked}, clock.NewFake(time.Now()), cfg)

	amountIn := big.NewInt(2_000_000)
	plan, err := p.Plan(context.Background(), tokenLow, tokenHigh, amountIn, common.HexToAddress("0x99"), 50, true)
	require.NoError(t, err)
	require.Equal(t, amountIn, plan.Value)

	plan2, err := p.Plan(context.Background(), tokenLow, tokenHigh, amountIn, common.HexToAddress("0x99"), 50, false)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), plan2.Value)
}
