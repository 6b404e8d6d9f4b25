package swap

import (
	"context"
	"math/big"

	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

type quoteOutput struct {
	AmountOut   *big.Int
	GasEstimate *big.Int
}

// quote calls the quoter's quoteExactInputSingle with the pool key
// passed as a struct argument, never pre-ABI-encoded to bytes (spec.md
// §4.8 step 5's explicit warning).
func (p *Planner) quote(ctx context.Context, key PoolKey, zeroForOne bool, amountIn *big.Int) (*big.Int, error) {
	params := quoteExactInputSingleParams{
		PoolKey:     key,
		ZeroForOne:  zeroForOne,
		ExactAmount: amountIn,
		HookData:    []byte{},
	}

	data, err := parsedQuoter.Pack("quoteExactInputSingle", params)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeGasEstimationFailed, "failed to pack quoter call", err)
	}

	raw, err := p.caller.CallContract(ctx, rpcclient.CallMsg{To: &p.quoterAddress, Data: data})
	if err != nil {
		return nil, walleterr.WrapRetryable(walleterr.CodeGasEstimationFailed, "quoter call failed", err)
	}

	var out quoteOutput
	if err := parsedQuoter.UnpackIntoInterface(&out, "quoteExactInputSingle", raw); err != nil {
		return nil, walleterr.Wrap(walleterr.CodeGasEstimationFailed, "failed to unpack quoter result", err)
	}
	return out.AmountOut, nil
}
