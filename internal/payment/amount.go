package payment

import (
	"math"
	"math/big"

	"github.com/arcpay/voicewallet/internal/walleterr"
)

// unitsPerUSDC is the USDC 6-decimal smallest-unit scale (spec.md §6).
const unitsPerUSDC = 1_000_000

// amountUnitsFromUSD converts a decimal USD amount to USDC smallest
// units using banker's rounding (round-half-to-even), per spec.md §8's
// testable property.
func amountUnitsFromUSD(amountUSD float64) (*big.Int, error) {
	if math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) || amountUSD <= 0 {
		return nil, walleterr.New(walleterr.CodeInvalidAmount, "amount must be a positive finite number")
	}
	rounded := math.RoundToEven(amountUSD * unitsPerUSDC)
	if rounded <= 0 {
		return nil, walleterr.New(walleterr.CodeInvalidAmount, "amount rounds to zero units")
	}
	return big.NewInt(int64(rounded)), nil
}
