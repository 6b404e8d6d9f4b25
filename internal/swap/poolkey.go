// Package swap implements the Swap Planner component (spec.md §4.8):
// pool-fee-tier selection over a single batched Multicall3 read, and
// call-data construction for the Universal Router's exact-input
// single-hop swap.
package swap

import (
	"bytes"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/cryptoprim"
)

// PoolKey is the 5-tuple that identifies a concentrated-liquidity pool
// (spec.md §3): currency0 < currency1 lexicographically, fee and
// tickSpacing from config.FeeTiers, hooks the zero address for stock
// pools.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32
	TickSpacing int32
	Hooks       common.Address
}

// NewPoolKey builds a PoolKey for the tokenA/tokenB pair at the given
// fee tier, normalizing currency order (spec.md §3).
func NewPoolKey(tokenA, tokenB common.Address, tier config.FeeTier) PoolKey {
	currency0, currency1 := tokenA, tokenB
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		currency0, currency1 = tokenB, tokenA
	}
	return PoolKey{
		Currency0:   currency0,
		Currency1:   currency1,
		Fee:         tier.Fee,
		TickSpacing: tier.TickSpacing,
		Hooks:       common.Address{},
	}
}

// ZeroForOne reports whether tokenIn is currency0 of k, which determines
// the swap direction the pool expects.
func (k PoolKey) ZeroForOne(tokenIn common.Address) bool {
	return k.Currency0 == tokenIn
}

var poolKeyArguments = abi.Arguments{
	{Type: mustType("address")},
	{Type: mustType("address")},
	{Type: mustType("uint24")},
	{Type: mustType("int24")},
	{Type: mustType("address")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("swap: invalid abi type " + t + ": " + err.Error())
	}
	return typ
}

// PoolID computes keccak256(abi.encode(currency0, currency1, fee,
// tickSpacing, hooks)) per spec.md §3.
func (k PoolKey) PoolID() ([32]byte, error) {
	encoded, err := poolKeyArguments.Pack(
		k.Currency0,
		k.Currency1,
		k.Fee,
		k.TickSpacing,
		k.Hooks,
	)
	if err != nil {
		return [32]byte{}, err
	}
	var id [32]byte
	copy(id[:], cryptoprim.Keccak256(encoded))
	return id, nil
}
