// Package config holds the chain-facing configuration for the payment
// client: the RPC endpoint, contract addresses, and the safety thresholds
// the payment state machine enforces. Shaped after the teacher's
// internal/app.AppConfig (JSON, versioned, defaulted).
package config

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical cross-chain Multicall3 deployment address (spec.md §6).
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// FeeTier is a Uniswap-v4-style pool fee tier with its canonical tick
// spacing (spec.md §3, Pool key).
type FeeTier struct {
	Fee         uint32
	TickSpacing int32
}

// FeeTiers is the fixed scan order for the swap planner (spec.md §4.8).
var FeeTiers = []FeeTier{
	{Fee: 100, TickSpacing: 1},
	{Fee: 500, TickSpacing: 10},
	{Fee: 3000, TickSpacing: 60},
	{Fee: 10000, TickSpacing: 200},
}

// AllowedSlippageBps enumerates the configurable slippage choices (spec.md §4.8).
var AllowedSlippageBps = []int{10, 50, 100, 200}

// Config is the complete set of chain-facing settings for one deployment.
type Config struct {
	Version string `json:"version"`

	// ChainID is the EVM chain id the engine signs for (spec.md: 143).
	ChainID int64 `json:"chain_id"`

	// NativeSymbol is the chain's native currency ticker (spec.md: "MON").
	NativeSymbol string `json:"native_symbol"`

	// RPCEndpoint is the single HTTPS JSON-RPC endpoint (spec.md §4.4, §6).
	RPCEndpoint string `json:"rpc_endpoint"`

	// USDCAddress is the chain-configured USDC ERC-20 contract.
	USDCAddress common.Address `json:"usdc_address"`
	// USDCDecimals is fixed at 6 for a standard USDC deployment.
	USDCDecimals uint8 `json:"usdc_decimals"`

	// WrappedNativeAddress is the wrapped-native sentinel token used as
	// tokenIn when swapping native balance into USDC (spec.md §4.8).
	WrappedNativeAddress common.Address `json:"wrapped_native_address"`

	UniversalRouterAddress common.Address `json:"universal_router_address"`
	StateViewAddress       common.Address `json:"state_view_address"`
	QuoterAddress          common.Address `json:"quoter_address"`

	// SafetyCeilingUnits is the hard per-tx ceiling in USDC units
	// (spec.md §7: default $1,000 == 1_000_000_000 units at 6 decimals).
	SafetyCeilingUnits uint64 `json:"safety_ceiling_units"`

	// WarningThresholdUnits is the UX warning threshold (spec.md §9 Open
	// Question decision, SPEC_FULL.md §Supplemented Feature 4). It is
	// carried in the config only: no code in this module reads it, and no
	// warning is emitted at this threshold.
	WarningThresholdUnits uint64 `json:"warning_threshold_units"`

	// DefaultSlippageBps is the swap planner's default slippage tolerance.
	DefaultSlippageBps int `json:"default_slippage_bps"`

	// NonceCacheWindowSeconds is the §3 pending-nonce cache window (30s).
	NonceCacheWindowSeconds int64 `json:"nonce_cache_window_seconds"`

	// ReceiptPollCapSeconds bounds receipt polling (spec.md §5: 120s).
	ReceiptPollCapSeconds int64 `json:"receipt_poll_cap_seconds"`

	// GasPriceBufferPct and GasLimitBufferPct implement the buffers in
	// spec.md §4.6 steps 2-3 (20% and 30% respectively).
	GasPriceBufferPct int64 `json:"gas_price_buffer_pct"`
	GasLimitBufferPct int64 `json:"gas_limit_buffer_pct"`

	// KeystoreNamespace is used to build the keystore service name
	// "<namespace>.wallet" (spec.md §6, Persistent state).
	KeystoreNamespace string `json:"keystore_namespace"`
}

// DefaultConfig returns the Monad-testnet-shaped defaults named in
// spec.md §1 and §6. Contract addresses are placeholders the deployer
// must override; ChainID, NativeSymbol, and the numeric thresholds match
// the specification exactly.
func DefaultConfig() *Config {
	return &Config{
		Version:                 "1.0.0",
		ChainID:                 143,
		NativeSymbol:            "MON",
		RPCEndpoint:             "https://testnet-rpc.monad.xyz",
		USDCDecimals:            6,
		SafetyCeilingUnits:      1_000_000_000, // $1,000 at 6 decimals
		WarningThresholdUnits:   100_000_000,   // $100 at 6 decimals
		DefaultSlippageBps:      50,
		NonceCacheWindowSeconds: 30,
		ReceiptPollCapSeconds:   120,
		GasPriceBufferPct:       20,
		GasLimitBufferPct:       30,
		KeystoreNamespace:       "voicewallet",
	}
}

// SafetyCeilingAck returns the amount (in USDC units) above which the
// engine refuses to proceed even with an acknowledgment flag set
// (spec.md §7: "ceiling × 2").
func (c *Config) SafetyCeilingAck() uint64 {
	return c.SafetyCeilingUnits * 2
}

// ChainIDBig returns ChainID as a *big.Int for go-ethereum APIs.
func (c *Config) ChainIDBig() *big.Int {
	return big.NewInt(c.ChainID)
}

// ToJSON serializes the config.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON parses a Config, starting from DefaultConfig so omitted fields
// keep their default value.
func FromJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
