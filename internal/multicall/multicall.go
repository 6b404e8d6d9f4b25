// Package multicall implements the Multicall Reader component (spec.md
// §4.7): batched read-only calls against the canonical Multicall3
// contract's aggregate3 method, so the swap planner can probe all four
// fee-tier pools in one round trip instead of four.
//
// Grounded on the hand-packed abi.JSON + Pack/UnpackIntoInterface
// pattern shown across the pack's geth-tutorial examples (e.g.
// DanDo385-solidity-edu/geth/07-eth-call), applied here to Multicall3's
// real ABI rather than a toy ERC-20 getter.
package multicall

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

const multicall3ABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "target", "type": "address"},
					{"internalType": "bool", "name": "allowFailure", "type": "bool"},
					{"internalType": "bytes", "name": "callData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Call3[]",
				"name": "calls",
				"type": "tuple[]"
			}
		],
		"name": "aggregate3",
		"outputs": [
			{
				"components": [
					{"internalType": "bool", "name": "success", "type": "bool"},
					{"internalType": "bytes", "name": "returnData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Result[]",
				"name": "returnData",
				"type": "tuple[]"
			}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// Call is one batched read, mirroring Multicall3's Call3 struct.
type Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// call3Tuple and result3Tuple give the abi package concrete struct
// layouts to marshal/unmarshal the tuple[] arguments into — the
// accounts/abi package unpacks tuples into Go structs via field order.
type call3Tuple struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result3Tuple struct {
	Success    bool
	ReturnData []byte
}

// Result is one batched read's outcome.
type Result struct {
	Success    bool
	ReturnData []byte
}

// Caller is the subset of internal/rpcclient.Client this package needs.
type Caller interface {
	CallContract(ctx context.Context, msg rpcclient.CallMsg) ([]byte, error)
}

// Reader batches read-only contract calls through Multicall3.
type Reader struct {
	caller   Caller
	parsed   abi.ABI
	contract common.Address
}

// New constructs a Reader against the canonical Multicall3 address
// (config.Multicall3Address).
func New(caller Caller) (*Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(multicall3ABI))
	if err != nil {
		return nil, err
	}
	return &Reader{caller: caller, parsed: parsed, contract: config.Multicall3Address}, nil
}

// Aggregate3 packs calls into a single aggregate3 invocation, executes
// it via eth_call, and unpacks the per-call results in request order.
func (r *Reader) Aggregate3(ctx context.Context, calls []Call) ([]Result, error) {
	tuples := make([]call3Tuple, len(calls))
	for i, c := range calls {
		tuples[i] = call3Tuple{Target: c.Target, AllowFailure: c.AllowFailure, CallData: c.CallData}
	}

	data, err := r.parsed.Pack("aggregate3", tuples)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeRPCError, "failed to pack aggregate3 call", err)
	}

	raw, err := r.caller.CallContract(ctx, rpcclient.CallMsg{To: &r.contract, Data: data})
	if err != nil {
		return nil, walleterr.WrapRetryable(walleterr.CodeRPCError, "multicall aggregate3 call failed", err)
	}

	var decoded []result3Tuple
	if err := r.parsed.UnpackIntoInterface(&decoded, "aggregate3", raw); err != nil {
		return nil, walleterr.Wrap(walleterr.CodeRPCError, "failed to unpack aggregate3 result", err)
	}

	results := make([]Result, len(decoded))
	for i, d := range decoded {
		results[i] = Result{Success: d.Success, ReturnData: d.ReturnData}
	}
	return results, nil
}
