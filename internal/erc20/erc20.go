// Package erc20 implements the ERC-20 Adapter component (spec.md §4.9):
// balance reads and transfer/approve calldata encoding for the USDC
// contract, via go-ethereum's accounts/abi package rather than
// hand-written 4-byte selector concatenation.
package erc20

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var parsedERC20 abi.ABI

func init() {
	var err error
	parsedERC20, err = abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic("erc20: invalid embedded ABI: " + err.Error())
	}
}

// Caller is the subset of internal/rpcclient.Client this package needs.
type Caller interface {
	CallContract(ctx context.Context, msg rpcclient.CallMsg) ([]byte, error)
}

// Token reads and encodes calls against one ERC-20 contract (USDC, per
// Config.USDCAddress).
type Token struct {
	caller   Caller
	contract common.Address
}

// New constructs a Token bound to contract.
func New(caller Caller, contract common.Address) *Token {
	return &Token{caller: caller, contract: contract}
}

// BalanceOf returns owner's token balance via a single eth_call.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	raw, err := t.caller.CallContract(ctx, rpcclient.CallMsg{To: &t.contract, Data: data})
	if err != nil {
		return nil, walleterr.WrapRetryable(walleterr.CodeRPCError, "balanceOf call failed", err)
	}
	var balance *big.Int
	if err := parsedERC20.UnpackIntoInterface(&balance, "balanceOf", raw); err != nil {
		return nil, walleterr.Wrap(walleterr.CodeRPCError, "failed to unpack balanceOf result", err)
	}
	return balance, nil
}

// Allowance returns the amount spender may transfer from owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	raw, err := t.caller.CallContract(ctx, rpcclient.CallMsg{To: &t.contract, Data: data})
	if err != nil {
		return nil, walleterr.WrapRetryable(walleterr.CodeRPCError, "allowance call failed", err)
	}
	var allowance *big.Int
	if err := parsedERC20.UnpackIntoInterface(&allowance, "allowance", raw); err != nil {
		return nil, walleterr.Wrap(walleterr.CodeRPCError, "failed to unpack allowance result", err)
	}
	return allowance, nil
}

// EncodeTransfer returns the calldata for transfer(to, amount), selector
// 0xa9059cbb.
func (t *Token) EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("transfer", to, amount)
}

// EncodeApprove returns the calldata for approve(spender, amount),
// selector 0x095ea7b3. The Universal Router swap path uses Permit2 and
// does not need this; it exists for callers bypassing Permit2.
func (t *Token) EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20.Pack("approve", spender, amount)
}

// Address returns the contract address this Token is bound to.
func (t *Token) Address() common.Address { return t.contract }
