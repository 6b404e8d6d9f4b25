package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/swap"
	"github.com/arcpay/voicewallet/internal/txbuilder"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// ValidateAddressHex validates a 0x-prefixed 40-hex-character address
// (spec.md §6), shared with QR parsing and the tool dispatcher.
func ValidateAddressHex(s string) (common.Address, error) {
	if !bareAddressPattern.MatchString(s) {
		return common.Address{}, walleterr.New(walleterr.CodeInvalidAddress, "address must match ^0x[a-fA-F0-9]{40}$")
	}
	return common.HexToAddress(s), nil
}

// PreparePayment implements spec.md §4.10 prepare_payment: balance
// check, optional swap planning, transition to Prepared. An amount
// differing from one previously set via SetPaymentAmount is
// authoritative and supersedes it (spec.md §4.10 invariant). A wrong
// state, an invalid amount or a safety-ceiling refusal returns before the
// session is touched; any later failure returns the session to AmountSet.
// Nothing is broadcast either way (spec.md §8 scenario 6).
func (e *Engine) PreparePayment(ctx context.Context, merchant common.Address, amountUSD float64, merchantName string, ackOverCeiling bool) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	state := e.session.State
	e.mu.Unlock()
	if state != StateAmountSet && state != StatePrepared {
		return walleterr.New(walleterr.CodeInvalidState, "prepare_payment requires a payment amount to already be set")
	}

	units, err := amountUnitsFromUSD(amountUSD)
	if err != nil {
		return err
	}

	if err := e.checkSafetyCeiling(units, ackOverCeiling); err != nil {
		return err
	}

	// An overriding amount returns the session to AmountSet before
	// re-entering Prepared (spec.md §4.10 invariant).
	e.mu.Lock()
	e.session.AmountUnits = units
	e.session.State = StateAmountSet
	e.mu.Unlock()

	wallet, err := e.wallet.Address()
	if err != nil {
		e.revertToAmountSet()
		return walleterr.Wrap(walleterr.CodeNoWallet, "no wallet configured", err)
	}
	walletAddr := common.BytesToAddress(wallet[:])

	balance, err := e.usdc.BalanceOf(ctx, walletAddr)
	if err != nil {
		e.revertToAmountSet()
		return err
	}

	var needsSwap bool
	var plan *swap.Plan
	if balance.Cmp(units) < 0 {
		needsSwap = true
		p, err := e.planSwapForDeficit(ctx, walletAddr, new(big.Int).Sub(units, balance))
		if err != nil {
			e.revertToAmountSet()
			return err
		}
		plan = p
	}

	e.mu.Lock()
	e.session.MerchantAddress = &merchant
	e.session.MerchantName = merchantName
	e.session.NeedsSwap = needsSwap
	e.session.SwapPlan = plan
	e.session.State = StatePrepared
	e.mu.Unlock()
	return nil
}

func (e *Engine) checkSafetyCeiling(units *big.Int, ack bool) error {
	ceiling := new(big.Int).SetUint64(e.cfg.SafetyCeilingUnits)
	hardCeiling := new(big.Int).SetUint64(e.cfg.SafetyCeilingAck())

	if units.Cmp(hardCeiling) > 0 {
		return walleterr.New(walleterr.CodeInvalidAmount, "amount exceeds the safety ceiling even with acknowledgment")
	}
	if units.Cmp(ceiling) > 0 && !ack {
		return walleterr.New(walleterr.CodeInvalidAmount, "amount exceeds the safety ceiling; requires acknowledgment")
	}
	return nil
}

func (e *Engine) revertToAmountSet() {
	e.mu.Lock()
	e.session.State = StateAmountSet
	e.mu.Unlock()
}

// planSwapForDeficit implements prepare_payment step 3: estimate the
// native amount needed to cover a USDC deficit via a probe quote, then
// plan the real swap for that scaled-down amount rather than the
// wallet's entire spendable native balance.
func (e *Engine) planSwapForDeficit(ctx context.Context, wallet common.Address, deficit *big.Int) (*swap.Plan, error) {
	nativeBalance, err := e.native.BalanceAt(ctx, wallet)
	if err != nil {
		return nil, err
	}
	gasPrice, err := e.native.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	gasBuffer := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(txbuilder.FallbackGasLimitContract))

	spendable := new(big.Int).Sub(nativeBalance, gasBuffer)
	if spendable.Sign() <= 0 {
		return nil, walleterr.New(walleterr.CodeInsufficientFunds, "native balance cannot cover the swap plus gas")
	}

	probe, err := e.planner.Plan(ctx, e.cfg.WrappedNativeAddress, e.usdc.Address(), spendable, wallet, e.cfg.DefaultSlippageBps, true)
	if err != nil {
		return nil, err
	}
	if probe.QuotedOut.Cmp(deficit) < 0 {
		return nil, walleterr.New(walleterr.CodeInsufficientFunds, "available native balance cannot cover the USDC deficit")
	}

	scaledIn := new(big.Int).Mul(spendable, deficit)
	scaledIn.Div(scaledIn, probe.QuotedOut)

	final, err := e.planner.Plan(ctx, e.cfg.WrappedNativeAddress, e.usdc.Address(), scaledIn, wallet, e.cfg.DefaultSlippageBps, true)
	if err != nil {
		return nil, err
	}
	return &final, nil
}
