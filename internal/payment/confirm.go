package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arcpay/voicewallet/internal/audit"
	"github.com/arcpay/voicewallet/internal/swap"
	"github.com/arcpay/voicewallet/internal/txbuilder"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// NonceResetter forces the next nonce lookup to re-trust the chain,
// matching internal/noncemgr.Manager.Reset.
type NonceResetter interface {
	Reset(address common.Address)
}

// SetNonceResetter wires the nonce manager's Reset so confirm_payment
// can force a fresh chain read after the swap lands (spec.md §4.10
// step 2). Exposed as a setter rather than a constructor argument so
// tests that never need a swap path can omit it.
func (e *Engine) SetNonceResetter(r NonceResetter) { e.nonces = r }

// SetOptimistic toggles the non-default concurrency mode named in
// spec.md §5: when true, the transfer is signed immediately after the
// swap broadcasts rather than waiting for the swap's receipt first.
func (e *Engine) SetOptimistic(optimistic bool) { e.optimistic = optimistic }

// ConfirmPayment implements spec.md §4.10 confirm_payment: the single
// atomic user authorization that broadcasts on-chain transactions.
func (e *Engine) ConfirmPayment(ctx context.Context) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	if e.session.State != StatePrepared {
		e.mu.Unlock()
		return walleterr.New(walleterr.CodeInvalidState, "confirm_payment requires a prepared session")
	}
	merchant := *e.session.MerchantAddress
	amountUnits := new(big.Int).Set(e.session.AmountUnits)
	needsSwap := e.session.NeedsSwap
	var plan swap.Plan
	if e.session.SwapPlan != nil {
		plan = *e.session.SwapPlan
	}
	e.session.State = StateExecuting
	confirmCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	wallet, err := e.wallet.Address()
	if err != nil {
		return e.fail(walleterr.CodeNoWallet, "no wallet configured", err)
	}
	walletAddr := common.BytesToAddress(wallet[:])

	if needsSwap {
		if err := e.broadcastSwap(confirmCtx, walletAddr, plan); err != nil {
			if cancelledMeanwhile(confirmCtx) {
				return err
			}
			return e.fail(walleterr.Code(err), "swap broadcast failed", err)
		}
		e.nonces.Reset(walletAddr)
	}

	if err := e.broadcastTransfer(confirmCtx, walletAddr, merchant, amountUnits); err != nil {
		if cancelledMeanwhile(confirmCtx) {
			return err
		}
		return e.fail(walleterr.Code(err), "transfer broadcast failed", err)
	}

	e.mu.Lock()
	e.session.State = StateConfirmed
	txHash := e.session.TransferTxHash
	e.mu.Unlock()

	if e.audit != nil && txHash != nil {
		_ = e.audit.Log(audit.Entry{Timestamp: e.clock.Now(), Operation: audit.OpTxConfirmed, Status: audit.StatusSuccess, Address: walletAddr.Hex(), TxHash: txHash.Hex()})
	}
	if e.log != nil && txHash != nil {
		e.log.Info("payment confirmed", zap.String("txHash", txHash.Hex()))
	}
	return nil
}

func cancelledMeanwhile(ctx context.Context) bool {
	return ctx.Err() != nil
}

func (e *Engine) broadcastSwap(ctx context.Context, wallet common.Address, plan swap.Plan) error {
	result, err := e.tx.BuildSignBroadcast(ctx, txbuilder.Request{
		From:  wallet,
		To:    e.cfg.UniversalRouterAddress,
		Value: plan.Value,
		Data:  plan.RouterData,
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.session.SwapTxHash = &result.TxHash
	e.mu.Unlock()
	if e.audit != nil {
		_ = e.audit.Log(audit.Entry{Timestamp: e.clock.Now(), Operation: audit.OpTxBroadcast, Status: audit.StatusSuccess, Address: wallet.Hex(), TxHash: result.TxHash.Hex()})
	}

	if e.optimistic {
		return nil
	}
	_, err = e.tx.WaitForReceipt(ctx, result.TxHash)
	return err
}

func (e *Engine) broadcastTransfer(ctx context.Context, wallet, merchant common.Address, amountUnits *big.Int) error {
	data, err := e.usdc.EncodeTransfer(merchant, amountUnits)
	if err != nil {
		return walleterr.Wrap(walleterr.CodeInvalidAmount, "failed to encode transfer calldata", err)
	}

	result, err := e.tx.BuildSignBroadcast(ctx, txbuilder.Request{
		From:  wallet,
		To:    e.usdc.Address(),
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.session.TransferTxHash = &result.TxHash
	e.mu.Unlock()
	if e.audit != nil {
		_ = e.audit.Log(audit.Entry{Timestamp: e.clock.Now(), Operation: audit.OpTxBroadcast, Status: audit.StatusSuccess, Address: wallet.Hex(), TxHash: result.TxHash.Hex()})
	}

	if e.optimistic {
		return nil
	}
	_, err = e.tx.WaitForReceipt(ctx, result.TxHash)
	return err
}
