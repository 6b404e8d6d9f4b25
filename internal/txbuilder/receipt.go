package txbuilder

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

const (
	receiptPollInitialBackoff = 500 * time.Millisecond
	receiptPollMaxBackoff     = 4 * time.Second
)

// WaitForReceipt polls eth_getTransactionReceipt with exponential
// backoff (500ms, doubling, capped at 4s) until the receipt appears,
// the configured total poll window elapses, or ctx is cancelled
// (spec.md §4.6, §9 design note on the injectable clock).
func (b *Builder) WaitForReceipt(ctx context.Context, txHash common.Hash) (*rpcclient.Receipt, error) {
	deadline := b.clock.Now().Add(b.receiptPollCap)
	backoff := receiptPollInitialBackoff

	for {
		receipt, err := b.chain.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, walleterr.WrapRetryable(walleterr.CodeRPCError, "failed to poll transaction receipt", err)
		}
		if receipt != nil {
			if receipt.Status == 0 {
				return receipt, walleterr.New(walleterr.CodeReverted, "transaction reverted")
			}
			return receipt, nil
		}

		if b.clock.Now().Add(backoff).After(deadline) {
			return nil, walleterr.New(walleterr.CodeTimeout, "timed out waiting for transaction receipt")
		}

		select {
		case <-ctx.Done():
			return nil, walleterr.Wrap(walleterr.CodeTimeout, "context cancelled while waiting for receipt", ctx.Err())
		default:
		}

		b.clock.Sleep(backoff)
		backoff *= 2
		if backoff > receiptPollMaxBackoff {
			backoff = receiptPollMaxBackoff
		}
	}
}
