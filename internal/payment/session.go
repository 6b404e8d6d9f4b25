// Package payment implements the Payment State Machine component
// (spec.md §4.10): the conversational progression from purchase concept
// through QR scan, amount, swap-or-not preparation, and the single
// user-authorized confirm that broadcasts on-chain transactions.
package payment

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/swap"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// State is one node of the payment session's transition graph (spec.md §3).
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConcept      State = "awaiting_concept"
	StateAwaitingQR           State = "awaiting_qr"
	StateQRScanned            State = "qr_scanned"
	StateAwaitingAmount       State = "awaiting_amount"
	StateAmountSet            State = "amount_set"
	StatePrepared             State = "prepared"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateConfirmed            State = "confirmed"
	StateFailed               State = "failed"
	StateCancelled            State = "cancelled"
)

// Session is the record owned by the state machine: the single source
// of truth the tool dispatcher (C11) consults to answer tool calls
// (spec.md §3).
type Session struct {
	State State

	Concept string

	MerchantAddress *common.Address
	MerchantName    string
	AmountUnits     *big.Int // USDC, 6-decimal smallest units

	NeedsSwap bool
	SwapPlan  *swap.Plan

	SwapTxHash     *common.Hash
	TransferTxHash *common.Hash

	Err *walleterr.Error
}

func newSession() Session {
	return Session{State: StateIdle}
}

// isTerminal reports whether s is one of the three terminal states that
// reset to Idle on the next tool call (spec.md §3).
func (s State) isTerminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}
