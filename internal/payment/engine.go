package payment

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/arcpay/voicewallet/internal/audit"
	"github.com/arcpay/voicewallet/internal/clock"
	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/swap"
	"github.com/arcpay/voicewallet/internal/txbuilder"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// WalletAddress supplies the single managed key's address.
type WalletAddress interface {
	Address() ([20]byte, error)
}

// USDCToken is the subset of internal/erc20.Token the engine needs.
type USDCToken interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error)
	Address() common.Address
}

// NativeBalancer reads the wallet's native-currency balance.
type NativeBalancer interface {
	BalanceAt(ctx context.Context, address common.Address) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// SwapPlanner is the subset of internal/swap.Planner the engine needs.
type SwapPlanner interface {
	Plan(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, recipient common.Address, slippageBps int, isNativeIn bool) (swap.Plan, error)
}

// Broadcaster is the subset of internal/txbuilder.Builder the engine needs.
type Broadcaster interface {
	BuildSignBroadcast(ctx context.Context, req txbuilder.Request) (txbuilder.Result, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*rpcclient.Receipt, error)
}

// Engine drives the payment session's state transitions (spec.md §4.10).
// A session processes tool calls serially; Engine rejects a concurrent
// call with CodeBusy rather than interleaving state mutation (spec.md §5).
type Engine struct {
	wallet   WalletAddress
	usdc     USDCToken
	native   NativeBalancer
	planner  SwapPlanner
	tx       Broadcaster
	clock    clock.Clock
	cfg      *config.Config
	audit    *audit.Logger
	log      *zap.Logger
	optimistic bool
	nonces   NonceResetter

	mu      sync.Mutex
	busy    bool
	cancel  context.CancelFunc
	session Session
}

// New constructs an Engine in the Idle state.
func New(wallet WalletAddress, usdc USDCToken, native NativeBalancer, planner SwapPlanner, tx Broadcaster, clk clock.Clock, cfg *config.Config, auditLog *audit.Logger, log *zap.Logger) *Engine {
	return &Engine{
		wallet:  wallet,
		usdc:    usdc,
		native:  native,
		planner: planner,
		tx:      tx,
		clock:   clk,
		cfg:     cfg,
		audit:   auditLog,
		log:     log,
		session: newSession(),
	}
}

// Session returns a copy of the current session record.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// acquire claims the engine for one tool call, resetting a terminal
// session to Idle first (spec.md §3: "Terminal states reset to Idle on
// the next tool call").
func (e *Engine) acquire() (func(), error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, walleterr.New(walleterr.CodeBusy, "session already processing a tool call")
	}
	if e.session.State.isTerminal() {
		e.session = newSession()
	}
	e.busy = true
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}, nil
}

func (e *Engine) fail(code, message string, cause error) *walleterr.Error {
	werr := walleterr.Wrap(code, message, cause)
	e.mu.Lock()
	e.session.State = StateFailed
	e.session.Err = werr
	e.mu.Unlock()
	if e.audit != nil {
		_ = e.audit.Log(audit.Entry{Timestamp: e.clock.Now(), Operation: audit.OpTxFailed, Status: audit.StatusFailure, FailureReason: werr.Error()})
	}
	if e.log != nil {
		e.log.Error("payment failed", zap.String("code", werr.Code), zap.Error(werr))
	}
	return werr
}

// SetPurchaseConcept records the free-text purchase reason (spec.md §4.10).
func (e *Engine) SetPurchaseConcept(concept string) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State != StateIdle {
		return walleterr.New(walleterr.CodeInvalidState, "set_purchase_concept is only valid from idle")
	}
	e.session.Concept = concept
	e.session.State = StateAwaitingConcept
	return nil
}

// ScanQR signals the UI to open the camera; the actual address arrives
// later via QRDetected.
func (e *Engine) ScanQR() error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State != StateAwaitingConcept {
		return walleterr.New(walleterr.CodeInvalidState, "scan_qr is only valid from awaiting_concept")
	}
	e.session.State = StateAwaitingQR
	return nil
}

// QRDetected handles a decoded QR payload (spec.md §4.10, §6).
func (e *Engine) QRDetected(raw string) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	if e.session.State != StateAwaitingQR {
		e.mu.Unlock()
		return walleterr.New(walleterr.CodeInvalidState, "qr_detected is only valid from awaiting_qr")
	}
	e.mu.Unlock()

	payload, err := parseQRPayload(raw)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.MerchantAddress = &payload.Address
	e.session.State = StateQRScanned
	if payload.AmountUSD != nil {
		units, err := amountUnitsFromUSD(*payload.AmountUSD)
		if err != nil {
			return err
		}
		e.session.AmountUnits = units
		e.session.State = StateAmountSet
	} else {
		e.session.State = StateAwaitingAmount
	}
	return nil
}

// SetPaymentAmount records the merchant's payment amount in USD.
func (e *Engine) SetPaymentAmount(amountUSD float64) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	units, err := amountUnitsFromUSD(amountUSD)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.session.State {
	case StateAwaitingAmount, StateQRScanned, StateAmountSet:
	default:
		return walleterr.New(walleterr.CodeInvalidState, "set_payment_amount is not valid in the current state")
	}
	e.session.AmountUnits = units
	e.session.State = StateAmountSet
	return nil
}

// CancelPayment terminates any in-flight waiting and resets the session
// to Cancelled; an already-broadcast transaction is not recalled
// (spec.md §5).
func (e *Engine) CancelPayment() {
	e.mu.Lock()
	if e.session.State.isTerminal() || e.session.State == StateIdle {
		e.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.session.State = StateCancelled
	e.mu.Unlock()

	if e.audit != nil {
		_ = e.audit.Log(audit.Entry{Timestamp: e.clock.Now(), Operation: audit.OpPaymentCancelled, Status: audit.StatusSuccess})
	}
}
