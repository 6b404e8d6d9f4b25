// Package agent implements the Voice-Agent Tool Dispatcher component
// (spec.md §4.11): the fixed tool schema exposed to the voice agent,
// routing tool calls into the payment state machine (internal/payment)
// and answering with a concise JSON envelope.
//
// Grounded on the teacher's internal/lib/exports.go FFI surface: a
// JSON-in/JSON-out envelope with panic recovery per call, adapted here
// from a cgo/FFI boundary to a plain Go dispatch table since this
// engine has no C-ABI surface to cross.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/arcpay/voicewallet/internal/payment"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// Tool names, matching spec.md §4.11's table verbatim.
const (
	ToolSetPurchaseConcept = "set_purchase_concept"
	ToolScanQR             = "scan_qr"
	ToolSetPaymentAmount   = "set_payment_amount"
	ToolPreparePayment     = "prepare_payment"
	ToolConfirmPayment     = "confirm_payment"
	ToolCancelPayment      = "cancel_payment"
)

// Response is the concise JSON object returned to the agent for every
// tool call (spec.md §4.11).
type Response struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

func ok(status string) Response {
	return Response{OK: true, Status: status}
}

func okWithTxHash(status, txHash string) Response {
	return Response{OK: true, Status: status, TxHash: txHash}
}

func failed(err error) Response {
	code := walleterr.Code(err)
	if code == "" {
		code = "invalid-state"
	}
	return Response{OK: false, Status: code, Message: err.Error()}
}

// Dispatcher routes agent tool calls into a payment.Engine. A session
// processes tool calls serially (spec.md §5), but Dispatch itself holds
// no lock: Engine already serializes mutating calls through its own
// busy/acquire() guard and answers a concurrent caller with CodeBusy.
// cancel_payment is the deliberate exception — Engine.CancelPayment
// bypasses that guard so it can interrupt an in-flight confirm_payment
// (spec.md §5, §8 Scenario 3), which a lock here would defeat by
// serializing cancel behind the very call it needs to interrupt.
type Dispatcher struct {
	engine *payment.Engine
	log    *zap.Logger
}

// New constructs a Dispatcher over engine.
func New(engine *payment.Engine, log *zap.Logger) *Dispatcher {
	return &Dispatcher{engine: engine, log: log}
}

// Dispatch routes one tool call by name, with argsJSON as its raw JSON
// arguments (per spec.md §4.11's per-tool argument shapes). A panic
// inside a tool handler is recovered and reported as a failure
// response rather than crashing the session, matching the teacher's
// FFI export pattern.
func (d *Dispatcher) Dispatch(ctx context.Context, tool string, argsJSON []byte) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			debug.PrintStack()
			if d.log != nil {
				d.log.Error("tool dispatch panic", zap.String("tool", tool), zap.Any("recovered", r))
			}
			resp = Response{OK: false, Status: "invalid-state", Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	switch tool {
	case ToolSetPurchaseConcept:
		return d.setPurchaseConcept(argsJSON)
	case ToolScanQR:
		return d.scanQR()
	case ToolSetPaymentAmount:
		return d.setPaymentAmount(argsJSON)
	case ToolPreparePayment:
		return d.preparePayment(ctx, argsJSON)
	case ToolConfirmPayment:
		return d.confirmPayment(ctx)
	case ToolCancelPayment:
		return d.cancelPayment()
	default:
		return Response{OK: false, Status: "invalid-state", Message: "unknown tool: " + tool}
	}
}

func (d *Dispatcher) setPurchaseConcept(argsJSON []byte) Response {
	var args struct {
		Concept string `json:"concept"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return failed(walleterr.Wrap(walleterr.CodeInvalidState, "malformed set_purchase_concept arguments", err))
	}
	if err := d.engine.SetPurchaseConcept(args.Concept); err != nil {
		return failed(err)
	}
	return ok("awaiting_concept")
}

func (d *Dispatcher) scanQR() Response {
	if err := d.engine.ScanQR(); err != nil {
		return failed(err)
	}
	return ok("awaiting_qr")
}

func (d *Dispatcher) setPaymentAmount(argsJSON []byte) Response {
	var args struct {
		AmountUSD float64 `json:"amount_usd"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return failed(walleterr.Wrap(walleterr.CodeInvalidAmount, "malformed set_payment_amount arguments", err))
	}
	if err := d.engine.SetPaymentAmount(args.AmountUSD); err != nil {
		return failed(err)
	}
	return ok("amount_set")
}

func (d *Dispatcher) preparePayment(ctx context.Context, argsJSON []byte) Response {
	var args struct {
		MerchantWallet string  `json:"merchant_wallet"`
		AmountUSD      float64 `json:"amount_usd"`
		MerchantName   string  `json:"merchant_name"`
		AckOverCeiling bool    `json:"ack_over_ceiling"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return failed(walleterr.Wrap(walleterr.CodeInvalidState, "malformed prepare_payment arguments", err))
	}
	merchant, err := payment.ValidateAddressHex(args.MerchantWallet)
	if err != nil {
		return failed(err)
	}
	if err := d.engine.PreparePayment(ctx, merchant, args.AmountUSD, args.MerchantName, args.AckOverCeiling); err != nil {
		return failed(err)
	}
	return ok("prepared")
}

func (d *Dispatcher) confirmPayment(ctx context.Context) Response {
	if err := d.engine.ConfirmPayment(ctx); err != nil {
		return failed(err)
	}
	session := d.engine.Session()
	if session.TransferTxHash != nil {
		return okWithTxHash("confirmed", session.TransferTxHash.Hex())
	}
	return ok("confirmed")
}

func (d *Dispatcher) cancelPayment() Response {
	d.engine.CancelPayment()
	return ok("cancelled")
}

// HandleQRDetected feeds a decoded QR payload into the session. It is
// not part of the fixed tool table (spec.md §4.11); it is the bridge
// from the glasses transport's asynchronous QR producer (spec.md §9)
// into the state machine's qr_detected transition.
func (d *Dispatcher) HandleQRDetected(raw string) Response {
	if err := d.engine.QRDetected(raw); err != nil {
		return failed(err)
	}
	session := d.engine.Session()
	if session.State == payment.StateAmountSet {
		return ok("amount_set")
	}
	return ok("awaiting_amount")
}
