// Package txbuilder implements the Transaction Builder/Signer component
// (spec.md §4.6): assembles a legacy EIP-155 transaction, signs it via
// internal/keystore, broadcasts it, and polls for its receipt.
//
// Grounded on the teacher's src/chainadapter/ethereum/{builder.go,
// fee.go, signer.go,rpc.go}, but redesigned from the teacher's EIP-1559
// DynamicFeeTx to the legacy EIP-155 transaction spec.md §3 specifies,
// and from the teacher's baseFee/priorityFee multiplier ladder down to
// the flat gasPrice/gasLimit percentage buffers spec.md §4.6 names.
package txbuilder

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/clock"
	"github.com/arcpay/voicewallet/internal/cryptoprim"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/txcodec"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// Fallback gas limits used only when eth_estimateGas itself fails
// (spec.md §4.6). An eth_gasPrice failure is returned as an error; there
// is no fallback gas price.
const (
	FallbackGasLimitTransfer = uint64(21000)
	FallbackGasLimitContract = uint64(500000)
)

// Signer signs a 32-byte digest with the wallet's managed key, matching
// internal/keystore.Keystore.Sign.
type Signer interface {
	Sign(hash []byte) (r, s [32]byte, recoveryID byte, err error)
}

// ChainClient is the subset of internal/rpcclient.Client this package
// depends on.
type ChainClient interface {
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg rpcclient.CallMsg) (uint64, error)
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*rpcclient.Receipt, error)
}

// NonceSource provides the next nonce to use for a signed transaction,
// matching internal/noncemgr.Manager.NextNonce.
type NonceSource interface {
	NextNonce(ctx context.Context, address common.Address) (uint64, error)
	Reset(address common.Address)
}

// Request describes a transaction to build, sign, and broadcast.
type Request struct {
	From     common.Address
	To       common.Address
	Value    *big.Int // wei; nil treated as zero
	Data     []byte
	GasLimit uint64 // if zero, estimated via eth_estimateGas with fallback
}

// Builder assembles, signs, broadcasts, and confirms legacy EIP-155
// transactions.
type Builder struct {
	chain             ChainClient
	nonces            NonceSource
	signer            Signer
	clock             clock.Clock
	chainID           *big.Int
	gasPriceBufferPct int64
	gasLimitBufferPct int64
	receiptPollCap    time.Duration
}

// Config carries the tunables spec.md §6 pins to Config defaults.
type Config struct {
	ChainID           *big.Int
	GasPriceBufferPct int64
	GasLimitBufferPct int64
	ReceiptPollCap    time.Duration
}

// New constructs a Builder.
func New(chain ChainClient, nonces NonceSource, signer Signer, clk clock.Clock, cfg Config) *Builder {
	return &Builder{
		chain:             chain,
		nonces:            nonces,
		signer:            signer,
		clock:             clk,
		chainID:           cfg.ChainID,
		gasPriceBufferPct: cfg.GasPriceBufferPct,
		gasLimitBufferPct: cfg.GasLimitBufferPct,
		receiptPollCap:    cfg.ReceiptPollCap,
	}
}

// Result is the outcome of a successful broadcast.
type Result struct {
	TxHash common.Hash
	Nonce  uint64
}

// BuildSignBroadcast implements spec.md §4.6 steps 1-7: estimate gas,
// fetch nonce, RLP-encode the signing payload, Keccak-256 it, sign,
// encode the final transaction, and broadcast it. It does not wait for
// a receipt; call WaitForReceipt separately.
func (b *Builder) BuildSignBroadcast(ctx context.Context, req Request) (Result, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasPrice, err := b.bufferedGasPrice(ctx)
	if err != nil {
		return Result{}, err
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = b.bufferedGasLimit(ctx, req)
		if err != nil {
			return Result{}, err
		}
	}

	nonce, err := b.nonces.NextNonce(ctx, req.From)
	if err != nil {
		return Result{}, walleterr.WrapRetryable(walleterr.CodeRPCError, "failed to determine nonce", err)
	}

	fields := txcodec.Fields{
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
	}

	signingPayload, err := txcodec.EncodeSigningPayload(fields, b.chainID)
	if err != nil {
		return Result{}, walleterr.Wrap(walleterr.CodeSigningFailed, "failed to encode signing payload", err)
	}
	digest := cryptoprim.Keccak256(signingPayload)

	r, s, recoveryID, err := b.signer.Sign(digest)
	if err != nil {
		return Result{}, err
	}

	v := recoveryIDToEIP155V(recoveryID, b.chainID)
	rawTx, err := txcodec.EncodeSigned(fields, v, new(big.Int).SetBytes(r[:]), new(big.Int).SetBytes(s[:]))
	if err != nil {
		return Result{}, walleterr.Wrap(walleterr.CodeSigningFailed, "failed to encode signed transaction", err)
	}

	txHash, err := b.chain.SendRawTransaction(ctx, rawTx)
	if err != nil {
		b.nonces.Reset(req.From)
		return Result{}, walleterr.Wrap(walleterr.CodeRPCError, "broadcast failed", err)
	}

	return Result{TxHash: txHash, Nonce: nonce}, nil
}

// recoveryIDToEIP155V computes v = chainId*2 + 35 + recoveryId (spec.md §3).
func recoveryIDToEIP155V(recoveryID byte, chainID *big.Int) *big.Int {
	v := new(big.Int).Mul(chainID, big.NewInt(2))
	v.Add(v, big.NewInt(35))
	v.Add(v, big.NewInt(int64(recoveryID)))
	return v
}

func (b *Builder) bufferedGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := b.chain.GasPrice(ctx)
	if err != nil {
		return nil, walleterr.WrapRetryable(walleterr.CodeGasEstimationFailed, "failed to fetch gas price", err)
	}
	return applyPct(price, 100+b.gasPriceBufferPct), nil
}

func (b *Builder) bufferedGasLimit(ctx context.Context, req Request) (uint64, error) {
	estimated, err := b.chain.EstimateGas(ctx, rpcclient.CallMsg{From: req.From, To: &req.To, Data: req.Data})
	if err != nil {
		if len(req.Data) == 0 {
			return FallbackGasLimitTransfer, nil
		}
		return FallbackGasLimitContract, nil
	}
	buffered := applyPct(new(big.Int).SetUint64(estimated), 100+b.gasLimitBufferPct)
	return buffered.Uint64(), nil
}

func applyPct(value *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(value, big.NewInt(pct))
	return out.Div(out, big.NewInt(100))
}
