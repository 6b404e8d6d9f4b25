package payment

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arcpay/voicewallet/internal/clock"
	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/swap"
	"github.com/arcpay/voicewallet/internal/txbuilder"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

var (
	walletAddr   = [20]byte{0x01}
	merchantAddr = common.HexToAddress("0x000000000000000000000000000000000000aa")
	usdcAddr     = common.HexToAddress("0x000000000000000000000000000000000000bb")
)

type fakeWallet struct{ addr [20]byte }

func (f fakeWallet) Address() ([20]byte, error) { return f.addr, nil }

type fakeUSDC struct {
	balance *big.Int
}

func (f *fakeUSDC) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return f.balance, nil
}
func (f *fakeUSDC) EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return append([]byte{0xa9, 0x05, 0x9c, 0xbb}, amount.Bytes()...), nil
}
func (f *fakeUSDC) Address() common.Address { return usdcAddr }

type fakeNative struct {
	balance  *big.Int
	gasPrice *big.Int
}

func (f *fakeNative) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	return f.balance, nil
}
func (f *fakeNative) GasPrice(ctx context.Context) (*big.Int, error) { return f.gasPrice, nil }

type fakePlanner struct {
	quotedOut *big.Int
	err       error
}

func (f *fakePlanner) Plan(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, recipient common.Address, slippageBps int, isNativeIn bool) (swap.Plan, error) {
	if f.err != nil {
		return swap.Plan{}, f.err
	}
	return swap.Plan{
		QuotedOut:    f.quotedOut,
		MinAmountOut: f.quotedOut,
		RouterData:   []byte{0xde, 0xad},
		Value:        amountIn,
	}, nil
}

type fakeBroadcaster struct {
	nextNonce uint64
	hashes    []common.Hash
}

func (f *fakeBroadcaster) BuildSignBroadcast(ctx context.Context, req txbuilder.Request) (txbuilder.Result, error) {
	if err := ctx.Err(); err != nil {
		return txbuilder.Result{}, walleterr.Wrap(walleterr.CodeTimeout, "cancelled", err)
	}
	nonce := f.nextNonce
	f.nextNonce++
	hash := common.BytesToHash([]byte{byte(nonce + 1)})
	f.hashes = append(f.hashes, hash)
	return txbuilder.Result{TxHash: hash, Nonce: nonce}, nil
}

func (f *fakeBroadcaster) WaitForReceipt(ctx context.Context, txHash common.Hash) (*rpcclient.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, walleterr.Wrap(walleterr.CodeTimeout, "cancelled while waiting", err)
	}
	return &rpcclient.Receipt{TransactionHash: txHash, Status: 1}, nil
}

// blockingBroadcaster holds WaitForReceipt open until receiptGate
// closes, letting a test observe ConfirmPayment mid-flight (between its
// first broadcast and its second) and race a concurrent CancelPayment
// against it, the way two tool calls actually interleave behind the
// agent.Dispatcher (spec.md §8 Scenario 3).
type blockingBroadcaster struct {
	mu          sync.Mutex
	nextNonce   uint64
	hashes      []common.Hash
	receiptGate chan struct{}
}

func (b *blockingBroadcaster) BuildSignBroadcast(ctx context.Context, req txbuilder.Request) (txbuilder.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	nonce := b.nextNonce
	b.nextNonce++
	hash := common.BytesToHash([]byte{byte(nonce + 1)})
	b.hashes = append(b.hashes, hash)
	return txbuilder.Result{TxHash: hash, Nonce: nonce}, nil
}

func (b *blockingBroadcaster) WaitForReceipt(ctx context.Context, txHash common.Hash) (*rpcclient.Receipt, error) {
	select {
	case <-b.receiptGate:
		return &rpcclient.Receipt{TransactionHash: txHash, Status: 1}, nil
	case <-ctx.Done():
		return nil, walleterr.Wrap(walleterr.CodeTimeout, "cancelled while waiting", ctx.Err())
	}
}

func (b *blockingBroadcaster) broadcastCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.hashes)
}

type fakeNonceResetter struct{ resetCount int }

func (f *fakeNonceResetter) Reset(address common.Address) { f.resetCount++ }

func testCfg() *config.Config {
	cfg := config.DefaultConfig()
	cfg.USDCAddress = usdcAddr
	cfg.WrappedNativeAddress = common.HexToAddress("0xcc")
	cfg.UniversalRouterAddress = common.HexToAddress("0xdd")
	return cfg
}

func primedEngine(t *testing.T, usdcBalance *big.Int, engineClock clock.Clock) (*Engine, *fakeBroadcaster) {
	t.Helper()
	broadcaster := &fakeBroadcaster{}
	eng := New(fakeWallet{addr: walletAddr}, &fakeUSDC{balance: usdcBalance}, &fakeNative{balance: big.NewInt(0), gasPrice: big.NewInt(1)}, &fakePlanner{}, broadcaster, engineClock, testCfg(), nil, nil)
	eng.SetNonceResetter(&fakeNonceResetter{})

	require.NoError(t, eng.SetPurchaseConcept("coffee"))
	require.NoError(t, eng.ScanQR())
	require.NoError(t, eng.QRDetected(merchantAddr.Hex()))
	require.NoError(t, eng.SetPaymentAmount(5.00))
	return eng, broadcaster
}

func TestColdStartTransfer_NoSwapNeeded(t *testing.T) {
	eng, broadcaster := primedEngine(t, big.NewInt(10_000_000), clock.NewFake(time.Now()))

	require.NoError(t, eng.PreparePayment(context.Background(), merchantAddr, 5.00, "", false))
	require.Equal(t, StatePrepared, eng.Session().State)
	require.False(t, eng.Session().NeedsSwap)

	require.NoError(t, eng.ConfirmPayment(context.Background()))
	session := eng.Session()
	require.Equal(t, StateConfirmed, session.State)
	require.Len(t, broadcaster.hashes, 1)
	require.NotNil(t, session.TransferTxHash)
}

func TestSwapThenTransfer_NoncesStrictlyIncrease(t *testing.T) {
	eng := New(fakeWallet{addr: walletAddr}, &fakeUSDC{balance: big.NewInt(0)}, &fakeNative{balance: big.NewInt(1_000_000_000_000_000_000), gasPrice: big.NewInt(1)}, &fakePlanner{quotedOut: big.NewInt(10_000_000)}, &fakeBroadcaster{}, clock.NewFake(time.Now()), testCfg(), nil, nil)
	eng.SetNonceResetter(&fakeNonceResetter{})

	require.NoError(t, eng.SetPurchaseConcept("coffee"))
	require.NoError(t, eng.ScanQR())
	require.NoError(t, eng.QRDetected(merchantAddr.Hex()))
	require.NoError(t, eng.SetPaymentAmount(3.00))
	require.NoError(t, eng.PreparePayment(context.Background(), merchantAddr, 3.00, "", false))

	session := eng.Session()
	require.True(t, session.NeedsSwap)
	require.NotNil(t, session.SwapPlan)

	require.NoError(t, eng.ConfirmPayment(context.Background()))
	session = eng.Session()
	require.Equal(t, StateConfirmed, session.State)
	require.NotNil(t, session.SwapTxHash)
	require.NotNil(t, session.TransferTxHash)
	require.NotEqual(t, *session.SwapTxHash, *session.TransferTxHash)
	// fakeBroadcaster's hash ends in nonce+1, so the last bytes order the nonces.
	require.Less(t, session.SwapTxHash[31], session.TransferTxHash[31])
}

func TestNoPool_RevertsToAmountSetWithoutBroadcast(t *testing.T) {
	eng := New(fakeWallet{addr: walletAddr}, &fakeUSDC{balance: big.NewInt(0)}, &fakeNative{balance: big.NewInt(1_000_000_000_000_000_000), gasPrice: big.NewInt(1)}, &fakePlanner{err: walleterr.New(walleterr.CodeNoPool, "no liquidity")}, &fakeBroadcaster{}, clock.NewFake(time.Now()), testCfg(), nil, nil)
	eng.SetNonceResetter(&fakeNonceResetter{})

	require.NoError(t, eng.SetPurchaseConcept("coffee"))
	require.NoError(t, eng.ScanQR())
	require.NoError(t, eng.QRDetected(merchantAddr.Hex()))
	require.NoError(t, eng.SetPaymentAmount(3.00))

	err := eng.PreparePayment(context.Background(), merchantAddr, 3.00, "", false)
	require.Error(t, err)
	require.Equal(t, walleterr.CodeNoPool, err.(*walleterr.Error).Code)
	require.Equal(t, StateAmountSet, eng.Session().State)
}

func TestAmountOverride_SupersedesPriorAmount(t *testing.T) {
	eng, broadcaster := primedEngine(t, big.NewInt(100_000_000), clock.NewFake(time.Now()))

	require.NoError(t, eng.PreparePayment(context.Background(), merchantAddr, 7.50, "", false))
	session := eng.Session()
	require.Equal(t, big.NewInt(7_500_000), session.AmountUnits)

	require.NoError(t, eng.ConfirmPayment(context.Background()))
	require.Len(t, broadcaster.hashes, 1)
}

func TestCancelPayment_ReturnsToIdleOnNextCall(t *testing.T) {
	eng, _ := primedEngine(t, big.NewInt(10_000_000), clock.NewFake(time.Now()))
	require.NoError(t, eng.PreparePayment(context.Background(), merchantAddr, 5.00, "", false))

	eng.CancelPayment()
	require.Equal(t, StateCancelled, eng.Session().State)

	require.NoError(t, eng.SetPurchaseConcept("next purchase"))
	require.Equal(t, StateAwaitingConcept, eng.Session().State)
}

func TestCancelPayment_InterruptsInFlightConfirm_BeforeSecondBroadcast(t *testing.T) {
	broadcaster := &blockingBroadcaster{receiptGate: make(chan struct{})}
	eng := New(fakeWallet{addr: walletAddr}, &fakeUSDC{balance: big.NewInt(0)}, &fakeNative{balance: big.NewInt(1_000_000_000_000_000_000), gasPrice: big.NewInt(1)}, &fakePlanner{quotedOut: big.NewInt(10_000_000)}, broadcaster, clock.NewFake(time.Now()), testCfg(), nil, nil)
	eng.SetNonceResetter(&fakeNonceResetter{})

	require.NoError(t, eng.SetPurchaseConcept("coffee"))
	require.NoError(t, eng.ScanQR())
	require.NoError(t, eng.QRDetected(merchantAddr.Hex()))
	require.NoError(t, eng.SetPaymentAmount(3.00))
	require.NoError(t, eng.PreparePayment(context.Background(), merchantAddr, 3.00, "", false))
	require.True(t, eng.Session().NeedsSwap)

	confirmErr := make(chan error, 1)
	go func() { confirmErr <- eng.ConfirmPayment(context.Background()) }()

	// Wait for tx1 (the swap) to broadcast and block on its receipt,
	// the window spec.md §8 Scenario 3 requires cancel_payment to reach.
	require.Eventually(t, func() bool { return broadcaster.broadcastCount() == 1 }, time.Second, time.Millisecond)

	eng.CancelPayment()
	close(broadcaster.receiptGate)

	require.Error(t, <-confirmErr)
	require.Equal(t, StateCancelled, eng.Session().State)
	require.Equal(t, 1, broadcaster.broadcastCount(), "tx2 must not be signed or broadcast once cancel lands")
}

func TestConfirmPayment_RejectsWhenBusy(t *testing.T) {
	eng, _ := primedEngine(t, big.NewInt(10_000_000), clock.NewFake(time.Now()))
	require.NoError(t, eng.PreparePayment(context.Background(), merchantAddr, 5.00, "", false))

	eng.mu.Lock()
	eng.busy = true
	eng.mu.Unlock()

	err := eng.ConfirmPayment(context.Background())
	require.Error(t, err)
	require.Equal(t, walleterr.CodeBusy, err.(*walleterr.Error).Code)
}

func TestPreparePayment_RejectsAmountOverSafetyCeilingWithoutAck(t *testing.T) {
	eng, _ := primedEngine(t, big.NewInt(0), clock.NewFake(time.Now()))
	cfg := testCfg()
	overCeiling := float64(cfg.SafetyCeilingUnits+1) / 1_000_000

	err := eng.PreparePayment(context.Background(), merchantAddr, overCeiling, "", false)
	require.Error(t, err)
	require.Equal(t, walleterr.CodeInvalidAmount, err.(*walleterr.Error).Code)
}
