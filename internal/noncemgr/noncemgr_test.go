package noncemgr

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arcpay/voicewallet/internal/clock"
)

type fakeChain struct {
	pending uint64
	calls   int
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	f.calls++
	return f.pending, nil
}

var addr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestNextNonce_FirstCallTrustsChain(t *testing.T) {
	chain := &fakeChain{pending: 5}
	fc := clock.NewFake(time.Unix(0, 0))
	m := New(chain, fc, 30*time.Second)

	nonce, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), nonce)
}

func TestNextNonce_WithinWindowUsesLastUsedPlusOne(t *testing.T) {
	chain := &fakeChain{pending: 5}
	fc := clock.NewFake(time.Unix(0, 0))
	m := New(chain, fc, 30*time.Second)

	first, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), first)

	// Chain hasn't caught up yet (pending mempool tx not yet reflected).
	fc.Advance(5 * time.Second)
	second, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(6), second)
}

func TestNextNonce_OutsideWindowTrustsChainAgain(t *testing.T) {
	chain := &fakeChain{pending: 5}
	fc := clock.NewFake(time.Unix(0, 0))
	m := New(chain, fc, 30*time.Second)

	_, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)

	fc.Advance(31 * time.Second)
	chain.pending = 9 // chain has since caught up
	next, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(9), next)
}

func TestNextNonce_ChainAheadOfCacheWins(t *testing.T) {
	chain := &fakeChain{pending: 5}
	fc := clock.NewFake(time.Unix(0, 0))
	m := New(chain, fc, 30*time.Second)

	_, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)

	fc.Advance(5 * time.Second)
	chain.pending = 20 // e.g. another signer used this address concurrently
	next, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(20), next)
}

func TestReset_ForcesChainTrustOnNextCall(t *testing.T) {
	chain := &fakeChain{pending: 5}
	fc := clock.NewFake(time.Unix(0, 0))
	m := New(chain, fc, 30*time.Second)

	_, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)

	m.Reset(addr)
	fc.Advance(1 * time.Second)
	chain.pending = 5 // unchanged, but cache should not add +1 since reset cleared it
	next, err := m.NextNonce(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), next)
}
