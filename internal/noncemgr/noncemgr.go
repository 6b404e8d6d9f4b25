// Package noncemgr implements the Nonce Manager component (spec.md
// §4.5): a cached optimistic nonce that avoids a chain round trip
// between rapidly submitted transactions, while still reconciling with
// the chain after the cache window expires.
//
// Grounded on other_examples' GoPolymarket-polygate internal nonce
// manager (a mutex-protected map[address]nonce with lazy chain fetch and
// an explicit Reset for "nonce too low" recovery), generalized here to
// the spec's explicit 30-second cache window via an injectable
// internal/clock.Clock rather than an unconditional optimistic cache.
package noncemgr

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/clock"
)

// ChainNoncer fetches the chain's view of the next pending nonce for an
// address, normally backed by an eth_getTransactionCount(address,
// "pending") RPC call in internal/rpcclient.
type ChainNoncer interface {
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
}

type entry struct {
	lastUsed  uint64
	updatedAt time.Time
}

// Manager caches per-address nonces for Config.NonceCacheWindowSeconds
// (default 30s per spec.md §4.5 and §6).
type Manager struct {
	chain      ChainNoncer
	clock      clock.Clock
	cacheWindow time.Duration

	mu      sync.Mutex
	entries map[common.Address]entry
}

// New constructs a Manager with the given cache window.
func New(chain ChainNoncer, clk clock.Clock, cacheWindow time.Duration) *Manager {
	return &Manager{
		chain:       chain,
		clock:       clk,
		cacheWindow: cacheWindow,
		entries:     make(map[common.Address]entry),
	}
}

// NextNonce implements spec.md §4.5's algorithm: within the cache
// window, return max(chainPending, lastUsed+1); outside the window (or
// on first use), trust the chain's pending nonce outright. The returned
// nonce is recorded as the new lastUsed.
func (m *Manager) NextNonce(ctx context.Context, address common.Address) (uint64, error) {
	chainPending, err := m.chain.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.entries[address]
	next := chainPending
	if ok && m.clock.Now().Sub(cached.updatedAt) < m.cacheWindow {
		if candidate := cached.lastUsed + 1; candidate > next {
			next = candidate
		}
	}

	m.entries[address] = entry{lastUsed: next, updatedAt: m.clock.Now()}
	return next, nil
}

// Reset discards the cached nonce for address, forcing the next
// NextNonce call to trust the chain outright. Call after a
// "nonce too low" broadcast failure (spec.md §4.6).
func (m *Manager) Reset(address common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, address)
}
