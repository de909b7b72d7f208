// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/qtrade-relayer/log"
	"github.com/luxfi/qtrade-relayer/utils"
)

// BlockhashFetcher is the narrow chain-read collaborator BlockhashCache
// refreshes from; the native RPC adapter satisfies it in production.
type BlockhashFetcher interface {
	GetLatestBlockhash(ctx context.Context) (Blockhash, error)
}

// BlockhashCache maintains a single recent blockhash refreshed on a fixed
// cadence: a mutex-guarded cached value plus a background ticker, with a
// max-age check on reads.
type BlockhashCache struct {
	fetcher BlockhashFetcher
	maxAge  time.Duration
	refresh time.Duration
	clock   utils.Clock
	log     log.Logger
	metrics *Metrics

	mu          sync.RWMutex
	blockhash   Blockhash
	lastUpdate  time.Time
	initialized atomic.Bool
	running     atomic.Bool

	quit     chan struct{}
	loopDone chan struct{}
}

// NewBlockhashCache constructs an uninitialized cache; call Start to begin
// refreshing.
func NewBlockhashCache(settings *Settings, fetcher BlockhashFetcher, metrics *Metrics, logger log.Logger) *BlockhashCache {
	if logger == nil {
		logger = log.Root()
	}
	return &BlockhashCache{
		fetcher: fetcher,
		maxAge:  settings.blockhashMaxAge(),
		refresh: settings.blockhashRefreshInterval(),
		clock:   utils.NewMockableClock(),
		log:     logger,
		metrics: metrics,
	}
}

// SetClock overrides the cache's time source; for tests only.
func (c *BlockhashCache) SetClock(clk utils.Clock) { c.clock = clk }

// Start begins the background refresh task. It performs one synchronous
// update before returning so callers observe an initialized cache, then
// spawns the ticker loop. Idempotent: a second call is a no-op.
func (c *BlockhashCache) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Debug("blockhash cache already running")
		return nil
	}

	if err := c.update(ctx); err != nil {
		c.log.Error("initial blockhash update failed", "err", err)
	}

	c.quit = make(chan struct{})
	c.loopDone = make(chan struct{})
	go c.loop(ctx)
	return nil
}

func (c *BlockhashCache) loop(ctx context.Context) {
	defer close(c.loopDone)

	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.update(ctx); err != nil {
				c.log.Error("failed to update blockhash", "err", err)
				if c.metrics != nil {
					c.metrics.blockhashRefreshFailures.Inc()
				}
			}
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the refresh loop and waits for it to exit. Safe to call
// after the loop already stopped via context cancellation.
func (c *BlockhashCache) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.quit)
	<-c.loopDone
}

func (c *BlockhashCache) update(ctx context.Context) error {
	hash, err := c.fetcher.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.blockhash = hash
	c.lastUpdate = c.clock.Time()
	c.mu.Unlock()
	c.initialized.Store(true)
	c.log.Debug("updated blockhash cache", "blockhash", hash)
	return nil
}

// Get returns the cached blockhash if fresh, otherwise performs a direct
// synchronous fetch without updating the cache.
func (c *BlockhashCache) Get(ctx context.Context) (Blockhash, error) {
	if !c.initialized.Load() {
		c.log.Warn("blockhash cache not initialized yet, fetching directly")
		return c.fetcher.GetLatestBlockhash(ctx)
	}

	c.mu.RLock()
	age := c.clock.Time().Sub(c.lastUpdate)
	hash := c.blockhash
	c.mu.RUnlock()

	if c.metrics != nil {
		c.metrics.blockhashAgeSeconds.Set(age.Seconds())
	}

	if age > c.maxAge {
		c.log.Warn("cached blockhash expired, fetching directly", "age", age)
		return c.fetcher.GetLatestBlockhash(ctx)
	}
	return hash, nil
}
