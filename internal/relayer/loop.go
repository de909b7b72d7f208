// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/qtrade-relayer/log"
)

// RelayerLoop is the top-level process: it starts every background
// component, accepts ArbitrageResult values on a bounded ingress channel,
// and drives each one through Preparer, Submitter and ConfirmationMonitor
// in turn.
type RelayerLoop struct {
	settings   *Settings
	blockhash  *BlockhashCache
	noncePool  *NoncePool
	keyManager KeyPoolManager
	preparer   *Preparer
	submitter  *Submitter
	confirm    *ConfirmationMonitor
	metrics    *Metrics
	log        log.Logger

	ingress chan ArbitrageResult

	mu      sync.Mutex
	backlog []ArbitrageResult
}

// NewRelayerLoop assembles the loop from its already-constructed
// components. The ingress channel is sized at maxQueueSize; callers that
// exceed it block on Submit until Run receives from the channel.
func NewRelayerLoop(
	settings *Settings,
	blockhash *BlockhashCache,
	noncePool *NoncePool,
	keyManager KeyPoolManager,
	preparer *Preparer,
	submitter *Submitter,
	confirm *ConfirmationMonitor,
	metrics *Metrics,
	logger log.Logger,
) *RelayerLoop {
	if logger == nil {
		logger = log.Root()
	}
	return &RelayerLoop{
		settings:   settings,
		blockhash:  blockhash,
		noncePool:  noncePool,
		keyManager: keyManager,
		preparer:   preparer,
		submitter:  submitter,
		confirm:    confirm,
		metrics:    metrics,
		log:        logger,
		ingress:    make(chan ArbitrageResult, maxQueueSize),
	}
}

// Submit enqueues one ArbitrageResult for processing. While the ingress
// channel is full it blocks until there is room or ctx is done, in which
// case it returns ctx.Err().
func (l *RelayerLoop) Submit(ctx context.Context, result ArbitrageResult) error {
	select {
	case l.ingress <- result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts every background component, then drives the tick loop until
// ctx is cancelled. Components that fail to start abort
// the whole run; components are stopped in reverse order on the way out.
func (l *RelayerLoop) Run(ctx context.Context) error {
	if err := l.blockhash.Start(ctx); err != nil {
		return err
	}
	defer l.blockhash.Stop()

	if err := l.noncePool.Start(ctx); err != nil {
		return err
	}
	defer l.noncePool.Stop()

	if err := l.keyManager.Start(ctx); err != nil {
		return err
	}
	defer l.keyManager.Stop()

	ticker := time.NewTicker(l.settings.relayerTickInterval())
	defer ticker.Stop()

	l.log.Info("relayer loop started", "tick_interval", l.settings.relayerTickInterval())

	for {
		select {
		case <-ctx.Done():
			l.log.Info("relayer loop stopping", "reason", ctx.Err())
			return nil
		case result := <-l.ingress:
			l.enqueue(result)
		case <-ticker.C:
			l.drainIngress()
			l.processOne(ctx)
		}
	}
}

// enqueue appends to the FIFO backlog, dropping the oldest entry when it
// is already at capacity.
func (l *RelayerLoop) enqueue(result ArbitrageResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.backlog) >= maxQueueSize {
		l.backlog = l.backlog[1:]
		l.log.Warn("backlog full, dropped oldest entry", "err", ErrQueueOverflow)
		if l.metrics != nil {
			l.metrics.queueDropped.Inc()
		}
	}
	l.backlog = append(l.backlog, result)
	if l.metrics != nil {
		l.metrics.queueDepth.Set(float64(len(l.backlog)))
	}
}

// drainIngress moves every result currently waiting on the ingress
// channel into the backlog without blocking.
func (l *RelayerLoop) drainIngress() {
	for {
		select {
		case result := <-l.ingress:
			l.enqueue(result)
		default:
			return
		}
	}
}

// dequeue pops the oldest backlog entry, if any.
func (l *RelayerLoop) dequeue() (ArbitrageResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.backlog) == 0 {
		return ArbitrageResult{}, false
	}
	result := l.backlog[0]
	l.backlog = l.backlog[1:]
	if l.metrics != nil {
		l.metrics.queueDepth.Set(float64(len(l.backlog)))
	}
	return result, true
}

// processOne dequeues a single result and drives it through
// Preparer -> Submitter -> ConfirmationMonitor, always retiring the
// leased Explorer key afterward regardless of outcome.
func (l *RelayerLoop) processOne(ctx context.Context) {
	result, ok := l.dequeue()
	if !ok {
		return
	}

	if l.settings.SimulateOnly {
		prepared, err := l.preparer.Prepare(ctx, result)
		if err != nil {
			l.log.Debug("simulate-only: prepare skipped", "err", err)
			return
		}
		outcomes := l.submitter.Simulate(ctx, prepared)
		l.retireExplorer(prepared.ExplorerIdentity)
		l.log.Info("simulate-only pass complete", "outcomes", len(outcomes))
		return
	}

	prepared, err := l.preparer.Prepare(ctx, result)
	if err != nil {
		l.log.Debug("result skipped", "err", err)
		return
	}
	// An Explorer key is single-use: retired after the attempt no matter
	// how it ends.
	defer l.retireExplorer(prepared.ExplorerIdentity)

	submitResult := l.submitter.Submit(ctx, prepared)

	if submitResult.CircuitBreaker {
		l.log.Error("circuit breaker tripped, abandoning result", "err", ErrCircuitBreakerTripped)
		return
	}

	anySucceeded := false
	for _, o := range submitResult.Outcomes {
		if o.Success {
			anySucceeded = true
			break
		}
	}
	if !anySucceeded {
		l.log.Warn("no adapter accepted the transaction")
		return
	}

	confirmation := l.confirm.Run(ctx, submitResult.Outcomes, prepared.Swaps[0].Params)
	l.log.Info("confirmation pass complete",
		"confirmed", confirmation.Confirmed,
		"timed_out", confirmation.TimedOut,
		"ratio", confirmation.Ratio())
}

func (l *RelayerLoop) retireExplorer(identity PublicKey) {
	if err := l.keyManager.ReturnExplorer(identity, true); err != nil {
		l.log.Error("failed to retire explorer key", "identity", identity, "err", err)
	}
}
