// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/qtrade-relayer/log"
)

// NonceState is one NonceEntry's lifecycle position.
type NonceState int

const (
	NeedsInitialization NonceState = iota
	Available
	InUse
	NeedsAdvance
)

func (s NonceState) String() string {
	switch s {
	case NeedsInitialization:
		return "needs_initialization"
	case Available:
		return "available"
	case InUse:
		return "in_use"
	case NeedsAdvance:
		return "needs_advance"
	default:
		return "unknown"
	}
}

// NonceEntry is one durable-nonce account tracked by the pool.
type NonceEntry struct {
	Identity PublicKey
	State    NonceState
	Value    Blockhash // valid when State == Available
	LastUsed time.Time
}

// NonceChainClient is the narrow chain-read/write collaborator the
// NoncePool's maintenance task uses to observe and recover on-chain nonce
// accounts; the native adapter satisfies it in production.
type NonceChainClient interface {
	GetNonceAccount(ctx context.Context, identity PublicKey) (value Blockhash, initialized bool, err error)
	InitializeNonceAccount(ctx context.Context, identity PublicKey, authority Keypair) error
	AdvanceNonceAccount(ctx context.Context, identity PublicKey, authority Keypair) (Blockhash, error)
}

// NoncePool owns the durable-nonce account set: a mutex-guarded entry
// table plus a ticker-driven maintenance loop.
type NoncePool struct {
	client    NonceChainClient
	authority Keypair
	interval  time.Duration
	log       log.Logger
	metrics   *Metrics

	mu       sync.Mutex
	order    []PublicKey // FIFO order for acquisition
	entries  map[PublicKey]*NonceEntry
	inUse    atomic.Int64

	initialized atomic.Bool
	running     atomic.Bool
	quit        chan struct{}
	loopDone    chan struct{}
}

// NewNoncePool constructs a pool from the Settings' seed material.
// Returns an error if no valid nonce identities or authority secret are
// configured, aborting startup.
func NewNoncePool(settings *Settings, client NonceChainClient, metrics *Metrics, logger log.Logger) (*NoncePool, error) {
	if logger == nil {
		logger = log.Root()
	}
	if len(settings.NonceAccountSecrets) == 0 {
		return nil, fmt.Errorf("relayer: no nonce account identities configured")
	}
	authority, err := ParseKeypair(settings.NonceAuthoritySecret)
	if err != nil {
		return nil, fmt.Errorf("relayer: nonce authority: %w", err)
	}

	p := &NoncePool{
		client:    client,
		authority: authority,
		interval:  settings.nonceMaintenanceInterval(),
		log:       logger,
		metrics:   metrics,
		entries:   make(map[PublicKey]*NonceEntry),
	}

	for _, s := range settings.NonceAccountSecrets {
		identity, err := ParsePublicKey(s)
		if err != nil {
			p.log.Error("failed to parse nonce account identity", "value", s, "err", err)
			continue
		}
		p.order = append(p.order, identity)
		p.entries[identity] = &NonceEntry{Identity: identity, State: NeedsInitialization}
	}
	if len(p.order) == 0 {
		return nil, fmt.Errorf("relayer: no valid nonce account identities found")
	}

	p.initialized.Store(true)
	p.log.Info("nonce pool initialized", "accounts", len(p.order))
	return p, nil
}

// Start begins the background maintenance loop. Idempotent.
func (p *NoncePool) Start(ctx context.Context) error {
	if !p.initialized.Load() {
		return fmt.Errorf("relayer: nonce pool not initialized")
	}
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("nonce pool maintenance already running")
		return nil
	}

	p.refresh(ctx)
	p.quit = make(chan struct{})
	p.loopDone = make(chan struct{})
	go p.loop(ctx)
	return nil
}

func (p *NoncePool) loop(ctx context.Context) {
	defer close(p.loopDone)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refresh(ctx)
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the maintenance loop and waits for it to exit. Safe to
// call after the loop already stopped via context cancellation.
func (p *NoncePool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.quit)
	<-p.loopDone
}

// refresh re-reads every non-InUse entry's on-chain state and attempts
// recovery via create or advance.
func (p *NoncePool) refresh(ctx context.Context) {
	start := time.Now()

	p.mu.Lock()
	toCheck := make([]PublicKey, 0, len(p.order))
	for _, id := range p.order {
		if p.entries[id].State != InUse {
			toCheck = append(toCheck, id)
		}
	}
	p.mu.Unlock()

	for _, id := range toCheck {
		p.refreshOne(ctx, id)
	}

	if p.metrics != nil {
		p.metrics.nonceMaintenanceDuration.Observe(time.Since(start).Seconds())
	}

	p.recordPoolState()
}

func (p *NoncePool) refreshOne(ctx context.Context, id PublicKey) {
	value, initialized, err := p.client.GetNonceAccount(ctx, id)
	if err != nil {
		p.log.Error("error checking nonce account", "identity", id, "err", err)
		return
	}

	if !initialized {
		p.mu.Lock()
		if e := p.entries[id]; e != nil && e.State != InUse {
			e.State = NeedsInitialization
		}
		p.mu.Unlock()
		p.log.Debug("nonce account needs initialization", "identity", id)
		p.initializeOne(ctx, id)
		return
	}

	p.mu.Lock()
	e := p.entries[id]
	if e == nil || e.State == InUse {
		p.mu.Unlock()
		return
	}
	// The on-chain value is unchanged since the last observation and the
	// entry is still NeedsAdvance: the submitted transaction never landed,
	// so recovery requires an explicit maintenance advance transaction
	// rather than just re-reading state.
	needsMaintenanceAdvance := e.State == NeedsAdvance && e.Value == value
	p.mu.Unlock()

	if needsMaintenanceAdvance {
		p.log.Debug("nonce account still needs advance, submitting maintenance advance", "identity", id)
		newValue, err := p.client.AdvanceNonceAccount(ctx, id, p.authority)
		if p.metrics != nil {
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			p.metrics.nonceAcquireTotal.WithLabelValues("advance_" + outcome).Inc()
		}
		if err != nil {
			p.log.Error("failed to advance nonce account", "identity", id, "err", err)
			return
		}
		value = newValue
	}

	p.mu.Lock()
	if e := p.entries[id]; e != nil && e.State != InUse {
		e.State = Available
		e.Value = value
	}
	p.mu.Unlock()
	p.log.Debug("nonce account available", "identity", id, "value", value)
}

func (p *NoncePool) initializeOne(ctx context.Context, id PublicKey) {
	err := p.client.InitializeNonceAccount(ctx, id, p.authority)
	if p.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		p.metrics.nonceAcquireTotal.WithLabelValues("init_" + outcome).Inc()
	}
	if err != nil {
		p.log.Error("failed to initialize nonce account", "identity", id, "err", err)
		return
	}

	value, initialized, err := p.client.GetNonceAccount(ctx, id)
	if err != nil || !initialized {
		p.log.Warn("initialized nonce account not yet readable, retrying next cycle", "identity", id, "err", err)
		return
	}
	p.mu.Lock()
	if e := p.entries[id]; e != nil && e.State == NeedsInitialization {
		e.State = Available
		e.Value = value
	}
	p.mu.Unlock()
	p.log.Info("initialized nonce account", "identity", id, "value", value)
}

func (p *NoncePool) recordPoolState() {
	if p.metrics == nil {
		return
	}
	counts := map[NonceState]int{}
	p.mu.Lock()
	for _, e := range p.entries {
		counts[e.State]++
	}
	p.mu.Unlock()

	for _, s := range []NonceState{Available, InUse, NeedsInitialization, NeedsAdvance} {
		p.metrics.nonceStateGauge.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

// Acquire returns an Available entry's identity and current nonce value,
// marking it InUse, selected in FIFO order to distribute wear
//. Returns ErrNoAvailableNonce if none are Available.
func (p *NoncePool) Acquire() (PublicKey, Blockhash, error) {
	if !p.initialized.Load() {
		return PublicKey{}, Blockhash{}, fmt.Errorf("relayer: nonce pool not initialized")
	}
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range p.order {
		e := p.entries[id]
		if e.State == Available {
			e.State = InUse
			e.LastUsed = time.Now()
			value := e.Value
			p.inUse.Add(1)
			if p.metrics != nil {
				p.metrics.nonceAcquireTotal.WithLabelValues("success").Inc()
			}
			p.log.Info("acquired nonce account", "identity", id, "latency", time.Since(start))
			return id, value, nil
		}
	}

	if p.metrics != nil {
		p.metrics.nonceAcquireTotal.WithLabelValues("exhausted").Inc()
	}
	return PublicKey{}, Blockhash{}, ErrNoAvailableNonce
}

// Release marks an InUse entry NeedsAdvance; the value is not yet usable
// again until the next maintenance cycle observes the on-chain advance.
func (p *NoncePool) Release(identity PublicKey) error {
	if !p.initialized.Load() {
		return fmt.Errorf("relayer: nonce pool not initialized")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[identity]
	if !ok {
		return fmt.Errorf("relayer: nonce account %s not found in pool", identity)
	}
	if e.State != InUse {
		return fmt.Errorf("relayer: nonce account %s not marked in use", identity)
	}
	e.State = NeedsAdvance
	p.inUse.Add(-1)
	if p.metrics != nil {
		p.metrics.nonceAcquireTotal.WithLabelValues("released").Inc()
	}
	p.log.Info("released nonce account", "identity", identity)
	return nil
}

// Authority returns the nonce authority keypair used to co-sign
// nonce-anchored transactions.
func (p *NoncePool) Authority() Keypair { return p.authority }

// Stats returns (total, inUse) for observability.
func (p *NoncePool) Stats() (total, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries), int(p.inUse.Load())
}

// NonceAdvanceInstruction builds the "advance nonce" instruction that must
// be prepended as the first instruction of any nonce-anchored transaction
//. The account list
// mirrors the Solana system program's AdvanceNonceAccount shape: nonce
// account (writable), the recent-blockhashes sysvar (readonly), and the
// authority (readonly signer).
func NonceAdvanceInstruction(nonceAccount, authority, recentBlockhashesSysvar PublicKey) Instruction {
	return Instruction{
		ProgramID: systemProgramID,
		Accounts: []AccountMeta{
			{PublicKey: nonceAccount, IsWritable: true},
			{PublicKey: recentBlockhashesSysvar},
			{PublicKey: authority, IsSigner: true},
		},
		Data: []byte{4, 0, 0, 0}, // AdvanceNonceAccount system instruction discriminant
	}
}

// systemProgramID is the well-known system program identity; all-zero is
// the conventional placeholder used by this repo's synthetic account
// derivation (a real deployment would use the chain's actual constant).
var systemProgramID = PublicKey{}
