// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/luxfi/qtrade-relayer/log"
)

// KeyTier is one of the three custodial pools.
type KeyTier int

const (
	TierHODL KeyTier = iota
	TierBank
	TierExplorer
)

func (t KeyTier) String() string {
	switch t {
	case TierHODL:
		return "hodl"
	case TierBank:
		return "bank"
	case TierExplorer:
		return "explorer"
	default:
		return "unknown"
	}
}

// KeyStatus is a KeyEntry's lease state.
type KeyStatus int

const (
	KeyAvailable KeyStatus = iota
	KeyInUse
	KeyUsed
)

func (s KeyStatus) String() string {
	switch s {
	case KeyAvailable:
		return "available"
	case KeyInUse:
		return "in_use"
	case KeyUsed:
		return "used"
	default:
		return "unknown"
	}
}

// KeyEntry is one wallet tracked by the KeyManager.
type KeyEntry struct {
	Keypair       Keypair
	Tier          KeyTier
	Status        KeyStatus
	UseCount      int
	TargetBalance uint64
}

// KeyChainClient is the narrow chain-read/write collaborator the
// KeyManager's rebalance cycle uses to sample balances and move funds; the
// native adapter satisfies it in production.
type KeyChainClient interface {
	GetBalance(ctx context.Context, identity PublicKey) (uint64, error)
	Transfer(ctx context.Context, from Keypair, to PublicKey, amount uint64) error
}

// KeyPoolManager is the interface the relayer pipeline depends on; both
// the tiered KeyManager and the single-wallet variant satisfy it.
type KeyPoolManager interface {
	LeaseExplorer() (PublicKey, Keypair, error)
	ReturnExplorer(identity PublicKey, retire bool) error
	Start(ctx context.Context) error
	Stop()
}

// pool is one tier's bookkeeping: an entry table plus a FIFO of Available
// identities, mirroring NoncePool's order+entries shape.
type pool struct {
	order   []PublicKey
	entries map[PublicKey]*KeyEntry
}

func newPool() *pool {
	return &pool{entries: make(map[PublicKey]*KeyEntry)}
}

func (p *pool) add(e *KeyEntry) {
	p.order = append(p.order, e.Keypair.Public)
	p.entries[e.Keypair.Public] = e
}

func (p *pool) popAvailable() (*KeyEntry, bool) {
	for i, id := range p.order {
		e := p.entries[id]
		if e != nil && e.Status == KeyAvailable {
			p.order = append(p.order[:i], p.order[i+1:]...)
			p.order = append(p.order, id)
			return e, true
		}
	}
	return nil, false
}

func (p *pool) availableCount() int {
	n := 0
	for _, e := range p.entries {
		if e.Status == KeyAvailable {
			n++
		}
	}
	return n
}

func (p *pool) drop(id PublicKey) {
	delete(p.entries, id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// KeyManager owns the tiered custodial key pools: a mutex-guarded table
// per tier plus a ticker-driven rebalance loop.
type KeyManager struct {
	client   KeyChainClient
	interval time.Duration
	feeReserve uint64
	drainThreshold uint64
	minExplorer int
	growBy      int
	log      log.Logger
	metrics  *Metrics

	mu    sync.Mutex
	pools map[KeyTier]*pool
	cache *fastcache.Cache // rebalance-tick-scoped recent-balance samples

	running  atomic.Bool
	quit     chan struct{}
	loopDone chan struct{}
}

// NewKeyManager seeds the three pools from Settings, generating fresh
// Explorer keys if the configured secret list is short.
func NewKeyManager(settings *Settings, client KeyChainClient, metrics *Metrics, logger log.Logger) (*KeyManager, error) {
	if logger == nil {
		logger = log.Root()
	}
	km := &KeyManager{
		client:         client,
		interval:       settings.rebalanceInterval(),
		feeReserve:     estimatedFeeReserve,
		drainThreshold: usedKeyDrainThreshold,
		minExplorer:    minExplorerKeys,
		growBy:         explorerKeysToCreate,
		log:            logger,
		metrics:        metrics,
		pools: map[KeyTier]*pool{
			TierHODL:     newPool(),
			TierBank:     newPool(),
			TierExplorer: newPool(),
		},
	}

	if err := km.seed(TierHODL, settings.HODLSecrets, 0); err != nil {
		return nil, err
	}
	if err := km.seed(TierBank, settings.BankSecrets, 0); err != nil {
		return nil, err
	}
	if err := km.seed(TierExplorer, settings.ExplorerSecrets, 0); err != nil {
		return nil, err
	}

	if km.pools[TierExplorer].availableCount() < km.minExplorer {
		short := km.minExplorer - km.pools[TierExplorer].availableCount()
		for i := 0; i < short; i++ {
			kp, err := GenerateKeypair()
			if err != nil {
				return nil, fmt.Errorf("relayer: seed explorer key: %w", err)
			}
			km.pools[TierExplorer].add(&KeyEntry{Keypair: kp, Tier: TierExplorer, Status: KeyAvailable})
		}
		km.log.Info("seeded additional explorer keys", "count", short)
	}

	km.log.Info("key manager initialized",
		"hodl", len(km.pools[TierHODL].order),
		"bank", len(km.pools[TierBank].order),
		"explorer", len(km.pools[TierExplorer].order))
	return km, nil
}

func (km *KeyManager) seed(tier KeyTier, secrets []string, target uint64) error {
	for _, s := range secrets {
		kp, err := ParseKeypair(s)
		if err != nil {
			km.log.Error("failed to parse key secret", "tier", tier, "err", err)
			continue
		}
		km.pools[tier].add(&KeyEntry{Keypair: kp, Tier: tier, Status: KeyAvailable, TargetBalance: target})
	}
	return nil
}

// Start begins the background rebalance loop. Idempotent.
func (km *KeyManager) Start(ctx context.Context) error {
	if !km.running.CompareAndSwap(false, true) {
		km.log.Debug("key manager rebalance already running")
		return nil
	}
	km.quit = make(chan struct{})
	km.loopDone = make(chan struct{})
	go km.loop(ctx)
	return nil
}

func (km *KeyManager) loop(ctx context.Context) {
	defer close(km.loopDone)

	ticker := time.NewTicker(km.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			km.Rebalance(ctx)
		case <-km.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the rebalance loop and waits for it to exit. Safe to
// call after the loop already stopped via context cancellation.
func (km *KeyManager) Stop() {
	if !km.running.CompareAndSwap(true, false) {
		return
	}
	close(km.quit)
	<-km.loopDone
}

// LeaseExplorer pops one Available Explorer entry, marking it InUse.
func (km *KeyManager) LeaseExplorer() (PublicKey, Keypair, error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	e, ok := km.pools[TierExplorer].popAvailable()
	if !ok {
		if km.metrics != nil {
			km.metrics.keyLeaseTotal.WithLabelValues("exhausted").Inc()
		}
		return PublicKey{}, Keypair{}, ErrNoAvailableExplorerKey
	}
	e.Status = KeyInUse
	if km.metrics != nil {
		km.metrics.keyLeaseTotal.WithLabelValues("success").Inc()
	}
	km.log.Info("leased explorer key", "identity", e.Keypair.Public)
	return e.Keypair.Public, e.Keypair, nil
}

// ReturnExplorer transitions an InUse Explorer entry to Available
// (retire=false) or Used (retire=true). The relayer always retires; a
// Used key is never leased again.
func (km *KeyManager) ReturnExplorer(identity PublicKey, retire bool) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	e, ok := km.pools[TierExplorer].entries[identity]
	if !ok {
		return fmt.Errorf("relayer: explorer key %s not found", identity)
	}
	if e.Status != KeyInUse {
		return fmt.Errorf("relayer: explorer key %s not marked in use", identity)
	}
	e.UseCount++
	if retire {
		e.Status = KeyUsed
		km.log.Info("retired explorer key", "identity", identity)
	} else {
		e.Status = KeyAvailable
		km.log.Info("returned explorer key", "identity", identity)
	}
	return nil
}

// Rebalance runs the three-step cycle: drain used Explorers, top up Bank
// from HODL, grow the Explorer pool if thin. Steady-state calls perform
// no transfers.
func (km *KeyManager) Rebalance(ctx context.Context) {
	km.cache = fastcache.New(64 * 1024)
	defer func() { km.cache = nil }()

	km.drainUsedExplorers(ctx)
	km.topUpBank(ctx)
	km.growExplorerPool(ctx)
	km.recordPoolGauges()
}

func (km *KeyManager) balanceOf(ctx context.Context, id PublicKey) (uint64, error) {
	if km.cache != nil {
		if v, ok := km.cache.HasGet(nil, id[:]); ok && len(v) == 8 {
			return beUint64(v), nil
		}
	}
	bal, err := km.client.GetBalance(ctx, id)
	if err != nil {
		return 0, err
	}
	if km.cache != nil {
		km.cache.Set(id[:], beBytes(bal))
	}
	return bal, nil
}

func (km *KeyManager) drainUsedExplorers(ctx context.Context) {
	km.mu.Lock()
	used := make([]PublicKey, 0)
	for id, e := range km.pools[TierExplorer].entries {
		if e.Status == KeyUsed {
			used = append(used, id)
		}
	}
	km.mu.Unlock()

	for _, id := range used {
		km.mu.Lock()
		e := km.pools[TierExplorer].entries[id]
		km.mu.Unlock()
		if e == nil {
			continue
		}

		bal, err := km.balanceOf(ctx, id)
		if err != nil {
			km.log.Error("failed to read used explorer balance", "identity", id, "err", err)
			km.mu.Lock()
			km.pools[TierExplorer].drop(id)
			km.mu.Unlock()
			continue
		}

		if bal > km.drainThreshold {
			km.mu.Lock()
			dest, ok := km.pools[TierBank].popAvailable()
			km.mu.Unlock()
			if ok {
				amount := bal - km.feeReserve
				if err := km.client.Transfer(ctx, e.Keypair, dest.Keypair.Public, amount); err != nil {
					km.log.Error("failed to drain used explorer key", "identity", id, "err", err)
				} else {
					km.log.Info("drained used explorer key", "identity", id, "to", dest.Keypair.Public, "amount", amount)
				}
			} else {
				km.log.Warn("no available bank key to drain used explorer into", "identity", id)
			}
		}

		// Dropped regardless of transfer success or threshold outcome: a
		// Used entry is never re-leased.
		km.mu.Lock()
		km.pools[TierExplorer].drop(id)
		km.mu.Unlock()
	}
}

func (km *KeyManager) topUpBank(ctx context.Context) {
	km.mu.Lock()
	bankIDs := append([]PublicKey(nil), km.pools[TierBank].order...)
	km.mu.Unlock()

	for _, id := range bankIDs {
		km.mu.Lock()
		e := km.pools[TierBank].entries[id]
		km.mu.Unlock()
		if e == nil || e.Status != KeyAvailable || e.TargetBalance == 0 {
			continue
		}

		bal, err := km.balanceOf(ctx, id)
		if err != nil {
			km.log.Error("failed to read bank key balance", "identity", id, "err", err)
			continue
		}
		if bal >= e.TargetBalance {
			continue
		}

		km.mu.Lock()
		hodl, ok := km.pools[TierHODL].popAvailable()
		km.mu.Unlock()
		if !ok {
			km.log.Warn("no available hodl key to top up bank", "identity", id)
			continue
		}

		amount := e.TargetBalance - bal
		if err := km.client.Transfer(ctx, hodl.Keypair, id, amount); err != nil {
			km.log.Error("failed to top up bank key", "identity", id, "err", err)
		} else {
			km.log.Info("topped up bank key", "identity", id, "amount", amount)
		}
	}
}

func (km *KeyManager) growExplorerPool(ctx context.Context) {
	km.mu.Lock()
	short := km.minExplorer - km.pools[TierExplorer].availableCount()
	km.mu.Unlock()
	if short <= 0 {
		return
	}

	for i := 0; i < km.growBy; i++ {
		km.mu.Lock()
		bank, ok := km.pools[TierBank].popAvailable()
		km.mu.Unlock()
		if !ok {
			km.log.Warn("no available bank key to fund new explorer key")
			return
		}

		kp, err := GenerateKeypair()
		if err != nil {
			km.log.Error("failed to generate new explorer key", "err", err)
			continue
		}

		amount := bank.TargetBalance
		if amount == 0 {
			amount = km.drainThreshold * 2
		}
		if err := km.client.Transfer(ctx, bank.Keypair, kp.Public, amount); err != nil {
			km.log.Error("failed to fund new explorer key", "err", err)
			continue
		}

		km.mu.Lock()
		km.pools[TierExplorer].add(&KeyEntry{Keypair: kp, Tier: TierExplorer, Status: KeyAvailable})
		km.mu.Unlock()
		km.log.Info("created funded explorer key", "identity", kp.Public, "amount", amount)
	}
}

func (km *KeyManager) recordPoolGauges() {
	if km.metrics == nil {
		return
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	for tier, p := range km.pools {
		km.metrics.keyTierAvailable.WithLabelValues(tier.String()).Set(float64(p.availableCount()))
	}
}

func beBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// SingleWalletKeyManager short-circuits the three pools with a single
// permanent Explorer entry; retire is a no-op and rebalance is skipped
// entirely.
type SingleWalletKeyManager struct {
	identity PublicKey
	keypair  Keypair
	log      log.Logger
}

// NewSingleWalletKeyManager constructs the testing/debug variant from a
// single configured secret.
func NewSingleWalletKeyManager(settings *Settings, logger log.Logger) (*SingleWalletKeyManager, error) {
	if logger == nil {
		logger = log.Root()
	}
	kp, err := ParseKeypair(settings.SingleWalletSecret)
	if err != nil {
		return nil, fmt.Errorf("relayer: single wallet secret: %w", err)
	}
	logger.Info("single-wallet mode key manager initialized", "identity", kp.Public)
	return &SingleWalletKeyManager{identity: kp.Public, keypair: kp, log: logger}, nil
}

func (s *SingleWalletKeyManager) LeaseExplorer() (PublicKey, Keypair, error) {
	return s.identity, s.keypair, nil
}

func (s *SingleWalletKeyManager) ReturnExplorer(identity PublicKey, retire bool) error {
	return nil
}

func (s *SingleWalletKeyManager) Start(ctx context.Context) error { return nil }
func (s *SingleWalletKeyManager) Stop()                            {}
