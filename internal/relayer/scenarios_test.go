// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/qtrade-relayer/internal/relayer"
)

// --- pipeline fakes (exported-API only) ---

type pipeKeyManager struct {
	mu      sync.Mutex
	leased  []relayer.PublicKey
	retired []relayer.PublicKey
}

func (m *pipeKeyManager) LeaseExplorer() (relayer.PublicKey, relayer.Keypair, error) {
	kp, err := relayer.GenerateKeypair()
	if err != nil {
		return relayer.PublicKey{}, relayer.Keypair{}, err
	}
	m.mu.Lock()
	m.leased = append(m.leased, kp.Public)
	m.mu.Unlock()
	return kp.Public, kp, nil
}

func (m *pipeKeyManager) ReturnExplorer(identity relayer.PublicKey, retire bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if retire {
		m.retired = append(m.retired, identity)
	}
	return nil
}

func (m *pipeKeyManager) Start(ctx context.Context) error { return nil }
func (m *pipeKeyManager) Stop()                           {}

type pipeAdapter struct {
	meta relayer.AdapterMetadata

	mu        sync.Mutex
	failWith  error
	seq       int
	submitted []*relayer.Transaction
	simulated int
}

func newPipeAdapter(name relayer.ProviderName) *pipeAdapter {
	return &pipeAdapter{meta: relayer.AdapterMetadata{Name: name, Sync: true, Simulatable: true}}
}

func (a *pipeAdapter) Metadata() relayer.AdapterMetadata { return a.meta }

func (a *pipeAdapter) send(tx *relayer.Transaction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWith != nil {
		return "", a.failWith
	}
	a.submitted = append(a.submitted, tx)
	a.seq++
	return fmt.Sprintf("%s-sig-%d", a.meta.Name, a.seq), nil
}

func (a *pipeAdapter) SendTx(ctx context.Context, tx *relayer.Transaction) (string, error) {
	return a.send(tx)
}

func (a *pipeAdapter) SendNonceTx(ctx context.Context, tx *relayer.Transaction) (string, error) {
	return a.send(tx)
}

func (a *pipeAdapter) SimulateTx(ctx context.Context, tx *relayer.Transaction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.simulated++
	return "ok", nil
}

func (a *pipeAdapter) transactions() []*relayer.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*relayer.Transaction(nil), a.submitted...)
}

type pipeNonceClient struct {
	mu     sync.Mutex
	values map[relayer.PublicKey]relayer.Blockhash
}

func (c *pipeNonceClient) GetNonceAccount(ctx context.Context, id relayer.PublicKey) (relayer.Blockhash, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[id]
	return v, ok, nil
}

func (c *pipeNonceClient) InitializeNonceAccount(ctx context.Context, id relayer.PublicKey, authority relayer.Keypair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values[id]
	v[0]++
	c.values[id] = v
	return nil
}

func (c *pipeNonceClient) AdvanceNonceAccount(ctx context.Context, id relayer.PublicKey, authority relayer.Keypair) (relayer.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[id]
	if !ok {
		return relayer.Blockhash{}, errors.New("unknown nonce account")
	}
	v[0]++
	c.values[id] = v
	return v, nil
}

type pipeFetcher struct {
	mu    sync.Mutex
	hash  relayer.Blockhash
	calls int
}

func (f *pipeFetcher) GetLatestBlockhash(ctx context.Context) (relayer.Blockhash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.hash, nil
}

type pipeStatusClient struct {
	mu        sync.Mutex
	confirmed bool
	calls     int
}

func (c *pipeStatusClient) GetSignatureStatus(ctx context.Context, sig string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.confirmed, c.confirmed, nil
}

type pipeKeyClient struct {
	mu        sync.Mutex
	balance   uint64
	transfers []uint64
}

func (c *pipeKeyClient) GetBalance(ctx context.Context, id relayer.PublicKey) (uint64, error) {
	return c.balance, nil
}

func (c *pipeKeyClient) Transfer(ctx context.Context, from relayer.Keypair, to relayer.PublicKey, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers = append(c.transfers, amount)
	return nil
}

// --- scenario fixture ---

type pipeline struct {
	settings  *relayer.Settings
	keys      *pipeKeyManager
	fetcher   *pipeFetcher
	status    *pipeStatusClient
	preparer  *relayer.Preparer
	submitter *relayer.Submitter
	confirm   *relayer.ConfirmationMonitor
	noncePool *relayer.NoncePool
}

func newPipeline(populatedNonces bool, adapters ...*pipeAdapter) *pipeline {
	settings := &relayer.Settings{
		Providers:                map[relayer.ProviderName]relayer.ProviderSettings{},
		BlockhashMaxAge:          time.Minute,
		BlockhashRefreshInterval: time.Hour,
		NonceMaintenanceInterval: time.Hour,
		ConfirmationDeadline:     250 * time.Millisecond,
		ConfirmationPollInterval: 5 * time.Millisecond,
	}

	regAdapters := make([]relayer.Adapter, 0, len(adapters))
	for _, a := range adapters {
		settings.Providers[a.meta.Name] = relayer.ProviderSettings{Name: a.meta.Name, Active: true}
		regAdapters = append(regAdapters, a)
	}

	authority, err := relayer.GenerateKeypair()
	Expect(err).NotTo(HaveOccurred())
	settings.NonceAuthoritySecret = authority.Secret()

	nonceClient := &pipeNonceClient{values: map[relayer.PublicKey]relayer.Blockhash{}}
	nonceKp, err := relayer.GenerateKeypair()
	Expect(err).NotTo(HaveOccurred())
	settings.NonceAccountSecrets = []string{nonceKp.Public.String()}
	if populatedNonces {
		var seed relayer.Blockhash
		seed[0] = 77
		nonceClient.values[nonceKp.Public] = seed
	}

	pool, err := relayer.NewNoncePool(settings, nonceClient, nil, nil)
	Expect(err).NotTo(HaveOccurred())
	if populatedNonces {
		ctx, cancel := context.WithCancel(context.Background())
		Expect(pool.Start(ctx)).To(Succeed())
		ginkgo.DeferCleanup(func() {
			cancel()
			pool.Stop()
		})
	}

	fetcher := &pipeFetcher{}
	fetcher.hash[0] = 42
	cache := relayer.NewBlockhashCache(settings, fetcher, nil, nil)

	keys := &pipeKeyManager{}
	registry := relayer.NewRegistry(settings, nil, regAdapters...)
	status := &pipeStatusClient{}

	return &pipeline{
		settings:  settings,
		keys:      keys,
		fetcher:   fetcher,
		status:    status,
		preparer:  relayer.NewPreparer(keys, nil, relayer.NewEncoderRegistry(relayer.DefaultEncoders()), nil),
		submitter: relayer.NewSubmitter(registry, pool, cache, nil, nil),
		confirm:   relayer.NewConfirmationMonitor(settings, status, nil, nil, nil),
		noncePool: pool,
	}
}

func profitableResult() relayer.ArbitrageResult {
	return relayer.ArbitrageResult{
		Status: "optimal",
		Pools: []relayer.PoolResult{{
			Deltas:     []float64{0.001, -0.0009},
			Lambdas:    []float64{-0.0015, 0.001},
			TokenIndex: []int{0, 1},
		}},
	}
}

var _ = ginkgo.Describe("transaction landing pipeline", func() {
	ctx := context.Background()

	ginkgo.It("lands a profitable result through a tip-bearing nonce transaction", func() {
		adapter := newPipeAdapter(relayer.ProviderBloxroute)
		tipWallet, err := relayer.GenerateKeypair()
		Expect(err).NotTo(HaveOccurred())
		adapter.meta.HasTipWallet = true
		adapter.meta.TipWallet = tipWallet.Public
		adapter.meta.MinTipAmount = 1_000_000

		p := newPipeline(true, adapter)
		p.status.confirmed = true

		prepared, err := p.preparer.Prepare(ctx, profitableResult())
		Expect(err).NotTo(HaveOccurred())

		res := p.submitter.Submit(ctx, prepared)
		Expect(res.CircuitBreaker).To(BeFalse())
		Expect(res.Outcomes).To(HaveLen(1))
		Expect(res.Outcomes[0].Success).To(BeTrue())

		txs := adapter.transactions()
		Expect(txs).To(HaveLen(1))
		Expect(txs[0].NonceAnchor).To(BeTrue(), "the nonce path is preferred")
		last := txs[0].Instructions[len(txs[0].Instructions)-1]
		Expect(last.Accounts[1].PublicKey).To(Equal(tipWallet.Public), "the tip transfer is appended")

		conf := p.confirm.Run(ctx, res.Outcomes, prepared.Swaps[0].Params)
		Expect(conf.Ratio()).To(Equal(1.0))

		Expect(p.keys.ReturnExplorer(prepared.ExplorerIdentity, true)).To(Succeed())
		Expect(p.keys.retired).To(ConsistOf(prepared.ExplorerIdentity))
	})

	ginkgo.It("abandons the result when every adapter reports the same structural error", func() {
		adapters := []*pipeAdapter{
			newPipeAdapter(relayer.ProviderNative),
			newPipeAdapter(relayer.ProviderHelius),
			newPipeAdapter(relayer.ProviderQuickNode),
		}
		for _, a := range adapters {
			a.failWith = errors.New("InsufficientFundsForFee")
		}

		p := newPipeline(false, adapters...)
		prepared, err := p.preparer.Prepare(ctx, profitableResult())
		Expect(err).NotTo(HaveOccurred())

		res := p.submitter.Submit(ctx, prepared)
		Expect(res.CircuitBreaker).To(BeTrue())
		for _, o := range res.Outcomes {
			Expect(o.Success).To(BeFalse())
		}
		// Matching the relayer loop: a tripped breaker skips confirmation
		// polling entirely.
		Expect(p.status.calls).To(BeZero())
	})

	ginkgo.It("falls back to the blockhash path when the nonce pool is exhausted", func() {
		a1 := newPipeAdapter(relayer.ProviderNative)
		a2 := newPipeAdapter(relayer.ProviderHelius)

		p := newPipeline(false, a1, a2) // no initialized nonce accounts
		prepared, err := p.preparer.Prepare(ctx, profitableResult())
		Expect(err).NotTo(HaveOccurred())

		res := p.submitter.Submit(ctx, prepared)
		Expect(res.Outcomes).To(HaveLen(2))
		for _, a := range []*pipeAdapter{a1, a2} {
			txs := a.transactions()
			Expect(txs).To(HaveLen(1))
			Expect(txs[0].NonceAnchor).To(BeFalse())
		}
		Expect(p.fetcher.calls).To(Equal(2), "the cache is consulted once per adapter")
	})

	ginkgo.It("runs simulate-only without submitting or touching the nonce pool", func() {
		adapter := newPipeAdapter(relayer.ProviderNative)
		p := newPipeline(true, adapter)

		prepared, err := p.preparer.Prepare(ctx, profitableResult())
		Expect(err).NotTo(HaveOccurred())

		outcomes := p.submitter.Simulate(ctx, prepared)
		Expect(outcomes).To(HaveLen(1))
		Expect(outcomes[0].Success).To(BeTrue())

		Expect(adapter.transactions()).To(BeEmpty(), "nothing may be submitted")
		Expect(adapter.simulated).To(Equal(1))
		Expect(p.status.calls).To(BeZero())

		// The nonce entry stays available for the next real submission.
		_, _, err = p.noncePool.Acquire()
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.It("replenishes the explorer pool after consecutive retirements", func() {
		hodl, err := relayer.GenerateKeypair()
		Expect(err).NotTo(HaveOccurred())
		bank, err := relayer.GenerateKeypair()
		Expect(err).NotTo(HaveOccurred())
		settings := &relayer.Settings{
			HODLSecrets:       []string{hodl.Secret()},
			BankSecrets:       []string{bank.Secret()},
			RebalanceInterval: time.Hour,
		}

		client := &pipeKeyClient{balance: 50_000}
		km, err := relayer.NewKeyManager(settings, client, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			id, _, err := km.LeaseExplorer()
			Expect(err).NotTo(HaveOccurred())
			Expect(km.ReturnExplorer(id, true)).To(Succeed())
		}

		km.Rebalance(ctx)

		// Three drains of the used keys' residue plus three funded
		// replacements.
		Expect(client.transfers).To(HaveLen(6))
		Expect(client.transfers[:3]).To(ConsistOf(uint64(45_000), uint64(45_000), uint64(45_000)))
		Expect(client.transfers[3:]).To(ConsistOf(uint64(20_000), uint64(20_000), uint64(20_000)))
	})
})
