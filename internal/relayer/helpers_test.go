// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func mustKeypair(t *testing.T) Keypair {
	t.Helper()
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return kp
}

func testBlockhash(b byte) Blockhash {
	var h Blockhash
	h[0] = b
	return h
}

// testSettings builds a Settings with fast tunables and the given provider
// names active. Nonce/key material is filled in by the individual tests
// that need it.
func testSettings(t *testing.T, active ...ProviderName) *Settings {
	t.Helper()
	providers := make(map[ProviderName]ProviderSettings, len(active))
	for _, name := range active {
		providers[name] = ProviderSettings{Name: name, Active: true, BaseURL: "http://127.0.0.1:0"}
	}
	return &Settings{
		NativeRPCURL: "http://127.0.0.1:0",
		Providers:    providers,

		BlockhashRefreshInterval: 10 * time.Millisecond,
		BlockhashMaxAge:          time.Minute,
		NonceMaintenanceInterval: 10 * time.Millisecond,
		RebalanceInterval:        10 * time.Millisecond,
		RelayerTickInterval:      10 * time.Millisecond,
		ConfirmationDeadline:     200 * time.Millisecond,
		ConfirmationPollInterval: 5 * time.Millisecond,
	}
}

func withNoncePoolSeed(t *testing.T, s *Settings, n int) []PublicKey {
	t.Helper()
	authority := mustKeypair(t)
	s.NonceAuthoritySecret = authority.Secret()

	ids := make([]PublicKey, n)
	for i := range ids {
		kp := mustKeypair(t)
		ids[i] = kp.Public
		s.NonceAccountSecrets = append(s.NonceAccountSecrets, kp.Public.String())
	}
	return ids
}

// fakeFetcher is a scriptable BlockhashFetcher counting its calls.
type fakeFetcher struct {
	mu    sync.Mutex
	hash  Blockhash
	err   error
	calls int
}

func (f *fakeFetcher) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.hash, f.err
}

func (f *fakeFetcher) set(h Blockhash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash = h
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNonceClient models on-chain nonce accounts in memory. Advancing
// bumps the first byte of the value so every advance yields a strictly
// different nonce.
type fakeNonceClient struct {
	mu       sync.Mutex
	accounts map[PublicKey]*fakeNonceAccount
	getErr   error
}

type fakeNonceAccount struct {
	value       Blockhash
	initialized bool
}

func newFakeNonceClient() *fakeNonceClient {
	return &fakeNonceClient{accounts: make(map[PublicKey]*fakeNonceAccount)}
}

func (c *fakeNonceClient) setAccount(id PublicKey, value Blockhash, initialized bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[id] = &fakeNonceAccount{value: value, initialized: initialized}
}

func (c *fakeNonceClient) GetNonceAccount(ctx context.Context, id PublicKey) (Blockhash, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Blockhash{}, false, c.getErr
	}
	a, ok := c.accounts[id]
	if !ok || !a.initialized {
		return Blockhash{}, false, nil
	}
	return a.value, true, nil
}

func (c *fakeNonceClient) InitializeNonceAccount(ctx context.Context, id PublicKey, authority Keypair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.accounts[id]
	if !ok {
		a = &fakeNonceAccount{}
		c.accounts[id] = a
	}
	a.initialized = true
	a.value[0]++
	return nil
}

func (c *fakeNonceClient) AdvanceNonceAccount(ctx context.Context, id PublicKey, authority Keypair) (Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.accounts[id]
	if !ok || !a.initialized {
		return Blockhash{}, fmt.Errorf("fake: nonce account %s not initialized", id)
	}
	a.value[0]++
	return a.value, nil
}

// fakeKeyClient models balances and records transfers.
type fakeKeyClient struct {
	mu             sync.Mutex
	balances       map[PublicKey]uint64
	defaultBalance uint64
	transfers      []fakeTransfer
	transferErr    error
}

type fakeTransfer struct {
	From   PublicKey
	To     PublicKey
	Amount uint64
}

func newFakeKeyClient() *fakeKeyClient {
	return &fakeKeyClient{balances: make(map[PublicKey]uint64)}
}

func (c *fakeKeyClient) GetBalance(ctx context.Context, id PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[id]; ok {
		return b, nil
	}
	return c.defaultBalance, nil
}

func (c *fakeKeyClient) Transfer(ctx context.Context, from Keypair, to PublicKey, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transferErr != nil {
		return c.transferErr
	}
	c.transfers = append(c.transfers, fakeTransfer{From: from.Public, To: to, Amount: amount})
	return nil
}

func (c *fakeKeyClient) transferLog() []fakeTransfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeTransfer(nil), c.transfers...)
}

// fakeStatusClient scripts per-signature confirmation statuses.
type fakeStatusClient struct {
	mu       sync.Mutex
	statuses map[string]fakeStatus
	calls    int
}

type fakeStatus struct {
	confirmed bool
	known     bool
	err       error
}

func newFakeStatusClient() *fakeStatusClient {
	return &fakeStatusClient{statuses: make(map[string]fakeStatus)}
}

func (c *fakeStatusClient) setStatus(sig string, confirmed, known bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[sig] = fakeStatus{confirmed: confirmed, known: known, err: err}
}

func (c *fakeStatusClient) GetSignatureStatus(ctx context.Context, sig string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	s := c.statuses[sig]
	return s.confirmed, s.known, s.err
}

func (c *fakeStatusClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// scriptedAdapter is an in-memory Adapter recording every transaction it
// is handed; errors are scripted per path.
type scriptedAdapter struct {
	meta AdapterMetadata

	mu          sync.Mutex
	sendErr     error
	nonceErr    error
	simErr      error
	sent        []*Transaction
	nonceSent   []*Transaction
	simulated   []*Transaction
	signatureSeq int
}

func newScriptedAdapter(name ProviderName) *scriptedAdapter {
	return &scriptedAdapter{meta: AdapterMetadata{Name: name, Sync: true, Simulatable: true}}
}

func (a *scriptedAdapter) Metadata() AdapterMetadata { return a.meta }

func (a *scriptedAdapter) nextSignature() string {
	a.signatureSeq++
	return fmt.Sprintf("%s-sig-%d", a.meta.Name, a.signatureSeq)
}

func (a *scriptedAdapter) SendTx(ctx context.Context, tx *Transaction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return "", a.sendErr
	}
	a.sent = append(a.sent, tx)
	return a.nextSignature(), nil
}

func (a *scriptedAdapter) SendNonceTx(ctx context.Context, tx *Transaction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nonceErr != nil {
		return "", a.nonceErr
	}
	a.nonceSent = append(a.nonceSent, tx)
	return a.nextSignature(), nil
}

func (a *scriptedAdapter) SimulateTx(ctx context.Context, tx *Transaction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.simErr != nil {
		return "", a.simErr
	}
	a.simulated = append(a.simulated, tx)
	return "simulation ok", nil
}

func (a *scriptedAdapter) sentCount() (plain, nonce, sim int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent), len(a.nonceSent), len(a.simulated)
}

// recordingKeyManager satisfies KeyPoolManager and records every lease and
// return for invariant checks.
type recordingKeyManager struct {
	mu      sync.Mutex
	keys    []Keypair
	leased  []PublicKey
	returns []recordedReturn
	leaseErr error
}

type recordedReturn struct {
	Identity PublicKey
	Retire   bool
}

func newRecordingKeyManager() *recordingKeyManager {
	return &recordingKeyManager{}
}

func (m *recordingKeyManager) LeaseExplorer() (PublicKey, Keypair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leaseErr != nil {
		return PublicKey{}, Keypair{}, m.leaseErr
	}
	kp, err := GenerateKeypair()
	if err != nil {
		return PublicKey{}, Keypair{}, err
	}
	m.keys = append(m.keys, kp)
	m.leased = append(m.leased, kp.Public)
	return kp.Public, kp, nil
}

func (m *recordingKeyManager) ReturnExplorer(identity PublicKey, retire bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns = append(m.returns, recordedReturn{Identity: identity, Retire: retire})
	return nil
}

func (m *recordingKeyManager) Start(ctx context.Context) error { return nil }
func (m *recordingKeyManager) Stop()                           {}

func (m *recordingKeyManager) returnLog() []recordedReturn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedReturn(nil), m.returns...)
}

// optimalResult builds a minimal actionable ArbitrageResult with one
// profitable pool.
func optimalResult() ArbitrageResult {
	return ArbitrageResult{
		Status: "optimal",
		Pools: []PoolResult{{
			PoolIndex:  0,
			Deltas:     []float64{0.001, -0.0009},
			Lambdas:    []float64{-0.0015, 0.001},
			TokenIndex: []int{0, 1},
		}},
	}
}
