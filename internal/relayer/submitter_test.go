// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// submitterFixture wires a Submitter around scripted adapters, a nonce
// pool with every entry Available, and a blockhash cache backed by a fake
// fetcher.
type submitterFixture struct {
	submitter *Submitter
	pool      *NoncePool
	fetcher   *fakeFetcher
	prepared  *PreparedResult
	nonceIDs  []PublicKey
}

func newSubmitterFixture(t *testing.T, nonceCount int, adapters ...*scriptedAdapter) *submitterFixture {
	t.Helper()

	names := make([]ProviderName, 0, len(adapters))
	regAdapters := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.meta.Name)
		regAdapters = append(regAdapters, a)
	}

	settings := testSettings(t, names...)
	ids := withNoncePoolSeed(t, settings, max(nonceCount, 1))
	pool, err := NewNoncePool(settings, newFakeNonceClient(), nil, nil)
	require.NoError(t, err)

	pool.mu.Lock()
	for i, id := range ids {
		if i < nonceCount {
			pool.entries[id].State = Available
			pool.entries[id].Value = testBlockhash(byte(100 + i))
		}
	}
	pool.mu.Unlock()

	fetcher := &fakeFetcher{hash: testBlockhash(42)}
	cache := NewBlockhashCache(settings, fetcher, nil, nil)

	registry := NewRegistry(settings, nil, regAdapters...)
	submitter := NewSubmitter(registry, pool, cache, nil, nil)

	explorer := mustKeypair(t)
	prepared := &PreparedResult{
		ExplorerIdentity: explorer.Public,
		ExplorerKeypair:  explorer,
		Swaps: []PreparedSwap{{
			Params: SwapParameters{AmountIn: 1000, MinAmountOut: 891},
			Instruction: Instruction{
				ProgramID: mustKeypair(t).Public,
				Data:      []byte{1, 2, 3},
			},
		}},
	}

	return &submitterFixture{
		submitter: submitter,
		pool:      pool,
		fetcher:   fetcher,
		prepared:  prepared,
		nonceIDs:  ids,
	}
}

func TestSubmitterPrefersNoncePath(t *testing.T) {
	adapter := newScriptedAdapter(ProviderNative)
	fx := newSubmitterFixture(t, 1, adapter)

	res := fx.submitter.Submit(context.Background(), fx.prepared)
	require.Len(t, res.Outcomes, 1)
	require.True(t, res.Outcomes[0].Success)
	require.False(t, res.CircuitBreaker)

	plain, nonce, _ := adapter.sentCount()
	require.Zero(t, plain)
	require.Equal(t, 1, nonce)

	tx := adapter.nonceSent[0]
	require.True(t, tx.NonceAnchor)
	require.Equal(t, testBlockhash(100), tx.Blockhash)
	require.Equal(t, fx.prepared.ExplorerIdentity, tx.FeePayer)
	require.Len(t, tx.Signatures, 2) // explorer + nonce authority

	// The nonce-advance instruction is prepended.
	require.Equal(t, systemProgramID, tx.Instructions[0].ProgramID)
	require.Equal(t, []byte{4, 0, 0, 0}, tx.Instructions[0].Data)

	// The entry is parked NeedsAdvance until maintenance observes the
	// on-chain advance.
	fx.pool.mu.Lock()
	require.Equal(t, NeedsAdvance, fx.pool.entries[fx.nonceIDs[0]].State)
	fx.pool.mu.Unlock()
}

func TestSubmitterFallsBackToBlockhashOnExhaustion(t *testing.T) {
	a1 := newScriptedAdapter(ProviderNative)
	a2 := newScriptedAdapter(ProviderHelius)
	fx := newSubmitterFixture(t, 0, a1, a2)

	res := fx.submitter.Submit(context.Background(), fx.prepared)
	require.Len(t, res.Outcomes, 2)
	for _, o := range res.Outcomes {
		require.True(t, o.Success)
	}

	for _, a := range []*scriptedAdapter{a1, a2} {
		plain, nonce, _ := a.sentCount()
		require.Equal(t, 1, plain)
		require.Zero(t, nonce)
		require.False(t, a.sent[0].NonceAnchor)
		require.Equal(t, testBlockhash(42), a.sent[0].Blockhash)
	}
	// The cache was never started, so each adapter's build consults the
	// fetcher directly: once per adapter.
	require.Equal(t, 2, fx.fetcher.callCount())
}

func TestSubmitterNonceSubmitFailureFallsBack(t *testing.T) {
	adapter := newScriptedAdapter(ProviderNative)
	adapter.nonceErr = errors.New("stale nonce")
	fx := newSubmitterFixture(t, 1, adapter)

	res := fx.submitter.Submit(context.Background(), fx.prepared)
	require.Len(t, res.Outcomes, 1)
	require.True(t, res.Outcomes[0].Success)

	plain, nonce, _ := adapter.sentCount()
	require.Equal(t, 1, plain)
	require.Zero(t, nonce)

	// The nonce was consumed by the attempt and must be released to
	// NeedsAdvance even though the submit failed.
	fx.pool.mu.Lock()
	require.Equal(t, NeedsAdvance, fx.pool.entries[fx.nonceIDs[0]].State)
	fx.pool.mu.Unlock()
}

func TestSubmitterAppendsTipInstruction(t *testing.T) {
	adapter := newScriptedAdapter(ProviderBloxroute)
	tip := mustKeypair(t).Public
	adapter.meta.HasTipWallet = true
	adapter.meta.TipWallet = tip
	adapter.meta.MinTipAmount = tipFloorLamports
	fx := newSubmitterFixture(t, 1, adapter)

	fx.submitter.Submit(context.Background(), fx.prepared)

	_, nonce, _ := adapter.sentCount()
	require.Equal(t, 1, nonce)
	tx := adapter.nonceSent[0]

	last := tx.Instructions[len(tx.Instructions)-1]
	require.Equal(t, systemProgramID, last.ProgramID)
	require.Len(t, last.Accounts, 2)
	require.Equal(t, fx.prepared.ExplorerIdentity, last.Accounts[0].PublicKey)
	require.Equal(t, tip, last.Accounts[1].PublicKey)

	// The prepared result itself is left untouched: still one swap.
	require.Len(t, fx.prepared.Swaps, 1)
}

func TestSubmitterCircuitBreaker(t *testing.T) {
	structural := errors.New("rpc error: AccountNotFound for address")

	a1 := newScriptedAdapter(ProviderNative)
	a1.sendErr, a1.nonceErr = structural, structural
	a2 := newScriptedAdapter(ProviderHelius)
	a2.sendErr, a2.nonceErr = structural, structural

	fx := newSubmitterFixture(t, 0, a1, a2)
	res := fx.submitter.Submit(context.Background(), fx.prepared)
	require.True(t, res.CircuitBreaker, "two identical structural errors must trip the breaker")

	// Two different structural keys do not trip it.
	b1 := newScriptedAdapter(ProviderNative)
	b1.sendErr, b1.nonceErr = errors.New("AccountNotFound"), errors.New("AccountNotFound")
	b2 := newScriptedAdapter(ProviderHelius)
	b2.sendErr, b2.nonceErr = errors.New("InvalidAccount"), errors.New("InvalidAccount")

	fx = newSubmitterFixture(t, 0, b1, b2)
	res = fx.submitter.Submit(context.Background(), fx.prepared)
	require.False(t, res.CircuitBreaker)

	// Transient failures never contribute.
	c1 := newScriptedAdapter(ProviderNative)
	c1.sendErr, c1.nonceErr = errors.New("connection reset"), errors.New("connection reset")
	c2 := newScriptedAdapter(ProviderHelius)
	c2.sendErr, c2.nonceErr = errors.New("timeout"), errors.New("timeout")

	fx = newSubmitterFixture(t, 0, c1, c2)
	res = fx.submitter.Submit(context.Background(), fx.prepared)
	require.False(t, res.CircuitBreaker)
}

func TestSubmitterNonceTxDeterministic(t *testing.T) {
	adapter := newScriptedAdapter(ProviderNative)
	fx := newSubmitterFixture(t, 1, adapter)

	instructions := collectInstructions(fx.prepared)
	meta := adapter.Metadata()

	tx1 := fx.submitter.buildNonceTx(instructions, fx.prepared, fx.nonceIDs[0], testBlockhash(100), meta)
	tx2 := fx.submitter.buildNonceTx(instructions, fx.prepared, fx.nonceIDs[0], testBlockhash(100), meta)
	require.Equal(t, tx1.Encode(), tx2.Encode(), "same inputs must yield byte-identical transactions")

	tx3 := fx.submitter.buildNonceTx(instructions, fx.prepared, fx.nonceIDs[0], testBlockhash(101), meta)
	require.NotEqual(t, tx1.Encode(), tx3.Encode())
}

func TestSubmitterSimulateSkipsNonceAcquisition(t *testing.T) {
	simulatable := newScriptedAdapter(ProviderNative)
	opaque := newScriptedAdapter(ProviderHelius)
	opaque.meta.Simulatable = false

	fx := newSubmitterFixture(t, 1, simulatable, opaque)
	outcomes := fx.submitter.Simulate(context.Background(), fx.prepared)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success)
	require.Equal(t, string(ProviderNative), outcomes[0].Provider)

	_, _, sims := simulatable.sentCount()
	require.Equal(t, 1, sims)
	plain, nonce, _ := simulatable.sentCount()
	require.Zero(t, plain)
	require.Zero(t, nonce)

	// Simulation never touches the nonce pool.
	fx.pool.mu.Lock()
	require.Equal(t, Available, fx.pool.entries[fx.nonceIDs[0]].State)
	fx.pool.mu.Unlock()
}
