// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/luxfi/qtrade-relayer/log"
)

// fixedPointScale converts the solver's real-valued deltas/lambdas into
// integer base units.
const fixedPointScale = 1_000_000

// slippageTolerance is the fixed 1% tolerance applied to min_amount_out.
const slippageTolerance = 0.99

// PreparedSwap is one of Preparer's outputs: the instruction built for one
// profitable pool, paired with the SwapParameters it was built from.
type PreparedSwap struct {
	Params      SwapParameters
	Instruction Instruction
}

// PreparedResult is everything the Submitter needs for one arbitrage
// attempt.
type PreparedResult struct {
	Swaps            []PreparedSwap
	ExplorerIdentity PublicKey
	ExplorerKeypair  Keypair
	EstimatedProfit  float64
}

// Preparer validates an ArbitrageResult and derives signed-ready
// instructions from it.
type Preparer struct {
	keyManager KeyPoolManager
	pools      PoolRegistry
	encoders   EncoderRegistry
	log        log.Logger
}

// NewPreparer constructs a Preparer. pools defaults to DefaultPoolRegistry
// when nil.
func NewPreparer(keyManager KeyPoolManager, pools PoolRegistry, encoders EncoderRegistry, logger log.Logger) *Preparer {
	if logger == nil {
		logger = log.Root()
	}
	if pools == nil {
		pools = DefaultPoolRegistry
	}
	return &Preparer{keyManager: keyManager, pools: pools, encoders: encoders, log: logger}
}

// Prepare validates result and derives one instruction per profitable
// pool. On any failure after a key has been leased, the key is retired
// before returning the error.
func (p *Preparer) Prepare(ctx context.Context, result ArbitrageResult) (*PreparedResult, error) {
	if result.Status != "optimal" {
		return nil, ErrNotOptimal
	}

	anyNontrivial := false
	for _, pool := range result.Pools {
		if pool.HasNontrivialDelta() {
			anyNontrivial = true
			break
		}
	}
	if !anyNontrivial {
		return nil, ErrNoProfitablePools
	}

	var swapParams []SwapParameters
	var profit float64
	for _, pool := range result.Pools {
		if !pool.HasNontrivialDelta() {
			continue
		}

		a, b, ok := determineTokenIndices(pool.Deltas)
		if !ok {
			p.log.Debug("pool skipped: no unique token-index pair", "pool_index", pool.PoolIndex)
			continue
		}

		poolID, variant, found := p.pools.Lookup(pool.PoolIndex)
		if !found {
			p.log.Debug("pool skipped: not found in registry", "pool_index", pool.PoolIndex)
			continue
		}

		amountIn := uint64(math.Abs(pool.Deltas[a]) * fixedPointScale)
		minAmountOut := uint64(math.Abs(pool.Deltas[b]) * slippageTolerance * fixedPointScale)

		globalTokenA, globalTokenB := a, b
		if len(pool.TokenIndex) > a {
			globalTokenA = pool.TokenIndex[a]
		}
		if len(pool.TokenIndex) > b {
			globalTokenB = pool.TokenIndex[b]
		}

		sp := SwapParameters{
			Pool:         poolID,
			Variant:      variant,
			UserA:        syntheticAccount(pool.PoolIndex, globalTokenA, "user"),
			MintA:        syntheticAccount(pool.PoolIndex, globalTokenA, "mint"),
			VaultA:       syntheticAccount(pool.PoolIndex, globalTokenA, "vault"),
			UserB:        syntheticAccount(pool.PoolIndex, globalTokenB, "user"),
			MintB:        syntheticAccount(pool.PoolIndex, globalTokenB, "mint"),
			VaultB:       syntheticAccount(pool.PoolIndex, globalTokenB, "vault"),
			AmountIn:     amountIn,
			MinAmountOut: minAmountOut,
			AToB:         pool.Deltas[a] > 0,
			ExactIn:      true,
		}
		swapParams = append(swapParams, sp)

		for i, d := range pool.Deltas {
			if d > deltaEpsilon && pool.Lambdas[i] < 0 {
				profit += math.Abs(pool.Lambdas[i]) - d
			}
		}
	}

	if len(swapParams) == 0 {
		return nil, ErrNoProfitablePools
	}

	explorerID, explorerKey, err := p.keyManager.LeaseExplorer()
	if err != nil {
		return nil, fmt.Errorf("relayer: prepare: %w", err)
	}

	prepared := &PreparedResult{
		ExplorerIdentity: explorerID,
		ExplorerKeypair:  explorerKey,
		EstimatedProfit:  profit,
	}

	for i := range swapParams {
		sp := swapParams[i]
		sp.EstimatedProfit = profit
		encoder, ok := p.encoders.EncoderFor(sp.Variant)
		if !ok {
			p.log.Error("no encoder registered for dex variant", "variant", sp.Variant)
			_ = p.keyManager.ReturnExplorer(explorerID, true)
			return nil, fmt.Errorf("relayer: prepare: no encoder for variant %s", sp.Variant)
		}
		ix, err := encoder.Encode(sp, explorerID)
		if err != nil {
			p.log.Error("encoder failed, aborting result", "variant", sp.Variant, "err", err)
			_ = p.keyManager.ReturnExplorer(explorerID, true)
			return nil, fmt.Errorf("relayer: prepare: encoder failed: %w", err)
		}
		prepared.Swaps = append(prepared.Swaps, PreparedSwap{Params: sp, Instruction: ix})
	}

	p.log.Info("prepared arbitrage result", "pools", len(prepared.Swaps), "estimated_profit", profit, "explorer", explorerID)
	return prepared, nil
}

// determineTokenIndices finds (a, b) in a single linear scan: the last
// positive-delta index seen wins as a, the last negative-delta index seen
// wins as b.
func determineTokenIndices(deltas []float64) (a, b int, ok bool) {
	aFound, bFound := false, false
	for i, d := range deltas {
		switch {
		case d > deltaEpsilon:
			a, aFound = i, true
		case d < -deltaEpsilon:
			b, bFound = i, true
		}
	}
	return a, b, aFound && bFound
}

// syntheticAccount derives a stable placeholder account identity from a
// pool index, a global token index, and a role tag (user/mint/vault),
// mirroring syntheticPoolRegistry; a real pool registry would replace
// this with actual on-chain account lookups.
func syntheticAccount(poolIndex, tokenIndex int, role string) PublicKey {
	sum := sha256.Sum256([]byte(fmt.Sprintf("pool-%d-token-%d-%s", poolIndex, tokenIndex, role)))
	return PublicKey(sum)
}
