// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import "errors"

// Sentinel errors for the relayer's failure classes. Transient RPC errors
// are not sentinels here: they arrive as opaque wrapped errors from the
// underlying transport and are recorded, never classified.
var (
	// ErrNoAvailableNonce is returned by NoncePool.Acquire when every
	// entry is InUse or otherwise unavailable.
	ErrNoAvailableNonce = errors.New("relayer: no available nonce entry")

	// ErrNoAvailableExplorerKey is returned by KeyManager.LeaseExplorer
	// when the Explorer pool is empty.
	ErrNoAvailableExplorerKey = errors.New("relayer: no available explorer key")

	// ErrNotOptimal means the ArbitrageResult's status tag was not
	// "optimal".
	ErrNotOptimal = errors.New("relayer: arbitrage result not optimal")

	// ErrNoProfitablePools means every pool's deltas were within the
	// noise floor, or no pool yielded swap parameters.
	ErrNoProfitablePools = errors.New("relayer: no profitable pools")

	// ErrCircuitBreakerTripped means the Submitter abandoned the result
	// after two or more adapters reported the same structural error.
	ErrCircuitBreakerTripped = errors.New("relayer: circuit breaker tripped")

	// ErrQueueOverflow is logged (not propagated) when the RelayerLoop's
	// FIFO backlog drops its oldest entry.
	ErrQueueOverflow = errors.New("relayer: backlog queue overflow")

	// Structural submission errors; matched by substring
	// against adapter-reported error text because providers do not
	// return typed errors over the wire.
	ErrInsufficientFundsForFee = errors.New("InsufficientFundsForFee")
	ErrInvalidAccount          = errors.New("InvalidAccount")
	ErrAccountNotFound         = errors.New("AccountNotFound")
)

// structuralErrorKeys is the fixed set of substrings the circuit breaker
// matches adapter failure text against.
var structuralErrorKeys = []string{
	ErrInsufficientFundsForFee.Error(),
	ErrInvalidAccount.Error(),
	ErrAccountNotFound.Error(),
}
