// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/qtrade-relayer/log"
)

// circuitBreakerThreshold is the per-structural-error-key count that trips
// the breaker.
const circuitBreakerThreshold = 2

// Submitter builds and submits transactions to every active adapter, one
// adapter at a time, preferring the nonce path over the blockhash path.
type Submitter struct {
	registry  *Registry
	noncePool *NoncePool
	blockhash *BlockhashCache
	log       log.Logger
	metrics   *Metrics
}

// NewSubmitter constructs a Submitter wired to the shared NoncePool and
// BlockhashCache singletons.
func NewSubmitter(registry *Registry, noncePool *NoncePool, blockhash *BlockhashCache, metrics *Metrics, logger log.Logger) *Submitter {
	if logger == nil {
		logger = log.Root()
	}
	return &Submitter{registry: registry, noncePool: noncePool, blockhash: blockhash, metrics: metrics, log: logger}
}

// SubmitResult is the Submitter's output: every adapter's outcome plus
// whether the circuit breaker tripped.
type SubmitResult struct {
	Outcomes       []AdapterOutcome
	CircuitBreaker bool
}

// Simulate runs the simulate-only path: every active, simulation-capable
// adapter simulates the built transaction; no submission, no nonce
// acquisition.
func (s *Submitter) Simulate(ctx context.Context, prepared *PreparedResult) []AdapterOutcome {
	instructions := collectInstructions(prepared)
	outcomes := make([]AdapterOutcome, 0)

	for _, a := range s.registry.Active() {
		sim, ok := a.(Simulator)
		if !ok || !a.Metadata().Simulatable {
			continue
		}
		tx, err := s.buildBlockhashTx(ctx, instructions, prepared, a.Metadata())
		if err != nil {
			outcomes = append(outcomes, AdapterOutcome{Provider: string(a.Metadata().Name), Success: false, Err: err})
			continue
		}
		result, err := sim.SimulateTx(ctx, tx)
		if err != nil {
			outcomes = append(outcomes, AdapterOutcome{Provider: string(a.Metadata().Name), Success: false, Err: err})
			continue
		}
		outcomes = append(outcomes, AdapterOutcome{Provider: string(a.Metadata().Name), Success: true, Signature: result})
	}
	return outcomes
}

// Submit runs the submit path: for each active adapter, in the fixed
// allowlist order, try nonce then fall back to blockhash. Adapters are
// iterated sequentially, never fanned out, to keep nonce-pool
// interactions serialized.
func (s *Submitter) Submit(ctx context.Context, prepared *PreparedResult) SubmitResult {
	instructions := collectInstructions(prepared)
	outcomes := make([]AdapterOutcome, 0, len(s.registry.Active()))

	for _, a := range s.registry.Active() {
		meta := a.Metadata()
		outcome := s.submitOne(ctx, a, meta, instructions, prepared)
		outcomes = append(outcomes, outcome)
		if s.metrics != nil {
			result := "success"
			if !outcome.Success {
				result = "failure"
			}
			s.metrics.adapterOutcomeTotal.WithLabelValues(string(meta.Name), result).Inc()
		}
	}

	tripped := s.circuitBreakerTripped(outcomes)
	if tripped && s.metrics != nil {
		s.metrics.circuitBreakerTrips.Inc()
	}
	return SubmitResult{Outcomes: outcomes, CircuitBreaker: tripped}
}

func (s *Submitter) submitOne(ctx context.Context, a Adapter, meta AdapterMetadata, instructions []Instruction, prepared *PreparedResult) AdapterOutcome {
	nonceIdentity, nonceValue, nonceErr := s.noncePool.Acquire()
	if nonceErr == nil {
		tx := s.buildNonceTx(instructions, prepared, nonceIdentity, nonceValue, meta)
		sig, err := s.dispatch(ctx, a, tx, true)
		// Released to NeedsAdvance regardless of outcome; the on-chain
		// advance lands as a side effect of the transaction this call
		// just attempted.
		if releaseErr := s.noncePool.Release(nonceIdentity); releaseErr != nil {
			s.log.Error("failed to release nonce entry after submit", "identity", nonceIdentity, "err", releaseErr)
		}
		if err == nil {
			s.log.Info("submitted nonce transaction", "provider", meta.Name, "signature", sig)
			return AdapterOutcome{Provider: string(meta.Name), Success: true, Signature: sig}
		}
		s.log.Warn("nonce transaction submission failed, falling back to blockhash", "provider", meta.Name, "err", err)
	}

	tx, err := s.buildBlockhashTx(ctx, instructions, prepared, meta)
	if err != nil {
		return AdapterOutcome{Provider: string(meta.Name), Success: false, Err: err}
	}
	sig, err := s.dispatch(ctx, a, tx, false)
	if err != nil {
		return AdapterOutcome{Provider: string(meta.Name), Success: false, Err: err}
	}
	s.log.Info("submitted blockhash transaction", "provider", meta.Name, "signature", sig)
	return AdapterOutcome{Provider: string(meta.Name), Success: true, Signature: sig}
}

// txSender is the send capability shared by SyncAdapter and AsyncAdapter;
// the sync/async distinction lives in AdapterMetadata, not in the method
// set, so dispatch needs only one assertion.
type txSender interface {
	SendTx(ctx context.Context, tx *Transaction) (string, error)
	SendNonceTx(ctx context.Context, tx *Transaction) (string, error)
}

func (s *Submitter) dispatch(ctx context.Context, a Adapter, tx *Transaction, nonce bool) (string, error) {
	sender, ok := a.(txSender)
	if !ok {
		return "", errAdapterUnsupported
	}
	if nonce {
		return sender.SendNonceTx(ctx, tx)
	}
	return sender.SendTx(ctx, tx)
}

func (s *Submitter) buildNonceTx(instructions []Instruction, prepared *PreparedResult, nonceIdentity PublicKey, nonceValue Blockhash, meta AdapterMetadata) *Transaction {
	ixs := append([]Instruction{NonceAdvanceInstruction(nonceIdentity, s.noncePool.Authority().Public, recentBlockhashesSysvar)}, instructions...)
	ixs = appendTipInstruction(ixs, prepared.ExplorerIdentity, meta)

	tx := &Transaction{
		Instructions: ixs,
		FeePayer:     prepared.ExplorerIdentity,
		Blockhash:    nonceValue,
		NonceAnchor:  true,
	}
	tx.Sign(prepared.ExplorerKeypair, s.noncePool.Authority())
	return tx
}

func (s *Submitter) buildBlockhashTx(ctx context.Context, instructions []Instruction, prepared *PreparedResult, meta AdapterMetadata) (*Transaction, error) {
	hash, err := s.blockhash.Get(ctx)
	if err != nil {
		return nil, err
	}
	ixs := appendTipInstruction(instructions, prepared.ExplorerIdentity, meta)
	tx := &Transaction{
		Instructions: ixs,
		FeePayer:     prepared.ExplorerIdentity,
		Blockhash:    hash,
	}
	tx.Sign(prepared.ExplorerKeypair)
	return tx, nil
}

// appendTipInstruction appends a tip transfer to the fee-payer-signed
// instruction set when the adapter has a tip wallet. The input slice is
// copied, never mutated in place, since it is shared across every adapter
// in one submit loop.
func appendTipInstruction(instructions []Instruction, feePayer PublicKey, meta AdapterMetadata) []Instruction {
	if !meta.HasTipWallet {
		return instructions
	}
	out := make([]Instruction, len(instructions), len(instructions)+1)
	copy(out, instructions)
	return append(out, systemTransferInstruction(feePayer, meta.TipWallet, meta.MinTipAmount))
}

// circuitBreakerTripped builds a per-structural-error-key count from every
// failed outcome's message and trips when any single key reaches
// circuitBreakerThreshold.
func (s *Submitter) circuitBreakerTripped(outcomes []AdapterOutcome) bool {
	counts := make(map[string]int, len(structuralErrorKeys))
	keys := mapset.NewSet[string](structuralErrorKeys...)

	for _, o := range outcomes {
		if o.Success {
			continue
		}
		text := o.Text()
		keys.Each(func(key string) bool {
			if strings.Contains(text, key) {
				counts[key]++
			}
			return false
		})
	}

	for _, n := range counts {
		if n >= circuitBreakerThreshold {
			return true
		}
	}
	return false
}

func collectInstructions(prepared *PreparedResult) []Instruction {
	out := make([]Instruction, 0, len(prepared.Swaps))
	for _, sw := range prepared.Swaps {
		out = append(out, sw.Instruction)
	}
	return out
}

// recentBlockhashesSysvar is the well-known sysvar account referenced by
// the nonce-advance instruction; a placeholder identity like
// systemProgramID.
var recentBlockhashesSysvar = syntheticIdentity("recent-blockhashes-sysvar")

var errAdapterUnsupported = &submitterError{"relayer: adapter implements neither SyncAdapter nor AsyncAdapter"}

type submitterError struct{ msg string }

func (e *submitterError) Error() string { return e.msg }
