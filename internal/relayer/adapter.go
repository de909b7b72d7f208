// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"crypto/sha256"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/qtrade-relayer/log"
)

// AdapterMetadata is the common accessor every RpcAdapter variant exposes
// regardless of its sync/async transport.
type AdapterMetadata struct {
	Name         ProviderName
	Sync         bool
	Simulatable  bool
	HasTipWallet bool
	TipWallet    PublicKey
	MinTipAmount uint64
}

// Adapter is the narrow common interface both SyncAdapter and AsyncAdapter
// embed.
type Adapter interface {
	Metadata() AdapterMetadata
}

// SyncAdapter covers the JSON-RPC providers that return a result inline
// (Native, Helius, QuickNode, Temporal).
type SyncAdapter interface {
	Adapter
	SendTx(ctx context.Context, tx *Transaction) (string, error)
	SendNonceTx(ctx context.Context, tx *Transaction) (string, error)
}

// AsyncAdapter covers the REST/bundle relays (Jito, Bloxroute, Nextblock).
// Their wire calls are still performed synchronously from Go's point of
// view — the "async" distinction is the provider's own settlement model,
// not a Go concurrency primitive — and the Submitter awaits each
// sequentially because the nonce pool is not reentrant.
type AsyncAdapter interface {
	Adapter
	SendTx(ctx context.Context, tx *Transaction) (string, error)
	SendNonceTx(ctx context.Context, tx *Transaction) (string, error)
}

// Simulator is implemented by whichever adapters support the simulate
// path (Native, Helius, Nextblock), independent of whether they are
// otherwise sync or async transports.
type Simulator interface {
	Adapter
	SimulateTx(ctx context.Context, tx *Transaction) (string, error)
}

// Registry is a uniform facade over the heterogeneous adapter set: a
// string-keyed table of providers gated by the configured allowlist.
type Registry struct {
	settings *Settings
	adapters map[ProviderName]Adapter
	log      log.Logger
}

// NewRegistry builds the registry from the given concrete adapters, keyed
// by their own metadata name.
func NewRegistry(settings *Settings, logger log.Logger, adapters ...Adapter) *Registry {
	if logger == nil {
		logger = log.Root()
	}
	r := &Registry{settings: settings, adapters: make(map[ProviderName]Adapter), log: logger}
	for _, a := range adapters {
		r.adapters[a.Metadata().Name] = a
	}
	return r
}

// IsActive reports whether name is in the configured allowlist.
func (r *Registry) IsActive(name ProviderName) bool {
	return r.settings.IsProviderActive(name)
}

// Get returns the adapter registered for name, if any.
func (r *Registry) Get(name ProviderName) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Active returns every registered adapter that is in the allowlist, in
// the fixed submit order.
func (r *Registry) Active() []Adapter {
	out := make([]Adapter, 0, len(submitOrder))
	for _, name := range submitOrder {
		a, ok := r.adapters[name]
		if !ok || !r.IsActive(name) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ActiveNames returns the allowlisted provider names as a set, used by
// tests to assert coverage.
func (r *Registry) ActiveNames() mapset.Set[ProviderName] {
	s := mapset.NewSet[ProviderName]()
	for _, a := range r.Active() {
		s.Add(a.Metadata().Name)
	}
	return s
}

// Well-known tip-wallet public keys, static per provider and compiled in
// as constants. These are placeholder identities derived deterministically
// so tests are reproducible without a real deployment.
var (
	bloxrouteTipWallet = syntheticIdentity("bloxroute-tip-wallet")
	nextblockTipWallet = syntheticIdentity("nextblock-tip-wallet")
)

func syntheticIdentity(seed string) PublicKey {
	return PublicKey(sha256.Sum256([]byte(seed)))
}
