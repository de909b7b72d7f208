// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import "time"

// ProviderName is a case-insensitive label identifying an RpcAdapter
// variant.
type ProviderName string

const (
	ProviderNative    ProviderName = "native"
	ProviderHelius    ProviderName = "helius"
	ProviderQuickNode ProviderName = "quicknode"
	ProviderTemporal  ProviderName = "temporal"
	ProviderJito      ProviderName = "jito"
	ProviderBloxroute ProviderName = "bloxroute"
	ProviderNextblock ProviderName = "nextblock"
)

// submitOrder is the fixed adapter iteration order for the submit path.
var submitOrder = []ProviderName{
	ProviderNative, ProviderHelius, ProviderQuickNode, ProviderTemporal,
	ProviderJito, ProviderBloxroute, ProviderNextblock,
}

// ProviderSettings is one provider's slice of the configuration surface:
// API key/URL, and whether the provider is in the active allowlist.
type ProviderSettings struct {
	Name    ProviderName
	Active  bool
	APIKey  string
	BaseURL string
}

// Settings is the single struct threaded through every component
// constructor: no component reads environment variables directly.
type Settings struct {
	NativeRPCURL string

	Providers map[ProviderName]ProviderSettings

	// Nonce pool seed material.
	NonceAccountSecrets []string // base58 nonce-account identities
	NonceAuthoritySecret string  // base58 keypair secret

	// Tiered key-pool seed material.
	HODLSecrets     []string
	BankSecrets     []string
	ExplorerSecrets []string

	SimulateOnly bool

	SingleWalletMode   bool
	SingleWalletSecret string

	// DEX allowlist affects encoder selection; empty means all known
	// variants are active.
	ActiveDexVariants []DexVariant

	// Tunables; zero values fall back to the package defaults documented
	// alongside each component.
	BlockhashRefreshInterval time.Duration
	BlockhashMaxAge          time.Duration
	NonceMaintenanceInterval time.Duration
	RebalanceInterval        time.Duration
	RelayerTickInterval      time.Duration
	ConfirmationDeadline     time.Duration
	ConfirmationPollInterval time.Duration
}

// IsProviderActive reports whether name is in the configured allowlist.
// Case-insensitive by construction: ProviderName values are normalized to
// lower case when settings are loaded.
func (s *Settings) IsProviderActive(name ProviderName) bool {
	p, ok := s.Providers[name]
	return ok && p.Active
}

func (s *Settings) provider(name ProviderName) ProviderSettings {
	return s.Providers[name]
}

const (
	defaultBlockhashRefreshInterval = time.Second
	defaultBlockhashMaxAge          = 90 * time.Second
	defaultNonceMaintenanceInterval = 5 * time.Second
	defaultRebalanceInterval        = 60 * time.Second
	defaultRelayerTickInterval      = 60 * time.Second
	defaultConfirmationDeadline     = 30 * time.Second
	defaultConfirmationPollInterval = 500 * time.Millisecond

	minExplorerKeys        = 5
	explorerKeysToCreate    = 3
	usedKeyDrainThreshold   = uint64(10_000)
	estimatedFeeReserve     = uint64(5_000)

	tipFloorLamports = uint64(1_000_000)

	maxQueueSize = 100
)

func (s *Settings) blockhashRefreshInterval() time.Duration {
	if s.BlockhashRefreshInterval > 0 {
		return s.BlockhashRefreshInterval
	}
	return defaultBlockhashRefreshInterval
}

func (s *Settings) blockhashMaxAge() time.Duration {
	if s.BlockhashMaxAge > 0 {
		return s.BlockhashMaxAge
	}
	return defaultBlockhashMaxAge
}

func (s *Settings) nonceMaintenanceInterval() time.Duration {
	if s.NonceMaintenanceInterval > 0 {
		return s.NonceMaintenanceInterval
	}
	return defaultNonceMaintenanceInterval
}

func (s *Settings) rebalanceInterval() time.Duration {
	if s.RebalanceInterval > 0 {
		return s.RebalanceInterval
	}
	return defaultRebalanceInterval
}

func (s *Settings) relayerTickInterval() time.Duration {
	if s.RelayerTickInterval > 0 {
		return s.RelayerTickInterval
	}
	return defaultRelayerTickInterval
}

func (s *Settings) confirmationDeadline() time.Duration {
	if s.ConfirmationDeadline > 0 {
		return s.ConfirmationDeadline
	}
	return defaultConfirmationDeadline
}

func (s *Settings) confirmationPollInterval() time.Duration {
	if s.ConfirmationPollInterval > 0 {
		return s.ConfirmationPollInterval
	}
	return defaultConfirmationPollInterval
}
