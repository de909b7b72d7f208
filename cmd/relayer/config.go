// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/luxfi/qtrade-relayer/internal/relayer"
)

// loadSettings builds a relayer.Settings from viper-bound TOML/env
// configuration. Provider names are normalized to lower case here so
// relayer.Registry.IsActive's allowlist check can stay a plain map
// lookup.
func loadSettings(v *viper.Viper) (*relayer.Settings, error) {
	s := &relayer.Settings{
		NativeRPCURL:         v.GetString("native_rpc_url"),
		NonceAccountSecrets:  splitCSV(v.GetString("nonce_accounts")),
		NonceAuthoritySecret: v.GetString("nonce_authority_secret"),
		HODLSecrets:          splitCSV(v.GetString("hodl_secrets")),
		BankSecrets:          splitCSV(v.GetString("bank_secrets")),
		ExplorerSecrets:      splitCSV(v.GetString("explorer_secrets")),
		SimulateOnly:         v.GetBool("simulate_only"),
		SingleWalletMode:     v.GetBool("single_wallet_mode"),
		SingleWalletSecret:   v.GetString("single_wallet_secret"),

		// Timing tunables; unset keys stay zero and fall back to the
		// package defaults. cast parses duration strings such as "90s";
		// a bare integer is read as nanoseconds.
		BlockhashRefreshInterval: cast.ToDuration(v.Get("blockhash_refresh_interval")),
		BlockhashMaxAge:          cast.ToDuration(v.Get("blockhash_max_age")),
		NonceMaintenanceInterval: cast.ToDuration(v.Get("nonce_maintenance_interval")),
		RebalanceInterval:        cast.ToDuration(v.Get("rebalance_interval")),
		RelayerTickInterval:      cast.ToDuration(v.Get("relayer_tick_interval")),
		ConfirmationDeadline:     cast.ToDuration(v.Get("confirmation_deadline")),
		ConfirmationPollInterval: cast.ToDuration(v.Get("confirmation_poll_interval")),
	}

	for _, label := range splitCSV(v.GetString("active_dexes")) {
		if variant, ok := relayer.ParseDexVariant(strings.ToLower(label)); ok {
			s.ActiveDexVariants = append(s.ActiveDexVariants, variant)
		}
	}

	allowlist := splitCSV(v.GetString("active_providers"))
	active := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		active[strings.ToLower(name)] = true
	}

	s.Providers = map[relayer.ProviderName]relayer.ProviderSettings{
		relayer.ProviderNative: {
			Name:    relayer.ProviderNative,
			Active:  active["native"],
			BaseURL: s.NativeRPCURL,
		},
		relayer.ProviderHelius: {
			Name:    relayer.ProviderHelius,
			Active:  active["helius"],
			APIKey:  v.GetString("helius_api_key"),
			BaseURL: v.GetString("helius_base_url"),
		},
		relayer.ProviderQuickNode: {
			Name:    relayer.ProviderQuickNode,
			Active:  active["quicknode"],
			APIKey:  v.GetString("quicknode_api_key"),
			BaseURL: v.GetString("quicknode_base_url"),
		},
		relayer.ProviderTemporal: {
			Name:    relayer.ProviderTemporal,
			Active:  active["temporal"],
			APIKey:  v.GetString("temporal_api_key"),
			BaseURL: v.GetString("temporal_base_url"),
		},
		relayer.ProviderJito: {
			Name:    relayer.ProviderJito,
			Active:  active["jito"],
			APIKey:  v.GetString("jito_uuid"),
			BaseURL: v.GetString("jito_base_url"),
		},
		relayer.ProviderBloxroute: {
			Name:    relayer.ProviderBloxroute,
			Active:  active["bloxroute"],
			APIKey:  v.GetString("bloxroute_api_key"),
			BaseURL: v.GetString("bloxroute_base_url"),
		},
		relayer.ProviderNextblock: {
			Name:    relayer.ProviderNextblock,
			Active:  active["nextblock"],
			APIKey:  v.GetString("nextblock_api_key"),
			BaseURL: v.GetString("nextblock_base_url"),
		},
	}

	if !s.SingleWalletMode {
		if s.NativeRPCURL == "" {
			return nil, fmt.Errorf("relayer: native_rpc_url is required")
		}
	}
	return s, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
