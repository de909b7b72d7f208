// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"

	"github.com/luxfi/qtrade-relayer/internal/relayer/rpcclient"
	"github.com/luxfi/qtrade-relayer/log"
)

// premiumAdapter is the shared shape of the three URL-keyed JSON-RPC
// providers (Helius, QuickNode, Temporal): same sync transport as
// NativeAdapter, differing only in endpoint/auth and whether they support
// simulation.
type premiumAdapter struct {
	name        ProviderName
	client      *rpcclient.Client
	simulatable bool
	log         log.Logger
}

func newPremiumAdapter(name ProviderName, settings *Settings, simulatable bool, logger log.Logger) (*premiumAdapter, error) {
	if logger == nil {
		logger = log.Root()
	}
	p := settings.provider(name)
	if p.BaseURL == "" {
		return nil, fmt.Errorf("relayer: %s adapter: no base URL configured", name)
	}
	// URL-key auth: the API key is appended as a query parameter rather
	// than a header, matching the providers' "?api-key=" convention.
	endpoint := p.BaseURL
	if p.APIKey != "" {
		endpoint = endpoint + "?api-key=" + p.APIKey
	}
	c, err := rpcclient.New(endpoint)
	if err != nil {
		return nil, fmt.Errorf("relayer: %s adapter: %w", name, err)
	}
	return &premiumAdapter{name: name, client: c, simulatable: simulatable, log: logger}, nil
}

// NewHeliusAdapter constructs the Helius premium RPC adapter.
func NewHeliusAdapter(settings *Settings, logger log.Logger) (SyncAdapter, error) {
	return newPremiumAdapter(ProviderHelius, settings, true, logger)
}

// NewQuickNodeAdapter constructs the QuickNode premium RPC adapter.
func NewQuickNodeAdapter(settings *Settings, logger log.Logger) (SyncAdapter, error) {
	return newPremiumAdapter(ProviderQuickNode, settings, false, logger)
}

// NewTemporalAdapter constructs the Temporal premium RPC adapter.
func NewTemporalAdapter(settings *Settings, logger log.Logger) (SyncAdapter, error) {
	return newPremiumAdapter(ProviderTemporal, settings, false, logger)
}

func (a *premiumAdapter) Metadata() AdapterMetadata {
	return AdapterMetadata{Name: a.name, Sync: true, Simulatable: a.simulatable}
}

func (a *premiumAdapter) SendTx(ctx context.Context, tx *Transaction) (string, error) {
	var reply sendTxReply
	if err := a.client.Call(ctx, "chain.sendTransaction", sendTxParams{Tx: tx.Encode()}, &reply); err != nil {
		return "", fmt.Errorf("%s: send tx: %w", a.name, err)
	}
	return reply.Signature, nil
}

func (a *premiumAdapter) SendNonceTx(ctx context.Context, tx *Transaction) (string, error) {
	return a.SendTx(ctx, tx)
}

func (a *premiumAdapter) SimulateTx(ctx context.Context, tx *Transaction) (string, error) {
	if !a.simulatable {
		return "", fmt.Errorf("%s: does not support simulation", a.name)
	}
	var reply simulateTxReply
	if err := a.client.Call(ctx, "chain.simulateTransaction", sendTxParams{Tx: tx.Encode()}, &reply); err != nil {
		return "", fmt.Errorf("%s: simulate tx: %w", a.name, err)
	}
	return reply.Result, nil
}
