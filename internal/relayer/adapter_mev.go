// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/luxfi/qtrade-relayer/internal/relayer/rpcclient"
	"github.com/luxfi/qtrade-relayer/log"
)

// mevAdapter is the shared shape of the two bearer-authenticated REST
// relays with a static tip wallet (Bloxroute, Nextblock). Both post
// base64 transactions to `<base>/api/v2/submit`, report their tip wallet
// in their metadata so the Submitter appends a tip transfer before the
// transaction is built, and are rate-limited since REST relays enforce aggressive per-key
// throttling.
type mevAdapter struct {
	name         ProviderName
	client       *rpcclient.Client
	apiKey       string
	tipWallet    PublicKey
	minTipAmount uint64
	limiter      *rate.Limiter
	log          log.Logger
}

type mevSubmitRequest struct {
	Tx             string `json:"tx"`
	UseStakedRPCs  bool   `json:"useStakedRPCs"`
}

type mevSubmitReply struct {
	Signature string `json:"signature"`
}

type mevSimulateReply struct {
	Result string `json:"result"`
}

func newMevAdapter(name ProviderName, settings *Settings, tipWallet PublicKey, logger log.Logger) (*mevAdapter, error) {
	if logger == nil {
		logger = log.Root()
	}
	p := settings.provider(name)
	if p.BaseURL == "" {
		return nil, fmt.Errorf("relayer: %s adapter: no base URL configured", name)
	}
	c, err := rpcclient.New(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("relayer: %s adapter: %w", name, err)
	}
	return &mevAdapter{
		name:         name,
		client:       c,
		apiKey:       p.APIKey,
		tipWallet:    tipWallet,
		minTipAmount: tipFloorLamports,
		limiter:      rate.NewLimiter(rate.Limit(5), 5),
		log:          logger,
	}, nil
}

// NewBloxrouteAdapter constructs the Bloxroute MEV relay adapter.
func NewBloxrouteAdapter(settings *Settings, logger log.Logger) (AsyncAdapter, error) {
	return newMevAdapter(ProviderBloxroute, settings, bloxrouteTipWallet, logger)
}

// NewNextblockAdapter constructs the Nextblock MEV relay adapter.
func NewNextblockAdapter(settings *Settings, logger log.Logger) (AsyncAdapter, error) {
	return newMevAdapter(ProviderNextblock, settings, nextblockTipWallet, logger)
}

func (a *mevAdapter) Metadata() AdapterMetadata {
	return AdapterMetadata{
		Name:         a.name,
		Sync:         false,
		Simulatable:  a.name == ProviderNextblock,
		HasTipWallet: true,
		TipWallet:    a.tipWallet,
		MinTipAmount: a.minTipAmount,
	}
}

func (a *mevAdapter) SendTx(ctx context.Context, tx *Transaction) (string, error) {
	return a.submit(ctx, tx)
}

func (a *mevAdapter) SendNonceTx(ctx context.Context, tx *Transaction) (string, error) {
	return a.submit(ctx, tx)
}

// SimulateTx satisfies Simulator, but only Nextblock actually supports the
// simulate endpoint; Bloxroute
// rejects it server-side, so this repo fails fast instead of round-tripping.
func (a *mevAdapter) SimulateTx(ctx context.Context, tx *Transaction) (string, error) {
	if a.name != ProviderNextblock {
		return "", fmt.Errorf("%s: does not support simulation", a.name)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limit: %w", a.name, err)
	}
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	req := mevSubmitRequest{Tx: tx.Encode()}
	var reply mevSimulateReply
	if err := a.client.PostJSON(ctx, "/api/v2/simulate", headers, req, &reply); err != nil {
		return "", fmt.Errorf("%s: simulate tx: %w", a.name, err)
	}
	return reply.Result, nil
}

func (a *mevAdapter) submit(ctx context.Context, tx *Transaction) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: rate limit: %w", a.name, err)
	}
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	req := mevSubmitRequest{Tx: tx.Encode()}
	var reply mevSubmitReply
	if err := a.client.PostJSON(ctx, "/api/v2/submit", headers, req, &reply); err != nil {
		return "", fmt.Errorf("%s: send tx: %w", a.name, err)
	}
	return reply.Signature, nil
}
