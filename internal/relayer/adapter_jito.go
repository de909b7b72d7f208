// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/luxfi/qtrade-relayer/internal/relayer/rpcclient"
	"github.com/luxfi/qtrade-relayer/log"
)

// JitoAdapter posts to the block-engine's bundle endpoint:
// `POST <base>/api/v1/bundles/tx` with `{"tx": ..., "skipPreflight":
// true}` and an optional bundle UUID. No tip wallet: the tip is carried
// inside the submitted instructions by convention rather than appended
// here, so HasTipWallet stays false.
type JitoAdapter struct {
	client      *rpcclient.Client
	uuid        string
	limiter     *rate.Limiter
	log         log.Logger
}

type jitoBundleRequest struct {
	Tx            string `json:"tx"`
	SkipPreflight bool   `json:"skipPreflight"`
	UUID          string `json:"uuid,omitempty"`
}

type jitoBundleReply struct {
	Signature string `json:"signature"`
	BundleID  string `json:"bundleId"`
}

// NewJitoAdapter constructs the Jito adapter. When settings request a
// bundle UUID, a fresh one is generated per adapter
// instance.
func NewJitoAdapter(settings *Settings, logger log.Logger) (AsyncAdapter, error) {
	if logger == nil {
		logger = log.Root()
	}
	p := settings.provider(ProviderJito)
	if p.BaseURL == "" {
		return nil, fmt.Errorf("relayer: jito adapter: no base URL configured")
	}
	c, err := rpcclient.New(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("relayer: jito adapter: %w", err)
	}
	bundleUUID := ""
	if p.APIKey != "" {
		bundleUUID = uuid.New().String()
	}
	return &JitoAdapter{
		client:  c,
		uuid:    bundleUUID,
		limiter: rate.NewLimiter(rate.Limit(5), 5), // REST relays rate-limit aggressively
		log:     logger,
	}, nil
}

func (a *JitoAdapter) Metadata() AdapterMetadata {
	return AdapterMetadata{Name: ProviderJito, Sync: false, Simulatable: false}
}

func (a *JitoAdapter) SendTx(ctx context.Context, tx *Transaction) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("jito: rate limit: %w", err)
	}
	var reply jitoBundleReply
	req := jitoBundleRequest{Tx: tx.Encode(), SkipPreflight: true, UUID: a.uuid}
	if err := a.client.PostJSON(ctx, "/api/v1/bundles/tx", nil, req, &reply); err != nil {
		return "", fmt.Errorf("jito: send tx: %w", err)
	}
	if reply.Signature != "" {
		return reply.Signature, nil
	}
	return reply.BundleID, nil
}

func (a *JitoAdapter) SendNonceTx(ctx context.Context, tx *Transaction) (string, error) {
	return a.SendTx(ctx, tx)
}
