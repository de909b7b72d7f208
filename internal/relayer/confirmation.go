// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/qtrade-relayer/log"
)

// SignatureState is one polled signature's resolution.
type SignatureState int

const (
	SignaturePending SignatureState = iota
	SignatureConfirmed
	SignatureFailed
	SignatureTimeout
)

func (s SignatureState) String() string {
	switch s {
	case SignatureConfirmed:
		return "confirmed"
	case SignatureFailed:
		return "failed"
	case SignatureTimeout:
		return "timeout"
	default:
		return "pending"
	}
}

// SignatureStatusClient is the narrow collaborator ConfirmationMonitor
// polls; the native adapter's RPC client satisfies it in production.
type SignatureStatusClient interface {
	GetSignatureStatus(ctx context.Context, signature string) (confirmed bool, ok bool, err error)
}

// TaxEventSink is the narrow external collaborator every confirmed
// success is handed off to. A no-op implementation ships below; recording
// real cost-basis rows is left to the embedding process.
type TaxEventSink interface {
	Record(ctx context.Context, outcome AdapterOutcome, params SwapParameters) error
}

// NoopTaxEventSink discards every event.
type NoopTaxEventSink struct{}

func (NoopTaxEventSink) Record(ctx context.Context, outcome AdapterOutcome, params SwapParameters) error {
	return nil
}

// pendingSignature is one (provider, signature) pair awaited by the
// monitor.
type pendingSignature struct {
	Provider  string
	Signature string
}

// ConfirmationResult is ConfirmationMonitor's per-run summary.
type ConfirmationResult struct {
	Submitted int
	Confirmed int
	Failed    int
	TimedOut  int
}

// Ratio returns confirmed/submitted, or 0 if nothing was submitted.
func (r ConfirmationResult) Ratio() float64 {
	if r.Submitted == 0 {
		return 0
	}
	return float64(r.Confirmed) / float64(r.Submitted)
}

// ConfirmationMonitor polls signature statuses until confirmed, failed, or
// deadline, with a bounded LRU recording recently-resolved signatures so
// overlapping monitor runs never re-poll.
type ConfirmationMonitor struct {
	client   SignatureStatusClient
	sink     TaxEventSink
	deadline time.Duration
	interval time.Duration
	log      log.Logger
	metrics  *Metrics
	seen     *lru.Cache
}

// NewConfirmationMonitor constructs a monitor with the package's default
// deadline and poll interval, overridable via Settings.
func NewConfirmationMonitor(settings *Settings, client SignatureStatusClient, sink TaxEventSink, metrics *Metrics, logger log.Logger) *ConfirmationMonitor {
	if logger == nil {
		logger = log.Root()
	}
	if sink == nil {
		sink = NoopTaxEventSink{}
	}
	seen, _ := lru.New(1024)
	return &ConfirmationMonitor{
		client:   client,
		sink:     sink,
		deadline: settings.confirmationDeadline(),
		interval: settings.confirmationPollInterval(),
		log:      logger,
		metrics:  metrics,
		seen:     seen,
	}
}

// Run polls every submitted signature concurrently until each resolves or
// the shared deadline elapses.
func (m *ConfirmationMonitor) Run(ctx context.Context, pending []AdapterOutcome, params SwapParameters) ConfirmationResult {
	sigs := make([]pendingSignature, 0, len(pending))
	for _, o := range pending {
		if !o.Success {
			continue
		}
		sigs = append(sigs, pendingSignature{Provider: o.Provider, Signature: o.Signature})
	}

	result := ConfirmationResult{Submitted: len(sigs)}
	if len(sigs) == 0 {
		return result
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, m.deadline)
	defer cancel()

	states := make([]SignatureState, len(sigs))
	g, gctx := errgroup.WithContext(deadlineCtx)
	for i, sig := range sigs {
		i, sig := i, sig
		g.Go(func() error {
			states[i] = m.poll(gctx, sig)
			return nil
		})
	}
	_ = g.Wait() // per-signature errors are captured in states, never propagated

	for i, sig := range sigs {
		switch states[i] {
		case SignatureConfirmed:
			result.Confirmed++
			if err := m.sink.Record(ctx, AdapterOutcome{Provider: sig.Provider, Success: true, Signature: sig.Signature}, params); err != nil {
				m.log.Error("tax event sink record failed", "signature", sig.Signature, "err", err)
			}
		case SignatureFailed:
			result.Failed++
		case SignatureTimeout:
			result.TimedOut++
			if m.metrics != nil {
				m.metrics.confirmationTimeouts.Inc()
			}
		}
	}

	if m.metrics != nil {
		m.metrics.confirmationRatio.Set(result.Ratio())
	}
	m.log.Info("confirmation run complete",
		"submitted", result.Submitted, "confirmed", result.Confirmed,
		"failed", result.Failed, "timed_out", result.TimedOut)
	return result
}

func (m *ConfirmationMonitor) poll(ctx context.Context, sig pendingSignature) SignatureState {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.confirmationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if v, ok := m.seen.Get(sig.Signature); ok {
		return v.(SignatureState)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		confirmed, ok, err := m.client.GetSignatureStatus(ctx, sig.Signature)
		switch {
		case err != nil:
			m.log.Error("signature status parse failure", "signature", sig.Signature, "err", err)
			m.seen.Add(sig.Signature, SignatureFailed)
			return SignatureFailed
		case ok && confirmed:
			m.seen.Add(sig.Signature, SignatureConfirmed)
			return SignatureConfirmed
		case ok && !confirmed:
			m.seen.Add(sig.Signature, SignatureFailed)
			return SignatureFailed
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return SignatureTimeout
		}
	}
}
