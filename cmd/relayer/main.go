// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// relayer is the transaction-landing daemon: it consumes solver results
// and lands them on chain through the configured submission providers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	luxmetric "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/qtrade-relayer/internal/relayer"
	"github.com/luxfi/qtrade-relayer/log"
)

const clientIdentifier = "qtrade-relayer"

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to the TOML configuration file",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log verbosity (trace|debug|info|warn|error)",
		Value: "info",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Listen address for the Prometheus /metrics endpoint (empty disables it)",
		Value: "",
	}
	simulateFlag = &cli.BoolFlag{
		Name:  "simulate",
		Usage: "Simulate transactions instead of submitting them",
	}

	app = &cli.App{
		Name:    clientIdentifier,
		Usage:   "On-chain arbitrage transaction landing daemon",
		Version: "1.0.0",
		Flags:   []cli.Flag{configFlag, logLevelFlag, metricsAddrFlag, simulateFlag},
	}
)

func init() {
	app.Action = runRelayer
	app.Before = func(ctx *cli.Context) error {
		lvl, err := log.LvlFromString(ctx.String(logLevelFlag.Name))
		if err != nil {
			return err
		}
		handler := log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, true))
		handler.Verbosity(lvl)
		log.SetDefault(log.NewLogger(handler))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRelayer(cliCtx *cli.Context) error {
	v := viper.New()
	v.SetEnvPrefix("QTRADE")
	v.AutomaticEnv()
	if path := cliCtx.String(configFlag.Name); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	settings, err := loadSettings(v)
	if err != nil {
		return err
	}
	if cliCtx.Bool(simulateFlag.Name) {
		settings.SimulateOnly = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop, metrics, err := assemble(settings)
	if err != nil {
		return err
	}

	if addr := cliCtx.String(metricsAddrFlag.Name); addr != "" {
		serveMetrics(addr, metrics)
	}

	// Clean shutdown (cancellation) is the zero exit path; startup
	// failures already returned non-nil above.
	return loop.Run(ctx)
}

// assemble wires every component around the shared Settings struct: the
// native adapter doubles as the chain-read client for the blockhash
// cache, nonce pool, key manager and confirmation monitor.
func assemble(settings *relayer.Settings) (*relayer.RelayerLoop, *relayer.Metrics, error) {
	logger := log.Root()
	metrics := relayer.NewMetrics()

	native, err := relayer.NewNativeAdapter(settings, logger)
	if err != nil {
		return nil, nil, err
	}

	adapters := []relayer.Adapter{native}
	builders := []struct {
		name  relayer.ProviderName
		build func() (relayer.Adapter, error)
	}{
		{relayer.ProviderHelius, func() (relayer.Adapter, error) { return relayer.NewHeliusAdapter(settings, logger) }},
		{relayer.ProviderQuickNode, func() (relayer.Adapter, error) { return relayer.NewQuickNodeAdapter(settings, logger) }},
		{relayer.ProviderTemporal, func() (relayer.Adapter, error) { return relayer.NewTemporalAdapter(settings, logger) }},
		{relayer.ProviderJito, func() (relayer.Adapter, error) { return relayer.NewJitoAdapter(settings, logger) }},
		{relayer.ProviderBloxroute, func() (relayer.Adapter, error) { return relayer.NewBloxrouteAdapter(settings, logger) }},
		{relayer.ProviderNextblock, func() (relayer.Adapter, error) { return relayer.NewNextblockAdapter(settings, logger) }},
	}
	for _, b := range builders {
		if !settings.IsProviderActive(b.name) {
			continue
		}
		a, err := b.build()
		if err != nil {
			return nil, nil, err
		}
		adapters = append(adapters, a)
	}
	registry := relayer.NewRegistry(settings, logger, adapters...)

	blockhash := relayer.NewBlockhashCache(settings, native, metrics, logger)
	noncePool, err := relayer.NewNoncePool(settings, native, metrics, logger)
	if err != nil {
		return nil, nil, err
	}

	var keyManager relayer.KeyPoolManager
	if settings.SingleWalletMode {
		keyManager, err = relayer.NewSingleWalletKeyManager(settings, logger)
	} else {
		keyManager, err = relayer.NewKeyManager(settings, native, metrics, logger)
	}
	if err != nil {
		return nil, nil, err
	}

	preparer := relayer.NewPreparer(keyManager, nil, relayer.NewEncoderRegistry(relayer.EncodersFor(settings.ActiveDexVariants)), logger)
	submitter := relayer.NewSubmitter(registry, noncePool, blockhash, metrics, logger)
	confirm := relayer.NewConfirmationMonitor(settings, native, nil, metrics, logger)

	loop := relayer.NewRelayerLoop(settings, blockhash, noncePool, keyManager, preparer, submitter, confirm, metrics, logger)
	return loop, metrics, nil
}

// serveMetrics exposes the relayer's registry over HTTP and bridges it
// into the host metric stack the same way the upstream node wraps its
// registries.
func serveMetrics(addr string, metrics *relayer.Metrics) {
	up := luxmetric.NewGauge(clientIdentifier + "/up")
	up.Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	log.Info("metrics server listening", "addr", addr)
}
