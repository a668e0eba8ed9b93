// Package main provides the coordinatord daemon: the non-custodial
// coordinator for Taproot peer-to-peer Bitcoin trades.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taptrade/coordinatord/internal/arbiter"
	"github.com/taptrade/coordinatord/internal/bond"
	"github.com/taptrade/coordinatord/internal/chainparams"
	"github.com/taptrade/coordinatord/internal/config"
	"github.com/taptrade/coordinatord/internal/httpapi"
	"github.com/taptrade/coordinatord/internal/nodeclient"
	"github.com/taptrade/coordinatord/internal/orchestrator"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/internal/taskloop"
	"github.com/taptrade/coordinatord/internal/walletkey"
	"github.com/taptrade/coordinatord/internal/watcher"
	"github.com/taptrade/coordinatord/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		apiAddr     = flag.String("api", "127.0.0.1:8080", "HTTP API address")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("coordinatord %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	params, err := chainparams.Params(cfg.Network)
	if err != nil {
		log.Fatal("failed to resolve chain params", "error", err)
	}

	st, err := store.New(store.Config{Path: cfg.DatabasePath})
	if err != nil {
		log.Fatal("failed to open store", "error", err)
	}
	defer st.Close()
	log.Info("store opened", "path", cfg.DatabasePath)

	node, err := nodeclient.New(nodeclient.Config{
		HostPort: cfg.BitcoinRPCAddressPort,
		User:     cfg.BitcoinRPCUser,
		Pass:     cfg.BitcoinRPCPassword,
		Params:   params,
	})
	if err != nil {
		log.Fatal("failed to connect to bitcoind", "error", err)
	}
	defer node.Shutdown()

	wallet, err := walletkey.New(cfg.WalletXprv, params)
	if err != nil {
		log.Fatal("failed to initialize wallet key", "error", err)
	}
	log.Info("wallet key loaded", "network", cfg.Network)

	oracle := arbiter.New(os.Stdin, os.Stdout)

	orch := orchestrator.New(st, node, wallet, oracle, orchestrator.Config{
		Params:              params,
		BondMinFeerateSatVB: cfg.BondMinFeerateSatVB,
		CoordinatorFeerate:  cfg.CoordinatorFeerate,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bondMonitor := bond.NewMonitor(node, st, cfg.PunishmentEnabled)
	bondMonitor.Start(ctx)
	defer bondMonitor.Stop()

	confirmationWatcher := watcher.New(node, st)
	confirmationWatcher.Start(ctx)
	defer confirmationWatcher.Stop()

	arbiterLoop := arbiter.NewLoop(st, oracle)
	arbiterCtx, arbiterCancel := context.WithCancel(ctx)
	go taskloop.Run(arbiterCtx, log, "arbiter-loop", arbiter.PollInterval, arbiterLoop.Tick)
	defer arbiterCancel()

	api := httpapi.New(orch)
	if err := api.Start(*apiAddr); err != nil {
		log.Fatal("failed to start http api", "error", err)
	}
	defer api.Stop()

	log.Info("coordinatord started", "version", version, "network", cfg.Network, "api", *apiAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down...")
}
