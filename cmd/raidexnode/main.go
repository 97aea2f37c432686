// Package main provides the raidexnode daemon - a trading node in the
// Raidex decentralized order book network.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/raidex-network/raidex-go/internal/config"
	"github.com/raidex-network/raidex-go/internal/crypto"
	"github.com/raidex-network/raidex-go/internal/node"
	"github.com/raidex-network/raidex-go/internal/trader"
	"github.com/raidex-network/raidex-go/internal/transport"
	"github.com/raidex-network/raidex-go/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.raidexnode", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		listenAddr  = flag.String("listen", "", "Listen address (multiaddr), overrides config")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{
		Level:      *logLevel,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("raidexnode %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	dataPath := expandPath(*dataDir)
	cfgPath := *configFile
	if cfgPath == "" {
		cfgPath = filepath.Join(dataPath, "config.yaml")
	}

	cfg, err := config.LoadNodeConfig(cfgPath)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if cfg.Logging.Level != "" {
		*logLevel = cfg.Logging.Level
	}

	log = logging.New(&logging.Config{
		Level:      *logLevel,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)
	log.Info("Config loaded", "path", cfgPath)

	keyfilePath := cfg.KeyfilePath
	if keyfilePath == "" {
		keyfilePath = filepath.Join(dataPath, "nodekey")
	}
	key, err := crypto.LoadOrCreateKey(keyfilePath)
	if err != nil {
		log.Fatal("Failed to load or create key", "error", err)
	}
	addr := crypto.AddressFromPrivateKey(key)
	log.Info("Identity loaded", "address", addr.Hex())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := transport.New(ctx, cfg.ListenAddr, key, log)
	if err != nil {
		log.Fatal("Failed to start transport", "error", err)
	}
	defer tp.Close()

	// A real Trader is the off-chain payment channel client (§1
	// Non-goals): out of scope here, so raidexnode runs against an
	// in-memory stand-in until one is wired up by a deployment.
	tr := trader.NewFakeTrader()

	n := node.New(node.Config{
		Key:                    key,
		Transport:              tp,
		Trader:                 tr,
		CommitmentServiceTopic: cfg.CommitmentServiceAddr,
		Log:                    log,
	})

	printBanner(log, addr, cfg)

	go func() {
		if err := n.Run(ctx); err != nil {
			log.Error("node run loop exited", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutting down...")
	cancel()
	log.Info("Goodbye!")
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func printBanner(log *logging.Logger, addr crypto.Address, cfg config.NodeConfig) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  Raidex Node")
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  Address: %s", addr.Hex())
	log.Infof("  Listening on: %s", cfg.ListenAddr)
	log.Infof("  Commitment service: %s", cfg.CommitmentServiceAddr)
	log.Infof("  Default order timeout: %s", cfg.DefaultOrderTimeout)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
