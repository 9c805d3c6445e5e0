package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calehh/gp-node/app"
	"github.com/calehh/gp-node/config"
	"github.com/calehh/gp-node/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the gp node",
	RunE:  startRun,
}

func startRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(homeDir(cmd))
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)
	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load node's key: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	gpApp, err := app.NewGPApp(cfg.App, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(gpApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	gpApp.Start(node.BlockStore())
	if err = node.Start(); err != nil {
		return fmt.Errorf("start comet node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.App.Indexer {
		if err = startIndexer(ctx, cfg, logger); err != nil {
			return err
		}
	}

	defer func() {
		logger.Info("shutting down")
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := node.Stop(); err != nil {
				logger.Error("stop comet node", "err", err)
			}
			node.Wait()
			gpApp.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		defer timer.Stop()
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	return nil
}

func startIndexer(ctx context.Context, cfg *config.Config, logger cmtlog.Logger) error {
	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		return fmt.Errorf("parse rpc address: %w", err)
	}
	rpcUrl.Scheme = "http"
	dbPath := filepath.Join(cfg.RootDir, "data", "indexer.db")
	idx, err := indexer.NewChainIndexer(logger, dbPath, rpcUrl.String(), cfg.App.IndexerPollInterval)
	if err != nil {
		return fmt.Errorf("new chain indexer: %w", err)
	}
	go idx.Start(ctx)

	svc := indexer.NewService(cfg.App.IndexerListen, idx)
	go func() {
		if err := svc.Start(ctx); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
	return nil
}
