package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seedchain/cmd/internal/bootstrap"
	"seedchain/config"
	"seedchain/core"
	"seedchain/core/events"
	"seedchain/observability/logging"
	"seedchain/rpc"
	"seedchain/services/indexer"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	blockInterval := flag.Duration("block-interval", 5*time.Second, "Interval at which the local height advances; 0 disables the clock")
	flag.Parse()

	if err := run(*configFile, *blockInterval); err != nil {
		fmt.Fprintf(os.Stderr, "seedd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, blockInterval time.Duration) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetupWithOptions(logging.Options{Service: "seedd", Env: cfg.Env, File: cfg.LogFile})

	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	params, err := bootstrap.Params(cfg)
	if err != nil {
		return err
	}

	var (
		emitter events.Emitter = events.NoopEmitter{}
		journal rpc.Journal
		idx     *indexer.Indexer
	)
	if cfg.IndexerDSN != "" {
		idx, err = indexer.Open(cfg.IndexerDSN, logger)
		if err != nil {
			return err
		}
		defer idx.Close()
		emitter, journal = idx, idx
	}

	node, err := core.NewNode(db, params, emitter, logger)
	if err != nil {
		return err
	}
	defer node.Close()
	if idx != nil {
		idx.SetHeightFunc(node.Height)
	}

	genesis, err := bootstrap.Genesis(cfg)
	if err != nil {
		return err
	}
	if _, err := node.ApplyGenesis(genesis); err != nil && !errors.Is(err, core.ErrGenesisApplied) {
		return fmt.Errorf("apply genesis: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if blockInterval > 0 {
		go runClock(ctx, node, blockInterval, logger)
	}

	server := rpc.NewServer(node, journal, rpc.RateLimit{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, logger)
	logger.Info("seedd started", slog.Uint64("height", node.Height()), slog.String("backend", cfg.Backend))
	return server.Start(ctx, cfg.RPCAddress)
}

func runClock(ctx context.Context, node *core.Node, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := node.Advance(1); err != nil {
				if !errors.Is(err, core.ErrNodeClosed) {
					logger.Error("advance height", slog.Any("error", err))
				}
				return
			}
		}
	}
}
