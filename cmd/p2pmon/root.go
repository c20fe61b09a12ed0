package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andresjosehr/p2p-price-monitor/internal/api"
	"github.com/andresjosehr/p2p-price-monitor/internal/collector"
	"github.com/andresjosehr/p2p-price-monitor/internal/config"
	"github.com/andresjosehr/p2p-price-monitor/internal/exchange"
	"github.com/andresjosehr/p2p-price-monitor/internal/instrumentation"
	"github.com/andresjosehr/p2p-price-monitor/internal/logger"
	"github.com/andresjosehr/p2p-price-monitor/internal/storage"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "p2pmon",
		Short:         "P2P marketplace price monitor",
		Long:          "Collects P2P marketplace advertisements on a schedule, scores data quality, and serves derived price history and statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newCollectCmd())
	return root
}

// runtime bundles the wired dependencies shared by the commands.
type runtime struct {
	cfg          *config.Config
	log          *slog.Logger
	store        storage.Store
	orchestrator *collector.Orchestrator
}

func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})

	var store storage.Store
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		store, err = storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
	default:
		store = storage.NewMemoryStore()
	}

	clientOpts := []exchange.Option{
		exchange.WithLogger(log),
		exchange.WithRateLimit(cfg.MarketRateLimit),
	}
	if cfg.MarketBaseURL != "" {
		clientOpts = append(clientOpts, exchange.WithBaseURL(cfg.MarketBaseURL))
	}
	client := exchange.NewClient(clientOpts...)

	metrics := instrumentation.New(prometheus.DefaultRegisterer)

	orchCfg := collector.DefaultConfig()
	orchCfg.MaxConcurrentPairs = cfg.MaxConcurrent
	orchCfg.JobTimeout = cfg.JobTimeout
	orchCfg.Logger = log
	orchCfg.Metrics = metrics

	return &runtime{
		cfg:          cfg,
		log:          log,
		store:        store,
		orchestrator: collector.New(client, store, orchCfg),
	}, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			pairs, err := rt.cfg.PairConfigs()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := collector.NewScheduler(rt.orchestrator, rt.store, pairs, rt.cfg.Retention(), rt.log)
			server := api.NewServer(rt.store, pairs, rt.log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := scheduler.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				return server.Run(ctx, rt.cfg.HTTPAddr)
			})

			rt.log.Info("service started", "pairs", len(pairs), "addr", rt.cfg.HTTPAddr)
			return g.Wait()
		},
	}
}

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one collection pass over all configured pairs and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			pairs, err := rt.cfg.PairConfigs()
			if err != nil {
				return err
			}

			outcome, runErr := rt.orchestrator.CollectAll(cmd.Context(), pairs)

			out, err := json.MarshalIndent(outcome, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return runErr
		},
	}
}
