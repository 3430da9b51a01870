package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pollScope/internal/chain"
	"pollScope/internal/config"
	"pollScope/internal/contract"
	"pollScope/internal/processor"
	"pollScope/internal/storage/postgres"
	"pollScope/internal/syncer"
)

func main() {
	root := &cobra.Command{
		Use:          "pollscope",
		Short:        "Poll-voting contract event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Backfill to the chain head, then tail live events",
		RunE:  runSync,
	}
	addCommonFlags(syncCmd)
	root.AddCommand(syncCmd)

	resyncCmd := &cobra.Command{
		Use:   "resync",
		Short: "Replay a historical block range through the idempotent handlers",
		RunE:  runResync,
	}
	addCommonFlags(resyncCmd)
	resyncCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	resyncCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	root.AddCommand(resyncCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print stored checkpoints",
		RunE:  runStatus,
	}
	statusCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	root.AddCommand(statusCmd)

	leaderboardCmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top leaderboard entries",
		RunE:  runLeaderboard,
	}
	leaderboardCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	leaderboardCmd.Flags().Int("limit", 20, "number of entries")
	root.AddCommand(leaderboardCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "node RPC URL (ws:// required for live tail)")
	cmd.Flags().StringSlice("contract", nil, "voting contract addresses (comma-separated)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Uint64("chunk-size", 2000, "blocks per backfill chunk")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("silence-timeout", 5*time.Minute, "resubscribe after this much subscription silence")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cmd)
	if err != nil {
		return err
	}
	defer deps.close()

	deps.logger.Info("sync start",
		zap.String("rpc", deps.cfg.RPCURL),
		zap.Int("contracts", len(deps.addresses)),
		zap.Uint64("chunk_size", deps.cfg.ChunkSize),
		zap.String("pg_dsn", redactDSN(deps.cfg.PGDSN)),
	)

	return deps.orchestrator.Run(ctx)
}

func runResync(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cmd)
	if err != nil {
		return err
	}
	defer deps.close()

	if to == 0 {
		to, err = deps.chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}

	deps.logger.Info("resync start",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
	)

	return deps.orchestrator.Resync(ctx, from, to)
}

// deps bundles everything a sync/resync run needs.
type deps struct {
	cfg          config.Config
	logger       *zap.Logger
	chainClient  *chain.Client
	pool         *postgres.Pool
	addresses    []common.Address
	orchestrator *syncer.Orchestrator
}

func buildDeps(ctx context.Context, cmd *cobra.Command) (*deps, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}

	addresses, err := syncer.ParseAddresses(cfg.Contracts)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("contract address is required")
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.PGDSN)
	if err != nil {
		chainClient.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	decoder, err := contract.NewDecoder()
	if err != nil {
		chainClient.Close()
		pool.Close()
		return nil, err
	}

	proc := processor.New(postgres.NewStoreSet(pool), logger)

	orchestrator := syncer.New(syncer.Config{
		Addresses:      addresses,
		ChunkSize:      cfg.ChunkSize,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		SilenceTimeout: cfg.SilenceTimeout,
	}, chainClient, postgres.NewCheckpointStore(pool), proc, decoder, logger)

	return &deps{
		cfg:          cfg,
		logger:       logger,
		chainClient:  chainClient,
		pool:         pool,
		addresses:    addresses,
		orchestrator: orchestrator,
	}, nil
}

func (d *deps) close() {
	d.chainClient.Close()
	d.pool.Close()
	d.logger.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
