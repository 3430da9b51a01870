package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pollScope/internal/storage/postgres"
)

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	checkpoints, err := postgres.NewCheckpointStore(pool).List(ctx)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		fmt.Println("no checkpoints")
		return nil
	}

	fmt.Printf("%-12s %-16s %s\n", "CHAIN", "LAST BLOCK", "PROCESSED AT")
	for _, cp := range checkpoints {
		fmt.Printf("%-12d %-16d %s\n",
			cp.ChainID,
			cp.LastBlockNumber,
			cp.LastProcessedAt.UTC().Format("2006-01-02T15:04:05Z"),
		)
	}
	return nil
}

func openPool(ctx context.Context, cmd *cobra.Command) (*postgres.Pool, error) {
	dsn, _ := cmd.Flags().GetString("pg-dsn")
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
