package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pollScope/internal/storage/postgres"
)

func runLeaderboard(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	entries, err := postgres.NewLeaderboardStore(pool).TopByRewards(ctx, limit)
	if err != nil {
		return fmt.Errorf("query leaderboard: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("leaderboard is empty")
		return nil
	}

	fmt.Printf("%-4s %-44s %-24s %-8s %-14s %s\n",
		"#", "ADDRESS", "TOTAL REWARDS", "VOTES", "PARTICIPATED", "CREATED")
	for i, entry := range entries {
		fmt.Printf("%-4d %-44s %-24s %-8d %-14d %d\n",
			i+1,
			entry.Address,
			entry.TotalRewards,
			entry.TotalVotes,
			entry.PollsParticipated,
			entry.PollsCreated,
		)
	}
	return nil
}
