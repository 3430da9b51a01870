// Package processor applies decoded contract events to the projection
// stores. It is the sole writer of polls, the distribution ledger, vote
// records, and leaderboard aggregates.
//
// Every handler is idempotent under at-least-once delivery: each
// accumulator increment is gated on an append-only insert reporting
// that a new (tx_hash, log_index) row was created, and the insert and
// its increments commit in one transaction. Replaying any prefix of
// the event stream leaves the projection unchanged.
package processor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// Processor folds events into the projection.
type Processor struct {
	tx     storage.TxRunner
	logger *zap.Logger
}

// New builds a Processor over a transactional store runner.
func New(tx storage.TxRunner, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{tx: tx, logger: logger}
}

// Apply routes one event to its handler. Unknown variants are an error:
// the event set is closed and matched exhaustively.
func (p *Processor) Apply(ctx context.Context, ev model.Event) error {
	switch e := ev.(type) {
	case *model.PollCreated:
		return p.applyPollCreated(ctx, e)
	case *model.PollFunded:
		return p.applyPollFunded(ctx, e)
	case *model.Voted:
		return p.applyVoted(ctx, e)
	case *model.DistributionModeSet:
		return p.applyDistributionModeSet(ctx, e)
	case *model.RewardDistributed:
		return p.applyPayout(ctx, e.Meta(), e.PollID, e.Recipient, e.Token, e.Amount, model.LedgerDistributed)
	case *model.RewardClaimed:
		return p.applyPayout(ctx, e.Meta(), e.PollID, e.Recipient, e.Token, e.Amount, model.LedgerClaimed)
	case *model.FundsWithdrawn:
		return p.applyPayout(ctx, e.Meta(), e.PollID, e.Recipient, e.Token, e.Amount, model.LedgerWithdrawn)
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

// ApplyBlock applies one block's events in log-index order. A handler
// error does not stop the remaining events (replay is safe), but the
// returned error tells the caller to withhold the block's checkpoint
// advance so the whole block is retried after restart.
func (p *Processor) ApplyBlock(ctx context.Context, events []model.Event) error {
	ordered := make([]model.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Meta().LogIndex < ordered[j].Meta().LogIndex
	})

	var failed int
	for _, ev := range ordered {
		if err := p.Apply(ctx, ev); err != nil {
			meta := ev.Meta()
			p.logger.Error("event handler failed",
				zap.Error(err),
				zap.Uint64("block_number", meta.BlockNumber),
				zap.String("tx_hash", meta.TxHash),
				zap.Uint64("log_index", meta.LogIndex),
			)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d events failed", failed, len(ordered))
	}
	return nil
}

func (p *Processor) applyPollCreated(ctx context.Context, e *model.PollCreated) error {
	return p.tx.InTx(ctx, func(s storage.Stores) error {
		created, err := s.Polls.Insert(ctx, &model.Poll{
			ChainID:        e.ChainID,
			PollID:         e.PollID,
			Creator:        e.Creator,
			Mode:           e.Mode,
			FirstSeenBlock: e.BlockNumber,
		})
		if err != nil {
			return fmt.Errorf("insert poll %d: %w", e.PollID, err)
		}
		if !created {
			return nil
		}
		if err := s.Leaderboard.IncrementPollsCreated(ctx, e.Creator); err != nil {
			return fmt.Errorf("increment polls created for %s: %w", e.Creator, err)
		}
		return nil
	})
}

func (p *Processor) applyPollFunded(ctx context.Context, e *model.PollFunded) error {
	return p.tx.InTx(ctx, func(s storage.Stores) error {
		created, err := s.Fundings.Insert(ctx, &model.Funding{
			ChainID:     e.ChainID,
			PollID:      e.PollID,
			Funder:      e.Funder,
			Token:       e.Token,
			Amount:      e.Amount,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			BlockNumber: e.BlockNumber,
			Timestamp:   e.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("insert funding for poll %d: %w", e.PollID, err)
		}
		if !created {
			return nil
		}
		if err := s.Polls.AddFunding(ctx, e.ChainID, e.PollID, e.Amount); err != nil {
			return fmt.Errorf("add funding to poll %d: %w", e.PollID, err)
		}
		return nil
	})
}

func (p *Processor) applyVoted(ctx context.Context, e *model.Voted) error {
	return p.tx.InTx(ctx, func(s storage.Stores) error {
		created, err := s.Votes.Insert(ctx, &model.Vote{
			ChainID:     e.ChainID,
			PollID:      e.PollID,
			Voter:       e.Voter,
			Option:      e.Option,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			BlockNumber: e.BlockNumber,
			Timestamp:   e.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("insert vote for poll %d: %w", e.PollID, err)
		}
		if !created {
			return nil
		}

		if err := s.Leaderboard.IncrementVotes(ctx, e.Voter); err != nil {
			return fmt.Errorf("increment votes for %s: %w", e.Voter, err)
		}

		count, err := s.Votes.CountByVoter(ctx, e.ChainID, e.PollID, e.Voter)
		if err != nil {
			return fmt.Errorf("count votes for %s: %w", e.Voter, err)
		}
		if count == 1 {
			if err := s.Leaderboard.IncrementPollsParticipated(ctx, e.Voter); err != nil {
				return fmt.Errorf("increment polls participated for %s: %w", e.Voter, err)
			}
		}
		return nil
	})
}

func (p *Processor) applyDistributionModeSet(ctx context.Context, e *model.DistributionModeSet) error {
	return p.tx.InTx(ctx, func(s storage.Stores) error {
		updated, err := s.Polls.SetDistributionMode(ctx, e.ChainID, e.PollID, e.Mode)
		if err != nil {
			return fmt.Errorf("set mode for poll %d: %w", e.PollID, err)
		}
		if !updated {
			// Happens when the poll was created below the seeded checkpoint.
			p.logger.Warn("mode set for unknown poll",
				zap.Uint64("chain_id", e.ChainID),
				zap.Uint64("poll_id", e.PollID),
				zap.String("mode", string(e.Mode)),
			)
		}
		return nil
	})
}

func (p *Processor) applyPayout(
	ctx context.Context,
	meta model.EventMeta,
	pollID uint64,
	recipient, token, amount string,
	eventType model.LedgerEventType,
) error {
	return p.tx.InTx(ctx, func(s storage.Stores) error {
		created, err := s.Ledger.Insert(ctx, &model.DistributionLog{
			ChainID:     meta.ChainID,
			PollID:      pollID,
			Recipient:   recipient,
			Amount:      amount,
			Token:       token,
			TxHash:      meta.TxHash,
			LogIndex:    meta.LogIndex,
			EventType:   eventType,
			BlockNumber: meta.BlockNumber,
			Timestamp:   meta.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("insert %s ledger row for poll %d: %w", eventType, pollID, err)
		}
		if !created {
			return nil
		}

		// Withdrawals return funds to the poll creator; they are not rewards.
		if eventType == model.LedgerWithdrawn {
			return nil
		}
		if err := s.Leaderboard.AddRewards(ctx, recipient, amount); err != nil {
			return fmt.Errorf("add rewards for %s: %w", recipient, err)
		}
		return nil
	})
}
