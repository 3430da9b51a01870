// Package syncer coordinates startup, historical backfill, and live
// tailing for one chain. A single Orchestrator instance exclusively
// owns its chain's checkpoint and subscription handles, so there is
// never more than one active processing path per chain.
package syncer

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"pollScope/internal/contract"
	"pollScope/internal/model"
	"pollScope/internal/processor"
	"pollScope/internal/storage"
)

// ChainClient is the node access the orchestrator needs.
type ChainClient interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	SubscribeLogs(ctx context.Context, fromBlock uint64, addresses []common.Address, topic0 []common.Hash, ch chan<- types.Log) (ethereum.Subscription, error)
}

// State is the orchestrator lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateBackfilling
	StateLive
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBackfilling:
		return "backfilling"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds runtime settings for the orchestrator.
type Config struct {
	Addresses       []common.Address
	ChunkSize       uint64
	MaxRetries      int
	RetryBackoff    time.Duration
	SilenceTimeout  time.Duration
	SubscribeBuffer int
}

// Orchestrator drives one chain's ingestion loop.
type Orchestrator struct {
	cfg         Config
	chain       ChainClient
	checkpoints storage.CheckpointStore
	proc        *processor.Processor
	decoder     *contract.Decoder
	logger      *zap.Logger

	state atomic.Int32

	// chainID and cp are owned by the single Run/Resync caller.
	chainID uint64
	cp      uint64
}

// New builds an Orchestrator with its dependencies.
func New(
	cfg Config,
	chain ChainClient,
	checkpoints storage.CheckpointStore,
	proc *processor.Processor,
	decoder *contract.Decoder,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 2000
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = 5 * time.Minute
	}
	if cfg.SubscribeBuffer <= 0 {
		cfg.SubscribeBuffer = 256
	}
	return &Orchestrator{
		cfg:         cfg,
		chain:       chain,
		checkpoints: checkpoints,
		proc:        proc,
		decoder:     decoder,
		logger:      logger,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	old := State(o.state.Swap(int32(s)))
	if old != s {
		o.logger.Info("state change",
			zap.Stringer("from", old),
			zap.Stringer("to", s),
			zap.Uint64("chain_id", o.chainID),
		)
	}
}

// Run executes backfill followed by live tailing until ctx is
// cancelled. Cancellation is checked between blocks and chunks, never
// mid-block, so shutdown never leaves a block half-accounted.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.init(ctx); err != nil {
		return err
	}

	head, err := o.latestWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}

	if o.cp < head {
		o.setState(StateBackfilling)
		o.logger.Info("backfill start",
			zap.Uint64("chain_id", o.chainID),
			zap.Uint64("from", o.cp+1),
			zap.Uint64("to", head),
		)
		if err := o.syncRange(ctx, o.cp+1, head, true); err != nil {
			if ctx.Err() != nil {
				o.setState(StateStopped)
				return nil
			}
			return fmt.Errorf("backfill: %w", err)
		}
	}

	for {
		o.setState(StateLive)
		retryable, err := o.tail(ctx)
		if ctx.Err() != nil {
			o.setState(StateStopped)
			return nil
		}
		if err != nil && !retryable {
			o.setState(StateStopped)
			return err
		}
		o.logger.Warn("live tail interrupted", zap.Error(err), zap.Uint64("chain_id", o.chainID))

		o.setState(StateReconnecting)
		if err := o.catchUp(ctx); err != nil {
			if ctx.Err() != nil {
				o.setState(StateStopped)
				return nil
			}
			o.setState(StateStopped)
			return fmt.Errorf("reconnect catch-up: %w", err)
		}
	}
}

// Resync replays a historical range through the same idempotent
// handlers without advancing the checkpoint or touching the live tail.
func (o *Orchestrator) Resync(ctx context.Context, from, to uint64) error {
	if to < from {
		return fmt.Errorf("to block must be >= from block")
	}
	chainID, err := o.getChainIDWithRetry(ctx)
	if err != nil {
		return err
	}
	o.chainID = chainID

	o.logger.Info("resync start",
		zap.Uint64("chain_id", chainID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
	)
	return o.syncRange(ctx, from, to, false)
}

func (o *Orchestrator) init(ctx context.Context) error {
	chainID, err := o.getChainIDWithRetry(ctx)
	if err != nil {
		return err
	}
	o.chainID = chainID

	height, ok, err := o.checkpoints.Load(ctx, chainID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		// Seed to the current head, not genesis, to bound the first backfill.
		head, err := o.latestWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get head for seed: %w", err)
		}
		if err := o.checkpoints.Initialize(ctx, chainID, head); err != nil {
			return err
		}
		height, _, err = o.checkpoints.Load(ctx, chainID)
		if err != nil {
			return fmt.Errorf("reload checkpoint: %w", err)
		}
		o.logger.Info("checkpoint seeded", zap.Uint64("chain_id", chainID), zap.Uint64("height", height))
	}
	o.cp = height
	return nil
}

type fetchedChunk struct {
	blockRange BlockRange
	logs       []types.Log
	err        error
}

// syncRange scans [from, to] in bounded chunks. Chunk N+1 is fetched
// while chunk N is applied, but application and checkpoint advance stay
// strictly in chunk order.
func (o *Orchestrator) syncRange(ctx context.Context, from, to uint64, advance bool) error {
	ranges, err := SplitRange(from, to, o.cfg.ChunkSize)
	if err != nil {
		return err
	}

	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	results := make(chan fetchedChunk, 1)
	go func() {
		defer close(results)
		for _, blockRange := range ranges {
			logs, err := o.filterLogsWithRetry(fetchCtx, blockRange.From, blockRange.To)
			select {
			case results <- fetchedChunk{blockRange: blockRange, logs: logs, err: err}:
			case <-fetchCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for chunk := range results {
		if chunk.err != nil {
			return fmt.Errorf("filter logs [%d,%d]: %w", chunk.blockRange.From, chunk.blockRange.To, chunk.err)
		}
		if err := o.applyChunk(ctx, chunk.blockRange, chunk.logs, advance); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) applyChunk(ctx context.Context, blockRange BlockRange, logs []types.Log, advance bool) error {
	for _, blk := range groupByBlock(logs) {
		events, err := o.decodeBlock(ctx, blk)
		if err != nil {
			return err
		}
		if err := o.proc.ApplyBlock(ctx, events); err != nil {
			return fmt.Errorf("apply block %d: %w", blk.number, err)
		}
		if advance {
			if err := o.advance(ctx, blk.number); err != nil {
				return err
			}
		}
	}
	if advance {
		// Blocks without matching logs are covered too.
		return o.advance(ctx, blockRange.To)
	}
	return nil
}

// tail consumes the live subscription. The checkpoint for block N is
// advanced once the first log of a later block arrives; the reconnect
// catch-up covers whatever was pending when the connection dropped.
func (o *Orchestrator) tail(ctx context.Context) (retryable bool, err error) {
	ch := make(chan types.Log, o.cfg.SubscribeBuffer)
	sub, err := o.subscribeWithRetry(ctx, o.cp+1, ch)
	if err != nil {
		return false, fmt.Errorf("subscribe from %d: %w", o.cp+1, err)
	}
	defer sub.Unsubscribe()

	o.logger.Info("live tail start", zap.Uint64("chain_id", o.chainID), zap.Uint64("from", o.cp+1))

	timer := time.NewTimer(o.cfg.SilenceTimeout)
	defer timer.Stop()

	var pendingBlock uint64
	var pending []types.Log

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case subErr := <-sub.Err():
			return true, fmt.Errorf("subscription: %w", subErr)
		case <-timer.C:
			return true, fmt.Errorf("subscription silent for %s", o.cfg.SilenceTimeout)
		case lg := <-ch:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(o.cfg.SilenceTimeout)

			if lg.Removed {
				continue
			}
			// At-least-once delivery: anything at or below the
			// checkpoint is already applied.
			if lg.BlockNumber <= o.cp {
				continue
			}

			switch {
			case pendingBlock == 0:
				pendingBlock = lg.BlockNumber
			case lg.BlockNumber > pendingBlock:
				if applyErr := o.applyPendingBlock(ctx, pendingBlock, pending); applyErr != nil {
					return false, applyErr
				}
				pendingBlock = lg.BlockNumber
				pending = pending[:0]
			case lg.BlockNumber < pendingBlock:
				o.logger.Warn("out-of-order log dropped",
					zap.Uint64("block_number", lg.BlockNumber),
					zap.Uint64("pending_block", pendingBlock),
				)
				continue
			}
			pending = append(pending, lg)
		}
	}
}

func (o *Orchestrator) applyPendingBlock(ctx context.Context, number uint64, logs []types.Log) error {
	events, err := o.decodeBlock(ctx, blockLogs{number: number, logs: logs})
	if err != nil {
		return err
	}
	if err := o.proc.ApplyBlock(ctx, events); err != nil {
		return fmt.Errorf("apply block %d: %w", number, err)
	}
	return o.advance(ctx, number)
}

// catchUp closes the gap left by a subscription outage with a ranged
// fetch from checkpoint+1, before the caller resubscribes.
func (o *Orchestrator) catchUp(ctx context.Context) error {
	head, err := o.latestWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}
	if head <= o.cp {
		return nil
	}
	return o.syncRange(ctx, o.cp+1, head, true)
}

type blockLogs struct {
	number uint64
	logs   []types.Log
}

// groupByBlock splits an ascending log slice into per-block groups,
// preserving order.
func groupByBlock(logs []types.Log) []blockLogs {
	var blocks []blockLogs
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		if len(blocks) == 0 || blocks[len(blocks)-1].number != lg.BlockNumber {
			blocks = append(blocks, blockLogs{number: lg.BlockNumber})
		}
		last := &blocks[len(blocks)-1]
		last.logs = append(last.logs, lg)
	}
	return blocks
}

// decodeBlock turns a block's raw logs into typed events. Decode
// failures are logged and skipped: they never block the block's other
// events or its checkpoint advance. A timestamp fetch failure fails
// the whole block instead, so no row is ever persisted with a zero
// timestamp; the block is replayed intact on the next attempt.
func (o *Orchestrator) decodeBlock(ctx context.Context, blk blockLogs) ([]model.Event, error) {
	ts, err := o.blockTimestampWithRetry(ctx, blk.number)
	if err != nil {
		return nil, fmt.Errorf("block %d timestamp: %w", blk.number, err)
	}

	events := make([]model.Event, 0, len(blk.logs))
	for _, lg := range blk.logs {
		ev, err := o.decoder.Decode(lg, o.chainID, ts)
		if err != nil {
			o.logger.Warn("decode failed",
				zap.Error(err),
				zap.Uint64("block_number", lg.BlockNumber),
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Uint64("log_index", uint64(lg.Index)),
			)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// advance moves the durable checkpoint and the in-memory copy. A
// regression error is fatal for the chain's loop.
func (o *Orchestrator) advance(ctx context.Context, height uint64) error {
	if err := o.checkpoints.Advance(ctx, o.chainID, height); err != nil {
		return err
	}
	if height > o.cp {
		o.cp = height
	}
	return nil
}

func (o *Orchestrator) getChainIDWithRetry(ctx context.Context) (uint64, error) {
	var chainID uint64
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		id, err := o.chain.GetChainID(ctx)
		if err != nil {
			return err
		}
		if !id.IsUint64() {
			return fmt.Errorf("chain id does not fit in uint64: %s", id)
		}
		chainID = id.Uint64()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}
	return chainID, nil
}

func (o *Orchestrator) latestWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = o.chain.LatestBlockNumber(ctx)
		return err
	})
	return head, err
}

func (o *Orchestrator) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = o.chain.FilterLogs(ctx, fromBlock, toBlock, o.cfg.Addresses, o.decoder.Topics())
		if err != nil {
			o.logger.Warn("filter logs failed",
				zap.Error(err),
				zap.Uint64("from", fromBlock),
				zap.Uint64("to", toBlock),
			)
		}
		return err
	})
	return logs, err
}

func (o *Orchestrator) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = o.chain.BlockTimestamp(ctx, blockNumber)
		return err
	})
	return ts, err
}

func (o *Orchestrator) subscribeWithRetry(ctx context.Context, fromBlock uint64, ch chan<- types.Log) (ethereum.Subscription, error) {
	var sub ethereum.Subscription
	err := withRetry(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sub, err = o.chain.SubscribeLogs(ctx, fromBlock, o.cfg.Addresses, o.decoder.Topics(), ch)
		if err != nil {
			o.logger.Warn("subscribe failed", zap.Error(err), zap.Uint64("from", fromBlock))
		}
		return err
	})
	return sub, err
}
