// Package memory provides in-memory store implementations with the
// same semantics as the Postgres stores: insert-reporting-created,
// duplicate detection on (tx_hash, log_index), and a monotonic
// checkpoint guard. Used by tests.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

type pollKey struct {
	chainID uint64
	pollID  uint64
}

type logKey struct {
	txHash   string
	logIndex uint64
}

// Store holds every projection in process-local maps. Interface
// implementations are exposed as typed views because the storage
// contracts overlap in method names.
type Store struct {
	mu sync.Mutex

	checkpoints map[uint64]uint64
	polls       map[pollKey]*model.Poll
	fundings    map[logKey]*model.Funding
	ledger      map[logKey]*model.DistributionLog
	votes       map[logKey]*model.Vote
	leaderboard map[string]*model.LeaderboardEntry
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		checkpoints: make(map[uint64]uint64),
		polls:       make(map[pollKey]*model.Poll),
		fundings:    make(map[logKey]*model.Funding),
		ledger:      make(map[logKey]*model.DistributionLog),
		votes:       make(map[logKey]*model.Vote),
		leaderboard: make(map[string]*model.LeaderboardEntry),
	}
}

// Checkpoints returns the store as a storage.CheckpointStore.
func (s *Store) Checkpoints() storage.CheckpointStore { return checkpointView{s} }

// Polls returns the store as a storage.PollStore.
func (s *Store) Polls() storage.PollStore { return pollView{s} }

// Fundings returns the store as a storage.FundingStore.
func (s *Store) Fundings() storage.FundingStore { return fundingView{s} }

// Ledger returns the store as a storage.DistributionLogStore.
func (s *Store) Ledger() storage.DistributionLogStore { return ledgerView{s} }

// Votes returns the store as a storage.VoteStore.
func (s *Store) Votes() storage.VoteStore { return voteView{s} }

// Leaderboard returns the store as a storage.LeaderboardStore.
func (s *Store) Leaderboard() storage.LeaderboardStore { return leaderboardView{s} }

// Runner returns the store as a storage.TxRunner. Mutations apply to
// the maps immediately; an error from fn does not roll them back.
func (s *Store) Runner() storage.TxRunner { return runnerView{s} }

type runnerView struct{ s *Store }

func (v runnerView) InTx(_ context.Context, fn func(storage.Stores) error) error {
	return fn(storage.Stores{
		Polls:       pollView{v.s},
		Fundings:    fundingView{v.s},
		Ledger:      ledgerView{v.s},
		Votes:       voteView{v.s},
		Leaderboard: leaderboardView{v.s},
	})
}

var (
	_ storage.CheckpointStore      = checkpointView{}
	_ storage.PollStore            = pollView{}
	_ storage.FundingStore         = fundingView{}
	_ storage.DistributionLogStore = ledgerView{}
	_ storage.VoteStore            = voteView{}
	_ storage.LeaderboardStore     = leaderboardView{}
	_ storage.TxRunner             = runnerView{}
)

type checkpointView struct{ s *Store }

func (v checkpointView) Load(_ context.Context, chainID uint64) (uint64, bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	height, ok := v.s.checkpoints[chainID]
	return height, ok, nil
}

func (v checkpointView) Initialize(_ context.Context, chainID uint64, height uint64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.checkpoints[chainID]; !ok {
		v.s.checkpoints[chainID] = height
	}
	return nil
}

func (v checkpointView) Advance(_ context.Context, chainID uint64, height uint64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	current, ok := v.s.checkpoints[chainID]
	if !ok {
		return fmt.Errorf("advance checkpoint: chain %d not initialized", chainID)
	}
	if height < current {
		return fmt.Errorf("%w: chain %d at %d, attempted %d",
			storage.ErrCheckpointRegression, chainID, current, height)
	}
	if height > current {
		v.s.checkpoints[chainID] = height
	}
	return nil
}

type pollView struct{ s *Store }

func (v pollView) Insert(_ context.Context, poll *model.Poll) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := pollKey{poll.ChainID, poll.PollID}
	if _, ok := v.s.polls[key]; ok {
		return false, nil
	}
	stored := *poll
	if stored.TotalFunded == "" {
		stored.TotalFunded = "0"
	}
	v.s.polls[key] = &stored
	return true, nil
}

func (v pollView) SetDistributionMode(_ context.Context, chainID, pollID uint64, mode model.DistributionMode) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	poll, ok := v.s.polls[pollKey{chainID, pollID}]
	if !ok {
		return false, nil
	}
	poll.Mode = mode
	return true, nil
}

func (v pollView) AddFunding(_ context.Context, chainID, pollID uint64, amount string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	poll, ok := v.s.polls[pollKey{chainID, pollID}]
	if !ok {
		return nil
	}
	total, err := addDecimal(poll.TotalFunded, amount)
	if err != nil {
		return err
	}
	poll.TotalFunded = total
	return nil
}

func (v pollView) Get(_ context.Context, chainID, pollID uint64) (*model.Poll, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	poll, ok := v.s.polls[pollKey{chainID, pollID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *poll
	return &copied, nil
}

type fundingView struct{ s *Store }

func (v fundingView) Insert(_ context.Context, funding *model.Funding) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := logKey{funding.TxHash, funding.LogIndex}
	if _, ok := v.s.fundings[key]; ok {
		return false, nil
	}
	stored := *funding
	v.s.fundings[key] = &stored
	return true, nil
}

type ledgerView struct{ s *Store }

func (v ledgerView) Insert(_ context.Context, entry *model.DistributionLog) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := logKey{entry.TxHash, entry.LogIndex}
	if _, ok := v.s.ledger[key]; ok {
		return false, nil
	}
	stored := *entry
	v.s.ledger[key] = &stored
	return true, nil
}

func (v ledgerView) ListByPoll(_ context.Context, chainID, pollID uint64) ([]*model.DistributionLog, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*model.DistributionLog
	for _, entry := range v.s.ledger {
		if entry.ChainID == chainID && entry.PollID == pollID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

type voteView struct{ s *Store }

func (v voteView) Insert(_ context.Context, vote *model.Vote) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := logKey{vote.TxHash, vote.LogIndex}
	if _, ok := v.s.votes[key]; ok {
		return false, nil
	}
	stored := *vote
	v.s.votes[key] = &stored
	return true, nil
}

func (v voteView) CountByVoter(_ context.Context, chainID, pollID uint64, voter string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var count int64
	for _, vote := range v.s.votes {
		if vote.ChainID == chainID && vote.PollID == pollID && vote.Voter == voter {
			count++
		}
	}
	return count, nil
}

type leaderboardView struct{ s *Store }

func (v leaderboardView) AddRewards(_ context.Context, address string, amount string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	entry := v.s.entryLocked(address)
	total, err := addDecimal(entry.TotalRewards, amount)
	if err != nil {
		return err
	}
	entry.TotalRewards = total
	entry.LastUpdated = time.Now().UTC()
	return nil
}

func (v leaderboardView) IncrementVotes(_ context.Context, address string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	entry := v.s.entryLocked(address)
	entry.TotalVotes++
	entry.LastUpdated = time.Now().UTC()
	return nil
}

func (v leaderboardView) IncrementPollsParticipated(_ context.Context, address string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	entry := v.s.entryLocked(address)
	entry.PollsParticipated++
	entry.LastUpdated = time.Now().UTC()
	return nil
}

func (v leaderboardView) IncrementPollsCreated(_ context.Context, address string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	entry := v.s.entryLocked(address)
	entry.PollsCreated++
	entry.LastUpdated = time.Now().UTC()
	return nil
}

func (v leaderboardView) Get(_ context.Context, address string) (*model.LeaderboardEntry, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	entry, ok := v.s.leaderboard[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (v leaderboardView) TopByRewards(_ context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]*model.LeaderboardEntry, 0, len(v.s.leaderboard))
	for _, entry := range v.s.leaderboard {
		copied := *entry
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		a, aok := new(big.Int).SetString(out[i].TotalRewards, 10)
		b, bok := new(big.Int).SetString(out[j].TotalRewards, 10)
		if aok && bok && a.Cmp(b) != 0 {
			return a.Cmp(b) > 0
		}
		return out[i].Address < out[j].Address
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) entryLocked(address string) *model.LeaderboardEntry {
	entry, ok := s.leaderboard[address]
	if !ok {
		entry = &model.LeaderboardEntry{Address: address, TotalRewards: "0"}
		s.leaderboard[address] = entry
	}
	return entry
}

// LedgerSize reports the number of ledger rows, for test assertions.
func (s *Store) LedgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// VoteCount reports the number of vote rows, for test assertions.
func (s *Store) VoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

// PollCount reports the number of poll rows, for test assertions.
func (s *Store) PollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

func addDecimal(a, b string) (string, error) {
	if a == "" {
		a = "0"
	}
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return "", fmt.Errorf("invalid decimal: %s", a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return "", fmt.Errorf("invalid decimal: %s", b)
	}
	return new(big.Int).Add(x, y).String(), nil
}
