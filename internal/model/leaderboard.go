package model

import "time"

// LeaderboardEntry is the per-address aggregate, upserted incrementally
// and fully recomputable by replaying the event stream.
type LeaderboardEntry struct {
	Address           string    `json:"address"`
	TotalRewards      string    `json:"total_rewards"`
	TotalVotes        int64     `json:"total_votes"`
	PollsParticipated int64     `json:"polls_participated"`
	PollsCreated      int64     `json:"polls_created"`
	LastUpdated       time.Time `json:"last_updated"`
}
