package leaderboard

import (
	"sort"
	"sync"

	"dice-parlor/internal/store"
)

// Capacity is the fixed number of entries kept after every insert.
const Capacity = 200

// Less is the total order over entries: ascending score, then duration, then
// roll count, then timestamp, with the id as the final tie-break. Lower
// scores rank better.
func Less(a, b store.LeaderboardRecord) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Duration != b.Duration {
		return a.Duration < b.Duration
	}
	if a.RollCount != b.RollCount {
		return a.RollCount < b.RollCount
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}

// Rank sorts entries in place under the total order.
func Rank(entries []store.LeaderboardRecord) {
	sort.Slice(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// Board holds the capacity-bounded collection, keyed by uid:scoreId.
type Board struct {
	mu      sync.Mutex
	entries map[string]store.LeaderboardRecord
	cap     int
}

func NewBoard() *Board {
	return &Board{entries: map[string]store.LeaderboardRecord{}, cap: Capacity}
}

// Upsert inserts or replaces the entry for its uid:scoreId key and trims the
// collection back to capacity under the ranking order.
func (b *Board) Upsert(e store.LeaderboardRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.UID+":"+e.ID] = e
	b.trimLocked()
}

func (b *Board) trimLocked() {
	if len(b.entries) <= b.cap {
		return
	}
	ranked := make([]store.LeaderboardRecord, 0, len(b.entries))
	for _, e := range b.entries {
		ranked = append(ranked, e)
	}
	Rank(ranked)
	for _, e := range ranked[b.cap:] {
		delete(b.entries, e.UID+":"+e.ID)
	}
}

// Ranked returns the entries best-first.
func (b *Board) Ranked() []store.LeaderboardRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]store.LeaderboardRecord, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	Rank(out)
	return out
}

// Replace swaps in a previously persisted set of entries.
func (b *Board) Replace(entries []store.LeaderboardRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]store.LeaderboardRecord, len(entries))
	for _, e := range entries {
		b.entries[e.UID+":"+e.ID] = e
	}
	b.trimLocked()
}
