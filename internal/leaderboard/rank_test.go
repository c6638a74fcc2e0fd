package leaderboard

import (
	"fmt"
	"testing"

	"dice-parlor/internal/store"
)

func entry(id string, score int, duration int64, rolls int, ts int64) store.LeaderboardRecord {
	return store.LeaderboardRecord{ID: id, UID: "u1", Score: score, Duration: duration, RollCount: rolls, Timestamp: ts}
}

func TestRankTieBreakChain(t *testing.T) {
	entries := []store.LeaderboardRecord{
		entry("b", 10, 5000, 12, 100),
		entry("a", 10, 5000, 12, 100),
		entry("c", 10, 5000, 11, 200),
		entry("d", 10, 4000, 20, 50),
		entry("e", 9, 9000, 30, 999),
		entry("f", 10, 5000, 12, 99),
	}
	Rank(entries)
	want := []string{"e", "d", "c", "f", "a", "b"}
	for i, id := range want {
		if entries[i].ID != id {
			t.Fatalf("position %d: want %s got %s", i, id, entries[i].ID)
		}
	}
}

func TestLessIsTotalOrder(t *testing.T) {
	a := entry("a", 5, 100, 3, 10)
	b := entry("b", 5, 100, 3, 10)
	if Less(a, a) {
		t.Fatal("Less must be irreflexive")
	}
	if Less(a, b) == Less(b, a) {
		t.Fatal("distinct entries must be strictly ordered")
	}
}

func TestBoardTrimKeepsTopEntries(t *testing.T) {
	b := NewBoard()
	for i := 0; i < Capacity+50; i++ {
		b.Upsert(entry(fmt.Sprintf("s%03d", i), i, 1000, 10, int64(i)))
	}
	ranked := b.Ranked()
	if len(ranked) != Capacity {
		t.Fatalf("expected %d entries after trim, got %d", Capacity, len(ranked))
	}
	// Every kept entry must rank above every trimmed one: worst kept score
	// is Capacity-1, the trimmed entries all scored >= Capacity.
	for _, e := range ranked {
		if e.Score >= Capacity {
			t.Fatalf("trim kept entry %s (score %d) that ranks below a removed one", e.ID, e.Score)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if Less(ranked[i], ranked[i-1]) {
			t.Fatalf("ranked output out of order at %d", i)
		}
	}
}

func TestBoardUpsertReplacesSameKey(t *testing.T) {
	b := NewBoard()
	b.Upsert(entry("x", 50, 1000, 10, 1))
	b.Upsert(entry("x", 40, 1000, 10, 2))
	ranked := b.Ranked()
	if len(ranked) != 1 {
		t.Fatalf("expected single entry for same uid:scoreId, got %d", len(ranked))
	}
	if ranked[0].Score != 40 {
		t.Fatalf("expected replacement score 40, got %d", ranked[0].Score)
	}
}
