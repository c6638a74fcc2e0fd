package store

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewIDIsUniqueAndSortable(t *testing.T) {
	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if id < prev {
			t.Fatalf("ids not monotonic: %s after %s", id, prev)
		}
		prev = id
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	h := HashToken("dpa_secret")
	if h != HashToken("dpa_secret") {
		t.Fatal("hash must be deterministic")
	}
	if h == HashToken("dpa_other") {
		t.Fatal("distinct tokens must not collide")
	}
	if strings.Contains(h, "secret") || len(h) != 64 {
		t.Fatalf("unexpected hash %q", h)
	}
}

func TestMemoryRoundTripDeepCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	empty, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(empty.Players) != 0 || empty.Leaderboard != nil {
		t.Fatalf("empty snapshot = %+v", empty)
	}

	snap := EmptySnapshot()
	snap.Players["u1"] = PlayerProfile{UID: "u1", DisplayName: "Ann", CreatedAt: time.Now().UTC()}
	snap.Leaderboard = []LeaderboardRecord{{ID: "s1", UID: "u1", Score: 7}}
	if err := m.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the original must not affect what was saved.
	snap.Players["u1"] = PlayerProfile{UID: "u1", DisplayName: "changed"}
	snap.Leaderboard[0].Score = 999

	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Players["u1"].DisplayName != "Ann" {
		t.Fatalf("profile = %+v", got.Players["u1"])
	}
	if got.Leaderboard[0].Score != 7 {
		t.Fatalf("leaderboard = %+v", got.Leaderboard)
	}
}
