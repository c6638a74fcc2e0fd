package session

import (
	"errors"
	"testing"
	"time"
)

func testStore(t *testing.T, bots int) (*Store, *time.Time) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BotsPerSession = bots
	st := NewStore(cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }
	return st, &now
}

func TestCreateSeedsBotsAndTurnOrder(t *testing.T) {
	st, _ := testStore(t, 2)
	s, err := st.Create("human1", "Avery")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(s.Participants) != 3 {
		t.Fatalf("expected host + 2 bots, got %d participants", len(s.Participants))
	}
	seated := s.SeatedIDs()
	if seated[0] != "human1" {
		t.Fatalf("host must be seated first, got %v", seated)
	}
	if s.Turn.ActivePlayerID != "human1" {
		t.Fatalf("active = %s", s.Turn.ActivePlayerID)
	}
	if len(s.Turn.Order) != 3 {
		t.Fatalf("turn order %v must cover all participants", s.Turn.Order)
	}
	if s.RoomCode == "" || len(s.RoomCode) != 6 {
		t.Fatalf("bad room code %q", s.RoomCode)
	}
}

func TestBotCountClamped(t *testing.T) {
	st, _ := testStore(t, 99)
	s, err := st.Create("h", "Host")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := len(s.BotIDs()); got != MaxBotsPerSession {
		t.Fatalf("expected %d bots, got %d", MaxBotsPerSession, got)
	}
}

func TestJoinAndLeaveReconcileOrder(t *testing.T) {
	st, _ := testStore(t, 0)
	s, _ := st.Create("A", "A")
	if err := st.Join(s.ID, "B", "B"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := st.Join(s.ID, "B", "B"); !errors.Is(err, ErrAlreadySeated) {
		t.Fatalf("want ErrAlreadySeated, got %v", err)
	}
	res, err := st.Leave(s.ID, "B")
	if err != nil || res.Destroyed {
		t.Fatalf("leave: res=%+v err=%v", res, err)
	}
	if err := st.View(s.ID, func(s *Session) error {
		if len(s.Turn.Order) != 1 || s.Turn.Order[0] != "A" {
			t.Fatalf("order after leave = %v", s.Turn.Order)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLastHumanLeavingDestroysSession(t *testing.T) {
	st, _ := testStore(t, 2)
	s, _ := st.Create("A", "A")

	evicted := map[string]string{}
	st.SetEvictHook(func(id, reason string) { evicted[id] = reason })

	res, err := st.Leave(s.ID, "A")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !res.Destroyed {
		t.Fatal("expected destruction when last human leaves (bots remain)")
	}
	if evicted[s.ID] != "room_empty" {
		t.Fatalf("evict hook got %v", evicted)
	}
	if err := st.View(s.ID, func(*Session) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestActiveLeaverHandsTurnToNextSeat(t *testing.T) {
	st, _ := testStore(t, 1)
	s, _ := st.Create("A", "A")
	if err := st.Join(s.ID, "B", "B"); err != nil {
		t.Fatalf("join: %v", err)
	}
	// A holds the turn and leaves; B (next seat) should become active.
	res, err := st.Leave(s.ID, "A")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if res.Destroyed {
		t.Fatal("session still has a human, must not be destroyed")
	}
	if !res.ActiveChanged {
		t.Fatal("expected a new active player")
	}
	bot := s.BotIDs()[0]
	if res.NewActive != bot && res.NewActive != "B" {
		t.Fatalf("new active %q not a seated participant", res.NewActive)
	}
}

func TestSweepEvictsExpiredSessions(t *testing.T) {
	st, now := testStore(t, 1)
	s, _ := st.Create("A", "A")

	evicted := map[string]string{}
	st.SetEvictHook(func(id, reason string) { evicted[id] = reason })

	*now = now.Add(3 * time.Hour)
	sessions, _ := st.Sweep(*now)
	if sessions != 1 {
		t.Fatalf("expected 1 session evicted, got %d", sessions)
	}
	if evicted[s.ID] != "session_expired" {
		t.Fatalf("evict hook got %v", evicted)
	}
}

func TestHeartbeatRequiresSeatedPlayer(t *testing.T) {
	st, _ := testStore(t, 0)
	s, _ := st.Create("A", "A")
	if err := st.Heartbeat(s.ID, "A"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := st.Heartbeat(s.ID, "ghost"); !errors.Is(err, ErrNotSeated) {
		t.Fatalf("want ErrNotSeated, got %v", err)
	}
}
