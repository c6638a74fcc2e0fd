package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not_found")

// Snapshot is the durable slice of server state: player profiles, the
// leaderboard, and the game log. Live sessions and tokens are in-memory only
// and never persisted.
type Snapshot struct {
	Players     map[string]PlayerProfile `json:"players"`
	Leaderboard []LeaderboardRecord      `json:"leaderboard"`
	Logs        []GameLogRecord          `json:"logs"`
}

type PlayerProfile struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	GamesPlayed int       `json:"games_played"`
	BestScore   int       `json:"best_score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LeaderboardRecord struct {
	ID          string    `json:"id"`
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	Timestamp   int64     `json:"timestamp"`
	Duration    int64     `json:"duration_ms"`
	RollCount   int       `json:"roll_count"`
	Seed        string    `json:"seed"`
	Mode        string    `json:"mode"`
}

type GameLogRecord struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Mode      string    `json:"mode"`
	Score     int       `json:"score"`
	RollCount int       `json:"roll_count"`
	Duration  int64     `json:"duration_ms"`
	Seed      string    `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

// Persister is the persistence collaborator contract. Save failures are
// advisory: callers log them and keep serving from memory.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

func EmptySnapshot() *Snapshot {
	return &Snapshot{Players: map[string]PlayerProfile{}}
}

// HashToken derives the storage key for a raw token value. Raw tokens are
// never kept server side.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
