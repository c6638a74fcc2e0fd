package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/leaderboard"
	"dice-parlor/internal/store"
)

// maxLogRecords bounds the retained game log; oldest entries fall off.
const maxLogRecords = 1000

// appState is the in-memory authority over durable data: player profiles,
// the leaderboard and the game log. The persister trails behind it; a failed
// save is logged and the in-memory copy keeps serving.
type appState struct {
	persister store.Persister

	mu       sync.Mutex
	profiles map[string]store.PlayerProfile
	logs     []store.GameLogRecord

	board *leaderboard.Board
}

func loadState(ctx context.Context, persister store.Persister) (*appState, error) {
	snap, err := persister.Load(ctx)
	if err != nil {
		return nil, err
	}
	a := &appState{
		persister: persister,
		profiles:  snap.Players,
		logs:      snap.Logs,
		board:     leaderboard.NewBoard(),
	}
	if a.profiles == nil {
		a.profiles = map[string]store.PlayerProfile{}
	}
	a.board.Replace(snap.Leaderboard)
	log.Info().Int("players", len(a.profiles)).Int("leaderboard", len(snap.Leaderboard)).Msg("state_loaded")
	return a, nil
}

func (a *appState) profile(uid string) (store.PlayerProfile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.profiles[uid]
	return p, ok
}

// touchProfile creates or updates a profile, bumping games played when a
// finished game is being recorded.
func (a *appState) touchProfile(uid, displayName string, score int, playedGame bool) store.PlayerProfile {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	p, ok := a.profiles[uid]
	if !ok {
		p = store.PlayerProfile{UID: uid, CreatedAt: now, BestScore: score}
	}
	if displayName != "" {
		p.DisplayName = displayName
	}
	if playedGame {
		p.GamesPlayed++
		if score < p.BestScore || p.GamesPlayed == 1 {
			p.BestScore = score
		}
	}
	p.UpdatedAt = now
	a.profiles[uid] = p
	return p
}

func (a *appState) appendLogs(records []store.GameLogRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, records...)
	if len(a.logs) > maxLogRecords {
		a.logs = a.logs[len(a.logs)-maxLogRecords:]
	}
}

// persist writes the current snapshot in the background. Failure is
// advisory: memory stays authoritative for live sessions.
func (a *appState) persist() {
	snap := a.snapshot()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.persister.Save(ctx, snap); err != nil {
			log.Error().Err(err).Msg("state_save_failed")
		}
	}()
}

func (a *appState) snapshot() *store.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	players := make(map[string]store.PlayerProfile, len(a.profiles))
	for k, v := range a.profiles {
		players[k] = v
	}
	return &store.Snapshot{
		Players:     players,
		Leaderboard: a.board.Ranked(),
		Logs:        append([]store.GameLogRecord(nil), a.logs...),
	}
}
