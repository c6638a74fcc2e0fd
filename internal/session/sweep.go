package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweep evicts expired tokens and sessions. For each evicted session the
// evict hook runs afterwards so the gateway can notify and close its sockets.
func (st *Store) Sweep(now time.Time) (sessions, tokens int) {
	st.mu.Lock()
	for key, rec := range st.access {
		if now.After(rec.ExpiresAt) {
			delete(st.access, key)
			tokens++
		}
	}
	for key, rec := range st.refresh {
		if now.After(rec.ExpiresAt) {
			delete(st.refresh, key)
			tokens++
		}
	}
	expired := []*Session{}
	for _, s := range st.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		st.destroyLocked(s)
	}
	evict := st.onEvict
	st.mu.Unlock()

	if evict != nil {
		for _, s := range expired {
			evict(s.ID, "session_expired")
		}
	}
	if len(expired) > 0 || tokens > 0 {
		log.Debug().Int("sessions", len(expired)).Int("tokens", tokens).Msg("sweep_evicted")
	}
	return len(expired), tokens
}

// StartSweeper runs the eager periodic sweep until ctx is cancelled.
func (st *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st.Sweep(now)
			}
		}
	}()
}
