package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dice-parlor/internal/bots"
	"dice-parlor/internal/config"
	"dice-parlor/internal/identity"
	"dice-parlor/internal/session"
	"dice-parlor/internal/store"
	"dice-parlor/internal/turns"
)

type server struct {
	cfg      config.ServerConfig
	state    *appState
	sessions *session.Store
	turns    *turns.Service
	director *bots.Director
	verifier identity.Verifier
}

// resolveIdentity maps an identity token to a uid. Without a configured
// verifier every caller is a fresh anonymous player.
func (s *server) resolveIdentity(ctx context.Context, token string) (identity.Claims, error) {
	if s.verifier == nil {
		return identity.Claims{UID: "anon_" + store.NewID(), Anonymous: true}, nil
	}
	return s.verifier.Verify(ctx, token)
}

type sessionResponse struct {
	SessionID    string              `json:"sessionId"`
	RoomCode     string              `json:"roomCode"`
	PlayerID     string              `json:"playerId"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	Participants []string            `json:"participants"`
	Tokens       session.TokenBundle `json:"tokens"`
}

func (s *server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IdentityToken string `json:"identityToken"`
		DisplayName   string `json:"displayName"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.DisplayName == "" {
		body.DisplayName = "Player"
	}
	claims, err := s.resolveIdentity(r.Context(), body.IdentityToken)
	if err != nil {
		writeHTTPError(w, http.StatusUnauthorized, "identity_verify_failed")
		return
	}
	sess, err := s.sessions.Create(claims.UID, body.DisplayName)
	if err != nil {
		writeHTTPError(w, http.StatusInternalServerError, "session_create_failed")
		return
	}
	bundle := s.sessions.IssueBundle(claims.UID, sess.ID)
	s.state.touchProfile(claims.UID, body.DisplayName, 0, false)
	s.state.persist()
	s.director.Reconcile(sess.ID)

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:    sess.ID,
		RoomCode:     sess.RoomCode,
		PlayerID:     claims.UID,
		ExpiresAt:    sess.ExpiresAt,
		Participants: sess.SeatedIDs(),
		Tokens:       bundle,
	})
}

func (s *server) joinSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	var body struct {
		IdentityToken string `json:"identityToken"`
		DisplayName   string `json:"displayName"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.DisplayName == "" {
		body.DisplayName = "Player"
	}
	claims, err := s.resolveIdentity(r.Context(), body.IdentityToken)
	if err != nil {
		writeHTTPError(w, http.StatusUnauthorized, "identity_verify_failed")
		return
	}
	if err := s.sessions.Join(sessionID, claims.UID, body.DisplayName); err != nil {
		writeSessionError(w, err)
		return
	}
	bundle := s.sessions.IssueBundle(claims.UID, sessionID)
	s.state.touchProfile(claims.UID, body.DisplayName, 0, false)
	s.director.Reconcile(sessionID)

	resp := sessionResponse{SessionID: sessionID, PlayerID: claims.UID, Tokens: bundle}
	_ = s.sessions.View(sessionID, func(sess *session.Session) error {
		resp.RoomCode = sess.RoomCode
		resp.ExpiresAt = sess.ExpiresAt
		resp.Participants = sess.SeatedIDs()
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) leaveSessionHandler(w http.ResponseWriter, r *http.Request) {
	rec := tokenFromContext(r.Context())
	sessionID := chi.URLParam(r, "session_id")
	if rec.SessionID != sessionID {
		writeHTTPError(w, http.StatusForbidden, "token_session_mismatch")
		return
	}
	res, err := s.sessions.Leave(sessionID, rec.PlayerID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.turns.HandleLeave(sessionID, res)
	s.director.Reconcile(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"destroyed": res.Destroyed,
		"newActive": res.NewActive,
	})
}

func (s *server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	bundle, err := s.sessions.Redeem(body.RefreshToken)
	if err != nil {
		writeHTTPError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *server) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries := s.state.board.Ranked()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *server) submitScoreHandler(w http.ResponseWriter, r *http.Request) {
	rec := tokenFromContext(r.Context())
	var body struct {
		ScoreID     string `json:"scoreId"`
		DisplayName string `json:"displayName"`
		Score       int    `json:"score"`
		DurationMs  int64  `json:"durationMs"`
		RollCount   int    `json:"rollCount"`
		Seed        string `json:"seed"`
		Mode        string `json:"mode"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Score < 0 || body.DurationMs < 0 || body.RollCount < 0 {
		writeHTTPError(w, http.StatusBadRequest, "bad_score")
		return
	}
	if body.ScoreID == "" {
		body.ScoreID = "score_" + store.NewID()
	}
	profile := s.state.touchProfile(rec.PlayerID, body.DisplayName, body.Score, true)
	s.state.board.Upsert(store.LeaderboardRecord{
		ID:          body.ScoreID,
		UID:         rec.PlayerID,
		DisplayName: profile.DisplayName,
		Score:       body.Score,
		Timestamp:   time.Now().UnixMilli(),
		Duration:    body.DurationMs,
		RollCount:   body.RollCount,
		Seed:        body.Seed,
		Mode:        body.Mode,
	})
	s.state.persist()
	writeJSON(w, http.StatusCreated, map[string]any{"id": body.ScoreID})
}

func (s *server) playerHandler(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	profile, ok := s.state.profile(uid)
	if !ok {
		writeHTTPError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) updatePlayerHandler(w http.ResponseWriter, r *http.Request) {
	rec := tokenFromContext(r.Context())
	uid := chi.URLParam(r, "uid")
	if uid != rec.PlayerID {
		writeHTTPError(w, http.StatusForbidden, "not_your_profile")
		return
	}
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.DisplayName == "" {
		writeHTTPError(w, http.StatusBadRequest, "missing_display_name")
		return
	}
	profile := s.state.touchProfile(uid, body.DisplayName, 0, false)
	s.state.persist()
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) submitLogsHandler(w http.ResponseWriter, r *http.Request) {
	rec := tokenFromContext(r.Context())
	var body struct {
		Entries []struct {
			Mode       string `json:"mode"`
			Score      int    `json:"score"`
			RollCount  int    `json:"rollCount"`
			DurationMs int64  `json:"durationMs"`
			Seed       string `json:"seed"`
		} `json:"entries"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Entries) == 0 {
		writeHTTPError(w, http.StatusBadRequest, "no_entries")
		return
	}
	now := time.Now()
	records := make([]store.GameLogRecord, len(body.Entries))
	for i, e := range body.Entries {
		records[i] = store.GameLogRecord{
			ID:        "log_" + store.NewID(),
			UID:       rec.PlayerID,
			Mode:      e.Mode,
			Score:     e.Score,
			RollCount: e.RollCount,
			Duration:  e.DurationMs,
			Seed:      e.Seed,
			CreatedAt: now,
		}
	}
	s.state.appendLogs(records)
	s.state.persist()
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": len(records)})
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(context.Context) error }
	if p, ok := s.state.persister.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeHTTPError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionExpired):
		writeHTTPError(w, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrAlreadySeated):
		writeHTTPError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNotSeated):
		writeHTTPError(w, http.StatusNotFound, err.Error())
	default:
		writeHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
