package session

import (
	"errors"
	"time"

	"dice-parlor/internal/store"
)

var ErrTokenInvalid = errors.New("invalid_token")

// TokenRecord is what the server keeps per issued token: the binding plus
// expiry. Records are keyed by a one-way hash of the raw value, never by the
// raw token itself.
type TokenRecord struct {
	PlayerID  string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenBundle struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// IssueBundle mints one access + one refresh token for a player/session pair
// and returns the raw values. Only hashes are retained.
func (st *Store) IssueBundle(playerID, sessionID string) TokenBundle {
	now := st.now()
	bundle := TokenBundle{
		AccessToken:      "dpa_" + store.NewID(),
		AccessExpiresAt:  now.Add(st.cfg.AccessTTL),
		RefreshToken:     "dpr_" + store.NewID(),
		RefreshExpiresAt: now.Add(st.cfg.RefreshTTL),
	}
	st.mu.Lock()
	st.access[store.HashToken(bundle.AccessToken)] = TokenRecord{
		PlayerID: playerID, SessionID: sessionID, IssuedAt: now, ExpiresAt: bundle.AccessExpiresAt,
	}
	st.refresh[store.HashToken(bundle.RefreshToken)] = TokenRecord{
		PlayerID: playerID, SessionID: sessionID, IssuedAt: now, ExpiresAt: bundle.RefreshExpiresAt,
	}
	st.mu.Unlock()
	return bundle
}

// VerifyAccess resolves a raw access token. An expired record is deleted and
// reported exactly like an unknown one.
func (st *Store) VerifyAccess(raw string) (TokenRecord, error) {
	return st.verify(st.access, raw)
}

func (st *Store) VerifyRefresh(raw string) (TokenRecord, error) {
	return st.verify(st.refresh, raw)
}

func (st *Store) verify(records map[string]TokenRecord, raw string) (TokenRecord, error) {
	key := store.HashToken(raw)
	st.mu.Lock()
	defer st.mu.Unlock()
	rec, ok := records[key]
	if !ok {
		return TokenRecord{}, ErrTokenInvalid
	}
	if st.now().After(rec.ExpiresAt) {
		delete(records, key)
		return TokenRecord{}, ErrTokenInvalid
	}
	return rec, nil
}

// Redeem consumes a refresh token and mints a fresh bundle bound to the same
// player and session. Refresh tokens are single-use: the consumed record is
// deleted even before the new pair is issued.
func (st *Store) Redeem(rawRefresh string) (TokenBundle, error) {
	key := store.HashToken(rawRefresh)
	st.mu.Lock()
	rec, ok := st.refresh[key]
	if !ok || st.now().After(rec.ExpiresAt) {
		delete(st.refresh, key)
		st.mu.Unlock()
		return TokenBundle{}, ErrTokenInvalid
	}
	delete(st.refresh, key)
	st.mu.Unlock()
	return st.IssueBundle(rec.PlayerID, rec.SessionID), nil
}
