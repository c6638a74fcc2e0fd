package main

import (
	"context"
	"net/http"

	"dice-parlor/internal/session"
)

type tokenContextKey struct{}

// accessAuthMiddleware resolves the bearer access token and stashes its
// binding for the handler.
func (s *server) accessAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		prefix := "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			writeHTTPError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		rec, err := s.sessions.VerifyAccess(auth[len(prefix):])
		if err != nil {
			writeHTTPError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), tokenContextKey{}, rec)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromContext(ctx context.Context) session.TokenRecord {
	rec, _ := ctx.Value(tokenContextKey{}).(session.TokenRecord)
	return rec
}
