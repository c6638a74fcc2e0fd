package main

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"dice-parlor/internal/gateway"
	"dice-parlor/internal/session"
	"dice-parlor/internal/turns"
)

func TestRouterExposesExpectedRoutes(t *testing.T) {
	sessions := session.NewStore(session.Config{})
	registry := gateway.NewRegistry()
	turnSvc := turns.NewService(sessions, registry, nil)
	srv := &server{sessions: sessions, turns: turnSvc}
	r := newRouter(srv, gateway.NewHandler(sessions, turnSvc, registry))

	got := map[string]bool{}
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	want := []string{
		"GET /healthz",
		"POST /api/sessions",
		"POST /api/sessions/{session_id}/join",
		"POST /api/sessions/{session_id}/leave",
		"POST /api/auth/refresh",
		"GET /api/leaderboard",
		"POST /api/leaderboard",
		"GET /api/players/{uid}",
		"PUT /api/players/{uid}",
		"POST /api/logs",
	}
	for _, route := range want {
		if !got[route] {
			t.Errorf("missing route %s (have %v)", route, got)
		}
	}
}
