package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/bots"
	"dice-parlor/internal/config"
	"dice-parlor/internal/gateway"
	"dice-parlor/internal/identity"
	"dice-parlor/internal/logging"
	"dice-parlor/internal/session"
	"dice-parlor/internal/store"
	"dice-parlor/internal/turns"
)

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logCloser, err := logging.Init(appCfg.Log)
	if err != nil {
		panic(err)
	}
	defer logCloser.Close()
	cfg := appCfg.Server

	ctx := context.Background()
	persister, err := newPersister(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("persister init failed")
	}
	state, err := loadState(ctx, persister)
	if err != nil {
		log.Fatal().Err(err).Msg("state load failed")
	}

	sessions := session.NewStore(session.Config{
		SessionTTL:     time.Duration(cfg.SessionTTLMins) * time.Minute,
		AccessTTL:      time.Duration(cfg.AccessTTLMins) * time.Minute,
		RefreshTTL:     time.Duration(cfg.RefreshTTLHours) * time.Hour,
		BotsPerSession: cfg.BotsPerSession,
	})
	registry := gateway.NewRegistry()
	turnSvc := turns.NewService(sessions, registry, state.persist)
	director := bots.NewDirector(bots.Config{
		AmbientMin: time.Duration(cfg.BotAmbientMinSecs) * time.Second,
		AmbientMax: time.Duration(cfg.BotAmbientMaxSecs) * time.Second,
		AdvanceMin: time.Duration(cfg.BotAdvanceMinSecs) * time.Second,
		AdvanceMax: time.Duration(cfg.BotAdvanceMaxSecs) * time.Second,
	}, sessions, turnSvc, registry, registry)
	defer director.Close()

	sessions.SetEvictHook(func(sessionID, reason string) {
		registry.CloseSession(sessionID, gateway.CloseSessionGone, reason)
		director.Stop(sessionID)
	})
	sessions.StartSweeper(ctx, time.Duration(cfg.SweepSecs)*time.Second)

	wsHandler := gateway.NewHandler(sessions, turnSvc, registry)
	wsHandler.SetReconciler(director.Reconcile)

	srv := &server{
		cfg:      cfg,
		state:    state,
		sessions: sessions,
		turns:    turnSvc,
		director: director,
		verifier: newVerifier(cfg),
	}
	r := newRouter(srv, wsHandler)
	logRoutes(r)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(httpServer.ListenAndServe()).Msg("server stopped")
}

func newPersister(ctx context.Context, cfg config.ServerConfig) (store.Persister, error) {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("no POSTGRES_DSN, state will not survive restarts")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func newVerifier(cfg config.ServerConfig) identity.Verifier {
	if cfg.IdentityVerifyURL == "" {
		return nil
	}
	return identity.NewHTTPVerifier(cfg.IdentityVerifyURL)
}
