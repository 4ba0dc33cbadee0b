package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"appstorys-engine/internal/api"
	"appstorys-engine/internal/cache"
	"appstorys-engine/internal/config"
	"appstorys-engine/internal/engine"
	"appstorys-engine/internal/storage"
	"appstorys-engine/internal/tracker"
	"appstorys-engine/internal/transport"
)

const credentialUserID = "user_id"

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable stores (offline queue + credentials)
	store, err := storage.Open(cfg.Engine.OfflineStorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	userID := loadOrCreateUserID(rootCtx, store)

	// Backend client; the token is refreshed out of band and read from
	// the credential store on every call
	client := transport.NewHTTPClient(cfg.API.BaseURL, cfg.API.AppID, cfg.FetchTimeout(), func() string {
		tok, err := store.LoadCredential(rootCtx, "access_token")
		if err != nil {
			return ""
		}
		return tok
	})

	tr := tracker.New(client, store, userID, cfg.Debounce())
	defer tr.Stop()

	eng := engine.New(engine.Options{
		Client:       client,
		Cache:        cache.NewScreenCache(cfg.CacheTTL()),
		Tracker:      tr,
		UserID:       userID,
		FetchTimeout: cfg.FetchTimeout(),
	})
	if err := eng.Initialize(rootCtx); err != nil {
		log.Warn().Err(err).Msg("offline event replay failed; will retry next start")
	}

	r := api.Router(api.NewHandler(eng))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("driver server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel()
	_ = srv.Shutdown(shCtx)
}

func loadOrCreateUserID(ctx context.Context, store *storage.Store) string {
	if id, err := store.LoadCredential(ctx, credentialUserID); err == nil {
		return id
	}
	id := uuid.NewString()
	if err := store.SaveCredential(ctx, credentialUserID, id); err != nil {
		log.Warn().Err(err).Msg("persisting user id failed; using ephemeral id")
	}
	return id
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
