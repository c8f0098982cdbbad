package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/adapters/discord"
	router "github.com/selimk/Lobby/internal/adapters/http"
	"github.com/selimk/Lobby/internal/config"
	"github.com/selimk/Lobby/internal/core"
	"github.com/selimk/Lobby/internal/store"
	"github.com/selimk/Lobby/internal/ticket"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	adapter, err := discord.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord session")
	}
	be := adapter.Backend()

	rec := core.NewReconciler(be)
	panels := core.NewPanelRenderer(be, st, cfg.Panel.Debounce, cfg.Panel.SweepScan)
	lc := core.NewLifecycle(st, be, rec, panels, core.NewSynchronizer(be), cfg.RoomNamePattern)
	rt := core.NewRouter(lc, be, core.Rules{ModsManageAccess: cfg.Permissions.ModsManageAccess})

	adapter.Bind(rt, lc, ticket.New(st))
	if err := adapter.Open(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the gateway")
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			log.Error().Err(err).Msg("gateway close")
		}
	}()

	r := router.SetupRouter(cfg, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Lobby server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
