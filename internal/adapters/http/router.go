// Package http exposes a small read-only admin surface: health and the
// currently managed rooms. It never mutates engine state.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/config"
	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/store"
)

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Header("X-Request-Id", rid)
		c.Next()
	}
}

type roomSummary struct {
	ID         domain.RoomID `json:"id"`
	OwnerID    domain.UserID `json:"ownerId"`
	Persistent bool          `json:"persistent"`
	Locked     bool          `json:"locked"`
	UserLimit  int           `json:"userLimit"`
	Mods       int           `json:"mods"`
	Allow      int           `json:"allow"`
	Deny       int           `json:"deny"`
}

func SetupRouter(cfg *config.Config, st *store.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		rooms, err := st.ManagedRooms()
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("rid", c.GetString("request_id")).Msg("list rooms")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}
		out := make([]roomSummary, 0, len(rooms))
		for id, cfg := range rooms {
			out = append(out, roomSummary{
				ID:         id,
				OwnerID:    cfg.OwnerID,
				Persistent: cfg.Persistent,
				Locked:     cfg.Locked,
				UserLimit:  cfg.UserLimit,
				Mods:       len(cfg.Mods),
				Allow:      len(cfg.Allow),
				Deny:       len(cfg.Deny),
			})
		}
		c.JSON(http.StatusOK, gin.H{"rooms": out})
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		cfg, err := st.Room(domain.RoomID(c.Param("id")))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("rid", c.GetString("request_id")).Msg("load room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}
		if cfg == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not managed"})
			return
		}
		c.JSON(http.StatusOK, cfg)
	})

	return r
}
