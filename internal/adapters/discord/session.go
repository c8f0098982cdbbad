// Package discord adapts the voice room engine to the Discord gateway:
// it owns the session, translates gateway events into engine events, and
// implements the engine's backend on the REST API.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/config"
	"github.com/selimk/Lobby/internal/core"
	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/ticket"
)

type Adapter struct {
	s      *discordgo.Session
	cfg    *config.Config
	router *core.Router
	lc     *core.Lifecycle
	ticket *ticket.Feature
}

func New(cfg *config.Config) (*Adapter, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages
	return &Adapter{s: s, cfg: cfg}, nil
}

// Backend exposes the REST surface the engine drives.
func (a *Adapter) Backend() *Backend {
	return NewBackend(a.s)
}

// Bind attaches the engine and registers the gateway handlers. Must be
// called before Open.
func (a *Adapter) Bind(router *core.Router, lc *core.Lifecycle, tf *ticket.Feature) {
	a.router = router
	a.lc = lc
	a.ticket = tf
	a.s.AddHandler(a.onReady)
	a.s.AddHandler(a.onVoiceStateUpdate)
	a.s.AddHandler(a.onInteraction)
}

func (a *Adapter) Open() error {
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.s.Close()
}

func (a *Adapter) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("module", "discord").
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("gateway ready")

	if err := s.UpdateGameStatus(0, "voice rooms"); err != nil {
		log.Warn().Err(err).Str("module", "discord").Msg("set presence")
	}

	appID := a.cfg.AppID
	if appID == "" {
		// for bot applications the app id matches the bot user id
		appID = r.User.ID
	}
	if err := a.registerCommands(appID); err != nil {
		log.Error().Err(err).Str("module", "discord").Msg("register commands")
	}
}

func displayName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil {
		if m.Nick != "" {
			return m.Nick
		}
		if m.User != nil {
			u = m.User
		}
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (a *Adapter) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	var before string
	if vsu.BeforeUpdate != nil {
		before = vsu.BeforeUpdate.ChannelID
	}
	after := vsu.ChannelID
	if before == after {
		return
	}

	log.Debug().
		Str("module", "discord").
		Str("guild", vsu.GuildID).
		Str("user", vsu.UserID).
		Str("from", before).
		Str("to", after).
		Msg("voice state update")

	if before != "" {
		a.lc.HandleVoiceLeave(core.VoiceLeave{
			GuildID:   domain.GuildID(vsu.GuildID),
			UserID:    domain.UserID(vsu.UserID),
			ChannelID: domain.RoomID(before),
		})
	}
	if after != "" {
		a.lc.HandleVoiceJoin(core.VoiceJoin{
			GuildID:     domain.GuildID(vsu.GuildID),
			UserID:      domain.UserID(vsu.UserID),
			DisplayName: displayName(vsu.Member, nil),
			ChannelID:   domain.RoomID(after),
		})
	}
}
