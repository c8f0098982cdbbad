package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/store"
)

// Lifecycle drives room creation, destruction and the explicit setup,
// teardown and refresh operations.
type Lifecycle struct {
	store       *store.Store
	be          Backend
	rec         *Reconciler
	panels      *PanelRenderer
	sync        *Synchronizer
	namePattern string
}

func NewLifecycle(st *store.Store, be Backend, rec *Reconciler, panels *PanelRenderer, sync *Synchronizer, namePattern string) *Lifecycle {
	return &Lifecycle{
		store:       st,
		be:          be,
		rec:         rec,
		panels:      panels,
		sync:        sync,
		namePattern: namePattern,
	}
}

// Room exposes stored config lookups to the router.
func (l *Lifecycle) Room(room domain.RoomID) (*domain.RoomConfig, error) {
	return l.store.Room(room)
}

// HandleVoiceJoin spawns an ephemeral room when the join-to-create channel
// is entered. The joining user is moved first; grants and the panel follow
// asynchronously so the move is never delayed by REST round-trips.
func (l *Lifecycle) HandleVoiceJoin(ev VoiceJoin) {
	defer guard(nil)

	gcfg, err := l.store.Guild(ev.GuildID)
	if err != nil {
		log.Error().Err(err).Str("module", "lifecycle").Str("guild", string(ev.GuildID)).Msg("load guild config")
		return
	}
	if gcfg == nil || gcfg.CreateChannelID == "" || gcfg.CreateChannelID != ev.ChannelID {
		return
	}

	tpl, err := l.store.Template(ev.GuildID)
	if err != nil {
		log.Warn().Err(err).Str("module", "lifecycle").Msg("load room template")
	}
	if tpl == nil {
		tpl = domain.EmptyRoomTemplate()
		if err := l.store.SetTemplate(ev.GuildID, tpl); err != nil {
			log.Warn().Err(err).Str("module", "lifecycle").Msg("seed room template")
		}
	}

	name := fmt.Sprintf(l.namePattern, ev.DisplayName)
	nt, err := l.store.NameFor(ev.GuildID, ev.UserID)
	if err != nil {
		log.Warn().Err(err).Str("module", "lifecycle").Msg("load name template")
	}
	if nt != nil {
		if preferred := strings.TrimSpace(nt.Name); preferred != "" {
			name = preferred
		}
	}

	parentID := ""
	if info, err := l.be.ChannelInfo(ev.ChannelID); err == nil {
		parentID = info.ParentID
	}

	room, err := l.be.CreateVoiceChannel(ev.GuildID, name, parentID)
	if err != nil {
		log.Error().Err(err).Str("module", "lifecycle").Str("guild", string(ev.GuildID)).Msg("create room")
		return
	}
	log.Info().Str("module", "lifecycle").Str("room", string(room)).Str("owner", string(ev.UserID)).Str("name", name).Msg("room created")

	if err := l.be.MoveMember(ev.GuildID, ev.UserID, room); err != nil {
		log.Warn().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("move owner")
	}
	if err := l.be.SetUserLimit(room, tpl.UserLimit); err != nil {
		log.Warn().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("set limit")
	}

	cfg := tpl.Apply(ev.UserID)
	if err := l.store.SetRoom(room, cfg); err != nil {
		log.Error().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("persist config")
		return
	}

	go func() {
		defer guard(nil)
		l.rec.Apply(ev.GuildID, room, cfg)
		if err := l.store.SetRoom(room, cfg); err != nil {
			log.Error().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("persist managed set")
		}
		l.panels.Schedule(room)
	}()
}

// HandleVoiceLeave destroys an ephemeral room once its last occupant is
// gone. Persistent rooms are never auto-destroyed.
func (l *Lifecycle) HandleVoiceLeave(ev VoiceLeave) {
	defer guard(nil)

	cfg, err := l.store.Room(ev.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("module", "lifecycle").Str("room", string(ev.ChannelID)).Msg("load config")
		return
	}
	if cfg == nil || cfg.Persistent {
		return
	}

	info, err := l.be.ChannelInfo(ev.ChannelID)
	if err != nil {
		if errors.Is(err, ErrStale) {
			// channel already deleted out from under us
			l.dropRoom(ev.ChannelID)
		}
		return
	}
	if info.MemberCount > 0 {
		return
	}

	l.dropRoom(ev.ChannelID)
	if err := l.be.DeleteChannel(ev.ChannelID); err != nil && !errors.Is(err, ErrStale) {
		log.Warn().Err(err).Str("module", "lifecycle").Str("room", string(ev.ChannelID)).Msg("delete room")
	}
	log.Info().Str("module", "lifecycle").Str("room", string(ev.ChannelID)).Msg("empty room destroyed")
}

func (l *Lifecycle) dropRoom(room domain.RoomID) {
	l.panels.Cancel(room)
	if err := l.store.DeleteRoom(room); err != nil {
		log.Error().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("delete config")
	}
}

// SetCreate records the guild's join-to-create channel and seeds an empty
// room template when none exists.
func (l *Lifecycle) SetCreate(gid domain.GuildID, channel domain.RoomID) error {
	if err := l.store.SetGuild(gid, &domain.GuildConfig{CreateChannelID: channel}); err != nil {
		return err
	}
	tpl, err := l.store.Template(gid)
	if err != nil {
		return err
	}
	if tpl == nil {
		return l.store.SetTemplate(gid, domain.EmptyRoomTemplate())
	}
	return nil
}

// Setup converts an existing voice channel into a managed persistent room
// with a fresh empty config. Re-running it on a managed room is rejected,
// not reapplied.
func (l *Lifecycle) Setup(gid domain.GuildID, room domain.RoomID, owner domain.UserID) error {
	existing, err := l.store.Room(room)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrAlreadyManaged
	}

	info, err := l.be.ChannelInfo(room)
	if err != nil {
		return err
	}

	cfg := domain.NewRoomConfig(owner, true)
	cfg.UserLimit = info.UserLimit

	l.rec.Apply(gid, room, cfg)
	if err := l.store.SetRoom(room, cfg); err != nil {
		return err
	}
	l.panels.Sweep(room, "")
	l.panels.Render(room)
	log.Info().Str("module", "lifecycle").Str("room", string(room)).Str("owner", string(owner)).Msg("persistent room set up")
	return nil
}

// Teardown strips a managed room back to platform defaults: panel message
// deleted, limit zeroed, every overwrite removed, stored config gone. The
// channel and its name survive.
func (l *Lifecycle) Teardown(room domain.RoomID) error {
	cfg, err := l.store.Room(room)
	if err != nil {
		return err
	}
	if cfg == nil {
		return domain.ErrNotManaged
	}

	if cfg.PanelMessageID != "" {
		if err := l.be.DeleteMessage(room, cfg.PanelMessageID); err != nil && !errors.Is(err, ErrStale) {
			log.Warn().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("delete panel")
		}
	}
	if err := l.be.SetUserLimit(room, 0); err != nil && !errors.Is(err, ErrStale) {
		log.Warn().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("reset limit")
	}
	if err := l.be.ClearAllOverwrites(room); err != nil && !errors.Is(err, ErrStale) {
		log.Warn().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("clear overwrites")
	}

	l.dropRoom(room)
	log.Info().Str("module", "lifecycle").Str("room", string(room)).Msg("room torn down")
	return nil
}

// Refresh pulls the room's live state into storage and re-renders the
// panel, sweeping any duplicate panel messages. Drift recovery for manual
// admin edits and lost panel messages.
func (l *Lifecycle) Refresh(room domain.RoomID) error {
	cfg, err := l.store.Room(room)
	if err != nil {
		return err
	}
	if cfg == nil {
		return domain.ErrNotManaged
	}

	if err := l.sync.Pull(room, cfg); err != nil {
		if errors.Is(err, ErrStale) {
			return nil
		}
		return err
	}
	if err := l.store.SetRoom(room, cfg); err != nil {
		return err
	}
	l.panels.Sweep(room, cfg.PanelMessageID)
	l.panels.Render(room)
	return nil
}

// RememberName stores the owner's preferred room name for their future
// ephemeral rooms.
func (l *Lifecycle) RememberName(gid domain.GuildID, owner domain.UserID, name string) {
	if err := l.store.SetNameFor(gid, owner, &domain.NameTemplate{Name: name}); err != nil {
		log.Warn().Err(err).Str("module", "lifecycle").Str("user", string(owner)).Msg("remember room name")
	}
}

// CommitChange is the shared tail of every panel mutation: reconcile the
// live grants, persist, queue a debounced re-render, and feed the guild
// template from ephemeral rooms so the next room inherits these settings.
func (l *Lifecycle) CommitChange(gid domain.GuildID, room domain.RoomID, cfg *domain.RoomConfig) {
	l.rec.Apply(gid, room, cfg)
	if err := l.store.SetRoom(room, cfg); err != nil {
		log.Error().Err(err).Str("module", "lifecycle").Str("room", string(room)).Msg("persist config")
	}
	l.panels.Schedule(room)
	if !cfg.Persistent {
		if err := l.store.SetTemplate(gid, domain.TemplateOf(cfg)); err != nil {
			log.Warn().Err(err).Str("module", "lifecycle").Str("guild", string(gid)).Msg("update room template")
		}
	}
}
