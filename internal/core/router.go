package core

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/domain"
)

// Component and modal identifiers. Each carries the room id after the
// colon as a sanity hint; the authoritative room is always the surface the
// interaction arrived on.
const (
	SelOwner  = "sel_owner"
	SelMods   = "sel_mods"
	SelAllow  = "sel_allow"
	SelDeny   = "sel_deny"
	BtnLock   = "btn_lock"
	BtnUnlock = "btn_unlock"
	BtnLimit  = "btn_limit"
	BtnRename = "btn_rename"
	BtnClear  = "btn_clear"

	ModalLimit  = "m_limit"
	ModalRename = "m_rename"

	FieldLimit = "limit"
	FieldName  = "name"
)

const (
	CmdSetCreate = "setcreate"
	CmdSetup     = "setup"
	CmdPanel     = "panel"
	CmdTeardown  = "teardown"
)

// Rules is the authorization matrix. The original feature shipped multiple
// revisions that disagreed on whether mods may edit access lists, so it is
// a configuration decision here rather than a constant.
type Rules struct {
	ModsManageAccess bool
}

type limitInput struct {
	Limit int `validate:"gte=0,lte=99"`
}

type nameInput struct {
	Name string `validate:"required,max=50"`
}

// Router dispatches inbound interactions to the engine, enforcing the
// capability matrix. Every handler is wrapped so a single bad interaction
// can never crash the process.
type Router struct {
	lc       *Lifecycle
	be       Backend
	rules    Rules
	validate *validator.Validate
}

func NewRouter(lc *Lifecycle, be Backend, rules Rules) *Router {
	return &Router{
		lc:       lc,
		be:       be,
		rules:    rules,
		validate: validator.New(),
	}
}

func canManage(a Actor, cfg *domain.RoomConfig) bool {
	return a.Elevated() || a.ID == cfg.OwnerID
}

func (rt *Router) canEditAccess(a Actor, cfg *domain.RoomConfig) bool {
	if canManage(a, cfg) {
		return true
	}
	return rt.rules.ModsManageAccess && cfg.IsMod(a.ID)
}

// SplitCustomID separates a component id into its base and room hint.
func SplitCustomID(id string) (base, hint string) {
	base, hint, _ = strings.Cut(id, ":")
	return base, hint
}

// CustomID builds a component id carrying the room hint.
func CustomID(base string, room domain.RoomID) string {
	return base + ":" + string(room)
}

// guard is deferred at the top of every event handler, interactive or
// not, so a single bad event can never take the process down. r is nil on
// paths with no one to reply to.
func guard(r Responder) {
	if rec := recover(); rec != nil {
		log.Error().
			Str("module", "core").
			Any("panic", rec).
			Bytes("stack", debug.Stack()).
			Msg("handler panicked")
		if r != nil {
			r.Reply("Something went wrong, please try again.")
		}
	}
}

// HandleCommand routes a slash command. Unrecognized names are ignored so
// unrelated command surfaces can coexist.
func (rt *Router) HandleCommand(ev CommandEvent, r Responder) {
	defer guard(r)
	switch ev.Name {
	case CmdSetCreate:
		rt.setCreate(ev, r)
	case CmdSetup:
		rt.setup(ev, r)
	case CmdPanel:
		rt.refreshPanel(ev, r)
	case CmdTeardown:
		rt.teardown(ev, r)
	}
}

func (rt *Router) setCreate(ev CommandEvent, r Responder) {
	if !ev.Actor.Elevated() {
		r.Reply("Only a server admin can use this command.")
		return
	}
	if ev.TargetChannelID == "" || !ev.TargetIsVoice {
		r.Reply("Pick a voice channel.")
		return
	}
	if err := rt.lc.SetCreate(ev.GuildID, ev.TargetChannelID); err != nil {
		log.Error().Err(err).Str("module", "router").Str("guild", string(ev.GuildID)).Msg("setcreate")
		r.Reply("Could not save the join-to-create channel.")
		return
	}
	r.Reply("Join-to-create channel set.")
}

func (rt *Router) setup(ev CommandEvent, r Responder) {
	if !ev.Actor.Elevated() {
		r.Reply("Only a server admin can use this command.")
		return
	}
	room := ev.SurfaceVoiceID
	if ev.TargetChannelID != "" {
		if !ev.TargetIsVoice {
			r.Reply("Pick a voice channel.")
			return
		}
		room = ev.TargetChannelID
	}
	if room == "" {
		r.Reply("Use this inside a voice channel chat, or pass a target voice channel.")
		return
	}

	err := rt.lc.Setup(ev.GuildID, room, ev.Actor.ID)
	switch {
	case errors.Is(err, domain.ErrAlreadyManaged):
		r.Reply("That channel is already managed. Use /panel in its chat to refresh the panel.")
	case errors.Is(err, ErrStale):
		r.Reply("That channel no longer exists.")
	case err != nil:
		log.Error().Err(err).Str("module", "router").Str("room", string(room)).Msg("setup")
		r.Reply("Setup failed, please try again.")
	default:
		r.Reply("Persistent room set up.")
	}
}

func (rt *Router) refreshPanel(ev CommandEvent, r Responder) {
	room := ev.SurfaceVoiceID
	if room == "" {
		r.Reply("/panel only works inside a voice channel chat.")
		return
	}
	cfg, err := rt.lc.Room(room)
	if err != nil {
		log.Error().Err(err).Str("module", "router").Str("room", string(room)).Msg("load config")
		r.Reply("Something went wrong, please try again.")
		return
	}
	if cfg == nil {
		r.Reply("This channel is not managed. Set it up with /setup first.")
		return
	}
	if !canManage(ev.Actor, cfg) {
		r.Reply("Only the room owner or an admin can refresh the panel.")
		return
	}
	if err := rt.lc.Refresh(room); err != nil {
		log.Error().Err(err).Str("module", "router").Str("room", string(room)).Msg("refresh")
		r.Reply("Panel refresh failed, please try again.")
		return
	}
	r.Reply("Panel refreshed.")
}

func (rt *Router) teardown(ev CommandEvent, r Responder) {
	if !ev.Actor.Elevated() {
		r.Reply("Only a server admin can use this command.")
		return
	}
	room := ev.SurfaceVoiceID
	if ev.TargetChannelID != "" {
		if !ev.TargetIsVoice {
			r.Reply("Pick a voice channel.")
			return
		}
		room = ev.TargetChannelID
	}
	if room == "" {
		room = ev.ActorVoiceID
	}
	if room == "" {
		r.Reply("Pick a target voice channel or join one.")
		return
	}

	err := rt.lc.Teardown(room)
	switch {
	case errors.Is(err, domain.ErrNotManaged):
		r.Reply("This channel is not managed.")
	case err != nil:
		log.Error().Err(err).Str("module", "router").Str("room", string(room)).Msg("teardown")
		r.Reply("Teardown failed, please try again.")
	default:
		r.Reply("Channel reset (name kept) and management disabled.")
	}
}

// HandleComponent routes panel buttons and select menus.
func (rt *Router) HandleComponent(ev ComponentEvent, r Responder) {
	defer guard(r)

	base, hint := SplitCustomID(ev.CustomID)
	if !strings.HasPrefix(base, "sel_") && !strings.HasPrefix(base, "btn_") {
		return
	}

	room, cfg, ok := rt.resolveRoom(ev.GuildID, ev.SurfaceVoiceID, hint, r)
	if !ok {
		return
	}

	switch base {
	case SelOwner:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		if len(ev.Values) == 0 {
			return
		}
		cfg.OwnerID = ev.Values[0]
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Owner updated.")

	case SelMods:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		cfg.SetMods(ev.Values)
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Mods updated.")

	case SelAllow:
		if !rt.canEditAccess(ev.Actor, cfg) {
			r.Reply(rt.accessDeniedReply())
			return
		}
		cfg.SetAllow(ev.Values)
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Allow list updated.")

	case SelDeny:
		if !rt.canEditAccess(ev.Actor, cfg) {
			r.Reply(rt.accessDeniedReply())
			return
		}
		cfg.SetDeny(ev.Values)
		rt.disconnectDenied(ev.GuildID, room, cfg)
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Deny list updated.")

	case BtnLock:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		cfg.Locked = true
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Room locked.")

	case BtnUnlock:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		cfg.Locked = false
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Room unlocked.")

	case BtnClear:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		cfg.Clear()
		if err := rt.be.SetUserLimit(room, 0); err != nil {
			log.Warn().Err(err).Str("module", "router").Str("room", string(room)).Msg("reset limit")
		}
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply("Room settings cleared.")

	case BtnLimit:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		r.ShowModal(Modal{
			CustomID: CustomID(ModalLimit, room),
			Title:    "User Limit",
			Inputs:   []ModalInput{{CustomID: FieldLimit, Label: "Limit (0 = unlimited)", MaxLen: 2}},
		})

	case BtnRename:
		if !rt.requireManage(ev.Actor, cfg, r) {
			return
		}
		r.ShowModal(Modal{
			CustomID: CustomID(ModalRename, room),
			Title:    "Room Name",
			Inputs:   []ModalInput{{CustomID: FieldName, Label: "New room name", MaxLen: domain.MaxRoomNameLen}},
		})
	}
}

// HandleModal routes limit and rename modal submissions.
func (rt *Router) HandleModal(ev ModalEvent, r Responder) {
	defer guard(r)

	base, hint := SplitCustomID(ev.CustomID)
	if base != ModalLimit && base != ModalRename {
		return
	}

	room, cfg, ok := rt.resolveRoom(ev.GuildID, ev.SurfaceVoiceID, hint, r)
	if !ok {
		return
	}
	if !rt.requireManage(ev.Actor, cfg, r) {
		return
	}

	switch base {
	case ModalLimit:
		raw := strings.TrimSpace(ev.Fields[FieldLimit])
		limit, err := strconv.Atoi(raw)
		if err != nil || rt.validate.Struct(limitInput{Limit: limit}) != nil {
			r.Reply("Enter a number between 0 and 99.")
			return
		}
		cfg.UserLimit = limit
		if err := rt.be.SetUserLimit(room, limit); err != nil {
			log.Warn().Err(err).Str("module", "router").Str("room", string(room)).Msg("set limit")
		}
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply(fmt.Sprintf("User limit set to %d.", limit))

	case ModalRename:
		name := strings.TrimSpace(ev.Fields[FieldName])
		if rt.validate.Struct(nameInput{Name: name}) != nil {
			r.Reply("The name must be 1-50 characters.")
			return
		}
		if err := rt.be.SetChannelName(room, name); err != nil {
			log.Warn().Err(err).Str("module", "router").Str("room", string(room)).Msg("rename")
		}
		rt.lc.RememberName(ev.GuildID, cfg.OwnerID, name)
		rt.lc.CommitChange(ev.GuildID, room, cfg)
		r.Reply(fmt.Sprintf("Room renamed to %s.", name))
	}
}

// resolveRoom maps a component surface to its managed room. The customID
// hint is only cross-checked, never trusted as the room source.
func (rt *Router) resolveRoom(gid domain.GuildID, surface domain.RoomID, hint string, r Responder) (domain.RoomID, *domain.RoomConfig, bool) {
	if surface == "" {
		r.Reply("This panel only works inside a voice channel chat.")
		return "", nil, false
	}
	if hint != "" && hint != string(surface) {
		log.Warn().
			Str("module", "router").
			Str("guild", string(gid)).
			Str("surface", string(surface)).
			Str("hint", hint).
			Msg("component hint does not match surface, trusting surface")
	}
	cfg, err := rt.lc.Room(surface)
	if err != nil {
		log.Error().Err(err).Str("module", "router").Str("room", string(surface)).Msg("load config")
		r.Reply("Something went wrong, please try again.")
		return "", nil, false
	}
	if cfg == nil {
		r.Reply("This channel is not managed by the bot.")
		return "", nil, false
	}
	return surface, cfg, true
}

// accessDeniedReply names exactly who may edit the access lists under the
// active rules, so a rejected mod is never told mods are capable.
func (rt *Router) accessDeniedReply() string {
	if rt.rules.ModsManageAccess {
		return "Only the owner, a mod or an admin can edit the access lists."
	}
	return "Only the room owner or an admin can edit the access lists."
}

func (rt *Router) requireManage(a Actor, cfg *domain.RoomConfig, r Responder) bool {
	if canManage(a, cfg) {
		return true
	}
	r.Reply("Only the room owner or an admin can do that.")
	return false
}

// disconnectDenied kicks freshly denied members that are still connected.
func (rt *Router) disconnectDenied(gid domain.GuildID, room domain.RoomID, cfg *domain.RoomConfig) {
	present, err := rt.be.VoiceMembers(gid, room)
	if err != nil {
		log.Warn().Err(err).Str("module", "router").Str("room", string(room)).Msg("list voice members")
		return
	}
	denied := make(map[domain.UserID]struct{}, len(cfg.Deny))
	for _, id := range cfg.Deny {
		denied[id] = struct{}{}
	}
	for _, uid := range present {
		if uid == cfg.OwnerID {
			continue
		}
		if _, ok := denied[uid]; !ok {
			continue
		}
		if err := rt.be.DisconnectMember(gid, uid); err != nil {
			log.Warn().Err(err).Str("module", "router").Str("room", string(room)).Str("user", string(uid)).Msg("disconnect denied member")
		}
	}
}
