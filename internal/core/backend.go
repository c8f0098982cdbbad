// Package core implements the voice room lifecycle engine: reconciling
// stored room intent against live channel state, rendering the control
// panel, and routing panel interactions. It only talks to the platform
// through the Backend seam; the adapter owns the transport.
package core

import (
	"errors"

	"github.com/selimk/Lobby/internal/domain"
)

// ErrStale marks operations against a channel or message that no longer
// exists. Callers treat it as a no-op, never as a failure.
var ErrStale = errors.New("stale reference")

// Overwrite is one live connect grant on a channel. Allow/Deny refer to the
// connect bit only.
type Overwrite struct {
	TargetID domain.UserID
	Role     bool
	Everyone bool
	Allow    bool
	Deny     bool
}

// ChannelInfo is a snapshot of a live voice channel.
type ChannelInfo struct {
	ID          domain.RoomID
	GuildID     domain.GuildID
	Name        string
	ParentID    string
	UserLimit   int
	MemberCount int
}

// PanelView is everything the adapter needs to render the control message.
type PanelView struct {
	RoomID    domain.RoomID
	Locked    bool
	UserLimit int
	OwnerID   domain.UserID
	Mods      []domain.UserID
	Allow     []domain.UserID
	Deny      []domain.UserID
}

// Backend is the capability surface the engine consumes from the platform.
// Implementations return ErrStale for channels/messages that are gone.
type Backend interface {
	CreateVoiceChannel(gid domain.GuildID, name, parentID string) (domain.RoomID, error)
	DeleteChannel(id domain.RoomID) error
	ChannelInfo(id domain.RoomID) (*ChannelInfo, error)

	MoveMember(gid domain.GuildID, uid domain.UserID, room domain.RoomID) error
	DisconnectMember(gid domain.GuildID, uid domain.UserID) error
	VoiceMembers(gid domain.GuildID, room domain.RoomID) ([]domain.UserID, error)

	SetUserLimit(id domain.RoomID, limit int) error
	SetChannelName(id domain.RoomID, name string) error

	SetConnect(id domain.RoomID, target domain.UserID, allow bool) error
	ClearOverwrite(id domain.RoomID, target domain.UserID) error
	SetEveryoneConnect(gid domain.GuildID, id domain.RoomID, allow bool) error
	ClearAllOverwrites(id domain.RoomID) error
	Overwrites(id domain.RoomID) ([]Overwrite, error)

	SendPanel(id domain.RoomID, v PanelView) (string, error)
	EditPanel(id domain.RoomID, messageID string, v PanelView) error
	DeleteMessage(id domain.RoomID, messageID string) error
	PinMessage(id domain.RoomID, messageID string) error
	// StalePanels lists bot-authored panel-shaped messages in the room's
	// chat, excluding keep, scanning at most scan recent messages.
	StalePanels(id domain.RoomID, keep string, scan int) ([]string, error)
}

// Actor is the user behind an inbound event, with guild-level capabilities
// resolved by the adapter.
type Actor struct {
	ID           domain.UserID
	DisplayName  string
	IsAdmin      bool
	IsGuildOwner bool
}

// Elevated reports guild-wide management capability.
func (a Actor) Elevated() bool {
	return a.IsAdmin || a.IsGuildOwner
}

// VoiceJoin is delivered when a user enters a voice channel.
type VoiceJoin struct {
	GuildID     domain.GuildID
	UserID      domain.UserID
	DisplayName string
	ChannelID   domain.RoomID
}

// VoiceLeave is delivered when a user exits a voice channel.
type VoiceLeave struct {
	GuildID   domain.GuildID
	UserID    domain.UserID
	ChannelID domain.RoomID
}

// CommandEvent is a slash command invocation.
type CommandEvent struct {
	GuildID domain.GuildID
	Actor   Actor
	Name    string

	// SurfaceVoiceID is set when the command was issued from a voice
	// channel's chat; it equals the voice channel id.
	SurfaceVoiceID domain.RoomID
	// ActorVoiceID is the voice channel the actor currently occupies.
	ActorVoiceID domain.RoomID
	// TargetChannelID is the optional channel option; TargetIsVoice
	// reports whether it is a voice channel.
	TargetChannelID domain.RoomID
	TargetIsVoice   bool
}

// ComponentEvent is a button click or select-menu submission.
type ComponentEvent struct {
	GuildID domain.GuildID
	Actor   Actor
	// SurfaceVoiceID is the voice channel whose chat hosted the
	// component; empty when the surface is not a voice chat.
	SurfaceVoiceID domain.RoomID
	CustomID       string
	Values         []domain.UserID
}

// ModalEvent is a modal submission.
type ModalEvent struct {
	GuildID        domain.GuildID
	Actor          Actor
	SurfaceVoiceID domain.RoomID
	CustomID       string
	Fields         map[string]string
}

// Modal describes a text-input prompt the adapter should show.
type Modal struct {
	CustomID string
	Title    string
	Inputs   []ModalInput
}

type ModalInput struct {
	CustomID string
	Label    string
	MaxLen   int
}

// Responder delivers the user-visible outcome of one interaction. Both
// methods are best-effort: the adapter logs and swallows delivery failures.
type Responder interface {
	Reply(msg string)
	ShowModal(m Modal)
}
