// Package domain contains entity without logic beyond normalization, just meta-data
package domain

import "errors"

const (
	MaxMods        = 10
	MaxAccessList  = 25
	MaxUserLimit   = 99
	MaxRoomNameLen = 50
)

var (
	ErrNotManaged     = errors.New("room is not managed")
	ErrAlreadyManaged = errors.New("room is already managed")
	ErrUnauthorized   = errors.New("missing permission")
	ErrInvalidLimit   = errors.New("user limit must be between 0 and 99")
	ErrEmptyName      = errors.New("room name empty")
)

type (
	RoomID  string
	UserID  string
	GuildID string
)

// RoomConfig is the stored intent for one managed voice room. The live
// channel is reconciled against it after every mutation.
type RoomConfig struct {
	OwnerID    UserID   `json:"ownerId"`
	Mods       []UserID `json:"mods"`
	Allow      []UserID `json:"allow"`
	Deny       []UserID `json:"deny"`
	Locked     bool     `json:"locked"`
	UserLimit  int      `json:"userLimit"`
	Persistent bool     `json:"persistent"`

	// PanelMessageID is the control message currently placed in the
	// room's chat, empty when none has been sent yet.
	PanelMessageID string `json:"panelMessageId,omitempty"`

	// Managed holds every identity the reconciler touched on its last
	// run. It is the diff base for stale-overwrite cleanup.
	Managed []UserID `json:"managedPermIds"`
}

// NewRoomConfig builds a fresh persistent-room config owned by ownerID.
func NewRoomConfig(ownerID UserID, persistent bool) *RoomConfig {
	return &RoomConfig{
		OwnerID:    ownerID,
		Mods:       []UserID{},
		Allow:      []UserID{},
		Deny:       []UserID{},
		Persistent: persistent,
		Managed:    []UserID{},
	}
}

func (c *RoomConfig) IsMod(id UserID) bool {
	for _, m := range c.Mods {
		if m == id {
			return true
		}
	}
	return false
}

// SetMods replaces the mod list, deduped and capped.
func (c *RoomConfig) SetMods(ids []UserID) {
	c.Mods = capList(uniq(ids), MaxMods)
}

// SetAllow replaces the allow list. Identities moved here are dropped from
// deny so the two lists never overlap.
func (c *RoomConfig) SetAllow(ids []UserID) {
	c.Allow = capList(uniq(ids), MaxAccessList)
	c.Deny = without(c.Deny, c.Allow)
}

// SetDeny replaces the deny list and drops the same identities from allow.
func (c *RoomConfig) SetDeny(ids []UserID) {
	c.Deny = capList(uniq(ids), MaxAccessList)
	c.Allow = without(c.Allow, c.Deny)
}

// DesiredManaged is every identity that needs an explicit overwrite:
// owner, mods, allow and deny, in that order.
func (c *RoomConfig) DesiredManaged() []UserID {
	out := make([]UserID, 0, 1+len(c.Mods)+len(c.Allow)+len(c.Deny))
	if c.OwnerID != "" {
		out = append(out, c.OwnerID)
	}
	out = append(out, c.Mods...)
	out = append(out, c.Allow...)
	out = append(out, c.Deny...)
	return uniq(out)
}

// Clear resets everything a room owner can configure except persistence
// and ownership.
func (c *RoomConfig) Clear() {
	c.Mods = []UserID{}
	c.Allow = []UserID{}
	c.Deny = []UserID{}
	c.Locked = false
	c.UserLimit = 0
}

func uniq(ids []UserID) []UserID {
	seen := make(map[UserID]struct{}, len(ids))
	out := make([]UserID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func capList(ids []UserID, max int) []UserID {
	if len(ids) > max {
		return ids[:max]
	}
	return ids
}

func without(ids, drop []UserID) []UserID {
	dropSet := make(map[UserID]struct{}, len(drop))
	for _, id := range drop {
		dropSet[id] = struct{}{}
	}
	out := make([]UserID, 0, len(ids))
	for _, id := range ids {
		if _, ok := dropSet[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
