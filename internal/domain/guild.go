package domain

// GuildConfig holds per-server settings for the voice manager.
type GuildConfig struct {
	// CreateChannelID is the join-to-create trigger channel. Joining it
	// spawns a fresh ephemeral room for the joining user.
	CreateChannelID RoomID `json:"createChannelId"`
}

// RoomTemplate is the starting config for new ephemeral rooms. It is
// continuously overwritten from the most recently changed ephemeral room,
// so the next room starts from the last adjusted settings.
type RoomTemplate struct {
	Mods      []UserID `json:"mods"`
	Allow     []UserID `json:"allow"`
	Deny      []UserID `json:"deny"`
	Locked    bool     `json:"locked"`
	UserLimit int      `json:"userLimit"`
}

// EmptyRoomTemplate is the seed template written when a guild has none yet.
func EmptyRoomTemplate() *RoomTemplate {
	return &RoomTemplate{
		Mods:  []UserID{},
		Allow: []UserID{},
		Deny:  []UserID{},
	}
}

// TemplateOf snapshots a room's shareable settings for the next room.
func TemplateOf(c *RoomConfig) *RoomTemplate {
	return &RoomTemplate{
		Mods:      uniq(c.Mods),
		Allow:     uniq(c.Allow),
		Deny:      uniq(c.Deny),
		Locked:    c.Locked,
		UserLimit: c.UserLimit,
	}
}

// Apply copies the template onto a new room config owned by ownerID.
func (t *RoomTemplate) Apply(ownerID UserID) *RoomConfig {
	cfg := NewRoomConfig(ownerID, false)
	cfg.SetMods(t.Mods)
	cfg.SetAllow(t.Allow)
	cfg.SetDeny(t.Deny)
	cfg.Locked = t.Locked
	cfg.UserLimit = t.UserLimit
	return cfg
}

// NameTemplate remembers a user's preferred room name. It is written every
// time that user renames a room they own and reused for their future rooms.
type NameTemplate struct {
	Name string `json:"name"`
}
