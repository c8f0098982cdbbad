package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/selimk/Lobby/internal/core"
	"github.com/selimk/Lobby/internal/domain"
)

// Backend implements core.Backend on a discordgo session.
type Backend struct {
	s *discordgo.Session
}

func NewBackend(s *discordgo.Session) *Backend {
	return &Backend{s: s}
}

// mapErr folds "it's gone" REST errors into core.ErrStale so the engine
// can treat them as no-ops.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %v", core.ErrStale, err)
		}
	}
	return err
}

func (b *Backend) channel(id string) (*discordgo.Channel, error) {
	if ch, err := b.s.State.Channel(id); err == nil {
		return ch, nil
	}
	ch, err := b.s.Channel(id)
	if err != nil {
		return nil, mapErr(err)
	}
	return ch, nil
}

func (b *Backend) CreateVoiceChannel(gid domain.GuildID, name, parentID string) (domain.RoomID, error) {
	ch, err := b.s.GuildChannelCreateComplex(string(gid), discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: parentID,
	})
	if err != nil {
		return "", mapErr(err)
	}
	return domain.RoomID(ch.ID), nil
}

func (b *Backend) DeleteChannel(id domain.RoomID) error {
	_, err := b.s.ChannelDelete(string(id))
	return mapErr(err)
}

func (b *Backend) ChannelInfo(id domain.RoomID) (*core.ChannelInfo, error) {
	ch, err := b.channel(string(id))
	if err != nil {
		return nil, err
	}
	count := 0
	if g, err := b.s.State.Guild(ch.GuildID); err == nil {
		for _, vs := range g.VoiceStates {
			if vs.ChannelID == string(id) {
				count++
			}
		}
	}
	return &core.ChannelInfo{
		ID:          id,
		GuildID:     domain.GuildID(ch.GuildID),
		Name:        ch.Name,
		ParentID:    ch.ParentID,
		UserLimit:   ch.UserLimit,
		MemberCount: count,
	}, nil
}

func (b *Backend) MoveMember(gid domain.GuildID, uid domain.UserID, room domain.RoomID) error {
	target := string(room)
	return mapErr(b.s.GuildMemberMove(string(gid), string(uid), &target))
}

func (b *Backend) DisconnectMember(gid domain.GuildID, uid domain.UserID) error {
	return mapErr(b.s.GuildMemberMove(string(gid), string(uid), nil))
}

func (b *Backend) VoiceMembers(gid domain.GuildID, room domain.RoomID) ([]domain.UserID, error) {
	g, err := b.s.State.Guild(string(gid))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStale, err)
	}
	out := []domain.UserID{}
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == string(room) {
			out = append(out, domain.UserID(vs.UserID))
		}
	}
	return out, nil
}

func (b *Backend) SetUserLimit(id domain.RoomID, limit int) error {
	// discordgo's ChannelEdit marshals user_limit with omitempty, which
	// makes "reset to 0" impossible through it; patch the field directly.
	body := struct {
		UserLimit int `json:"user_limit"`
	}{UserLimit: limit}
	_, err := b.s.RequestWithBucketID("PATCH", discordgo.EndpointChannel(string(id)), body, discordgo.EndpointChannel(string(id)))
	return mapErr(err)
}

func (b *Backend) SetChannelName(id domain.RoomID, name string) error {
	_, err := b.s.ChannelEdit(string(id), &discordgo.ChannelEdit{Name: name})
	return mapErr(err)
}

func (b *Backend) SetConnect(id domain.RoomID, target domain.UserID, allow bool) error {
	var allowBits, denyBits int64
	if allow {
		allowBits = discordgo.PermissionVoiceConnect
	} else {
		denyBits = discordgo.PermissionVoiceConnect
	}
	return mapErr(b.s.ChannelPermissionSet(string(id), string(target), discordgo.PermissionOverwriteTypeMember, allowBits, denyBits))
}

func (b *Backend) ClearOverwrite(id domain.RoomID, target domain.UserID) error {
	return mapErr(b.s.ChannelPermissionDelete(string(id), string(target)))
}

func (b *Backend) SetEveryoneConnect(gid domain.GuildID, id domain.RoomID, allow bool) error {
	var allowBits, denyBits int64
	if allow {
		allowBits = discordgo.PermissionVoiceConnect
	} else {
		denyBits = discordgo.PermissionVoiceConnect
	}
	// the @everyone role id equals the guild id
	return mapErr(b.s.ChannelPermissionSet(string(id), string(gid), discordgo.PermissionOverwriteTypeRole, allowBits, denyBits))
}

func (b *Backend) ClearAllOverwrites(id domain.RoomID) error {
	ch, err := b.s.Channel(string(id))
	if err != nil {
		return mapErr(err)
	}
	for _, ow := range ch.PermissionOverwrites {
		if err := b.s.ChannelPermissionDelete(string(id), ow.ID); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (b *Backend) Overwrites(id domain.RoomID) ([]core.Overwrite, error) {
	ch, err := b.s.Channel(string(id))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]core.Overwrite, 0, len(ch.PermissionOverwrites))
	for _, ow := range ch.PermissionOverwrites {
		out = append(out, core.Overwrite{
			TargetID: domain.UserID(ow.ID),
			Role:     ow.Type == discordgo.PermissionOverwriteTypeRole,
			Everyone: ow.ID == ch.GuildID,
			Allow:    ow.Allow&discordgo.PermissionVoiceConnect != 0,
			Deny:     ow.Deny&discordgo.PermissionVoiceConnect != 0,
		})
	}
	return out, nil
}

func (b *Backend) SendPanel(id domain.RoomID, v core.PanelView) (string, error) {
	msg, err := b.s.ChannelMessageSendComplex(string(id), &discordgo.MessageSend{
		Content:    panelContent(v),
		Components: panelComponents(v),
	})
	if err != nil {
		return "", mapErr(err)
	}
	return msg.ID, nil
}

func (b *Backend) EditPanel(id domain.RoomID, messageID string, v core.PanelView) error {
	content := panelContent(v)
	components := panelComponents(v)
	_, err := b.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    string(id),
		ID:         messageID,
		Content:    &content,
		Components: &components,
	})
	return mapErr(err)
}

func (b *Backend) DeleteMessage(id domain.RoomID, messageID string) error {
	return mapErr(b.s.ChannelMessageDelete(string(id), messageID))
}

func (b *Backend) PinMessage(id domain.RoomID, messageID string) error {
	msg, err := b.s.ChannelMessage(string(id), messageID)
	if err != nil {
		return mapErr(err)
	}
	if msg.Pinned {
		return nil
	}
	return mapErr(b.s.ChannelMessagePin(string(id), messageID))
}

func (b *Backend) StalePanels(id domain.RoomID, keep string, scan int) ([]string, error) {
	if scan > 100 {
		scan = 100
	}
	msgs, err := b.s.ChannelMessages(string(id), scan, "", "", "")
	if err != nil {
		return nil, mapErr(err)
	}
	me := b.s.State.User
	out := []string{}
	for _, m := range msgs {
		if me == nil || m.Author == nil || m.Author.ID != me.ID {
			continue
		}
		if m.ID == keep {
			continue
		}
		if isPanelMessage(m) {
			out = append(out, m.ID)
		}
	}
	return out, nil
}
