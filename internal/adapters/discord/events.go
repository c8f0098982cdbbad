package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/core"
	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/ticket"
)

func (a *Adapter) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := uuid.NewString()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.Name == ticket.CmdTicket {
			a.ticket.HandleCommand(s, i)
			return
		}
		ev := a.commandEvent(s, i, data)
		log.Debug().
			Str("module", "discord").
			Str("event_id", eventID).
			Str("command", ev.Name).
			Str("guild", i.GuildID).
			Msg("slash command")
		a.router.HandleCommand(ev, a.responder(i, eventID))

	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if ticket.Handles(data.CustomID) {
			a.ticket.HandleComponent(s, i)
			return
		}
		ev := core.ComponentEvent{
			GuildID:        domain.GuildID(i.GuildID),
			Actor:          a.actor(s, i),
			SurfaceVoiceID: a.surfaceVoice(s, i),
			CustomID:       data.CustomID,
			Values:         toUserIDs(data.Values),
		}
		log.Debug().
			Str("module", "discord").
			Str("event_id", eventID).
			Str("component", data.CustomID).
			Str("guild", i.GuildID).
			Msg("component interaction")
		a.router.HandleComponent(ev, a.responder(i, eventID))

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if ticket.Handles(data.CustomID) {
			a.ticket.HandleModal(s, i)
			return
		}
		ev := core.ModalEvent{
			GuildID:        domain.GuildID(i.GuildID),
			Actor:          a.actor(s, i),
			SurfaceVoiceID: a.surfaceVoice(s, i),
			CustomID:       data.CustomID,
			Fields:         modalFields(data),
		}
		log.Debug().
			Str("module", "discord").
			Str("event_id", eventID).
			Str("modal", data.CustomID).
			Str("guild", i.GuildID).
			Msg("modal submission")
		a.router.HandleModal(ev, a.responder(i, eventID))
	}
}

func (a *Adapter) commandEvent(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) core.CommandEvent {
	ev := core.CommandEvent{
		GuildID:        domain.GuildID(i.GuildID),
		Actor:          a.actor(s, i),
		Name:           data.Name,
		SurfaceVoiceID: a.surfaceVoice(s, i),
		ActorVoiceID:   a.actorVoice(s, i),
	}
	for _, opt := range data.Options {
		if opt.Type != discordgo.ApplicationCommandOptionChannel {
			continue
		}
		if ch := opt.ChannelValue(s); ch != nil {
			ev.TargetChannelID = domain.RoomID(ch.ID)
			ev.TargetIsVoice = ch.Type == discordgo.ChannelTypeGuildVoice
		}
	}
	return ev
}

func (a *Adapter) actor(s *discordgo.Session, i *discordgo.InteractionCreate) core.Actor {
	var u *discordgo.User
	if i.Member != nil {
		u = i.Member.User
	} else {
		u = i.User
	}
	if u == nil {
		return core.Actor{}
	}
	act := core.Actor{
		ID:          domain.UserID(u.ID),
		DisplayName: displayName(i.Member, u),
	}
	if i.Member != nil {
		act.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	}
	if g, err := s.State.Guild(i.GuildID); err == nil {
		act.IsGuildOwner = g.OwnerID == u.ID
	}
	return act
}

// surfaceVoice resolves the channel an interaction arrived on to a voice
// room id. Panel components always live in the voice channel's own chat.
func (a *Adapter) surfaceVoice(s *discordgo.Session, i *discordgo.InteractionCreate) domain.RoomID {
	if i.ChannelID == "" {
		return ""
	}
	ch, err := s.State.Channel(i.ChannelID)
	if err != nil {
		if ch, err = s.Channel(i.ChannelID); err != nil {
			return ""
		}
	}
	if ch.Type != discordgo.ChannelTypeGuildVoice {
		return ""
	}
	return domain.RoomID(ch.ID)
}

func (a *Adapter) actorVoice(s *discordgo.Session, i *discordgo.InteractionCreate) domain.RoomID {
	if i.Member == nil || i.Member.User == nil {
		return ""
	}
	vs, err := s.State.VoiceState(i.GuildID, i.Member.User.ID)
	if err != nil || vs == nil {
		return ""
	}
	return domain.RoomID(vs.ChannelID)
}

func toUserIDs(values []string) []domain.UserID {
	out := make([]domain.UserID, 0, len(values))
	for _, v := range values {
		out = append(out, domain.UserID(v))
	}
	return out
}

func modalFields(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := map[string]string{}
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if ti, ok := inner.(*discordgo.TextInput); ok {
				out[ti.CustomID] = ti.Value
			}
		}
	}
	return out
}

func (a *Adapter) responder(i *discordgo.InteractionCreate, eventID string) core.Responder {
	return &interactionResponder{s: a.s, i: i.Interaction, eventID: eventID}
}

// interactionResponder delivers replies ephemerally, falling back to a
// follow-up when the interaction was already acknowledged.
type interactionResponder struct {
	s       *discordgo.Session
	i       *discordgo.Interaction
	eventID string
}

func (r *interactionResponder) Reply(msg string) {
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		return
	}
	if _, ferr := r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); ferr != nil {
		log.Warn().
			Err(ferr).
			Str("module", "discord").
			Str("event_id", r.eventID).
			Msg("reply delivery failed")
	}
}

func (r *interactionResponder) ShowModal(m core.Modal) {
	rows := make([]discordgo.MessageComponent, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  in.CustomID,
				Label:     in.Label,
				Style:     discordgo.TextInputShort,
				Required:  true,
				MaxLength: in.MaxLen,
			},
		}})
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   m.CustomID,
			Title:      m.Title,
			Components: rows,
		},
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("module", "discord").
			Str("event_id", r.eventID).
			Str("modal", m.CustomID).
			Msg("show modal failed")
	}
}
