// Package ticket implements the support-ticket flow: a pinned panel with
// an open button, one private text channel per ticket, and an optional
// staff log channel. It talks to the platform directly; the voice engine
// is not involved.
package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/store"
)

const (
	CmdTicket = "ticket"

	BtnOpen  = "t_open_complaint"
	BtnClose = "t_close"

	ModalOpen  = "t_modal_open"
	ModalClose = "t_modal_close"

	fieldComplaint   = "complaint"
	fieldCloseReason = "close_reason"

	panelScan = 75
)

const memberTicketPerms = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory

// Handles reports whether a component or modal custom id belongs to the
// ticket feature.
func Handles(customID string) bool {
	return strings.HasPrefix(customID, "t_")
}

type Feature struct {
	st *store.Store
}

func New(st *store.Store) *Feature {
	return &Feature{st: st}
}

func reply(s *discordgo.Session, i *discordgo.Interaction, msg string) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		return
	}
	// already acknowledged, deliver as a follow-up instead
	if _, ferr := s.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); ferr != nil {
		log.Warn().Err(ferr).Str("module", "ticket").Msg("reply delivery failed")
	}
}

// HandleCommand routes /ticket setup|panel|off.
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != CmdTicket || len(data.Options) == 0 {
		return
	}
	gid := domain.GuildID(i.GuildID)

	switch sub := data.Options[0]; sub.Name {
	case "setup":
		f.setup(s, i, gid, sub.Options)
	case "panel":
		f.panel(s, i, gid)
	case "off":
		if err := f.st.DeleteTicketConfig(gid); err != nil {
			log.Error().Err(err).Str("module", "ticket").Str("guild", i.GuildID).Msg("disable")
			reply(s, i.Interaction, "Could not disable the ticket system.")
			return
		}
		reply(s, i.Interaction, "Ticket system disabled.")
	}
}

func isTextChannel(ch *discordgo.Channel) bool {
	return ch != nil && (ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews)
}

func (f *Feature) setup(s *discordgo.Session, i *discordgo.InteractionCreate, gid domain.GuildID, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	var category, panelCh, logCh *discordgo.Channel
	var staffRole *discordgo.Role
	for _, opt := range opts {
		switch opt.Name {
		case "category":
			category = opt.ChannelValue(s)
		case "panel":
			panelCh = opt.ChannelValue(s)
		case "log":
			logCh = opt.ChannelValue(s)
		case "staff_role":
			staffRole = opt.RoleValue(s, i.GuildID)
		}
	}

	if category == nil || category.Type != discordgo.ChannelTypeGuildCategory {
		reply(s, i.Interaction, "The ticket category must be a category channel.")
		return
	}
	if !isTextChannel(panelCh) {
		reply(s, i.Interaction, "The panel channel must be a text channel.")
		return
	}
	if logCh != nil && !isTextChannel(logCh) {
		reply(s, i.Interaction, "The log channel must be a text channel.")
		return
	}

	cfg := &domain.TicketConfig{
		PanelChannelID: panelCh.ID,
		CategoryID:     category.ID,
	}
	if staffRole != nil {
		cfg.StaffRoleID = staffRole.ID
	}
	if logCh != nil {
		cfg.LogChannelID = logCh.ID
	}

	f.ensurePanelPerms(s, i.GuildID, panelCh.ID)
	if logCh != nil {
		f.ensureLogPerms(s, i.GuildID, logCh.ID, cfg.StaffRoleID)
	}

	if err := f.st.SetTicketConfig(gid, cfg); err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("guild", i.GuildID).Msg("save config")
		reply(s, i.Interaction, "Could not save the ticket configuration.")
		return
	}

	logLine := "disabled"
	if cfg.LogChannelID != "" {
		logLine = "<#" + cfg.LogChannelID + ">"
	}
	staffLine := "none"
	if cfg.StaffRoleID != "" {
		staffLine = "<@&" + cfg.StaffRoleID + ">"
	}
	reply(s, i.Interaction, fmt.Sprintf(
		"Ticket system configured.\n• Category: <#%s>\n• Panel: <#%s>\n• Log: %s\n• Staff role: %s\n\nUse /ticket panel to place the panel.",
		cfg.CategoryID, cfg.PanelChannelID, logLine, staffLine))
}

func (f *Feature) panel(s *discordgo.Session, i *discordgo.InteractionCreate, gid domain.GuildID) {
	cfg, err := f.st.TicketConfig(gid)
	if err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("guild", i.GuildID).Msg("load config")
		reply(s, i.Interaction, "Something went wrong, please try again.")
		return
	}
	if cfg == nil || cfg.PanelChannelID == "" || cfg.CategoryID == "" {
		reply(s, i.Interaction, "Run /ticket setup first.")
		return
	}
	if err := f.replacePanel(s, gid, cfg); err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("guild", i.GuildID).Msg("place panel")
		reply(s, i.Interaction, "Could not place the ticket panel.")
		return
	}
	reply(s, i.Interaction, "Ticket panel refreshed, old panels cleaned up.")
}

func (f *Feature) ensurePanelPerms(s *discordgo.Session, guildID, channelID string) {
	// @everyone must be able to see the panel
	err := s.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel|discordgo.PermissionReadMessageHistory, 0)
	if err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("channel", channelID).Msg("panel perms")
	}
}

func (f *Feature) ensureLogPerms(s *discordgo.Session, guildID, channelID, staffRoleID string) {
	warn := func(err error) {
		if err != nil {
			log.Warn().Err(err).Str("module", "ticket").Str("channel", channelID).Msg("log perms")
		}
	}
	warn(s.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole,
		0, discordgo.PermissionViewChannel))
	if me := s.State.User; me != nil {
		warn(s.ChannelPermissionSet(channelID, me.ID, discordgo.PermissionOverwriteTypeMember,
			memberTicketPerms|discordgo.PermissionEmbedLinks|discordgo.PermissionAttachFiles, 0))
	}
	if staffRoleID != "" {
		warn(s.ChannelPermissionSet(channelID, staffRoleID, discordgo.PermissionOverwriteTypeRole,
			memberTicketPerms, 0))
	}
}

func panelEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Ticket",
		Description: "Click the button below to open a ticket.",
	}
}

func panelComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: BtnOpen,
				Label:    "Complaints and reports",
				Style:    discordgo.PrimaryButton,
			},
		}},
	}
}

func closeComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: BtnClose,
				Label:    "Close Ticket",
				Style:    discordgo.DangerButton,
			},
		}},
	}
}

// isPanelMessage recognizes a ticket panel by its embed title plus the
// open button, never by content alone.
func isPanelMessage(m *discordgo.Message) bool {
	found := false
	for _, e := range m.Embeds {
		if strings.EqualFold(strings.TrimSpace(e.Title), "ticket") {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for _, c := range m.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if b, ok := inner.(*discordgo.Button); ok && b.CustomID == BtnOpen {
				return true
			}
		}
	}
	return false
}

func (f *Feature) sweepPanels(s *discordgo.Session, channelID, keep string) {
	me := s.State.User
	if me == nil {
		return
	}
	msgs, err := s.ChannelMessages(channelID, panelScan, "", "", "")
	if err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("channel", channelID).Msg("scan panels")
		return
	}
	for _, m := range msgs {
		if m.Author == nil || m.Author.ID != me.ID || m.ID == keep {
			continue
		}
		if isPanelMessage(m) {
			if err := s.ChannelMessageDelete(channelID, m.ID); err != nil {
				log.Warn().Err(err).Str("module", "ticket").Str("message", m.ID).Msg("delete stale panel")
			}
		}
	}
}

func (f *Feature) replacePanel(s *discordgo.Session, gid domain.GuildID, cfg *domain.TicketConfig) error {
	f.ensurePanelPerms(s, string(gid), cfg.PanelChannelID)

	if cfg.PanelMessageID != "" {
		if err := s.ChannelMessageDelete(cfg.PanelChannelID, cfg.PanelMessageID); err != nil {
			log.Debug().Err(err).Str("module", "ticket").Msg("old panel already gone")
		}
	}
	f.sweepPanels(s, cfg.PanelChannelID, "")

	msg, err := s.ChannelMessageSendComplex(cfg.PanelChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{panelEmbed()},
		Components: panelComponents(),
	})
	if err != nil {
		return err
	}
	if err := s.ChannelMessagePin(cfg.PanelChannelID, msg.ID); err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("message", msg.ID).Msg("pin panel")
	}

	cfg.PanelMessageID = msg.ID
	return f.st.SetTicketConfig(gid, cfg)
}

// HandleComponent routes the open and close buttons.
func (f *Feature) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	cfg, err := f.st.TicketConfig(domain.GuildID(i.GuildID))
	if err != nil || cfg == nil {
		reply(s, i.Interaction, "The ticket system is not set up. Run /ticket setup first.")
		return
	}

	switch data.CustomID {
	case BtnOpen:
		f.showModal(s, i, ModalOpen, "Describe your issue in detail", fieldComplaint, "Complaint / report", 1000)
	case BtnClose:
		f.showModal(s, i, ModalClose, "Close Ticket", fieldCloseReason, "Reason for closing", 800)
	}
}

func (f *Feature) showModal(s *discordgo.Session, i *discordgo.InteractionCreate, customID, title, field, label string, maxLen int) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  field,
						Label:     label,
						Style:     discordgo.TextInputParagraph,
						Required:  true,
						MaxLength: maxLen,
					},
				}},
			},
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("modal", customID).Msg("show modal")
	}
}

func modalField(data discordgo.ModalSubmitInteractionData, field string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if ti, ok := inner.(*discordgo.TextInput); ok && ti.CustomID == field {
				return strings.TrimSpace(ti.Value)
			}
		}
	}
	return ""
}

// HandleModal routes the open and close modal submissions.
func (f *Feature) HandleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	gid := domain.GuildID(i.GuildID)
	cfg, err := f.st.TicketConfig(gid)
	if err != nil || cfg == nil {
		reply(s, i.Interaction, "The ticket system is not set up. Run /ticket setup first.")
		return
	}

	switch data.CustomID {
	case ModalOpen:
		f.openTicket(s, i, gid, cfg, modalField(data, fieldComplaint))
	case ModalClose:
		f.closeTicket(s, i, cfg, modalField(data, fieldCloseReason))
	}
}

func userTag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (f *Feature) openTicket(s *discordgo.Session, i *discordgo.InteractionCreate, gid domain.GuildID, cfg *domain.TicketConfig, complaint string) {
	if complaint == "" {
		reply(s, i.Interaction, "The complaint cannot be empty.")
		return
	}
	user := interactionUser(i)

	seq, err := f.st.NextTicketSeq(gid)
	if err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("guild", i.GuildID).Msg("ticket counter")
		reply(s, i.Interaction, "Could not open a ticket, please try again.")
		return
	}
	seqText := fmt.Sprintf("%04d", seq)

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: i.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: user.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberTicketPerms},
	}
	if cfg.StaffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: cfg.StaffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: memberTicketPerms,
		})
	}

	ch, err := s.GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
		Name:                 "ticket-" + seqText,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             cfg.CategoryID,
		Topic:                fmt.Sprintf("Ticket • Opened by: %s (%s)", userTag(user), user.ID),
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("guild", i.GuildID).Msg("create ticket channel")
		reply(s, i.Interaction, "Could not open a ticket, please try again.")
		return
	}

	openedAt := time.Now().UnixMilli()
	rec := &domain.TicketRecord{
		Seq:        seqText,
		OpenedByID: domain.UserID(user.ID),
		OpenedBy:   userTag(user),
		Complaint:  complaint,
		OpenedAt:   openedAt,
	}
	if err := f.st.SetTicket(ch.ID, rec); err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("channel", ch.ID).Msg("save ticket")
	}

	_, err = s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "🎫 Ticket Opened",
			Description: fmt.Sprintf("**Opened by:** <@%s>\n**Ticket ID:** %s\n\n**Complaint / report:**\n%s",
				user.ID, seqText, complaint),
		}},
		Components: closeComponents(),
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("channel", ch.ID).Msg("ticket greeting")
	}

	f.sendLog(s, cfg, &discordgo.MessageEmbed{
		Title: "🎫 Ticket Opened",
		Description: fmt.Sprintf(
			"**Ticket ID:** %s\n**Opened by:** <@%s> (%s)\n**Channel:** <#%s>\n**Opened:** <t:%d:f>\n\n**Complaint / report:**\n%s",
			seqText, user.ID, userTag(user), ch.ID, openedAt/1000, complaint),
	})

	reply(s, i.Interaction, fmt.Sprintf("Ticket opened: <#%s>", ch.ID))
}

func (f *Feature) closeTicket(s *discordgo.Session, i *discordgo.InteractionCreate, cfg *domain.TicketConfig, reason string) {
	if reason == "" {
		reply(s, i.Interaction, "The closing reason cannot be empty.")
		return
	}
	rec, err := f.st.Ticket(i.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("module", "ticket").Str("channel", i.ChannelID).Msg("load ticket")
		reply(s, i.Interaction, "Something went wrong, please try again.")
		return
	}
	if rec == nil {
		reply(s, i.Interaction, "This channel does not look like a ticket.")
		return
	}
	user := interactionUser(i)

	f.sendLog(s, cfg, &discordgo.MessageEmbed{
		Title: "✅ Ticket Closed",
		Description: fmt.Sprintf(
			"**Ticket ID:** %s\n**Opened by:** <@%s> (%s)\n**Closed by:** <@%s> (%s)\n**Opened:** <t:%d:f>\n**Closed:** <t:%d:f>\n\n**Complaint / report:**\n%s\n\n**Closing reason:**\n%s",
			rec.Seq, rec.OpenedByID, rec.OpenedBy, user.ID, userTag(user),
			rec.OpenedAt/1000, time.Now().Unix(), rec.Complaint, reason),
	})

	if err := f.st.DeleteTicket(i.ChannelID); err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("channel", i.ChannelID).Msg("delete ticket record")
	}
	reply(s, i.Interaction, "Closing the ticket…")

	if _, err := s.ChannelDelete(i.ChannelID); err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("channel", i.ChannelID).Msg("delete ticket channel")
	}
}

func (f *Feature) sendLog(s *discordgo.Session, cfg *domain.TicketConfig, embed *discordgo.MessageEmbed) {
	if cfg.LogChannelID == "" {
		return
	}
	_, err := s.ChannelMessageSendComplex(cfg.LogChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "ticket").Str("channel", cfg.LogChannelID).Msg("ticket log")
	}
}
