package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/core"
	"github.com/selimk/Lobby/internal/ticket"
)

var adminOnly = int64(discordgo.PermissionManageServer)

func voiceChannelOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  description,
		Required:     required,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
	}
}

func commandSchema() []*discordgo.ApplicationCommand {
	textTypes := []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}
	return []*discordgo.ApplicationCommand{
		{
			Name:                     core.CmdSetCreate,
			Description:              "Set the join-to-create voice channel",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				voiceChannelOption("channel", "The voice channel that spawns rooms", true),
			},
		},
		{
			Name:                     core.CmdSetup,
			Description:              "Put a voice channel under panel management (persistent)",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				voiceChannelOption("channel", "Target voice channel (defaults to the current one)", false),
			},
		},
		{
			Name:        core.CmdPanel,
			Description: "Place or refresh the control panel (voice channel chat only)",
		},
		{
			Name:                     core.CmdTeardown,
			Description:              "Disable management of a voice channel (admin)",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				voiceChannelOption("channel", "Target voice channel (defaults to the current one)", false),
			},
		},
		{
			Name:                     ticket.CmdTicket,
			Description:              "Ticket system",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setup",
					Description: "Configure the ticket system",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "category",
							Description:  "Category for new ticket channels",
							Required:     true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
						},
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "panel",
							Description:  "Channel for the ticket panel",
							Required:     true,
							ChannelTypes: textTypes,
						},
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "log",
							Description:  "Ticket log channel (optional)",
							ChannelTypes: textTypes,
						},
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "staff_role",
							Description: "Staff role with access to tickets (optional)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "panel",
					Description: "Place or refresh the ticket panel",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "off",
					Description: "Disable the ticket system",
				},
			},
		},
	}
}

// registerCommands bulk-overwrites the slash command schema. A configured
// guild id scopes the upload to that guild, which propagates instantly and
// keeps development servers isolated; otherwise the upload is global.
func (a *Adapter) registerCommands(appID string) error {
	cmds, err := a.s.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, commandSchema())
	if err != nil {
		return fmt.Errorf("bulk overwrite commands: %w", err)
	}
	scope := "global"
	if a.cfg.GuildID != "" {
		scope = "guild " + a.cfg.GuildID
	}
	log.Info().
		Str("module", "discord").
		Int("count", len(cmds)).
		Str("scope", scope).
		Msg("slash commands registered")
	return nil
}
