package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/selimk/Lobby/internal/core"
	"github.com/selimk/Lobby/internal/domain"
)

const panelTitle = "**🎛️ Room Controls**"

func panelContent(v core.PanelView) string {
	state := "🔓 open"
	if v.Locked {
		state = "🔒 locked"
	}
	limit := "no limit"
	if v.UserLimit > 0 {
		limit = fmt.Sprintf("limit %d", v.UserLimit)
	}
	return fmt.Sprintf("%s\nOwner: <@%s> • %s • %s", panelTitle, v.OwnerID, state, limit)
}

func userDefaults(ids ...domain.UserID) []discordgo.SelectMenuDefaultValue {
	out := make([]discordgo.SelectMenuDefaultValue, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		out = append(out, discordgo.SelectMenuDefaultValue{
			ID:   string(id),
			Type: discordgo.SelectMenuDefaultValueUser,
		})
	}
	return out
}

func userSelect(customID, placeholder string, minValues int, maxValues int, defaults []discordgo.SelectMenuDefaultValue) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			MenuType:      discordgo.UserSelectMenu,
			CustomID:      customID,
			Placeholder:   placeholder,
			MinValues:     &minValues,
			MaxValues:     maxValues,
			DefaultValues: defaults,
		},
	}}
}

func panelComponents(v core.PanelView) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		userSelect(core.CustomID(core.SelOwner, v.RoomID), "👑 Transfer ownership", 1, 1, userDefaults(v.OwnerID)),
		userSelect(core.CustomID(core.SelMods, v.RoomID), "🛡️ Room mods", 0, domain.MaxMods, userDefaults(v.Mods...)),
		userSelect(core.CustomID(core.SelAllow, v.RoomID), "✅ Always allowed", 0, domain.MaxAccessList, userDefaults(v.Allow...)),
		userSelect(core.CustomID(core.SelDeny, v.RoomID), "⛔ Always denied", 0, domain.MaxAccessList, userDefaults(v.Deny...)),
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: core.CustomID(core.BtnLock, v.RoomID),
				Style:    discordgo.DangerButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "🔒"},
			},
			discordgo.Button{
				CustomID: core.CustomID(core.BtnUnlock, v.RoomID),
				Style:    discordgo.SuccessButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "🔓"},
			},
			discordgo.Button{
				CustomID: core.CustomID(core.BtnLimit, v.RoomID),
				Style:    discordgo.PrimaryButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "👥"},
			},
			discordgo.Button{
				CustomID: core.CustomID(core.BtnRename, v.RoomID),
				Style:    discordgo.SecondaryButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "✏️"},
			},
			discordgo.Button{
				CustomID: core.CustomID(core.BtnClear, v.RoomID),
				Style:    discordgo.SecondaryButton,
				Emoji:    &discordgo.ComponentEmoji{Name: "🧹"},
			},
		}},
	}
}

// isPanelMessage recognizes our own control panels by title plus the
// owner-select signature, so sweeps never touch unrelated bot messages.
func isPanelMessage(m *discordgo.Message) bool {
	if !strings.HasPrefix(m.Content, panelTitle) {
		return false
	}
	if len(m.Components) == 0 {
		// a stripped-down leftover still carries the title
		return true
	}
	for _, c := range m.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if sm, ok := inner.(*discordgo.SelectMenu); ok && strings.HasPrefix(sm.CustomID, core.SelOwner+":") {
				return true
			}
		}
	}
	return false
}
