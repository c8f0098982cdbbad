package domain

// TicketConfig holds per-guild ticket system settings.
type TicketConfig struct {
	PanelChannelID string `json:"panelChannelId"`
	CategoryID     string `json:"categoryId"`
	StaffRoleID    string `json:"staffRoleId,omitempty"`
	LogChannelID   string `json:"logChannelId,omitempty"`
	PanelMessageID string `json:"panelMessageId,omitempty"`
}

// TicketRecord is one open ticket, keyed by its text channel.
type TicketRecord struct {
	Seq        string `json:"id"`
	OpenedByID UserID `json:"openedById"`
	OpenedBy   string `json:"openedByTag"`
	Complaint  string `json:"complaint"`
	OpenedAt   int64  `json:"openedAt"`
}
