package entities

type TicketingConfig struct {
	// Enabled is whether ticketing is enabled.
	Enabled bool `json:"enabled" bson:"enabled"`

	// ChannelID is the ID of the channel that hosts the open-ticket panel.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// OpenMessageID is the ID of the open-ticket panel message.
	OpenMessageID string `json:"open_message_id" bson:"open_message_id"`

	// RoleID is the ID of the support role that handles tickets.
	RoleID string `json:"role_id" bson:"role_id"`

	// CategoryID is the ID of the category that ticket channels are created
	// under.
	CategoryID string `json:"category_id" bson:"category_id"`

	// TranscriptChannelID is the ID of the channel that transcripts are
	// archived to on close.
	TranscriptChannelID string `json:"transcript_channel_id" bson:"transcript_channel_id"`

	// NameTemplate is the format for ticket channel names. The {user} token
	// is replaced with the requester's name.
	NameTemplate string `json:"name_template" bson:"name_template"`

	// SuppressPing disables the support role ping on ticket creation.
	SuppressPing bool `json:"suppress_ping" bson:"suppress_ping"`
}
