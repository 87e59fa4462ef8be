package entities

import (
	"strings"

	"github.com/Jacobbrewer1/warden/pkg/custom"
)

// TicketStatus is the lifecycle state of a ticket. There is no closed state;
// closing a ticket deletes the record entirely.
type TicketStatus string

const (
	// TicketStatusOpen is the state of a ticket from creation until it is
	// marked resolved or closed.
	TicketStatusOpen TicketStatus = "open"

	// TicketStatusResolved is the state of a ticket that support has marked
	// resolved but that has not yet been closed.
	TicketStatusResolved TicketStatus = "resolved"
)

// Ticket is a support ticket. One record exists per open or resolved ticket,
// keyed by the channel that hosts it.
type Ticket struct {
	// ChannelID is the ID of the channel that hosts the ticket. This is the
	// stable identity of the ticket.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// RequesterID is the ID of the user that opened the ticket.
	RequesterID string `json:"requester_id" bson:"requester_id"`

	// RequesterName is the username of the user that opened the ticket. It is
	// recorded at creation time as the channel name is derived from it.
	RequesterName string `json:"requester_name" bson:"requester_name"`

	// Status is the lifecycle state of the ticket.
	Status TicketStatus `json:"status" bson:"status"`

	// Persist suppresses automatic inactivity closure when set.
	Persist bool `json:"persist" bson:"persist"`

	// WelcomeMessageID is the ID of the pinned welcome message.
	WelcomeMessageID string `json:"welcome_message_id" bson:"welcome_message_id"`

	// LastWarningAt is the time of the most recent inactivity warning. It is
	// nil when no warning is outstanding and is cleared when new activity
	// arrives in the channel.
	LastWarningAt *custom.Datetime `json:"last_warning_at,omitempty" bson:"last_warning_at,omitempty"`

	// CreatedAt is the time that the ticket was created.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`
}

// ChannelNamePlaceholder is the token in a ticket name template that is
// replaced with the requester's name.
const ChannelNamePlaceholder = "{user}"

// DefaultNameTemplate is used when a guild has not configured one.
const DefaultNameTemplate = "ticket-" + ChannelNamePlaceholder

// TicketChannelName derives the channel name for a requester from the guild's
// name template. Discord lowercases text channel names, so the derived name is
// lowercased too to keep the duplicate check exact.
func TicketChannelName(template, requesterName string) string {
	if template == "" {
		template = DefaultNameTemplate
	}
	return strings.ToLower(strings.ReplaceAll(template, ChannelNamePlaceholder, requesterName))
}

// ResolvedChannelName is the channel name a ticket takes once marked
// resolved.
func (t *Ticket) ResolvedChannelName() string {
	return strings.ToLower("resolved-" + t.RequesterName)
}
