package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/dataaccess"
	"github.com/Jacobbrewer1/warden/pkg/logging"
	"github.com/Jacobbrewer1/warden/pkg/messages"
	"github.com/Jacobbrewer1/warden/pkg/ticket"
)

const (
	// OpenTicketButtonID is the ID for the open ticket button. It is pinned
	// in guild configuration, so it must stay stable across restarts.
	OpenTicketButtonID = "open_ticket_button"
)

const (
	// TicketCmdName is the command for controlling tickets.
	TicketCmdName = "ticket"

	// CloseCmdName is the sub command for closing a ticket.
	CloseCmdName = "close"

	// ResolveCmdName is the sub command for marking a ticket as resolved.
	ResolveCmdName = "resolve"

	// PersistCmdName is the sub command for exempting a ticket from the
	// inactivity monitor.
	PersistCmdName = "persist"

	// AddUserCmdName is the sub command for adding a user to a ticket.
	AddUserCmdName = "add"

	// RemoveUserCmdName is the sub command for removing a user from a ticket.
	RemoveUserCmdName = "remove"

	// userOptionName is the user option on the add and remove sub commands.
	userOptionName = "user"
)

var (
	// ticketCmd is the command for controlling tickets.
	ticketCmd = &discordgo.ApplicationCommand{
		Name:        TicketCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for controlling tickets.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        CloseCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This closes the ticket and archives a transcript of the conversation.",
			},
			{
				Name:        ResolveCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This marks the ticket as resolved.",
			},
			{
				Name:        PersistCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This exempts the ticket from being closed for inactivity.",
			},
			{
				Name:        AddUserCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This adds a user to the ticket.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        userOptionName,
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "This is the user you want to add to the ticket.",
						Required:    true,
					},
				},
			},
			{
				Name:        RemoveUserCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This removes a user from the ticket.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        userOptionName,
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "This is the user you want to remove from the ticket.",
						Required:    true,
					},
				},
			},
		},
	}
)

func sendOpenTicketMessage(a IApp, channel *discordgo.Channel) (*discordgo.Message, error) {
	const messageText = `How can we help?
Welcome to our tickets channel. If you have any questions or inquiries, please click on the button below to contact the staff by opening a ticket!`

	// The ticket emoji is the emoji that will be used for the button. (Envelope with arrow)
	const ticketEmoji = "\U0001F4E9"

	// Create the button with the ticket emoji.
	button := discordgo.Button{
		Label:    fmt.Sprintf("%s Open Ticket", ticketEmoji),
		Style:    discordgo.PrimaryButton,
		Disabled: false,
		Emoji:    discordgo.ComponentEmoji{},
		URL:      "",
		CustomID: OpenTicketButtonID,
	}

	// Create the message.
	message := discordgo.MessageSend{
		Content:         messageText,
		Embed:           nil,
		TTS:             false,
		Files:           nil,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
		Flags:           0,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					button,
				},
			},
		},
	}

	// Send the message.
	msg, err := a.Session().ChannelMessageSendComplex(channel.ID, &message)
	if err != nil {
		return nil, fmt.Errorf("error sending message: %w", err)
	}

	return msg, nil
}

// ticketCmdController routes the ticket sub commands.
func ticketCmdController(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	subCmd := i.ApplicationCommandData().Options[0].Name

	switch subCmd {
	case CloseCmdName:
		return closeTicketHandler, nil
	case ResolveCmdName:
		return resolveTicketHandler, nil
	case PersistCmdName:
		return persistTicketHandler, nil
	case AddUserCmdName:
		return addParticipantHandler, nil
	case RemoveUserCmdName:
		return removeParticipantHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}
}

// openTicketHandler creates a ticket for the user that pressed the open
// button.
func openTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	created, err := a.Tickets().Create(context.Background(), i.GuildID, i.Member.User)
	if err != nil {
		return respondTicketError(a, i, err)
	}

	// Respond to the interaction saying that the ticket has been created in
	// channel <channel>. This message is an embedded ephemeral message with
	// all the information about the ticket.
	err = a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Ticket Created",
					Description: fmt.Sprintf("<@%s>, your ticket has been created.", i.Member.User.ID),
					Color:       0x00ff00,
					Fields: []*discordgo.MessageEmbedField{
						{
							Name:   "Ticket Channel",
							Value:  fmt.Sprintf("<#%s>", created.ChannelID),
							Inline: true,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// closeTicketHandler closes the ticket for the channel that the interaction
// came from. Transcript generation can outlive the interaction response
// window, so the response is deferred.
func closeTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	if err := respondDeferredEphemeral(a, i); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}

	if err := a.Tickets().Close(context.Background(), i.ChannelID, i.Member.User.ID, false); err != nil {
		te := new(ticket.Error)
		if errors.As(err, &te) {
			if eErr := editResponse(a, i, te.Message); eErr != nil {
				return fmt.Errorf("error editing interaction response: %w", eErr)
			}
			return nil
		}

		if eErr := editResponse(a, i, messages.ErrUserErrorProcessing); eErr != nil {
			a.Log().Error("Error editing interaction response", slog.String(logging.KeyError, eErr.Error()))
		}
		return err
	}

	// The channel is deleted on success, so the deferred response usually
	// has nowhere to land. Ignore the edit failing.
	if err := editResponse(a, i, "Ticket closed. The transcript has been archived."); err != nil {
		a.Log().Debug("Could not edit close response", slog.String(logging.KeyError, err.Error()))
	}
	return nil
}

// resolveTicketHandler marks the ticket as resolved and renames the channel.
func resolveTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	allowed, err := requireStaff(a, i)
	if err != nil || !allowed {
		return err
	}

	resolved, err := a.Tickets().MarkResolved(context.Background(), i.ChannelID)
	if err != nil {
		return respondTicketError(a, i, err)
	}

	if err := respondEphemeral(a, i, fmt.Sprintf("This ticket has been marked as resolved and renamed to **%s**.", resolved.ResolvedChannelName())); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// persistTicketHandler exempts the ticket from the inactivity monitor.
func persistTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	allowed, err := requireStaff(a, i)
	if err != nil || !allowed {
		return err
	}

	if err := a.Tickets().MarkPersist(context.Background(), i.ChannelID); err != nil {
		return respondTicketError(a, i, err)
	}

	if err := respondEphemeral(a, i, "This ticket is now persistent and will not be closed for inactivity."); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// addParticipantHandler grants a user access to the ticket channel.
func addParticipantHandler(a IApp, i *discordgo.InteractionCreate) error {
	allowed, err := requireStaff(a, i)
	if err != nil || !allowed {
		return err
	}

	user := subCommandUser(a, i)
	if user == nil {
		return respondEphemeral(a, i, "You must provide a user.")
	}

	if err := a.Tickets().AddParticipant(context.Background(), i.ChannelID, user.ID); err != nil {
		return respondTicketError(a, i, err)
	}

	if err := respondEphemeral(a, i, fmt.Sprintf("<@%s> has been added to this ticket.", user.ID)); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// removeParticipantHandler revokes a user's access to the ticket channel.
func removeParticipantHandler(a IApp, i *discordgo.InteractionCreate) error {
	allowed, err := requireStaff(a, i)
	if err != nil || !allowed {
		return err
	}

	user := subCommandUser(a, i)
	if user == nil {
		return respondEphemeral(a, i, "You must provide a user.")
	}

	if err := a.Tickets().RemoveParticipant(context.Background(), i.ChannelID, user.ID); err != nil {
		return respondTicketError(a, i, err)
	}

	if err := respondEphemeral(a, i, fmt.Sprintf("<@%s> has been removed from this ticket.", user.ID)); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// requireStaff responds to the interaction when the member is not staff.
// Returns whether the caller may proceed.
func requireStaff(a IApp, i *discordgo.InteractionCreate) (bool, error) {
	guild, err := a.GuildDal().GetGuildByID(context.Background(), i.GuildID)
	if err != nil {
		if errors.Is(err, dataaccess.ErrGuildNotFound) {
			return false, respondEphemeral(a, i, messages.ErrNotConfigured)
		}
		return false, fmt.Errorf("error getting guild configuration: %w", err)
	}

	if !guild.Ticketing.Enabled {
		return false, respondEphemeral(a, i, messages.ErrNotConfigured)
	}

	if !isStaff(a, i, guild.Ticketing.RoleID) {
		return false, respondEphemeral(a, i, messages.ErrNoPermission+" [<@&"+guild.Ticketing.RoleID+">]")
	}

	return true, nil
}

// subCommandUser extracts the user option from the invoked sub command.
func subCommandUser(a IApp, i *discordgo.InteractionCreate) *discordgo.User {
	sub := i.ApplicationCommandData().Options[0]
	for _, opt := range sub.Options {
		if opt.Name == userOptionName {
			return opt.UserValue(a.Session())
		}
	}
	return nil
}

func respondDeferredEphemeral(a IApp, i *discordgo.InteractionCreate) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func editResponse(a IApp, i *discordgo.InteractionCreate, content string) error {
	_, err := a.Session().InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return err
}
