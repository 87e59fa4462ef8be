package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/dataaccess"
	"github.com/Jacobbrewer1/warden/pkg/entities"
)

const (
	// setupCmdName is the command for all configuration commands.
	setupCmdName = "setup"

	// enableTicketingCmdName is the sub command for enabling ticketing.
	enableTicketingCmdName = "ticketing_enable"

	// disableTicketingCmdName is the sub command for disabling ticketing.
	disableTicketingCmdName = "ticketing_disable"

	// channelOptionName is the channel the open ticket panel is posted in.
	channelOptionName = "channel"

	// roleOptionName is the support role.
	roleOptionName = "role"

	// categoryOptionName is the category ticket channels are created under.
	categoryOptionName = "category"

	// transcriptChannelOptionName is the channel transcripts are archived in.
	transcriptChannelOptionName = "transcript_channel"

	// nameTemplateOptionName is the ticket channel naming template.
	nameTemplateOptionName = "name_template"

	// suppressPingOptionName disables the support role ping on new tickets.
	suppressPingOptionName = "suppress_ping"
)

var (
	// setupCmd is the command for all configuration commands.
	setupCmd = &discordgo.ApplicationCommand{
		Name:        setupCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for all configuration commands.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        enableTicketingCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This will enable ticketing in the channel you specify.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        channelOptionName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the channel you want to enable ticketing in.",
						Required:    true,
					},
					{
						Name:        roleOptionName,
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "This is the role you want to handle tickets.",
						Required:    true,
					},
					{
						Name:        categoryOptionName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the category that ticket channels will be created under.",
						Required:    true,
					},
					{
						Name:        transcriptChannelOptionName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the channel that transcripts will be archived in.",
						Required:    true,
					},
					{
						Name:        nameTemplateOptionName,
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "This is the naming template for ticket channels, with {user} as a placeholder.",
						Required:    false,
					},
					{
						Name:        suppressPingOptionName,
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Description: "This disables the support role ping when a ticket is opened.",
						Required:    false,
					},
				},
			},
			{
				Name:        disableTicketingCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This will disable ticketing for your server.",
			},
		},
	}
)

func setupCmdController(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	// Ensure the user is an administrator.
	if i.Member.Permissions&discordgo.PermissionAdministrator != discordgo.PermissionAdministrator {
		if err := respondEphemeral(a, i, "You must be an administrator to use this command"); err != nil {
			return nil, fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil, nil
	}

	// Extract the sub command.
	subCmd := i.ApplicationCommandData().Options[0].Name

	switch subCmd {
	case enableTicketingCmdName:
		return enableTicketingCmdController, nil
	case disableTicketingCmdName:
		return disableTicketingCmdController, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}
}

// enableTicketingCmdController is the controller for the enable ticketing command.
func enableTicketingCmdController(a IApp, i *discordgo.InteractionCreate) error {
	sub := i.ApplicationCommandData().Options[0]

	var (
		channel           *discordgo.Channel
		role              *discordgo.Role
		category          *discordgo.Channel
		transcriptChannel *discordgo.Channel
		nameTemplate      string
		suppressPing      bool
	)

	for _, opt := range sub.Options {
		switch opt.Name {
		case channelOptionName:
			channel = opt.ChannelValue(a.Session())
		case roleOptionName:
			role = opt.RoleValue(a.Session(), i.GuildID)
		case categoryOptionName:
			category = opt.ChannelValue(a.Session())
		case transcriptChannelOptionName:
			transcriptChannel = opt.ChannelValue(a.Session())
		case nameTemplateOptionName:
			nameTemplate = opt.StringValue()
		case suppressPingOptionName:
			suppressPing = opt.BoolValue()
		}
	}

	// Ensure the channel is a text channel.
	if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
		return respondEphemeral(a, i, "You must provide a text channel for ticketing.")
	}

	// Ensure the category is a category.
	if category == nil || category.Type != discordgo.ChannelTypeGuildCategory {
		return respondEphemeral(a, i, "You must provide a category for ticket channels.")
	}

	// Ensure the transcript channel is a text channel.
	if transcriptChannel == nil || transcriptChannel.Type != discordgo.ChannelTypeGuildText {
		return respondEphemeral(a, i, "You must provide a text channel for transcripts.")
	}

	if nameTemplate == "" {
		nameTemplate = entities.DefaultNameTemplate
	}

	gd := a.GuildDal()

	// Get the guild.
	guild, err := gd.GetGuildByID(context.Background(), i.GuildID)
	if err != nil && !errors.Is(err, dataaccess.ErrGuildNotFound) {
		return fmt.Errorf("error getting guild: %w", err)
	}

	if guild == nil {
		guild = &entities.Guild{
			ID: i.GuildID,
		}
	}

	// Enable ticketing for the guild.
	guild.Ticketing.Enabled = true
	guild.Ticketing.ChannelID = channel.ID
	guild.Ticketing.RoleID = role.ID
	guild.Ticketing.CategoryID = category.ID
	guild.Ticketing.TranscriptChannelID = transcriptChannel.ID
	guild.Ticketing.NameTemplate = nameTemplate
	guild.Ticketing.SuppressPing = suppressPing

	msg := new(discordgo.Message)

	// Check to see if the ticketing message still exists.
	if guild.Ticketing.OpenMessageID != "" {
		// Get the ticketing message.
		msg, err = a.Session().ChannelMessage(channel.ID, guild.Ticketing.OpenMessageID)
		// If the message does not exist, set the message ID to an empty string.
		if err != nil {
			var restErr *discordgo.RESTError
			ok := errors.As(err, &restErr)
			if ok && restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
				guild.Ticketing.OpenMessageID = ""
			} else {
				return fmt.Errorf("error getting ticketing message: %w", err)
			}
		}

		// If the message does not exist, set the message ID to an empty string.
		if msg == nil {
			guild.Ticketing.OpenMessageID = ""
		}
	}

	// If the ticketing message ID is empty, send a new message.
	if guild.Ticketing.OpenMessageID == "" {
		// Send the ticketing message to the channel.
		msg, err = sendOpenTicketMessage(a, channel)
		if err != nil {
			return fmt.Errorf("error sending open ticket message: %w", err)
		}
	}

	// Set the ticketing message ID.
	guild.Ticketing.OpenMessageID = msg.ID

	// Save the guild.
	if err := gd.SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	// Respond to the interaction saying that ticketing has been enabled in channel <channel>.
	if err := respondEphemeral(a, i, fmt.Sprintf("Ticketing has been enabled in channel <#%s>", channel.ID)); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}

	return nil
}

// disableTicketingCmdController is the controller for the disable ticketing command.
func disableTicketingCmdController(a IApp, i *discordgo.InteractionCreate) error {
	gd := a.GuildDal()

	// Get the guild.
	guild, err := gd.GetGuildByID(context.Background(), i.GuildID)
	if err != nil && !errors.Is(err, dataaccess.ErrGuildNotFound) {
		return fmt.Errorf("error getting guild: %w", err)
	}

	if guild == nil {
		guild = &entities.Guild{
			ID: i.GuildID,
		}
	}

	// Disable ticketing for the guild.
	guild.Ticketing.Enabled = false

	// Save the guild.
	if err := gd.SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	// Respond to the interaction saying that ticketing has been disabled.
	if err := respondEphemeral(a, i, "Ticketing has been disabled"); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}

	return nil
}
