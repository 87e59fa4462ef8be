package main

import (
	"errors"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/messages"
	"github.com/Jacobbrewer1/warden/pkg/ticket"
)

func respondError(a IApp, i *discordgo.InteractionCreate) error {
	return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
}

func respondEphemeral(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondTicketError reports a lifecycle failure to the user that triggered
// the interaction. Tagged errors carry a user-safe message; anything else
// gets the generic one and is returned for logging.
func respondTicketError(a IApp, i *discordgo.InteractionCreate, err error) error {
	te := new(ticket.Error)
	if errors.As(err, &te) {
		if rErr := respondEphemeral(a, i, te.Message); rErr != nil {
			return fmt.Errorf("error responding to interaction: %w", rErr)
		}
		return nil
	}

	if rErr := respondError(a, i); rErr != nil {
		return fmt.Errorf("error responding to interaction: %w", rErr)
	}
	return err
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// isStaff reports whether the interaction member holds the support role or
// administrator permissions.
func isStaff(a IApp, i *discordgo.InteractionCreate, supportRoleID string) bool {
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator {
		return true
	}
	return hasRole(i.Member, supportRoleID)
}
