package ticket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/custom"
	"github.com/Jacobbrewer1/warden/pkg/dataaccess"
	"github.com/Jacobbrewer1/warden/pkg/entities"
	"github.com/Jacobbrewer1/warden/pkg/logging"
	"github.com/Jacobbrewer1/warden/pkg/ticket/monitoring"
	"golang.org/x/time/rate"
)

// CloseButtonID is the custom ID of the close button attached to every
// welcome message. Custom IDs are stable across restarts, so the button keeps
// working on tickets that predate the current process.
const CloseButtonID = "close_ticket_button"

const (
	// pingDeleteDelay is how long the support ping stays in a new ticket
	// channel before it is removed.
	pingDeleteDelay = 5 * time.Second

	// createBurst is how many tickets a user can open back to back before
	// the rate limit applies.
	createBurst = 2

	// createInterval is the sustained rate at which a user may open tickets.
	createInterval = 30 * time.Second
)

// Lifecycle owns every ticket state transition: creation, persist/resolve
// marks, participant changes and closure. All mutations go through the ticket
// DAL; the record's presence doubles as the close lock.
type Lifecycle struct {
	// s is the discord session.
	s Session

	// l is the logger.
	l *slog.Logger

	// tickets is the ticket store.
	tickets dataaccess.TicketDal

	// guilds provides the per-guild ticketing configuration.
	guilds dataaccess.GuildDal

	// transcripts renders channel histories on close.
	transcripts *TranscriptGenerator

	// now is the clock. Injected for tests.
	now func() time.Time

	// mu guards limiters.
	mu sync.Mutex

	// limiters tracks the per-user creation rate limiters.
	limiters map[string]*rate.Limiter
}

// NewLifecycle creates a new ticket lifecycle.
func NewLifecycle(s Session, l *slog.Logger, tickets dataaccess.TicketDal, guilds dataaccess.GuildDal) *Lifecycle {
	return &Lifecycle{
		s:           s,
		l:           l,
		tickets:     tickets,
		guilds:      guilds,
		transcripts: NewTranscriptGenerator(s, l),
		now:         time.Now,
		limiters:    make(map[string]*rate.Limiter),
	}
}

func (l *Lifecycle) limiter(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(createInterval), createBurst)
		l.limiters[userID] = lim
	}
	return lim
}

// config loads the guild's ticketing configuration. Disabled or absent
// configuration is a configuration error, never a crash.
func (l *Lifecycle) config(ctx context.Context, guildID string) (*entities.TicketingConfig, error) {
	guild, err := l.guilds.GetGuildByID(ctx, guildID)
	if err != nil {
		if errors.Is(err, dataaccess.ErrGuildNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, wrapError(KindStorage, "Failed to load the server configuration.", err)
	}

	if !guild.Ticketing.Enabled {
		return nil, ErrNotConfigured
	}
	return &guild.Ticketing, nil
}

// closeConfig loads the guild's ticketing configuration without the enabled
// gate. Disabling ticketing stops new tickets being opened; it must not
// strand the ones already open, or every subsequent close would fail.
func (l *Lifecycle) closeConfig(ctx context.Context, guildID string) (*entities.TicketingConfig, error) {
	guild, err := l.guilds.GetGuildByID(ctx, guildID)
	if err != nil {
		if errors.Is(err, dataaccess.ErrGuildNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, wrapError(KindStorage, "Failed to load the server configuration.", err)
	}
	return &guild.Ticketing, nil
}

// Create opens a new ticket for the requester: an isolated channel visible
// only to them and the support role, a tracked record, a pinned welcome
// message and an optional support ping.
func (l *Lifecycle) Create(ctx context.Context, guildID string, requester *discordgo.User) (*entities.Ticket, error) {
	if !l.limiter(requester.ID).Allow() {
		return nil, ErrTooManyTickets
	}

	cfg, err := l.config(ctx, guildID)
	if err != nil {
		return nil, err
	}

	// The category and the support role must both resolve before anything is
	// created.
	category, err := l.s.Channel(cfg.CategoryID)
	if err != nil {
		return nil, ErrMissingCategory
	}

	if err := l.checkSupportRole(guildID, cfg.RoleID); err != nil {
		return nil, err
	}

	// One live ticket channel per requester, matched on the derived name.
	name := entities.TicketChannelName(cfg.NameTemplate, requester.Username)

	channels, err := l.s.GuildChannels(guildID)
	if err != nil {
		return nil, wrapError(KindExternalAPI, "Failed to inspect the server channels.", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
			return nil, newDuplicateTicket(ch.ID)
		}
	}

	channel, err := l.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:  name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: fmt.Sprintf("Ticket for %s (ID: %s)", requester.Username, requester.ID),
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			// Deny @everyone from seeing the ticket.
			{
				ID:    guildID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: 0,
				Deny:  discordgo.PermissionAll,
			},
			// The requester can see the ticket.
			{
				ID:    requester.ID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionAllText,
				Deny:  discordgo.PermissionMentionEveryone,
			},
			// The support role can see the ticket.
			{
				ID:    cfg.RoleID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionAllText,
				Deny:  discordgo.PermissionMentionEveryone,
			},
		},
		ParentID: category.ID,
	})
	if err != nil {
		return nil, wrapError(KindExternalAPI, "Failed to create the ticket channel. Please contact an administrator.", err)
	}

	ticket := &entities.Ticket{
		ChannelID:     channel.ID,
		GuildID:       guildID,
		RequesterID:   requester.ID,
		RequesterName: requester.Username,
		Status:        entities.TicketStatusOpen,
		CreatedAt:     custom.Datetime(l.now().UTC()),
	}

	if err := l.tickets.SaveTicket(ctx, ticket); err != nil {
		// The record is the source of truth. If it cannot be written the
		// channel must not survive, or the sweep would never track it.
		if _, derr := l.s.ChannelDelete(channel.ID); derr != nil {
			l.l.Error("Error deleting channel after failed ticket save",
				slog.String(logging.KeyChannel, channel.ID),
				slog.String(logging.KeyError, derr.Error()))
		}
		return nil, wrapError(KindStorage, "Failed to save the ticket. Please try again.", err)
	}

	l.welcome(ctx, ticket, cfg)

	monitoring.TotalTicketsCreated.Inc()

	return ticket, nil
}

// welcome posts and pins the welcome message and pings the support role. None
// of this is fatal to creation; failures are logged.
func (l *Lifecycle) welcome(ctx context.Context, ticket *entities.Ticket, cfg *entities.TicketingConfig) {
	msg, err := l.s.ChannelMessageSendComplex(ticket.ChannelID, welcomeMessage(ticket.RequesterID))
	if err != nil {
		l.l.Error("Error sending welcome message",
			slog.String(logging.KeyChannel, ticket.ChannelID),
			slog.String(logging.KeyError, err.Error()))
		return
	}

	if err := l.s.ChannelMessagePin(ticket.ChannelID, msg.ID); err != nil {
		l.l.Error("Error pinning welcome message",
			slog.String(logging.KeyChannel, ticket.ChannelID),
			slog.String(logging.KeyError, err.Error()))
	}

	ticket.WelcomeMessageID = msg.ID
	if err := l.tickets.SaveTicket(ctx, ticket); err != nil {
		l.l.Error("Error saving ticket welcome message ID",
			slog.String(logging.KeyChannel, ticket.ChannelID),
			slog.String(logging.KeyError, err.Error()))
	}

	if cfg.SuppressPing {
		return
	}

	ping, err := l.s.ChannelMessageSend(ticket.ChannelID,
		fmt.Sprintf("<@&%s> <@%s> A new ticket has been created.", cfg.RoleID, ticket.RequesterID))
	if err != nil {
		l.l.Error("Error sending support ping",
			slog.String(logging.KeyChannel, ticket.ChannelID),
			slog.String(logging.KeyError, err.Error()))
		return
	}

	// The ping only exists to fire a notification, remove it shortly after.
	time.AfterFunc(pingDeleteDelay, func() {
		if err := l.s.ChannelMessageDelete(ticket.ChannelID, ping.ID); err != nil {
			l.l.Warn("Error deleting support ping",
				slog.String(logging.KeyChannel, ticket.ChannelID),
				slog.String(logging.KeyError, err.Error()))
		}
	})
}

func (l *Lifecycle) checkSupportRole(guildID, roleID string) error {
	if roleID == "" {
		return ErrMissingSupportRole
	}

	roles, err := l.s.GuildRoles(guildID)
	if err != nil {
		return wrapError(KindExternalAPI, "Failed to inspect the server roles.", err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return nil
		}
	}
	return ErrMissingSupportRole
}

// MarkPersist flags the ticket so that the inactivity monitor never touches
// it. Idempotent.
func (l *Lifecycle) MarkPersist(ctx context.Context, channelID string) error {
	ticket, err := l.get(ctx, channelID)
	if err != nil {
		return err
	}

	if ticket.Persist {
		return nil
	}

	ticket.Persist = true
	if err := l.tickets.SaveTicket(ctx, ticket); err != nil {
		return wrapError(KindStorage, "Failed to save the ticket.", err)
	}
	return nil
}

// MarkResolved moves an open ticket to resolved: the channel is renamed with
// the resolved prefix and the requester is notified. Resolving twice is
// reported, not repeated.
func (l *Lifecycle) MarkResolved(ctx context.Context, channelID string) (*entities.Ticket, error) {
	ticket, err := l.get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if ticket.Status == entities.TicketStatusResolved {
		return nil, ErrAlreadyResolved
	}

	if _, err := l.s.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		Name: ticket.ResolvedChannelName(),
	}); err != nil {
		return nil, wrapError(KindExternalAPI, "Failed to rename the ticket channel.", err)
	}

	ticket.Status = entities.TicketStatusResolved
	if err := l.tickets.SaveTicket(ctx, ticket); err != nil {
		return nil, wrapError(KindStorage, "Failed to save the ticket.", err)
	}

	notice := fmt.Sprintf("<@%s>, your ticket has been marked as resolved.", ticket.RequesterID)
	if !ticket.Persist {
		notice += fmt.Sprintf(" It will be closed automatically after %s of inactivity.", defaultWarnAfter)
	}
	if _, err := l.s.ChannelMessageSend(channelID, notice); err != nil {
		l.l.Error("Error sending resolution notice",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	return ticket, nil
}

// Close tears a ticket down: transcript to the archive channel, a best-effort
// copy to the requester, then the record and the channel are removed. The
// record delete is the exclusive lock; of two concurrent closers, only the
// one that removes the record generates a transcript and deletes the channel,
// the other returns silently.
//
// actorID is empty when system is true; the inactivity monitor closes with
// system authority and bypasses the permission rule.
func (l *Lifecycle) Close(ctx context.Context, channelID, actorID string, system bool) error {
	ticket, err := l.get(ctx, channelID)
	if err != nil {
		return err
	}

	cfg, err := l.closeConfig(ctx, ticket.GuildID)
	if err != nil {
		return err
	}

	if !system {
		if err := l.checkCloseAllowed(ticket, cfg, actorID); err != nil {
			return err
		}
	}

	channel, err := l.s.Channel(channelID)
	if err != nil {
		if isChannelGone(err) {
			// A concurrent close finished ahead of us, or the channel was
			// removed out of band. Drop any leftover record and stop.
			if _, derr := l.tickets.DeleteTicket(ctx, channelID); derr != nil {
				return wrapError(KindStorage, "Failed to remove the ticket record.", derr)
			}
			return nil
		}
		return wrapError(KindExternalAPI, "Failed to fetch the ticket channel.", err)
	}

	// Take the close lock. A second concurrent closer finds the record gone
	// and stops here, so only one transcript is ever generated.
	locked, err := l.tickets.DeleteTicket(ctx, channelID)
	if err != nil {
		return wrapError(KindStorage, "Failed to remove the ticket record.", err)
	}
	if !locked {
		return nil
	}

	transcript, err := l.transcripts.Generate(channel)
	if err != nil {
		l.reinstate(ctx, ticket)
		return wrapError(KindExternalAPI, "Failed to generate the transcript. The ticket remains open.", err)
	}

	if _, err := l.s.ChannelFileSend(cfg.TranscriptChannelID, transcript.Filename, bytes.NewReader(transcript.Content)); err != nil {
		l.reinstate(ctx, ticket)
		return wrapError(KindExternalAPI, "Failed to archive the transcript. The ticket remains open.", err)
	}

	// Best effort, delivery failure must not block the close.
	l.dmTranscript(ticket.RequesterID, transcript)

	if _, err := l.s.ChannelDelete(channelID); err != nil {
		// The record is gone already; the channel is untracked from here on.
		l.l.Error("Error deleting ticket channel",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
		return wrapError(KindExternalAPI, "The ticket was closed but the channel could not be deleted.", err)
	}

	actor := "user"
	if system {
		actor = "system"
	}
	monitoring.TotalTicketsClosed.WithLabelValues(actor).Inc()

	return nil
}

func (l *Lifecycle) checkCloseAllowed(ticket *entities.Ticket, cfg *entities.TicketingConfig, actorID string) error {
	if actorID == ticket.RequesterID {
		return nil
	}

	member, err := l.s.GuildMember(ticket.GuildID, actorID)
	if err != nil {
		return wrapError(KindExternalAPI, "Failed to fetch your membership.", err)
	}
	for _, r := range member.Roles {
		if r == cfg.RoleID {
			return nil
		}
	}
	return ErrNotRequesterOrSupport
}

// reinstate puts a record back after a failed close so the operation can be
// retried.
func (l *Lifecycle) reinstate(ctx context.Context, ticket *entities.Ticket) {
	if err := l.tickets.SaveTicket(ctx, ticket); err != nil {
		l.l.Error("Error reinstating ticket record after failed close",
			slog.String(logging.KeyChannel, ticket.ChannelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

func (l *Lifecycle) dmTranscript(userID string, transcript *Transcript) {
	dm, err := l.s.UserChannelCreate(userID)
	if err != nil {
		l.l.Warn("Error opening DM channel for transcript",
			slog.String(logging.KeyUser, userID),
			slog.String(logging.KeyError, err.Error()))
		return
	}
	if _, err := l.s.ChannelFileSend(dm.ID, transcript.Filename, bytes.NewReader(transcript.Content)); err != nil {
		l.l.Warn("Error sending transcript DM",
			slog.String(logging.KeyUser, userID),
			slog.String(logging.KeyError, err.Error()))
	}
}

// AddParticipant grants a non-requester user visibility of the ticket
// channel.
func (l *Lifecycle) AddParticipant(ctx context.Context, channelID, userID string) error {
	if _, err := l.get(ctx, channelID); err != nil {
		return err
	}

	if err := l.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionAllText, discordgo.PermissionMentionEveryone); err != nil {
		return wrapError(KindExternalAPI, "Failed to add the user to the ticket.", err)
	}
	return nil
}

// RemoveParticipant revokes a user's visibility of the ticket channel.
func (l *Lifecycle) RemoveParticipant(ctx context.Context, channelID, userID string) error {
	if _, err := l.get(ctx, channelID); err != nil {
		return err
	}

	if err := l.s.ChannelPermissionDelete(channelID, userID); err != nil {
		return wrapError(KindExternalAPI, "Failed to remove the user from the ticket.", err)
	}
	return nil
}

func (l *Lifecycle) get(ctx context.Context, channelID string) (*entities.Ticket, error) {
	ticket, err := l.tickets.GetTicket(ctx, channelID)
	if err != nil {
		if errors.Is(err, dataaccess.ErrTicketNotFound) {
			return nil, ErrNotATicket
		}
		return nil, wrapError(KindStorage, "Failed to load the ticket.", err)
	}
	return ticket, nil
}

// welcomeMessage is the pinned message a new ticket channel opens with.
func welcomeMessage(requesterID string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title: "Support Ticket",
			Description: fmt.Sprintf("Hello <@%s>, a member of our support team will be with you shortly.\n\n"+
				"To close this ticket, click the button below or use the `/ticket close` command.", requesterID),
			Color: 0x3498db,
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						// Padlock.
						Label:    "\U0001F510 Close Ticket",
						Style:    discordgo.DangerButton,
						CustomID: CloseButtonID,
					},
				},
			},
		},
	}
}
