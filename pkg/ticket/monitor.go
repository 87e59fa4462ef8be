package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/custom"
	"github.com/Jacobbrewer1/warden/pkg/dataaccess"
	"github.com/Jacobbrewer1/warden/pkg/entities"
	"github.com/Jacobbrewer1/warden/pkg/logging"
	"github.com/Jacobbrewer1/warden/pkg/ticket/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

const (
	// sweepSchedule is how often the monitor scans the tracked tickets.
	sweepSchedule = "@every 1h"

	// defaultWarnAfter is the idle time after which a ticket is warned.
	defaultWarnAfter = 24 * time.Hour

	// defaultCloseAfter is the grace period after an unanswered warning
	// before the ticket is closed.
	defaultCloseAfter = 12 * time.Hour
)

// Monitor periodically sweeps the tracked tickets, warning idle ones and
// closing those whose warning went unanswered. It is owned by the process
// supervisor: started once at startup, stopped on graceful shutdown. A
// failing sweep never takes the schedule down with it.
type Monitor struct {
	// s is the discord session.
	s Session

	// l is the logger.
	l *slog.Logger

	// tickets is the ticket store.
	tickets dataaccess.TicketDal

	// lifecycle closes tickets with system authority.
	lifecycle *Lifecycle

	// warnAfter and closeAfter are the sweep thresholds.
	warnAfter  time.Duration
	closeAfter time.Duration

	// now is the clock. Injected for tests.
	now func() time.Time

	// c drives the schedule.
	c *cron.Cron
}

// NewMonitor creates a new inactivity monitor.
func NewMonitor(s Session, l *slog.Logger, tickets dataaccess.TicketDal, lifecycle *Lifecycle) *Monitor {
	return &Monitor{
		s:          s,
		l:          l,
		tickets:    tickets,
		lifecycle:  lifecycle,
		warnAfter:  defaultWarnAfter,
		closeAfter: defaultCloseAfter,
		now:        time.Now,
	}
}

// Start begins the sweep schedule and runs one sweep immediately to
// reconcile state left over from before a restart.
func (m *Monitor) Start() error {
	m.c = cron.New()
	if _, err := m.c.AddFunc(sweepSchedule, func() {
		m.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("error scheduling sweep: %w", err)
	}
	m.c.Start()

	go m.Sweep(context.Background())

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Monitor) Stop() {
	if m.c == nil {
		return
	}
	<-m.c.Stop().Done()
}

// Sweep runs one scan over every tracked ticket. Per-ticket failures are
// logged and skipped; a panic is contained so the host process and the
// schedule survive.
func (m *Monitor) Sweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			m.l.Error("Panic in ticket sweep", slog.String(logging.KeyError, fmt.Sprint(rec)))
		}
	}()

	t := prometheus.NewTimer(monitoring.SweepDuration)
	defer t.ObserveDuration()

	tickets, err := m.tickets.ListTickets(ctx)
	if err != nil {
		m.l.Error("Error listing tickets for sweep", slog.String(logging.KeyError, err.Error()))
		return
	}

	for _, ticket := range tickets {
		if err := m.sweepTicket(ctx, ticket); err != nil {
			m.l.Error("Error sweeping ticket",
				slog.String(logging.KeyChannel, ticket.ChannelID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
}

func (m *Monitor) sweepTicket(ctx context.Context, ticket *entities.Ticket) error {
	if ticket.Persist {
		return nil
	}

	channel, err := m.s.Channel(ticket.ChannelID)
	if err != nil {
		if isChannelGone(err) {
			// The channel is gone but the record survived, most likely a
			// crash mid-close. Drop the orphan.
			m.l.Info("Removing orphaned ticket record",
				slog.String(logging.KeyChannel, ticket.ChannelID))
			_, derr := m.tickets.DeleteTicket(ctx, ticket.ChannelID)
			return derr
		}
		return fmt.Errorf("error fetching channel: %w", err)
	}

	last, err := m.lastActivity(channel)
	if err != nil {
		return err
	}

	if ticket.LastWarningAt != nil {
		// The warning message is itself the channel's latest activity, so
		// only messages newer than the stamp count as a response.
		warnedAt := ticket.LastWarningAt.Time()
		if last.After(warnedAt) {
			ticket.LastWarningAt = nil
			return m.tickets.SaveTicket(ctx, ticket)
		}

		if m.now().Sub(warnedAt) >= m.closeAfter {
			return m.lifecycle.Close(ctx, ticket.ChannelID, "", true)
		}
		return nil
	}

	if m.now().Sub(last) >= m.warnAfter {
		return m.warn(ctx, ticket)
	}

	return nil
}

func (m *Monitor) warn(ctx context.Context, ticket *entities.Ticket) error {
	// Stamp before sending; a failed save after a sent message would re-warn
	// on every sweep until the store recovers.
	ticket.LastWarningAt = custom.At(m.now())
	if err := m.tickets.SaveTicket(ctx, ticket); err != nil {
		return fmt.Errorf("error saving warning stamp: %w", err)
	}

	content := fmt.Sprintf("<@%s>, this ticket has been inactive for over %s. "+
		"It will be closed automatically in %s unless there is new activity.",
		ticket.RequesterID, m.warnAfter, m.closeAfter)

	if _, err := m.s.ChannelMessageSend(ticket.ChannelID, content); err != nil {
		// Clear the stamp so the warning is retried next sweep instead of
		// the ticket closing without one.
		ticket.LastWarningAt = nil
		if serr := m.tickets.SaveTicket(ctx, ticket); serr != nil {
			m.l.Error("Error clearing warning stamp after failed send",
				slog.String(logging.KeyChannel, ticket.ChannelID),
				slog.String(logging.KeyError, serr.Error()))
		}
		return fmt.Errorf("error sending inactivity warning: %w", err)
	}

	return nil
}

// lastActivity is the timestamp of the channel's most recent message, or the
// channel's creation time when it has none.
func (m *Monitor) lastActivity(channel *discordgo.Channel) (time.Time, error) {
	msgs, err := m.s.ChannelMessages(channel.ID, 1, "", "", "")
	if err != nil {
		return time.Time{}, fmt.Errorf("error fetching latest message: %w", err)
	}
	if len(msgs) > 0 {
		return msgs[0].Timestamp, nil
	}

	created, err := discordgo.SnowflakeTimestamp(channel.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("error deriving channel creation time: %w", err)
	}
	return created, nil
}
