package ticket

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/custom"
	"github.com/Jacobbrewer1/warden/pkg/dataaccess"
	"github.com/Jacobbrewer1/warden/pkg/entities"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock shared by the monitor, the
// lifecycle and the fake session so that message stamps and sweep
// decisions agree.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestMonitor(t *testing.T) (*Monitor, *fakeSession, *fakeTicketDal, *testClock) {
	t.Helper()

	lc, fs, ftd, _ := newTestLifecycle(t)

	clock := &testClock{t: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
	fs.now = clock.Now
	lc.now = clock.Now

	m := NewMonitor(fs, slog.Default(), ftd, lc)
	m.now = clock.Now
	return m, fs, ftd, clock
}

// openTracked registers a ticket channel and its record directly, without
// going through Create, so tests control every timestamp.
func openTracked(t *testing.T, fs *fakeSession, ftd *fakeTicketDal, clock *testClock, channelID, requesterID string) *entities.Ticket {
	t.Helper()

	fs.addChannel(channelID, testGuildID, "ticket-"+requesterID, discordgo.ChannelTypeGuildText)
	ticket := &entities.Ticket{
		ChannelID:     channelID,
		GuildID:       testGuildID,
		RequesterID:   requesterID,
		RequesterName: requesterID,
		Status:        entities.TicketStatusOpen,
		CreatedAt:     custom.Datetime(clock.Now()),
	}
	require.NoError(t, ftd.SaveTicket(context.Background(), ticket))
	return ticket
}

func warningCount(fs *fakeSession, channelID string) int {
	return fs.messageCount(channelID, func(content string) bool {
		return strings.Contains(content, "inactive")
	})
}

func TestSweepWarnsIdleTicket(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	const channelID = "1000000000000000005"
	openTracked(t, fs, ftd, clock, channelID, "u1")
	fs.addMessage(channelID, "u1", "hello", clock.Now())

	// Under the threshold nothing happens.
	clock.Advance(23 * time.Hour)
	m.Sweep(context.Background())
	require.Zero(t, warningCount(fs, channelID))

	clock.Advance(2 * time.Hour)
	m.Sweep(context.Background())
	require.Equal(t, 1, warningCount(fs, channelID))

	stored, err := ftd.GetTicket(context.Background(), channelID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastWarningAt)

	// The warning itself does not count as activity, and the grace period
	// has not elapsed, so a repeat sweep neither warns again nor closes.
	m.Sweep(context.Background())
	require.Equal(t, 1, warningCount(fs, channelID))
	require.Zero(t, fs.deleteCount(channelID))
}

func TestSweepClosesUnansweredWarning(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	const channelID = "1000000000000000006"
	openTracked(t, fs, ftd, clock, channelID, "u1")
	fs.addMessage(channelID, "u1", "hello", clock.Now())

	clock.Advance(25 * time.Hour)
	m.Sweep(context.Background())
	require.Equal(t, 1, warningCount(fs, channelID))

	clock.Advance(13 * time.Hour)
	m.Sweep(context.Background())

	require.Equal(t, 1, fs.deleteCount(channelID))
	require.Equal(t, 1, fs.fileCount(testArchiveID))

	_, err := ftd.GetTicket(context.Background(), channelID)
	require.ErrorIs(t, err, dataaccess.ErrTicketNotFound)

	// Nothing left to sweep.
	m.Sweep(context.Background())
	require.Equal(t, 1, fs.deleteCount(channelID))
	require.Equal(t, 1, fs.fileCount(testArchiveID))
}

func TestSweepActivityClearsWarning(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	const channelID = "1000000000000000007"
	openTracked(t, fs, ftd, clock, channelID, "u1")
	fs.addMessage(channelID, "u1", "hello", clock.Now())

	clock.Advance(25 * time.Hour)
	m.Sweep(context.Background())
	require.Equal(t, 1, warningCount(fs, channelID))

	// The requester answers after the warning.
	clock.Advance(time.Hour)
	fs.addMessage(channelID, "u1", "still here", clock.Now())

	clock.Advance(13 * time.Hour)
	m.Sweep(context.Background())

	// The warning is cleared instead of the ticket being closed.
	require.Zero(t, fs.deleteCount(channelID))
	stored, err := ftd.GetTicket(context.Background(), channelID)
	require.NoError(t, err)
	require.Nil(t, stored.LastWarningAt)
}

func TestSweepWarnStampFailureDoesNotSpam(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	const channelID = "1000000000000000011"
	openTracked(t, fs, ftd, clock, channelID, "u1")
	fs.addMessage(channelID, "u1", "hello", clock.Now())

	clock.Advance(25 * time.Hour)

	// The stamp cannot be persisted, so no warning is sent at all; repeated
	// sweeps must not pile messages into the channel.
	ftd.saveErr = errors.New("store down")
	m.Sweep(context.Background())
	m.Sweep(context.Background())
	require.Zero(t, warningCount(fs, channelID))

	ftd.saveErr = nil
	m.Sweep(context.Background())
	require.Equal(t, 1, warningCount(fs, channelID))
}

func TestSweepWarnSendFailureRetries(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	const channelID = "1000000000000000012"
	openTracked(t, fs, ftd, clock, channelID, "u1")
	fs.addMessage(channelID, "u1", "hello", clock.Now())

	clock.Advance(25 * time.Hour)

	// The send fails after the stamp was written; the stamp must be cleared
	// so the ticket is warned, not silently closed, once sending recovers.
	fs.sendErr = errors.New("gateway down")
	m.Sweep(context.Background())

	stored, err := ftd.GetTicket(context.Background(), channelID)
	require.NoError(t, err)
	require.Nil(t, stored.LastWarningAt)

	fs.sendErr = nil
	m.Sweep(context.Background())
	require.Equal(t, 1, warningCount(fs, channelID))

	stored, err = ftd.GetTicket(context.Background(), channelID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastWarningAt)
}

func TestSweepSkipsPersistentTickets(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	const channelID = "1000000000000000008"
	ticket := openTracked(t, fs, ftd, clock, channelID, "u1")
	ticket.Persist = true
	require.NoError(t, ftd.SaveTicket(context.Background(), ticket))

	clock.Advance(100 * 24 * time.Hour)
	m.Sweep(context.Background())

	require.Zero(t, warningCount(fs, channelID))
	require.Zero(t, fs.deleteCount(channelID))
}

func TestSweepRemovesOrphanedRecord(t *testing.T) {
	m, _, ftd, _ := newTestMonitor(t)

	// A record whose channel no longer exists, as left behind by a crash
	// between the channel delete and the record delete.
	require.NoError(t, ftd.SaveTicket(context.Background(), &entities.Ticket{
		ChannelID:   "1000000000000000009",
		GuildID:     testGuildID,
		RequesterID: "u1",
		Status:      entities.TicketStatusOpen,
	}))

	m.Sweep(context.Background())

	require.Zero(t, ftd.count())
}

func TestSweepUsesChannelCreationWhenEmpty(t *testing.T) {
	m, fs, ftd, clock := newTestMonitor(t)

	// No messages at all. The numeric channel ID decodes to a creation
	// time years before the test clock, so the ticket is long idle.
	const channelID = "1000000000000000010"
	openTracked(t, fs, ftd, clock, channelID, "u1")

	m.Sweep(context.Background())

	require.Equal(t, 1, warningCount(fs, channelID))
}

func TestMonitorStartStop(t *testing.T) {
	m, _, _, _ := newTestMonitor(t)

	require.NoError(t, m.Start())
	m.Stop()
}
