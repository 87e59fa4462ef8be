package ticket

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/dataaccess"
	"github.com/Jacobbrewer1/warden/pkg/entities"
)

// fakeSession is an in-memory stand-in for the discord session.
type fakeSession struct {
	mu sync.Mutex

	// now stamps messages as they are sent.
	now func() time.Time

	channels map[string]*discordgo.Channel
	roles    []*discordgo.Role
	members  map[string]*discordgo.Member

	// messages per channel, oldest first.
	messages map[string][]*discordgo.Message

	// files per channel, by filename.
	files map[string][]string

	// permission overwrite calls by channel.
	permissionSets    map[string][]string
	permissionDeletes map[string][]string

	deleted     []string
	pins        []string
	channelEdit int

	historyErr error
	sendErr    error

	nextChannelID int64
	nextMessageID int64
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		now:               time.Now,
		channels:          make(map[string]*discordgo.Channel),
		members:           make(map[string]*discordgo.Member),
		messages:          make(map[string][]*discordgo.Message),
		files:             make(map[string][]string),
		permissionSets:    make(map[string][]string),
		permissionDeletes: make(map[string][]string),
		nextChannelID:     1000000000000000000,
		nextMessageID:     2000000000000000000,
	}
}

func notFoundErr() error {
	return &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel},
	}
}

func (s *fakeSession) addChannel(id, guildID, name string, chanType discordgo.ChannelType) *discordgo.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := &discordgo.Channel{ID: id, GuildID: guildID, Name: name, Type: chanType}
	s.channels[id] = ch
	return ch
}

func (s *fakeSession) addMessage(channelID, authorID, content string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	s.messages[channelID] = append(s.messages[channelID], &discordgo.Message{
		ID:        strconv.FormatInt(s.nextMessageID, 10),
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: authorID},
		Timestamp: ts,
	})
}

func (s *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, notFoundErr()
	}
	return ch, nil
}

func (s *fakeSession) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*discordgo.Channel
	for _, ch := range s.channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *fakeSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextChannelID++
	ch := &discordgo.Channel{
		ID:                   strconv.FormatInt(s.nextChannelID, 10),
		GuildID:              guildID,
		Name:                 data.Name,
		Topic:                data.Topic,
		Type:                 data.Type,
		ParentID:             data.ParentID,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	s.channels[ch.ID] = ch
	return ch, nil
}

func (s *fakeSession) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, notFoundErr()
	}
	delete(s.channels, channelID)
	s.deleted = append(s.deleted, channelID)
	return ch, nil
}

func (s *fakeSession) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, notFoundErr()
	}
	s.channelEdit++
	if data.Name != "" {
		ch.Name = data.Name
	}
	return ch, nil
}

func (s *fakeSession) ChannelMessages(channelID string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	if _, ok := s.channels[channelID]; !ok {
		return nil, notFoundErr()
	}

	msgs := s.messages[channelID]
	end := len(msgs)
	if beforeID != "" {
		for i, m := range msgs {
			if m.ID == beforeID {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	// API order is newest first.
	out := make([]*discordgo.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (s *fakeSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.send(channelID, content)
}

func (s *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.send(channelID, data.Content)
}

func (s *fakeSession) send(channelID, content string) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	if _, ok := s.channels[channelID]; !ok {
		return nil, notFoundErr()
	}
	s.nextMessageID++
	msg := &discordgo.Message{
		ID:        strconv.FormatInt(s.nextMessageID, 10),
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: "bot", Username: "warden"},
		Timestamp: s.now(),
	}
	s.messages[channelID] = append(s.messages[channelID], msg)
	return msg, nil
}

func (s *fakeSession) ChannelMessagePin(channelID, messageID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = append(s.pins, channelID+":"+messageID)
	return nil
}

func (s *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[channelID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[channelID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return notFoundErr()
}

func (s *fakeSession) ChannelFileSend(channelID, name string, r io.Reader, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return nil, notFoundErr()
	}
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	s.files[channelID] = append(s.files[channelID], name)
	s.nextMessageID++
	return &discordgo.Message{ID: strconv.FormatInt(s.nextMessageID, 10)}, nil
}

func (s *fakeSession) ChannelPermissionSet(channelID, targetID string, _ discordgo.PermissionOverwriteType, _, _ int64, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return notFoundErr()
	}
	s.permissionSets[channelID] = append(s.permissionSets[channelID], targetID)
	return nil
}

func (s *fakeSession) ChannelPermissionDelete(channelID, targetID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return notFoundErr()
	}
	s.permissionDeletes[channelID] = append(s.permissionDeletes[channelID], targetID)
	return nil
}

func (s *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "dm-" + recipientID
	ch, ok := s.channels[id]
	if !ok {
		ch = &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeDM}
		s.channels[id] = ch
	}
	return ch, nil
}

func (s *fakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[userID]
	if !ok {
		return nil, notFoundErr()
	}
	return m, nil
}

func (s *fakeSession) GuildRoles(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles, nil
}

func (s *fakeSession) fileCount(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files[channelID])
}

func (s *fakeSession) deleteCount(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.deleted {
		if id == channelID {
			n++
		}
	}
	return n
}

func (s *fakeSession) messageCount(channelID string, contains func(string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages[channelID] {
		if contains(m.Content) {
			n++
		}
	}
	return n
}

// fakeTicketDal is an in-memory ticket store with the DAL's atomic delete
// semantics.
type fakeTicketDal struct {
	mu      sync.Mutex
	tickets map[string]*entities.Ticket
	saveErr error
}

func newFakeTicketDal() *fakeTicketDal {
	return &fakeTicketDal{tickets: make(map[string]*entities.Ticket)}
}

func cloneTicket(t *entities.Ticket) *entities.Ticket {
	c := *t
	if t.LastWarningAt != nil {
		w := *t.LastWarningAt
		c.LastWarningAt = &w
	}
	return &c
}

func (d *fakeTicketDal) SaveTicket(_ context.Context, ticket *entities.Ticket) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return d.saveErr
	}
	d.tickets[ticket.ChannelID] = cloneTicket(ticket)
	return nil
}

func (d *fakeTicketDal) GetTicket(_ context.Context, channelID string) (*entities.Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tickets[channelID]
	if !ok {
		return nil, dataaccess.ErrTicketNotFound
	}
	return cloneTicket(t), nil
}

func (d *fakeTicketDal) DeleteTicket(_ context.Context, channelID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.tickets[channelID]
	delete(d.tickets, channelID)
	return ok, nil
}

func (d *fakeTicketDal) ListTickets(_ context.Context) ([]*entities.Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*entities.Ticket, 0, len(d.tickets))
	for _, t := range d.tickets {
		out = append(out, cloneTicket(t))
	}
	return out, nil
}

func (d *fakeTicketDal) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tickets)
}

type fakeGuildDal struct {
	mu     sync.Mutex
	guilds map[string]*entities.Guild
}

func newFakeGuildDal() *fakeGuildDal {
	return &fakeGuildDal{guilds: make(map[string]*entities.Guild)}
}

func (d *fakeGuildDal) SaveGuild(_ context.Context, guild *entities.Guild) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := *guild
	d.guilds[guild.ID] = &c
	return nil
}

func (d *fakeGuildDal) GetGuildByID(_ context.Context, id string) (*entities.Guild, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.guilds[id]
	if !ok {
		return nil, dataaccess.ErrGuildNotFound
	}
	c := *g
	return &c, nil
}
