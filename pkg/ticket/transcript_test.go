package ticket

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/stretchr/testify/require"
)

func newTestTranscripts(t *testing.T) (*TranscriptGenerator, *fakeSession, *discordgo.Channel) {
	t.Helper()

	fs := newFakeSession()
	ch := fs.addChannel("1000000000000000020", testGuildID, "ticket-alice", discordgo.ChannelTypeGuildText)
	return NewTranscriptGenerator(fs, slog.Default()), fs, ch
}

func TestGenerateChronologicalOrder(t *testing.T) {
	g, fs, ch := newTestTranscripts(t)

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	fs.addMessage(ch.ID, "alice", "first message", base)
	fs.addMessage(ch.ID, "bob", "second message", base.Add(time.Minute))

	transcript, err := g.Generate(ch)
	require.NoError(t, err)
	require.Equal(t, "ticket-alice.html", transcript.Filename)

	body := string(transcript.Content)
	require.Contains(t, body, "2 messages")
	require.Less(t, strings.Index(body, "first message"), strings.Index(body, "second message"))
	require.Equal(t, transcript.Size(), len(transcript.Content))
}

func TestGeneratePagesFullHistory(t *testing.T) {
	g, fs, ch := newTestTranscripts(t)

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 250; i++ {
		fs.addMessage(ch.ID, "alice", fmt.Sprintf("message number %d", i), base.Add(time.Duration(i)*time.Second))
	}

	transcript, err := g.Generate(ch)
	require.NoError(t, err)

	body := string(transcript.Content)
	require.Contains(t, body, "250 messages")
	require.Less(t, strings.Index(body, "message number 0<"), strings.Index(body, "message number 249<"))
}

func TestGenerateEscapesUserContent(t *testing.T) {
	g, fs, ch := newTestTranscripts(t)

	ts := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	fs.addMessage(ch.ID, "alice", "a < b & c", ts)
	fs.addMessage(ch.ID, "mallory", "<script>alert(1)</script>", ts.Add(time.Second))

	transcript, err := g.Generate(ch)
	require.NoError(t, err)

	body := string(transcript.Content)
	require.Contains(t, body, "a &lt; b &amp; c")
	require.NotContains(t, body, "<script>")
}

func TestGenerateRendersMarkdown(t *testing.T) {
	g, fs, ch := newTestTranscripts(t)

	ts := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	fs.addMessage(ch.ID, "alice", "**bold** and ~~struck~~ and `x<y`", ts)
	fs.addMessage(ch.ID, "alice", "the answer is ||forty two||", ts.Add(time.Second))
	fs.addMessage(ch.ID, "alice", "this is __underlined__, not bold", ts.Add(2*time.Second))

	transcript, err := g.Generate(ch)
	require.NoError(t, err)

	body := string(transcript.Content)
	require.Contains(t, body, "<strong>bold</strong>")
	require.Contains(t, body, "<del>struck</del>")
	require.Contains(t, body, "<code>x&lt;y</code>")
	require.Contains(t, body, `<span class="spoiler">forty two</span>`)

	// Discord's __text__ is underline, which CommonMark would bold.
	require.Contains(t, body, "<u>underlined</u>")
	require.NotContains(t, body, "<strong>underlined</strong>")
}

func TestGenerateEmptyChannel(t *testing.T) {
	g, _, ch := newTestTranscripts(t)

	transcript, err := g.Generate(ch)
	require.NoError(t, err)

	body := string(transcript.Content)
	require.Contains(t, body, "<!DOCTYPE html>")
	require.Contains(t, body, "0 messages")
	require.Contains(t, body, "ticket-alice")
}

func TestGenerateAttachmentOnlyMessage(t *testing.T) {
	g, fs, ch := newTestTranscripts(t)

	fs.mu.Lock()
	fs.messages[ch.ID] = append(fs.messages[ch.ID], &discordgo.Message{
		ID:        "2100000000000000001",
		ChannelID: ch.ID,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Timestamp: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn.example.com/file.png", Filename: "file.png", Size: 123},
		},
	})
	fs.mu.Unlock()

	transcript, err := g.Generate(ch)
	require.NoError(t, err)

	body := string(transcript.Content)
	require.Contains(t, body, "file.png")
	require.Contains(t, body, "123 bytes")
}

func TestGenerateHistoryFailure(t *testing.T) {
	g, fs, ch := newTestTranscripts(t)
	fs.historyErr = errors.New("rate limited")

	transcript, err := g.Generate(ch)
	require.Nil(t, transcript)
	requireKind(t, err, KindExternalAPI)
}
