package ticket

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/warden/pkg/logging"
	"github.com/Jacobbrewer1/warden/pkg/ticket/monitoring"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// spoilerPattern matches discord spoiler markup in rendered HTML. Spoilers
// are not markdown, so they are rewritten after rendering; the body is
// already escaped by that point.
var spoilerPattern = regexp.MustCompile(`\|\|([^|]+)\|\|`)

// underlinePattern matches discord underline markup. CommonMark treats
// __text__ as strong, so the markup is swapped for private-use markers before
// rendering; the markers pass through goldmark as plain text and are rewritten
// into tags afterwards.
var underlinePattern = regexp.MustCompile(`__([^_]+)__`)

const (
	underlineOpen  = ""
	underlineClose = ""
)

// Transcript is a rendered snapshot of a ticket channel's full message
// history, as a single self-contained HTML document.
type Transcript struct {
	// Filename is the name the artifact should be uploaded under.
	Filename string

	// Content is the rendered document.
	Content []byte
}

// Size returns the byte size of the document.
func (t *Transcript) Size() int {
	return len(t.Content)
}

// TranscriptGenerator renders channel histories into transcripts.
type TranscriptGenerator struct {
	// s is the discord session.
	s Session

	// l is the logger.
	l *slog.Logger

	// md renders message markdown.
	md goldmark.Markdown

	// policy sanitizes the rendered markdown.
	policy *bluemonday.Policy
}

// NewTranscriptGenerator creates a new transcript generator.
func NewTranscriptGenerator(s Session, l *slog.Logger) *TranscriptGenerator {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("span")
	policy.AllowElements("u")

	return &TranscriptGenerator{
		s: s,
		l: l,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough),
		),
		policy: policy,
	}
}

type transcriptMessage struct {
	Author      string
	Timestamp   string
	Content     template.HTML
	Attachments []*discordgo.MessageAttachment
	Embeds      []*discordgo.MessageEmbed
}

type transcriptData struct {
	Channel     string
	GeneratedAt string
	Messages    []*transcriptMessage
}

// Generate fetches the channel's full message history, oldest first, and
// renders it. A channel with no messages produces an empty but valid
// document. A history fetch failure aborts generation.
func (g *TranscriptGenerator) Generate(channel *discordgo.Channel) (*Transcript, error) {
	history, err := g.fetchHistory(channel.ID)
	if err != nil {
		return nil, wrapError(KindExternalAPI, "Failed to fetch the channel history for the transcript.", err)
	}

	data := &transcriptData{
		Channel:     channel.Name,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Messages:    make([]*transcriptMessage, 0, len(history)),
	}

	for _, m := range history {
		author := "unknown"
		if m.Author != nil {
			author = m.Author.Username
		}

		data.Messages = append(data.Messages, &transcriptMessage{
			Author:      author,
			Timestamp:   m.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			Content:     g.renderContent(m.Content),
			Attachments: m.Attachments,
			Embeds:      m.Embeds,
		})
	}

	buf := new(bytes.Buffer)
	if err := transcriptTemplate.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("error rendering transcript: %w", err)
	}

	monitoring.TranscriptBytes.Observe(float64(buf.Len()))

	return &Transcript{
		Filename: channel.Name + ".html",
		Content:  buf.Bytes(),
	}, nil
}

// fetchHistory pages through the channel's messages and returns them oldest
// first. The API serves pages newest first.
func (g *TranscriptGenerator) fetchHistory(channelID string) ([]*discordgo.Message, error) {
	const pageSize = 100

	var history []*discordgo.Message
	before := ""
	for {
		page, err := g.s.ChannelMessages(channelID, pageSize, before, "", "")
		if err != nil {
			return nil, fmt.Errorf("error fetching messages: %w", err)
		}
		if len(page) == 0 {
			break
		}

		history = append(history, page...)
		before = page[len(page)-1].ID

		if len(page) < pageSize {
			break
		}
	}

	// Reverse into chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// renderContent renders one message's markdown and sanitizes the result. All
// user-supplied text is escaped or stripped before it reaches the document.
func (g *TranscriptGenerator) renderContent(content string) template.HTML {
	if content == "" {
		return ""
	}

	content = underlinePattern.ReplaceAllString(content, underlineOpen+"$1"+underlineClose)

	buf := new(bytes.Buffer)
	if err := g.md.Convert([]byte(content), buf); err != nil {
		g.l.Warn("Error rendering message markdown, falling back to plain text",
			slog.String(logging.KeyError, err.Error()))
		return template.HTML("<p>" + restoreUnderlines(template.HTMLEscapeString(content)) + "</p>")
	}

	rendered := spoilerPattern.ReplaceAllString(buf.String(), `<span class="spoiler">$1</span>`)
	rendered = restoreUnderlines(rendered)

	return template.HTML(g.policy.Sanitize(rendered))
}

func restoreUnderlines(rendered string) string {
	rendered = strings.ReplaceAll(rendered, underlineOpen, "<u>")
	return strings.ReplaceAll(rendered, underlineClose, "</u>")
}

var transcriptTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Transcript of #{{.Channel}}</title>
<style>
body { font-family: sans-serif; background: #36393f; color: #dcddde; margin: 0; padding: 1rem; }
.header { border-bottom: 1px solid #4f545c; padding-bottom: 0.5rem; margin-bottom: 1rem; }
.message { padding: 0.25rem 0; }
.author { font-weight: bold; color: #fff; }
.timestamp { color: #72767d; font-size: 0.75rem; margin-left: 0.5rem; }
.content p { margin: 0.15rem 0; }
.content code { background: #2f3136; padding: 0.1rem 0.25rem; border-radius: 3px; }
.content pre { background: #2f3136; padding: 0.5rem; border-radius: 4px; }
.content blockquote { border-left: 4px solid #4f545c; margin: 0.25rem 0; padding-left: 0.5rem; }
.spoiler { background: #202225; color: #202225; border-radius: 3px; }
.spoiler:hover { color: #dcddde; }
.attachment, .embed { border-left: 4px solid #4f545c; margin: 0.25rem 0; padding: 0.25rem 0.5rem; background: #2f3136; }
</style>
</head>
<body>
<div class="header">
<h1>#{{.Channel}}</h1>
<p>Generated at {{.GeneratedAt}} &middot; {{len .Messages}} messages</p>
</div>
{{range .Messages}}<div class="message">
<span class="author">{{.Author}}</span><span class="timestamp">{{.Timestamp}}</span>
{{with .Content}}<div class="content">{{.}}</div>{{end}}
{{range .Attachments}}<div class="attachment">Attachment: <a href="{{.URL}}">{{.Filename}}</a> ({{.Size}} bytes)</div>
{{end}}{{range .Embeds}}<div class="embed">{{with .Title}}<strong>{{.}}</strong><br>{{end}}{{.Description}}</div>
{{end}}</div>
{{end}}</body>
</html>
`))
