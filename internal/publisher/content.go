package publisher

import (
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/forum"
	"forummigrate/pkg/htmlutil"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const (
	UNKNOWN           = "unknown"
	MAX_SLUG_LENGTH   = 100
	DISCLAIMER_DATE   = "{date}"
	DISCLAIMER_AUTHOR = "{author}"
)

func init() {
	slug.MaxLength = MAX_SLUG_LENGTH
}

// Slug is the category slug for title, "" lets Discourse pick one.
func Slug(title string) string {
	return slug.Make(title)
}

// renderBody turns the html of a post or comment into what is sent to
// Discourse.
func (p *Publisher) renderBody(html string) string {
	if !p.opts.ConvertToMarkdown {
		return strings.TrimSpace(html)
	}
	out, err := htmlutil.Markdown(html)
	if err != nil {
		p.tel.ReportWarning(report_publisher_content, err)
		return htmlutil.PlainText(html)
	}
	return out
}

// Disclaimer fills the {date} and {author} placeholders of text.
func Disclaimer(text, rawDate, author string) string {
	if strings.TrimSpace(rawDate) == "" {
		rawDate = UNKNOWN
	}
	if strings.TrimSpace(author) == "" {
		author = UNKNOWN
	}
	return strings.NewReplacer(DISCLAIMER_DATE, rawDate, DISCLAIMER_AUTHOR, author).Replace(text)
}

func (p *Publisher) topicBody(post forum.Post) string {
	body := p.renderBody(post.Content)
	if body == "" {
		body = post.Description
	}
	if body == "" {
		body = post.Title
	}
	if p.opts.AddDisclaimer && p.opts.DisclaimerText != "" {
		body = body + "\n\n" + Disclaimer(p.opts.DisclaimerText, post.CreatedAt, post.Author)
	}
	return body
}

// createdAt is the RFC3339 timestamp to backdate an entity with, "" when dates
// are not preserved or cannot be interpreted.
func (p *Publisher) createdAt(published, raw string, exported time.Time) string {
	if !p.opts.PreserveDates {
		return ""
	}
	if published != "" {
		return published
	}
	if exported.IsZero() {
		exported = p.clock.Now()
	}
	parsed, ok := chrono.ParseDate(raw, exported)
	if !ok {
		return ""
	}
	return parsed.Format(time.RFC3339)
}
