package forum

import (
	"context"
	"forummigrate/pkg/htmlutil"
	"io"
	"net/url"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// DefaultCandidates are selectors commonly seen on Wix style forums, probed
// to help writing a selector configuration.
var DefaultCandidates = []string{
	"a[href*='category']",
	"div[class*='category']",
	"div[class*='subcategory']",
	"[data-hook*='category']",
	".category-item",
	".subcategory-item",
	"[data-hook*='post']",
	"a.PaFuZ",
}

const analyzeSamples = 3

type SelectorReport struct {
	Selector string
	Count    int
	Samples  []string
	Err      error
}

type AnalyzeReport struct {
	Url       string
	Title     string
	Selectors []SelectorReport
	// ForumLinks are the distinct links whose path mentions "forum".
	ForumLinks []htmlutil.Anchor
}

// forumLink reports whether the path or query of link mentions "forum", a
// forum host alone does not count.
func forumLink(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(parsed.Path+"?"+parsed.RawQuery), "forum")
}

// Analyze loads rawUrl and reports how many elements each candidate selector
// matches along with a few sample texts.
func Analyze(ctx context.Context, nav *Navigator, rawUrl string, candidates []string) (AnalyzeReport, error) {
	err := nav.Navigate(ctx, rawUrl)
	if err != nil {
		return AnalyzeReport{}, err
	}

	report := AnalyzeReport{Url: rawUrl}
	titles, _ := nav.QueryAll("title")
	if len(titles) > 0 {
		report.Title, _ = ExtractField(titles[0], "")
	}

	for _, candidate := range candidates {
		items, err := nav.QueryAll(candidate)
		entry := SelectorReport{Selector: candidate, Count: len(items), Err: err}
		for _, el := range items {
			if len(entry.Samples) >= analyzeSamples {
				break
			}
			text, _ := ExtractField(el, "")
			if text == "" {
				continue
			}
			entry.Samples = append(entry.Samples, htmlutil.Truncate(text, 100, "..."))
		}
		report.Selectors = append(report.Selectors, entry)
	}

	anchors, err := nav.Anchors(ctx)
	if err != nil {
		return report, err
	}
	seen := map[string]bool{}
	for _, anchor := range anchors {
		if anchor.Href == "" || seen[anchor.Href] || !forumLink(anchor.Href) {
			continue
		}
		seen[anchor.Href] = true
		report.ForumLinks = append(report.ForumLinks, anchor)
	}

	return report, nil
}

// Render writes the report as tables.
func (r AnalyzeReport) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("%s", r.Title)
	t.AppendHeader(table.Row{"Selector", "Matches", "Samples"})
	for _, s := range r.Selectors {
		samples := strings.Join(s.Samples, "\n")
		if s.Err != nil {
			samples = s.Err.Error()
		}
		t.AppendRow(table.Row{s.Selector, s.Count, samples})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	links := table.NewWriter()
	links.SetOutputMirror(w)
	links.AppendHeader(table.Row{"Forum link", "Text"})
	for _, a := range r.ForumLinks {
		links.AppendRow(table.Row{a.Href, a.Name})
	}
	links.SetStyle(table.StyleRounded)
	links.Render()
}
