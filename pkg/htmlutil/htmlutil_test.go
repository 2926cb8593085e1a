package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{in: "", expect: ""},
		{in: "  hello \n\t world  ", expect: "hello world"},
		{in: "Калибровка эхолота", expect: "Калибровка эхолота"},
		{in: "a\u0007b", expect: "ab"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, CleanText(test.in))
	}
}

func TestPlainText(t *testing.T) {
	require.Equal(t, "Title some bold text", PlainText(`<h1>Title</h1><p>some <b>bold</b></p><script>var x = 1;</script><p>text</p>`))
	require.Equal(t, "", PlainText(""))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 10, "..."))
	require.Equal(t, "abcd...", Truncate("abcdefghij", 7, "..."))
	require.Equal(t, "эхол...", Truncate("эхолот simrad", 7, "..."))
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown(`<h2>Setup</h2><p>Read the <strong>manual</strong> first.</p><ul><li>one</li><li>two</li></ul><p></p><p></p><p></p><p>end</p>`)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "## Setup"), out)
	require.Contains(t, out, "**manual**")
	require.Contains(t, out, "- one")
	require.NotContains(t, out, "\n\n\n")

	out, err = Markdown("   ")
	require.NoError(t, err)
	require.Equal(t, "", out)
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div>
			<a href="/forum/sonar">  Sonar
				equipment </a>
			<a href="https://other.example.com/x">External</a>
			<a href="#top">Top</a>
		</div>`))
	require.NoError(t, err)

	base, err := url.Parse("https://forum.example.com/forum")
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), base, doc.Find("a"))
	diff := cmp.Diff([]Anchor{
		{Name: "Sonar equipment", Href: "https://forum.example.com/forum/sonar"},
		{Name: "External", Href: "https://other.example.com/x"},
		{Name: "Top", Href: ""},
	}, anchors)
	require.Empty(t, diff)
}
