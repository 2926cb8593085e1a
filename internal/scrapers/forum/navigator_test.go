package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func listing(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul>`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<li class="post"><a href="/post/%d">Post %d</a></li>`, i, i)
	}
	b.WriteString(`</ul><button class="more">Load more</button></body></html>`)
	return b.String()
}

func TestNavigatorQueries(t *testing.T) {
	site := newFakeSite(map[string]string{
		"https://forum.test/forum/sonar": `<html><body>
			<div class="item">
				<h3 class="title">  Simrad
					EK80 </h3>
				<a class="link" href="../radio/icom">open</a>
				<div class="body"><p>Calibration <b>notes</b></p></div>
			</div>
			<div class="item"><a class="link" href="#">empty</a></div>
		</body></html>`,
	})
	nav := newFakeNavigator(newFakePage(site))

	_, err := nav.QueryAll(".item")
	require.ErrorIs(t, err, ErrNoDocument)

	require.NoError(t, nav.Navigate(context.Background(), "https://forum.test/forum/sonar"))

	items, err := nav.QueryAll(".item")
	require.NoError(t, err)
	require.Len(t, items, 2)

	title, ok := ExtractField(items[0], ".title")
	require.True(t, ok)
	require.Equal(t, "Simrad EK80", title)

	_, ok = ExtractField(items[1], ".title")
	require.False(t, ok)
	_, ok = ExtractField(items[0], "[[[")
	require.False(t, ok, "invalid selectors match nothing")

	href, ok := ExtractAttr(items[0], ".link", "href")
	require.True(t, ok)
	require.Equal(t, "https://forum.test/forum/radio/icom", nav.ResolveUrl(href))

	href, _ = ExtractAttr(items[1], ".link", "href")
	require.Equal(t, "", nav.ResolveUrl(href))

	html, ok := ExtractHTML(items[0], ".body")
	require.True(t, ok)
	require.Equal(t, "<p>Calibration <b>notes</b></p>", html)

	_, err = nav.QueryAll("div[")
	require.Error(t, err)

	none, err := nav.QueryAll("")
	require.NoError(t, err)
	require.Empty(t, none)

	links, err := items[1].QueryAll("a")
	require.NoError(t, err)
	require.Len(t, links, 1, "only descendants of the element")
	text, _ := ExtractField(links[0], "")
	require.Equal(t, "empty", text)
	_, err = items[0].QueryAll("div[")
	require.Error(t, err)

	anchors, err := nav.Anchors(context.Background())
	require.NoError(t, err)
	require.Len(t, anchors, 2)
	require.Equal(t, "https://forum.test/forum/radio/icom", anchors[0].Href)
	require.Equal(t, "", anchors[1].Href)
}

func TestNavigateFailure(t *testing.T) {
	nav := newFakeNavigator(newFakePage(newFakeSite(map[string]string{})))

	err := nav.Navigate(context.Background(), "https://forum.test/missing")
	var navErr *NavigationError
	require.True(t, errors.As(err, &navErr))
	require.Equal(t, "https://forum.test/missing", navErr.Url)
}

func TestPaginate(t *testing.T) {
	t.Run("until the control disappears", func(t *testing.T) {
		page := newFakePage(newFakeSite(map[string]string{"https://forum.test/list": listing(2)}))
		shown := 2
		page.onClick = func(p *fakePage, selector string) bool {
			if shown >= 6 {
				return false
			}
			shown += 2
			p.html = listing(shown)
			return true
		}
		nav := newFakeNavigator(page)
		require.NoError(t, nav.Navigate(context.Background(), "https://forum.test/list"))

		count, err := nav.Paginate(context.Background(), "li.post", "button.more", 10)
		require.NoError(t, err)
		require.Equal(t, 6, count)
		require.Len(t, page.clicked, 3)
	})

	t.Run("stops when nothing new appears", func(t *testing.T) {
		page := newFakePage(newFakeSite(map[string]string{"https://forum.test/list": listing(3)}))
		page.onClick = func(p *fakePage, selector string) bool {
			return true
		}
		nav := newFakeNavigator(page)
		require.NoError(t, nav.Navigate(context.Background(), "https://forum.test/list"))

		count, err := nav.Paginate(context.Background(), "li.post", "button.more", 10)
		require.NoError(t, err)
		require.Equal(t, 3, count)
		require.Len(t, page.clicked, 1)
	})

	t.Run("bounded by max rounds", func(t *testing.T) {
		page := newFakePage(newFakeSite(map[string]string{"https://forum.test/list": listing(1)}))
		shown := 1
		page.onClick = func(p *fakePage, selector string) bool {
			shown++
			p.html = listing(shown)
			return true
		}
		nav := newFakeNavigator(page)
		require.NoError(t, nav.Navigate(context.Background(), "https://forum.test/list"))

		count, err := nav.Paginate(context.Background(), "li.post", "button.more", 4)
		require.NoError(t, err)
		require.Equal(t, 5, count)
		require.Len(t, page.clicked, 4)
	})

	t.Run("no control configured", func(t *testing.T) {
		page := newFakePage(newFakeSite(map[string]string{"https://forum.test/list": listing(2)}))
		nav := newFakeNavigator(page)
		require.NoError(t, nav.Navigate(context.Background(), "https://forum.test/list"))

		count, err := nav.Paginate(context.Background(), "li.post", "", 4)
		require.NoError(t, err)
		require.Equal(t, 2, count)
		require.Empty(t, page.clicked)
	})
}
