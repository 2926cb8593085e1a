package browser

import (
	"context"
	"forummigrate/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chromePath(t *testing.T) string {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		path, err := exec.LookPath(name)
		if err == nil {
			return path
		}
	}
	t.Skip("no chrome binary available")
	return ""
}

func TestChromeTabsShareSession(t *testing.T) {
	path := chromePath(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ivan", Path: "/"})
		w.Write([]byte(`<html><body>signed in</body></html>`))
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		user := "guest"
		cookie, err := r.Cookie("session")
		if err == nil {
			user = cookie.Value
		}
		w.Write([]byte(`<html><body><span id="user">` + user + `</span></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	chrome := NewChrome(ChromeOptions{
		Headless:        true,
		ExecPath:        path,
		PageLoadTimeout: 20 * time.Second,
	}, telemetry.NewRecorder())
	defer chrome.Close()

	ctx := context.Background()
	listing, err := chrome.NewTab(ctx)
	require.NoError(t, err)
	require.NoError(t, listing.Navigate(ctx, server.URL+"/login"))

	worker, err := chrome.NewTab(ctx)
	require.NoError(t, err)
	defer worker.Close()
	require.NoError(t, worker.Navigate(ctx, server.URL+"/post"))
	html, err := worker.HTML(ctx)
	require.NoError(t, err)
	require.Contains(t, html, `<span id="user">ivan</span>`)

	// closing a tab leaves the browser to the others
	require.NoError(t, listing.Close())
	require.NoError(t, worker.Navigate(ctx, server.URL+"/post"))
}

func TestChromeNavigateWaitsForNetworkIdle(t *testing.T) {
	path := chromePath(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/topic", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script>
			fetch("/comments").then(r => r.text()).then(t => {
				document.body.insertAdjacentHTML("beforeend", "<div id=\"comments\">" + t + "</div>");
			});
		</script></body></html>`))
	})
	mux.HandleFunc("/comments", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(700 * time.Millisecond)
		w.Write([]byte("Thanks for sharing"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	chrome := NewChrome(ChromeOptions{Headless: true, ExecPath: path, PageLoadTimeout: 20 * time.Second}, telemetry.NewRecorder())
	defer chrome.Close()

	ctx := context.Background()
	tab, err := chrome.NewTab(ctx)
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Navigate(ctx, server.URL+"/topic"))
	html, err := tab.HTML(ctx)
	require.NoError(t, err)
	require.Contains(t, html, `<div id="comments">Thanks for sharing</div>`)
}
