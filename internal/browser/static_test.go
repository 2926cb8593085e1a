package browser

import (
	"context"
	"forummigrate/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/forum", http.StatusFound)
	})
	mux.HandleFunc("/forum", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="category">Sonar</div></body></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	static, err := NewStatic(StaticOptions{UserAgent: "forummigrate-test"}, telemetry.NewRecorder())
	require.NoError(t, err)
	page := static.NewPage()
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, server.URL+"/old"))

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	require.Contains(t, html, `<div class="category">Sonar</div>`)

	location, err := page.Location(ctx)
	require.NoError(t, err)
	require.Equal(t, server.URL+"/forum", location)

	clicked, err := page.Click(ctx, "button.load-more")
	require.NoError(t, err)
	require.False(t, clicked)

	require.ErrorIs(t, page.Fill(ctx, "input", "x"), ErrNoScripting)

	require.Error(t, page.Navigate(ctx, server.URL+"/gone"))
}

func TestStaticPagesShareCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ivan", Path: "/"})
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			w.Write([]byte("guest"))
			return
		}
		w.Write([]byte(cookie.Value))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	static, err := NewStatic(StaticOptions{}, telemetry.NewRecorder())
	require.NoError(t, err)
	ctx := context.Background()

	listing := static.NewPage()
	require.NoError(t, listing.Navigate(ctx, server.URL+"/login"))

	worker := static.NewPage()
	require.NoError(t, worker.Navigate(ctx, server.URL+"/post"))
	html, err := worker.HTML(ctx)
	require.NoError(t, err)
	require.Equal(t, "ivan", html)
}
