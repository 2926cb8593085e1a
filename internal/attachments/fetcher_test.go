package attachments

import (
	"context"
	"errors"
	"forummigrate/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fileServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newFileServer(t *testing.T, handler http.HandlerFunc) *fileServer {
	s := &fileServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func servePdf(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/pdf")
	w.Write([]byte("%PDF-1.4 calibration manual"))
}

func newTestFetcher(t *testing.T, opts Options) *Fetcher {
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.RetryBase == 0 {
		opts.RetryBase = time.Millisecond
	}
	return NewFetcher(opts, telemetry.NewRecorder())
}

func TestStoredName(t *testing.T) {
	url := "https://host/ugd/abcdef_hash/file.pdf"
	hash := UrlHash(url)
	require.Len(t, hash, 8)

	cases := []struct {
		name   string
		expect string
	}{
		{name: "manual.pdf", expect: "manual_" + hash + ".pdf"},
		{name: "Руководство Simrad.pdf", expect: "Руководство Simrad_" + hash + ".pdf"},
		{name: "bad/../name?.pdf", expect: "bad..name_" + hash + ".pdf"},
		{name: "archive.tar.gz", expect: "archive.tar_" + hash + ".gz"},
		{name: "README", expect: "README_" + hash},
		{name: "", expect: "attachment_" + hash + ".pdf"},
		{name: "???", expect: "attachment_" + hash + ".pdf"},
		{name: ".", expect: "attachment_" + hash + ".pdf"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, StoredName(url, test.name), test.name)
	}
}

func TestParseWixUrl(t *testing.T) {
	wix, ok := ParseWixUrl("https://abc123.usrfiles.com/ugd/def456_77aa.pdf")
	require.True(t, ok)
	require.Equal(t, WixFile{Uuid: "abc123", Hash: "def456_77aa.pdf"}, wix)

	_, ok = ParseWixUrl("https://example.com/file.pdf")
	require.False(t, ok)
}

func TestDownloadIdempotent(t *testing.T) {
	server := newFileServer(t, servePdf)
	fetcher := newTestFetcher(t, Options{})
	ctx := context.Background()

	first, err := fetcher.Download(ctx, server.URL+"/manual.pdf", "manual.pdf", "c1.s1.p1")
	require.NoError(t, err)
	second, err := fetcher.Download(ctx, server.URL+"/manual.pdf", "manual.pdf", "c1.s1.p1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int64(1), server.hits.Load())
	require.Equal(t, Counts{Downloaded: 1, Cached: 1}, fetcher.Counts())

	contents, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 calibration manual", string(contents))
}

func TestDownloadDistinctUrls(t *testing.T) {
	server := newFileServer(t, servePdf)
	fetcher := newTestFetcher(t, Options{})
	ctx := context.Background()

	a, err := fetcher.Download(ctx, server.URL+"/a/manual.pdf", "manual.pdf", "c1.s1.p1")
	require.NoError(t, err)
	b, err := fetcher.Download(ctx, server.URL+"/b/manual.pdf", "manual.pdf", "c1.s1.p1")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Equal(t, int64(2), server.hits.Load())
}

func TestDownloadAllowList(t *testing.T) {
	server := newFileServer(t, servePdf)
	url := server.URL + "/ugd/abcdef_hash/file.pdf"
	ctx := context.Background()

	allowed := newTestFetcher(t, Options{
		AllowedExtensions: []string{".pdf", ".jpg"},
		MaxFileSizeMB:     1,
	})
	path, err := allowed.Download(ctx, url, "file.pdf", "c1.s1.p1")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".pdf"))
	require.Equal(t, int64(1), server.hits.Load())

	rejected := newTestFetcher(t, Options{AllowedExtensions: []string{"JPG"}})
	path, err = rejected.Download(ctx, url, "file.pdf", "c1.s1.p1")
	require.ErrorIs(t, err, ErrExtensionNotAllowed)
	require.Equal(t, "", path)
	require.Equal(t, int64(1), server.hits.Load(), "a rejected extension must not be requested")
	require.Equal(t, int64(1), rejected.Counts().Skipped)
}

func TestDownloadTooLarge(t *testing.T) {
	payload := strings.Repeat("x", 4096)

	t.Run("declared", func(t *testing.T) {
		server := newFileServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("content-length", "4096")
			w.Write([]byte(payload))
		})
		fetcher := newTestFetcher(t, Options{MaxFileSizeMB: 0.001})

		path, err := fetcher.Download(context.Background(), server.URL+"/big.bin", "big.bin", "g")
		require.ErrorIs(t, err, ErrTooLarge)
		require.Equal(t, "", path)
		_, statErr := os.Stat(fetcher.Path(server.URL+"/big.bin", "big.bin", "g"))
		require.True(t, os.IsNotExist(statErr))
		require.Equal(t, Counts{Skipped: 1}, fetcher.Counts(), "too large is a skip, like in the crawl stats")
	})

	t.Run("streamed", func(t *testing.T) {
		server := newFileServer(t, func(w http.ResponseWriter, r *http.Request) {
			for i := 0; i < 4; i++ {
				w.Write([]byte(payload[:1024]))
				w.(http.Flusher).Flush()
			}
		})
		fetcher := newTestFetcher(t, Options{MaxFileSizeMB: 0.001})

		_, err := fetcher.Download(context.Background(), server.URL+"/big.bin", "big.bin", "g")
		require.ErrorIs(t, err, ErrTooLarge)

		entries, err := os.ReadDir(filepath.Join(fetcher.dir, "g"))
		require.NoError(t, err)
		require.Empty(t, entries, "partial downloads must be removed")
		require.Equal(t, Counts{Skipped: 1}, fetcher.Counts())
	})
}

func TestDownloadPermanentFailure(t *testing.T) {
	server := newFileServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		servePdf(w, r)
	})
	fetcher := newTestFetcher(t, Options{MaxRetries: 2})

	_, err := fetcher.Download(context.Background(), server.URL+"/missing.pdf", "missing.pdf", "g")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Equal(t, int64(1), server.hits.Load(), "404 is not retried")
	require.Equal(t, int64(1), fetcher.Counts().Failed)
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int64
	server := newFileServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		servePdf(w, r)
	})
	fetcher := newTestFetcher(t, Options{MaxRetries: 2})

	path, err := fetcher.Download(context.Background(), server.URL+"/flaky.pdf", "flaky.pdf", "g")
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, int64(2), server.hits.Load())
}
