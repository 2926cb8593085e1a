package attachments

import (
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/components/assert"
	"forummigrate/internal/components/telemetry"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

const (
	report_fetcher_download = "fetcher.download"
	report_fetcher_skip     = "fetcher.skip"
)

var (
	ErrExtensionNotAllowed = errors.New("extension not allowed")
	ErrTooLarge            = errors.New("file exceeds the size limit")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Url  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.Url)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

type Options struct {
	// Dir is the base directory, every group gets a subdirectory of it.
	Dir string
	// AllowedExtensions like ".pdf", empty allows every extension.
	AllowedExtensions []string
	// MaxFileSizeMB <= 0 disables the size limit.
	MaxFileSizeMB float64
	MaxRetries    uint64
	// RetryBase is the first backoff interval, doubled on every retry.
	RetryBase time.Duration
	Timeout   time.Duration
	UserAgent string
}

type Counts struct {
	Downloaded int64
	Cached     int64
	Failed     int64
	Skipped    int64
}

// Fetcher downloads attachments to local storage at most once per url.
type Fetcher struct {
	http     *resty.Client
	dir      string
	allowed  map[string]bool
	maxBytes int64
	backoff  func() retry.Backoff
	tel      telemetry.API

	downloaded atomic.Int64
	cached     atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
}

func NewFetcher(opts Options, tel telemetry.API) *Fetcher {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Dir)

	tel = telemetry.NewScopedAPI("attachments", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	telemetry.InstrumentResty(client, tel)

	var maxBytes int64
	if opts.MaxFileSizeMB > 0 {
		maxBytes = int64(opts.MaxFileSizeMB * 1024 * 1024)
	}

	maxRetries := opts.MaxRetries
	base := opts.RetryBase
	return &Fetcher{
		http:     client,
		dir:      opts.Dir,
		allowed:  normalizeExtensions(opts.AllowedExtensions),
		maxBytes: maxBytes,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(maxRetries, retry.NewExponential(base))
		},
		tel: tel,
	}
}

func (f *Fetcher) Counts() Counts {
	return Counts{
		Downloaded: f.downloaded.Load(),
		Cached:     f.cached.Load(),
		Failed:     f.failed.Load(),
		Skipped:    f.skipped.Load(),
	}
}

// Allowed reports whether the attachment passes the extension allow-list.
func (f *Fetcher) Allowed(rawUrl, suggestedName string) bool {
	if len(f.allowed) == 0 {
		return true
	}
	return f.allowed[Extension(rawUrl, suggestedName)]
}

// Path is where Download stores the attachment.
func (f *Fetcher) Path(rawUrl, suggestedName, group string) string {
	return filepath.Join(f.dir, groupDir(group), StoredName(rawUrl, suggestedName))
}

// Download stores the file behind rawUrl under the directory of group and
// returns its local path. A file already present at that path is returned
// without any request. Rejected extensions never touch the network.
func (f *Fetcher) Download(ctx context.Context, rawUrl, suggestedName, group string) (string, error) {
	if suggestedName == "" {
		if wix, ok := ParseWixUrl(rawUrl); ok {
			suggestedName = wix.Hash
		}
	}

	if !f.Allowed(rawUrl, suggestedName) {
		f.skipped.Add(1)
		f.tel.ReportWarning(report_fetcher_skip, "extension not allowed", suggestedName, rawUrl)
		return "", fmt.Errorf("%s: %w", Extension(rawUrl, suggestedName), ErrExtensionNotAllowed)
	}

	target := f.Path(rawUrl, suggestedName, group)
	_, err := os.Stat(target)
	if err == nil {
		f.cached.Add(1)
		f.tel.ReportDebug("attachment already present", target)
		return target, nil
	}

	err = os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		f.failed.Add(1)
		f.tel.ReportBroken(report_fetcher_download, fmt.Errorf("create dir: %w", err), target)
		return "", err
	}

	err = retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
		return f.transfer(ctx, rawUrl, target)
	})
	if errors.Is(err, ErrTooLarge) {
		f.skipped.Add(1)
		f.tel.ReportWarning(report_fetcher_skip, err, rawUrl)
		return "", err
	}
	if err != nil {
		f.failed.Add(1)
		f.tel.ReportBroken(report_fetcher_download, err, rawUrl)
		return "", err
	}

	f.downloaded.Add(1)
	f.tel.ReportDebug("downloaded attachment", rawUrl, target)
	return target, nil
}

// transfer performs a single attempt, errors worth another attempt are
// wrapped with retry.RetryableError.
func (f *Fetcher) transfer(ctx context.Context, rawUrl, target string) error {
	res, err := f.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawUrl)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.RetryableError(fmt.Errorf("fetch: %w", err))
	}
	body := res.RawBody()
	defer body.Close()

	code := res.StatusCode()
	if code < 200 || code >= 300 {
		statusErr := &StatusError{Code: code, Url: rawUrl}
		if retryableStatus(code) {
			return retry.RetryableError(statusErr)
		}
		return statusErr
	}

	if f.maxBytes > 0 && res.RawResponse.ContentLength > f.maxBytes {
		return fmt.Errorf("content-length %d: %w", res.RawResponse.ContentLength, ErrTooLarge)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	var reader io.Reader = body
	if f.maxBytes > 0 {
		// one byte past the limit is enough to know it was exceeded
		reader = io.LimitReader(body, f.maxBytes+1)
	}
	written, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err != nil {
		return retry.RetryableError(fmt.Errorf("read body: %w", err))
	}
	if closeErr != nil {
		return closeErr
	}
	if f.maxBytes > 0 && written > f.maxBytes {
		return fmt.Errorf("more than %d bytes without content-length: %w", f.maxBytes, ErrTooLarge)
	}

	return os.Rename(tmp.Name(), target)
}
