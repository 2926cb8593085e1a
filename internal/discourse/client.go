package discourse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/components/assert"
	"forummigrate/internal/components/telemetry"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

const (
	report_client_request = "client.request"
)

type ClientOptions struct {
	BaseUrl     string
	ApiKey      string
	ApiUsername string
	Timeout     time.Duration
	// MaxRetries only applies to 429 responses, nothing else is retried since
	// a failed create may still have happened.
	MaxRetries uint64
	RetryBase  time.Duration
}

// Client is the live Discourse API.
type Client struct {
	http    *resty.Client
	backoff func() retry.Backoff
	tel     telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) *Client {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseUrl)

	tel = telemetry.NewScopedAPI("discourse", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Api-Key", opts.ApiKey)
	client.SetHeader("Api-Username", opts.ApiUsername)
	client.SetHeader("Accept", "application/json")
	telemetry.InstrumentResty(client, tel)

	maxRetries := opts.MaxRetries
	base := opts.RetryBase
	return &Client{
		http: client,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(maxRetries, retry.NewExponential(base))
		},
		tel: tel,
	}
}

type errorBody struct {
	Errors    []string `json:"errors"`
	ErrorType string   `json:"error_type"`
}

// do sends the request built by prepare, retrying rate limited attempts.
func (c *Client) do(ctx context.Context, method, path string, prepare func(req *resty.Request)) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req := c.http.R().
			SetContext(ctx).
			SetError(&errorBody{})
		prepare(req)

		res, err := req.Execute(method, path)
		if err != nil {
			c.tel.ReportBroken(report_client_request, err, method, path)
			return err
		}
		if !res.IsError() {
			return nil
		}

		apiErr := &APIError{Method: method, Path: path, Status: res.StatusCode()}
		body, ok := res.Error().(*errorBody)
		if ok && body != nil {
			apiErr.Errors = body.Errors
		}
		if res.StatusCode() == http.StatusTooManyRequests {
			return retry.RetryableError(apiErr)
		}
		return apiErr
	})
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/site.json", func(req *resty.Request) {})
}

type categoryResponse struct {
	Category struct {
		ID int64 `json:"id"`
	} `json:"category"`
}

func (c *Client) CreateCategory(ctx context.Context, category CategoryRequest) (int64, error) {
	if category.Color == "" {
		category.Color = DEFAULT_CATEGORY_COLOR
	}
	if category.TextColor == "" {
		category.TextColor = DEFAULT_CATEGORY_TEXT_COLOR
	}

	var out categoryResponse
	err := c.do(ctx, http.MethodPost, "/categories.json", func(req *resty.Request) {
		req.SetBody(category).SetResult(&out)
	})
	if err != nil {
		return 0, err
	}
	if out.Category.ID == 0 {
		return 0, errors.New("discourse returned no category id")
	}
	c.tel.ReportDebug("created category", category.Name, out.Category.ID)
	return out.Category.ID, nil
}

type postResponse struct {
	ID      int64 `json:"id"`
	TopicID int64 `json:"topic_id"`
}

func (c *Client) CreateTopic(ctx context.Context, topic TopicRequest) (TopicResult, error) {
	var out postResponse
	err := c.do(ctx, http.MethodPost, "/posts.json", func(req *resty.Request) {
		req.SetBody(topic).SetResult(&out)
	})
	if err != nil {
		return TopicResult{}, err
	}
	if out.TopicID == 0 {
		return TopicResult{}, errors.New("discourse returned no topic id")
	}
	c.tel.ReportDebug("created topic", topic.Title, out.TopicID)
	return TopicResult{TopicID: out.TopicID, PostID: out.ID}, nil
}

func (c *Client) CreateReply(ctx context.Context, reply ReplyRequest) (int64, error) {
	var out postResponse
	err := c.do(ctx, http.MethodPost, "/posts.json", func(req *resty.Request) {
		req.SetBody(reply).SetResult(&out)
	})
	if err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, errors.New("discourse returned no post id")
	}
	return out.ID, nil
}

type uploadResponse struct {
	Url      string `json:"url"`
	ShortUrl string `json:"short_url"`
}

func (c *Client) Upload(ctx context.Context, upload UploadRequest) (string, error) {
	name := upload.Filename
	if name == "" {
		name = filepath.Base(upload.Path)
	}
	form := map[string]string{
		"type":        "composer",
		"synchronous": "true",
	}
	if upload.TopicID > 0 {
		form["topic_id"] = strconv.FormatInt(upload.TopicID, 10)
	}

	contents, err := os.ReadFile(upload.Path)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	var out uploadResponse
	err = c.do(ctx, http.MethodPost, "/uploads.json", func(req *resty.Request) {
		req.SetFormData(form).
			SetFileReader("file", name, bytes.NewReader(contents)).
			SetResult(&out)
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if out.Url == "" {
		return "", fmt.Errorf("upload %s: discourse returned no url", name)
	}
	return out.Url, nil
}
