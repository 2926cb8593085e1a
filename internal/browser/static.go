package browser

import (
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/components/assert"
	"forummigrate/internal/components/telemetry"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const report_static_navigate = "static.navigate"

var ErrNoScripting = errors.New("static pages cannot run interactions")

type StaticOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// Static fetches pages over plain http for forums that render on the server.
// Every StaticPage shares its cookies.
type Static struct {
	http *resty.Client
	tel  telemetry.API
}

func NewStatic(opts StaticOptions, tel telemetry.API) (*Static, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("browser", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	telemetry.InstrumentResty(client, tel)

	return &Static{http: client, tel: tel}, nil
}

func (s *Static) NewPage() *StaticPage {
	return &StaticPage{http: s.http, tel: s.tel}
}

// StaticPage keeps the last fetched document.
type StaticPage struct {
	http     *resty.Client
	tel      telemetry.API
	body     string
	location string
}

func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	res, err := p.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		p.tel.ReportWarning(report_static_navigate, err, url)
		return err
	}
	if res.IsError() {
		err = fmt.Errorf("unexpected status %s", res.Status())
		p.tel.ReportWarning(report_static_navigate, err, url)
		return err
	}

	p.body = string(res.Body())
	p.location = url
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		p.location = res.RawResponse.Request.URL.String()
	}
	return nil
}

func (p *StaticPage) HTML(context.Context) (string, error) {
	return p.body, nil
}

func (p *StaticPage) Location(context.Context) (string, error) {
	return p.location, nil
}

// Click never finds anything to click, pagination on a static page ends
// after the first round.
func (p *StaticPage) Click(context.Context, string) (bool, error) {
	return false, nil
}

func (p *StaticPage) Fill(context.Context, string, string) error {
	return ErrNoScripting
}

func (p *StaticPage) Close() error {
	return nil
}
