package commands

import (
	"context"
	"fmt"
	"forummigrate/internal/browser"
	"forummigrate/internal/components/telemetry"
	scraper "forummigrate/internal/scrapers/forum"
	"time"

	"golang.org/x/time/rate"
)

// pageSource opens navigators on the configured renderer. Every navigator it
// opens shares one rate limiter, so the request delay holds across workers.
type pageSource struct {
	chrome  *browser.Chrome
	static  *browser.Static
	limiter *rate.Limiter
	grace   time.Duration
	tel     telemetry.API
}

func newPageSource(cfg CrawlConfig, tel telemetry.API) (*pageSource, error) {
	source := &pageSource{
		limiter: rate.NewLimiter(rate.Every(cfg.delay()), 1),
		grace:   cfg.grace(),
		tel:     tel,
	}

	switch cfg.Parsing.Renderer {
	case RENDERER_CHROME:
		source.chrome = browser.NewChrome(browser.ChromeOptions{
			Headless:        *cfg.Parsing.Headless,
			UserAgent:       cfg.Parsing.UserAgent,
			ExecPath:        cfg.Parsing.ChromePath,
			PageLoadTimeout: cfg.pageLoadTimeout(),
		}, tel)
	case RENDERER_STATIC:
		static, err := browser.NewStatic(browser.StaticOptions{
			UserAgent: cfg.Parsing.UserAgent,
			Timeout:   cfg.pageLoadTimeout(),
		}, tel)
		if err != nil {
			return nil, err
		}
		source.static = static
	default:
		return nil, fmt.Errorf("unknown renderer '%s', expected '%s' or '%s'", cfg.Parsing.Renderer, RENDERER_CHROME, RENDERER_STATIC)
	}

	return source, nil
}

// Navigator opens a new page.
func (s *pageSource) Navigator(ctx context.Context) (*scraper.Navigator, error) {
	var page scraper.Page
	if s.chrome != nil {
		tab, err := s.chrome.NewTab(ctx)
		if err != nil {
			return nil, err
		}
		page = tab
	} else {
		page = s.static.NewPage()
	}
	return scraper.NewNavigator(page, s.grace, s.limiter, s.tel), nil
}

func (s *pageSource) Close() {
	if s.chrome != nil {
		s.chrome.Close()
	}
}
