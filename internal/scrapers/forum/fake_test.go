package forum

import (
	"context"
	"fmt"
	"forummigrate/internal/components/telemetry"
	"sync"
)

// fakeSite serves fixed documents by url.
type fakeSite struct {
	mutex  sync.Mutex
	pages  map[string]string
	visits map[string]int
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{pages: pages, visits: map[string]int{}}
}

func (s *fakeSite) get(url string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visits[url]++
	html, ok := s.pages[url]
	return html, ok
}

func (s *fakeSite) visited(url string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visits[url]
}

type fakePage struct {
	site    *fakeSite
	current string
	html    string
	// onClick may replace html, it reports whether something was clicked.
	onClick func(p *fakePage, selector string) bool
	filled  map[string]string
	clicked []string
	closed  bool
}

func newFakePage(site *fakeSite) *fakePage {
	return &fakePage{site: site, filled: map[string]string{}}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	html, ok := p.site.get(url)
	if !ok {
		return fmt.Errorf("404 not found")
	}
	p.current = url
	p.html = html
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) Location(context.Context) (string, error) {
	return p.current, nil
}

func (p *fakePage) Click(_ context.Context, selector string) (bool, error) {
	p.clicked = append(p.clicked, selector)
	if p.onClick == nil {
		return false, nil
	}
	return p.onClick(p, selector), nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string) error {
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func newFakeNavigator(page Page) *Navigator {
	return NewNavigator(page, 0, nil, telemetry.NewRecorder())
}
