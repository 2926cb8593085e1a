package forum

import (
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/components/telemetry"
	"forummigrate/pkg/htmlutil"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/time/rate"
)

const (
	report_navigator_paginate = "navigator.paginate"
)

var ErrNoDocument = errors.New("no page has been loaded")

// Page is a single browser page, implemented by a chrome tab or a plain http
// page that cannot run scripts.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// HTML is the serialized document currently loaded.
	HTML(ctx context.Context) (string, error)
	// Location is the url of the current document after redirects.
	Location(ctx context.Context) (string, error)
	// Click clicks the first element matching selector, false means nothing
	// matched.
	Click(ctx context.Context, selector string) (bool, error)
	Fill(ctx context.Context, selector, value string) error
	Close() error
}

// NavigationError is a page that failed to load or settle.
type NavigationError struct {
	Url string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.Url, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Element is one node matched by a query on the current document.
type Element struct {
	Selection *goquery.Selection
}

// Navigator drives a Page and keeps a parsed copy of whatever it loaded last.
type Navigator struct {
	page    Page
	grace   time.Duration
	limiter *rate.Limiter
	tel     telemetry.API

	html     string
	doc      *goquery.Document
	location *url.URL
}

// NewNavigator creates a Navigator, grace is waited after every load and
// click so scripts can render. The limiter may be shared between navigators
// and may be nil.
func NewNavigator(page Page, grace time.Duration, limiter *rate.Limiter, tel telemetry.API) *Navigator {
	return &Navigator{
		page:    page,
		grace:   grace,
		limiter: limiter,
		tel:     tel,
	}
}

func (n *Navigator) Close() error {
	return n.page.Close()
}

func (n *Navigator) settle(ctx context.Context) error {
	if n.grace <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(n.grace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh re-reads the document from the page.
func (n *Navigator) refresh(ctx context.Context, fallbackUrl string) error {
	html, err := n.page.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	location, err := n.page.Location(ctx)
	if err != nil || location == "" {
		location = fallbackUrl
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return err
	}

	n.html = html
	n.doc = doc
	n.location = parsed
	return nil
}

// Navigate loads rawUrl and waits for it to settle. Any failure is returned as
// a *NavigationError.
func (n *Navigator) Navigate(ctx context.Context, rawUrl string) error {
	if n.limiter != nil {
		err := n.limiter.Wait(ctx)
		if err != nil {
			return &NavigationError{Url: rawUrl, Err: err}
		}
	}

	err := n.page.Navigate(ctx, rawUrl)
	if err != nil {
		return &NavigationError{Url: rawUrl, Err: err}
	}
	err = n.settle(ctx)
	if err != nil {
		return &NavigationError{Url: rawUrl, Err: err}
	}
	err = n.refresh(ctx, rawUrl)
	if err != nil {
		return &NavigationError{Url: rawUrl, Err: err}
	}

	n.tel.ReportDebug("navigated", rawUrl)
	return nil
}

// HTML is the raw document last loaded.
func (n *Navigator) HTML() string {
	return n.html
}

// Location is the url of the document last loaded, nil before any load.
func (n *Navigator) Location() *url.URL {
	return n.location
}

// QueryAll returns every element of the current document matching selector in
// document order. An empty selector matches nothing.
func (n *Navigator) QueryAll(selector string) ([]Element, error) {
	if n.doc == nil {
		return nil, ErrNoDocument
	}
	if strings.TrimSpace(selector) == "" {
		return nil, nil
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}

	var out []Element
	n.doc.FindMatcher(matcher).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, Element{Selection: sel})
	})
	return out, nil
}

// QueryAll returns the descendants of e matching selector in document order.
// An empty selector matches nothing.
func (e Element) QueryAll(selector string) ([]Element, error) {
	if e.Selection == nil || strings.TrimSpace(selector) == "" {
		return nil, nil
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}

	var out []Element
	e.Selection.FindMatcher(matcher).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, Element{Selection: sel})
	})
	return out, nil
}

func (e Element) find(selector string) *goquery.Selection {
	if e.Selection == nil {
		return nil
	}
	if strings.TrimSpace(selector) == "" {
		return e.Selection
	}
	found := e.Selection.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}

// ExtractField returns the normalized text of the first descendant of el
// matching selector, or of el itself for an empty selector. Invalid selectors
// match nothing.
func ExtractField(el Element, selector string) (string, bool) {
	sel := el.find(selector)
	if sel == nil {
		return "", false
	}
	return htmlutil.SelectionText(sel), true
}

// ExtractAttr is like ExtractField but returns an attribute.
func ExtractAttr(el Element, selector, attr string) (string, bool) {
	sel := el.find(selector)
	if sel == nil {
		return "", false
	}
	value, ok := sel.Attr(attr)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// ExtractHTML returns the inner html of the match.
func ExtractHTML(el Element, selector string) (string, bool) {
	sel := el.find(selector)
	if sel == nil {
		return "", false
	}
	html, err := sel.Html()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(html), true
}

// Anchors returns every link of the current document with its href made
// absolute. Links that lead nowhere have an empty Href.
func (n *Navigator) Anchors(ctx context.Context) ([]htmlutil.Anchor, error) {
	if n.doc == nil {
		return nil, ErrNoDocument
	}
	return htmlutil.GetAnchors(ctx, n.location, n.doc.Find("a[href]")), nil
}

// ResolveUrl makes href absolute against the current location, hrefs that
// cannot be resolved become "".
func (n *Navigator) ResolveUrl(href string) string {
	resolved, err := htmlutil.ResolveUrl(n.location, href)
	if err != nil {
		n.tel.ReportDebug("unresolvable href", href, err)
		return ""
	}
	return resolved
}

// Paginate clicks loadMoreSelector until it is gone, stops adding items
// matching itemSelector, or maxRounds clicks were made. It returns the number
// of items in the final document.
func (n *Navigator) Paginate(ctx context.Context, itemSelector, loadMoreSelector string, maxRounds int) (int, error) {
	items, err := n.QueryAll(itemSelector)
	if err != nil {
		return 0, err
	}
	count := len(items)
	if strings.TrimSpace(loadMoreSelector) == "" {
		return count, nil
	}

	for round := 0; round < maxRounds; round++ {
		clicked, err := n.page.Click(ctx, loadMoreSelector)
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			n.tel.ReportWarning(report_navigator_paginate, fmt.Errorf("click: %w", err), n.location.String())
			return count, nil
		}
		if !clicked {
			return count, nil
		}

		err = n.settle(ctx)
		if err != nil {
			return count, err
		}
		err = n.refresh(ctx, n.location.String())
		if err != nil {
			return count, &NavigationError{Url: n.location.String(), Err: err}
		}

		items, err = n.QueryAll(itemSelector)
		if err != nil {
			return count, err
		}
		grew := len(items) > count
		count = len(items)
		if !grew {
			return count, nil
		}
		n.tel.ReportDebug("loaded more", n.location.String(), round+1, count)
	}
	return count, nil
}
