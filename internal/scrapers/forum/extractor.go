// Package forum crawls a forum into a tree of categories, subcategories,
// posts and comments. Every piece of markup it relies on comes from the
// configured Selectors.
package forum

import (
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/attachments"
	"forummigrate/internal/components/assert"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/components/telemetry"
	"forummigrate/internal/forum"
	"strings"
	"sync"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	report_extractor_categories    = "extractor.categories"
	report_extractor_subcategories = "extractor.subcategories"
	report_extractor_posts         = "extractor.posts"
	report_extractor_post_detail   = "extractor.post-detail"
	report_extractor_comment       = "extractor.comment"
	report_extractor_attachment    = "extractor.attachment"
	report_extractor_checkpoint    = "extractor.checkpoint"
	report_extractor_worker        = "extractor.worker"
)

// Downloader stores an attachment locally and returns its path.
type Downloader interface {
	Download(ctx context.Context, url, suggestedName, group string) (string, error)
}

// NavigatorFactory opens a new independent page for a detail worker.
type NavigatorFactory func(ctx context.Context) (*Navigator, error)

type Credentials struct {
	Username string
	Password string
}

type Options struct {
	ForumUrl  string
	Selectors Selectors

	// limits, 0 means unlimited
	MaxCategories          int
	MaxPostsPerSubcategory int
	MaxCommentsPerPost     int

	MaxLoadMoreRounds int
	// Workers is the number of post pages extracted concurrently.
	Workers int

	// Login is performed before anything else when set.
	Login *Credentials
	// CheckpointPath receives a partial snapshot after every category.
	CheckpointPath string
	// Prior is a previous snapshot, posts it already holds content for are not
	// fetched again.
	Prior *forum.Snapshot
}

// Extractor walks the forum with a listing navigator and fans post pages out
// to workers.
type Extractor struct {
	opts       Options
	nav        *Navigator
	newNav     NavigatorFactory
	downloader Downloader
	clock      chrono.API
	tel        telemetry.API

	stats    *forum.Stats
	counters telemetry.Counters
	prior    map[string]forum.Post
	now      time.Time
}

// NewExtractor creates an Extractor. newNav and downloader may be nil, in
// which case post pages are extracted on nav one at a time and attachments
// are recorded without being downloaded.
func NewExtractor(
	opts Options,
	nav *Navigator,
	newNav NavigatorFactory,
	downloader Downloader,
	clock chrono.API,
	tel telemetry.API,
) *Extractor {
	assert.NotNil(nav)
	assert.NotNil(clock)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.ForumUrl)

	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Selectors == nil {
		opts.Selectors = Selectors{}
	}

	prior := map[string]forum.Post{}
	if opts.Prior != nil {
		prior = opts.Prior.PostsBySourceKey()
	}

	return &Extractor{
		opts:       opts,
		nav:        nav,
		newNav:     newNav,
		downloader: downloader,
		clock:      clock,
		tel:        telemetry.NewScopedAPI("forum_scraper", tel),
		stats:      forum.NewStats(forum.CrawlStatKeys...),
		counters:   telemetry.NewCounters("forummigrate/internal/scrapers/forum", "forum.entities_extracted"),
		prior:      prior,
		now:        clock.Now(),
	}
}

func (e *Extractor) Stats() *forum.Stats {
	return e.stats
}

func (e *Extractor) count(ctx context.Context, key string) {
	e.stats.Inc(key)
	e.counters.Add(ctx, key, 1)
}

func (e *Extractor) fail(ctx context.Context, kind forum.Kind, id string, err error) {
	e.stats.Fail(kind, id, err.Error())
	e.counters.Add(ctx, forum.STAT_ERRORS, 1)
}

func (e *Extractor) sel(name string) string {
	return e.opts.Selectors.Get(name)
}

// field is the text of the named selector inside el, "" when the selector is
// not configured.
func (e *Extractor) field(el Element, name string) string {
	if e.sel(name) == "" {
		return ""
	}
	text, _ := ExtractField(el, e.sel(name))
	return text
}

// link resolves the href of the named selector inside el, an unconfigured
// selector means el is the link itself.
func (e *Extractor) link(nav *Navigator, el Element, name string) string {
	href, _ := ExtractAttr(el, e.sel(name), "href")
	return nav.ResolveUrl(href)
}

func (e *Extractor) missing(report string, names ...string) bool {
	missing := e.opts.Selectors.Missing(names...)
	if len(missing) == 0 {
		return false
	}
	e.tel.ReportWarning(report, "selectors not configured", strings.Join(missing, ", "))
	return true
}

// resolveDate fills the absolute timestamp of a listing date when it can be
// interpreted, the raw text is always kept as is.
func (e *Extractor) resolveDate(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, ok := chrono.ParseDate(raw, e.now)
	if !ok {
		return ""
	}
	return parsed.Format(time.RFC3339)
}

// ExtractCategories loads the forum root and returns its categories. Failing to
// load the root is the only error that aborts a crawl.
func (e *Extractor) ExtractCategories(ctx context.Context) ([]forum.Category, error) {
	err := e.nav.Navigate(ctx, e.opts.ForumUrl)
	if err != nil {
		e.tel.ReportBroken(report_extractor_categories, err)
		return nil, err
	}
	if e.missing(report_extractor_categories, SEL_CATEGORY_ITEM, SEL_CATEGORY_TITLE) {
		return []forum.Category{}, nil
	}

	items, err := e.nav.QueryAll(e.sel(SEL_CATEGORY_ITEM))
	if err != nil {
		e.tel.ReportBroken(report_extractor_categories, err)
		return nil, err
	}

	categories := []forum.Category{}
	keys := forum.Keys{}
	for i, el := range items {
		if e.opts.MaxCategories > 0 && len(categories) >= e.opts.MaxCategories {
			break
		}

		title := e.field(el, SEL_CATEGORY_TITLE)
		if title == "" {
			e.tel.ReportWarning(report_extractor_categories, "category without title", i+1)
			e.fail(ctx, forum.KIND_CATEGORY, fmt.Sprintf("#%d", i+1), errors.New("missing title"))
			continue
		}
		description := e.field(el, SEL_CATEGORY_DESCRIPTION)
		postsCount := e.field(el, SEL_CATEGORY_POSTS_COUNT)

		id := forum.CategoryID(len(categories) + 1)
		link := e.link(e.nav, el, SEL_CATEGORY_LINK)
		categories = append(categories, forum.Category{
			ID:            id,
			SourceKey:     keys.Claim(forum.SourceKey(link, "", title)),
			Title:         title,
			Url:           link,
			Description:   description,
			PostsCount:    postsCount,
			Subcategories: []forum.Subcategory{},
		})
		e.count(ctx, forum.STAT_CATEGORIES)
	}
	return categories, nil
}

// ExtractSubcategories loads the page of category and returns its
// subcategories, failures are recorded and yield none.
func (e *Extractor) ExtractSubcategories(ctx context.Context, category forum.Category) []forum.Subcategory {
	subcategories := []forum.Subcategory{}
	if category.Url == "" {
		return subcategories
	}
	if e.missing(report_extractor_subcategories, SEL_SUBCATEGORY_ITEM, SEL_SUBCATEGORY_TITLE) {
		return subcategories
	}

	err := e.nav.Navigate(ctx, category.Url)
	if err != nil {
		e.tel.ReportBroken(report_extractor_subcategories, err, category.ID)
		e.fail(ctx, forum.KIND_CATEGORY, category.ID, err)
		return subcategories
	}
	items, err := e.nav.QueryAll(e.sel(SEL_SUBCATEGORY_ITEM))
	if err != nil {
		e.tel.ReportBroken(report_extractor_subcategories, err, category.ID)
		e.fail(ctx, forum.KIND_CATEGORY, category.ID, err)
		return subcategories
	}

	keys := forum.Keys{}
	for i, el := range items {
		title := e.field(el, SEL_SUBCATEGORY_TITLE)
		if title == "" {
			e.tel.ReportWarning(report_extractor_subcategories, "subcategory without title", category.ID, i+1)
			e.fail(ctx, forum.KIND_SUBCATEGORY, fmt.Sprintf("%s#%d", category.ID, i+1), errors.New("missing title"))
			continue
		}
		description := e.field(el, SEL_SUBCATEGORY_DESCRIPTION)

		id := forum.SubcategoryID(category.ID, len(subcategories)+1)
		link := e.link(e.nav, el, SEL_SUBCATEGORY_LINK)
		subcategories = append(subcategories, forum.Subcategory{
			ID:          id,
			SourceKey:   keys.Claim(forum.SourceKey(link, category.SourceKey, title)),
			Title:       title,
			Url:         link,
			Description: description,
			Posts:       []forum.Post{},
		})
		e.count(ctx, forum.STAT_SUBCATEGORIES)
	}
	return subcategories
}

// ExtractPosts loads the listing of subcategory, expands it with the load more
// control and returns its posts without their content.
func (e *Extractor) ExtractPosts(ctx context.Context, subcategory forum.Subcategory) []forum.Post {
	posts := []forum.Post{}
	if subcategory.Url == "" {
		return posts
	}
	if e.missing(report_extractor_posts, SEL_POST_ITEM, SEL_POST_TITLE) {
		return posts
	}

	err := e.nav.Navigate(ctx, subcategory.Url)
	if err != nil {
		e.tel.ReportBroken(report_extractor_posts, err, subcategory.ID)
		e.fail(ctx, forum.KIND_SUBCATEGORY, subcategory.ID, err)
		return posts
	}

	_, err = e.nav.Paginate(ctx, e.sel(SEL_POST_ITEM), e.sel(SEL_LOAD_MORE), e.opts.MaxLoadMoreRounds)
	if err != nil {
		if ctx.Err() != nil {
			return posts
		}
		// whatever loaded before the failure is still worth extracting
		e.tel.ReportWarning(report_extractor_posts, err, subcategory.ID)
	}

	items, err := e.nav.QueryAll(e.sel(SEL_POST_ITEM))
	if err != nil {
		e.tel.ReportBroken(report_extractor_posts, err, subcategory.ID)
		e.fail(ctx, forum.KIND_SUBCATEGORY, subcategory.ID, err)
		return posts
	}

	keys := forum.Keys{}
	for i, el := range items {
		if e.opts.MaxPostsPerSubcategory > 0 && len(posts) >= e.opts.MaxPostsPerSubcategory {
			break
		}

		title := e.field(el, SEL_POST_TITLE)
		if title == "" {
			e.tel.ReportWarning(report_extractor_posts, "post without title", subcategory.ID, i+1)
			e.fail(ctx, forum.KIND_POST, fmt.Sprintf("%s#%d", subcategory.ID, i+1), errors.New("missing title"))
			continue
		}
		author := e.field(el, SEL_POST_AUTHOR)
		date := e.field(el, SEL_POST_DATE)
		description := e.field(el, SEL_POST_DESCRIPTION)

		id := forum.PostID(subcategory.ID, len(posts)+1)
		link := e.link(e.nav, el, SEL_POST_LINK)
		posts = append(posts, forum.Post{
			ID:          id,
			SourceKey:   keys.Claim(forum.SourceKey(link, subcategory.SourceKey, title, author)),
			Title:       title,
			Url:         link,
			Author:      author,
			CreatedAt:   date,
			PublishedAt: e.resolveDate(date),
			Description: description,
			Attachments: []forum.Attachment{},
			Comments:    []forum.Comment{},
		})
		e.count(ctx, forum.STAT_POSTS)
	}
	return posts
}

func (e *Extractor) postContent(nav *Navigator) (string, error) {
	roots, err := nav.QueryAll(e.sel(SEL_POST_CONTENT))
	if err != nil {
		return "", err
	}
	if len(roots) > 0 {
		content, _ := ExtractHTML(roots[0], "")
		if content != "" {
			return content, nil
		}
	}

	// no configured content root matched, fall back to the main article of
	// the page as readability sees it
	article, err := readability.FromReader(strings.NewReader(nav.HTML()), nav.Location())
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return strings.TrimSpace(article.Content), nil
}

func (e *Extractor) extractComment(el Element, id string) (forum.Comment, error) {
	content, _ := ExtractHTML(el, e.sel(SEL_COMMENT_CONTENT))
	if strings.TrimSpace(content) == "" {
		return forum.Comment{}, errors.New("comment without content")
	}
	author := e.field(el, SEL_COMMENT_AUTHOR)
	date := e.field(el, SEL_COMMENT_DATE)
	return forum.Comment{
		ID:          id,
		Author:      author,
		CreatedAt:   date,
		PublishedAt: e.resolveDate(date),
		Content:     content,
	}, nil
}

// attachmentLinks returns the attachment links inside the post content, so
// links in comments or around the post are not attributed to it. Without a
// matching content root the whole page is searched.
func (e *Extractor) attachmentLinks(nav *Navigator) ([]Element, error) {
	roots, err := nav.QueryAll(e.sel(SEL_POST_CONTENT))
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nav.QueryAll(e.sel(SEL_ATTACHMENT_LINK))
	}
	return roots[0].QueryAll(e.sel(SEL_ATTACHMENT_LINK))
}

func (e *Extractor) extractAttachments(ctx context.Context, nav *Navigator, post *forum.Post) {
	if e.sel(SEL_ATTACHMENT_LINK) == "" {
		return
	}
	links, err := e.attachmentLinks(nav)
	if err != nil {
		e.tel.ReportWarning(report_extractor_attachment, err, post.ID)
		return
	}

	seen := map[string]bool{}
	for _, el := range links {
		href, _ := ExtractAttr(el, "", "href")
		link := nav.ResolveUrl(href)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		name, _ := ExtractAttr(el, "", "download")
		if name == "" {
			name, _ = ExtractField(el, "")
		}

		attachment := forum.Attachment{Filename: name, Url: link}
		attachment.MarkFailed()
		e.count(ctx, forum.STAT_ATTACHMENTS)

		if e.downloader != nil {
			path, err := e.downloader.Download(ctx, link, name, post.ID)
			switch {
			case err == nil:
				attachment.MarkDownloaded(path)
				e.count(ctx, forum.STAT_ATTACHMENTS_DOWNLOADED)
			case errors.Is(err, attachments.ErrExtensionNotAllowed), errors.Is(err, attachments.ErrTooLarge):
				e.count(ctx, forum.STAT_ATTACHMENTS_SKIPPED)
			default:
				e.count(ctx, forum.STAT_ATTACHMENTS_FAILED)
				e.fail(ctx, forum.KIND_ATTACHMENT, post.ID, fmt.Errorf("%s: %w", link, err))
			}
		}
		post.Attachments = append(post.Attachments, attachment)
	}
}

// ExtractPostDetail loads the page of post on nav and fills in its content,
// attachments and comments. A comment or attachment that fails is left out,
// only a page that cannot be loaded returns an error.
func (e *Extractor) ExtractPostDetail(ctx context.Context, nav *Navigator, post *forum.Post) error {
	if post.Url == "" {
		return nil
	}

	err := nav.Navigate(ctx, post.Url)
	if err != nil {
		e.tel.ReportBroken(report_extractor_post_detail, err, post.ID)
		e.fail(ctx, forum.KIND_POST, post.ID, err)
		return err
	}

	content, err := e.postContent(nav)
	if err != nil {
		e.tel.ReportWarning(report_extractor_post_detail, err, post.ID)
	}
	post.Content = content

	if post.Author == "" {
		authors, _ := nav.QueryAll(e.sel(SEL_POST_AUTHOR))
		if len(authors) > 0 {
			post.Author, _ = ExtractField(authors[0], "")
		}
	}
	if post.CreatedAt == "" {
		dates, _ := nav.QueryAll(e.sel(SEL_POST_DATE))
		if len(dates) > 0 {
			post.CreatedAt, _ = ExtractField(dates[0], "")
			post.PublishedAt = e.resolveDate(post.CreatedAt)
		}
	}

	e.extractAttachments(ctx, nav, post)

	comments, err := nav.QueryAll(e.sel(SEL_COMMENT_ITEM))
	if err != nil {
		e.tel.ReportWarning(report_extractor_comment, err, post.ID)
		return nil
	}
	for i, el := range comments {
		if e.opts.MaxCommentsPerPost > 0 && len(post.Comments) >= e.opts.MaxCommentsPerPost {
			break
		}
		comment, err := e.extractComment(el, forum.CommentID(post.ID, len(post.Comments)+1))
		if err != nil {
			e.tel.ReportWarning(report_extractor_comment, err, post.ID, i+1)
			e.fail(ctx, forum.KIND_COMMENT, fmt.Sprintf("%s#%d", post.ID, i+1), err)
			continue
		}
		post.Comments = append(post.Comments, comment)
		e.count(ctx, forum.STAT_COMMENTS)
	}
	return nil
}

// reuse copies the detail of a post extracted by an earlier run.
func (e *Extractor) reuse(ctx context.Context, post *forum.Post) bool {
	prior, ok := e.prior[post.SourceKey]
	if !ok || prior.Content == "" {
		return false
	}

	post.Content = prior.Content
	if post.Author == "" {
		post.Author = prior.Author
	}
	if post.CreatedAt == "" {
		post.CreatedAt = prior.CreatedAt
		post.PublishedAt = prior.PublishedAt
	}

	post.Attachments = make([]forum.Attachment, len(prior.Attachments))
	copy(post.Attachments, prior.Attachments)
	for _, a := range post.Attachments {
		e.count(ctx, forum.STAT_ATTACHMENTS)
		if a.Downloaded {
			e.count(ctx, forum.STAT_ATTACHMENTS_DOWNLOADED)
		}
	}

	post.Comments = make([]forum.Comment, len(prior.Comments))
	for i, c := range prior.Comments {
		c.ID = forum.CommentID(post.ID, i+1)
		post.Comments[i] = c
		e.count(ctx, forum.STAT_COMMENTS)
	}

	e.tel.ReportDebug("reused post from prior snapshot", post.ID, post.SourceKey)
	return true
}

// extractDetails spreads the posts over the worker navigators, each post is
// written by exactly one worker.
func (e *Extractor) extractDetails(ctx context.Context, navs []*Navigator, posts []*forum.Post) {
	jobs := make(chan *forum.Post)

	wg := sync.WaitGroup{}
	for _, nav := range navs {
		wg.Add(1)
		go func(nav *Navigator) {
			defer wg.Done()
			for post := range jobs {
				if e.reuse(ctx, post) {
					continue
				}
				e.ExtractPostDetail(ctx, nav, post)
			}
		}(nav)
	}

feed:
	for _, post := range posts {
		select {
		case jobs <- post:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}

func (e *Extractor) openWorkers(ctx context.Context) []*Navigator {
	navs := []*Navigator{e.nav}
	if e.newNav == nil {
		return navs
	}
	for i := 1; i < e.opts.Workers; i++ {
		nav, err := e.newNav(ctx)
		if err != nil {
			e.tel.ReportBroken(report_extractor_worker, err, i)
			break
		}
		navs = append(navs, nav)
	}
	return navs
}

func (e *Extractor) snapshot(categories []forum.Category, complete bool) forum.Snapshot {
	return forum.Snapshot{
		ExportDate: e.clock.Now(),
		ForumUrl:   e.opts.ForumUrl,
		Categories: categories,
		Stats:      e.stats.Counts(),
		Failures:   e.stats.Failures(),
		Complete:   complete,
	}
}

func (e *Extractor) checkpoint(categories []forum.Category) {
	if e.opts.CheckpointPath == "" {
		return
	}
	err := forum.SaveSnapshot(e.opts.CheckpointPath, e.snapshot(categories, false))
	if err != nil {
		e.tel.ReportBroken(report_extractor_checkpoint, err, e.opts.CheckpointPath)
	}
}

// Run crawls the whole forum. On cancellation the categories finished so far
// are returned in an incomplete snapshot together with the context error.
func (e *Extractor) Run(ctx context.Context) (forum.Snapshot, error) {
	if e.opts.Login != nil {
		err := Login(ctx, e.nav, e.opts.ForumUrl, e.opts.Selectors, *e.opts.Login)
		if err != nil {
			e.tel.ReportBroken(report_extractor_categories, fmt.Errorf("login: %w", err))
			return e.snapshot([]forum.Category{}, false), err
		}
	}

	categories, err := e.ExtractCategories(ctx)
	if err != nil {
		return e.snapshot([]forum.Category{}, false), err
	}

	navs := e.openWorkers(ctx)
	defer func() {
		// the listing navigator belongs to the caller
		for _, nav := range navs[1:] {
			nav.Close()
		}
	}()

	for ci := range categories {
		if ctx.Err() != nil {
			return e.snapshot(categories[:ci], false), ctx.Err()
		}

		category := &categories[ci]
		category.Subcategories = e.ExtractSubcategories(ctx, *category)

		var posts []*forum.Post
		for si := range category.Subcategories {
			subcategory := &category.Subcategories[si]
			subcategory.Posts = e.ExtractPosts(ctx, *subcategory)
			for pi := range subcategory.Posts {
				posts = append(posts, &subcategory.Posts[pi])
			}
		}
		e.extractDetails(ctx, navs, posts)

		if ctx.Err() != nil {
			return e.snapshot(categories[:ci], false), ctx.Err()
		}
		e.checkpoint(categories[:ci+1])
		e.tel.ReportDebug("category done", category.ID, category.Title, len(posts))
	}

	snap := e.snapshot(categories, true)
	for key, value := range snap.Stats {
		e.tel.ReportCount(key, value)
	}
	return snap, nil
}
