// Package publisher replays a snapshot into Discourse: categories first,
// then each subcategory, its topics, their attachments and their replies.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"forummigrate/internal/components/assert"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/components/telemetry"
	"forummigrate/internal/discourse"
	"forummigrate/internal/forum"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	report_publisher_create_category = "publisher.create-category"
	report_publisher_create_topic    = "publisher.create-topic"
	report_publisher_create_reply    = "publisher.create-reply"
	report_publisher_upload          = "publisher.upload"
	report_publisher_mapping         = "publisher.mapping"
	report_publisher_content         = "publisher.content"
)

// STAT_POSTS_CREATED counts replies, the opening post of a topic is counted
// by STAT_TOPICS_CREATED.
const (
	STAT_CATEGORIES_CREATED    = "categories_created"
	STAT_SUBCATEGORIES_CREATED = "subcategories_created"
	STAT_TOPICS_CREATED        = "topics_created"
	STAT_POSTS_CREATED         = "posts_created"
	STAT_ATTACHMENTS_UPLOADED  = "attachments_uploaded"
	STAT_SKIPPED               = "skipped"
	STAT_REUSED                = "reused"
)

var ImportStatKeys = []string{
	STAT_CATEGORIES_CREATED,
	STAT_SUBCATEGORIES_CREATED,
	STAT_TOPICS_CREATED,
	STAT_POSTS_CREATED,
	STAT_ATTACHMENTS_UPLOADED,
	forum.STAT_ERRORS,
	STAT_SKIPPED,
	STAT_REUSED,
}

var createdStat = map[forum.Kind]string{
	forum.KIND_CATEGORY:    STAT_CATEGORIES_CREATED,
	forum.KIND_SUBCATEGORY: STAT_SUBCATEGORIES_CREATED,
	forum.KIND_POST:        STAT_TOPICS_CREATED,
	forum.KIND_COMMENT:     STAT_POSTS_CREATED,
	forum.KIND_ATTACHMENT:  STAT_ATTACHMENTS_UPLOADED,
}

var errTooLarge = errors.New("attachment exceeds the upload size limit")

type Options struct {
	DryRun bool
	// Delay is the pause between two api calls.
	Delay time.Duration

	ConvertToMarkdown bool
	PreserveDates     bool
	AddDisclaimer     bool
	// DisclaimerText may contain {date} and {author}.
	DisclaimerText string

	UploadAttachments bool
	// MaxFileSizeMB <= 0 disables the limit.
	MaxFileSizeMB float64

	SnapshotPath string
	DiscourseUrl string
}

type Report struct {
	RunID    string
	DryRun   bool
	Events   []Event
	Stats    map[string]int64
	Failures []forum.Failure
}

type Publisher struct {
	opts     Options
	api      discourse.API
	store    MappingStore
	clock    chrono.API
	tel      telemetry.API
	limiter  *rate.Limiter
	counters telemetry.Counters

	runID    string
	exported time.Time
	stats    *forum.Stats
	events   []Event
}

func NewPublisher(opts Options, api discourse.API, store MappingStore, clock chrono.API, tel telemetry.API) *Publisher {
	assert.NotNil(api)
	assert.NotNil(store)
	assert.NotNil(clock)
	assert.NotNil(tel)

	var limiter *rate.Limiter
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	return &Publisher{
		opts:     opts,
		api:      api,
		store:    store,
		clock:    clock,
		tel:      telemetry.NewScopedAPI("publisher", tel),
		limiter:  limiter,
		counters: telemetry.NewCounters("forummigrate/internal/publisher", "publisher.entities"),
	}
}

func (p *Publisher) emit(ctx context.Context, e *entity, destinationID int64, reason string) {
	p.events = append(p.events, Event{
		Kind:          e.kind,
		EntityID:      e.id,
		SourceKey:     e.key,
		State:         e.state,
		DestinationID: destinationID,
		Reason:        reason,
	})
	p.counters.Add(ctx, fmt.Sprintf("%s.%s", e.kind, e.state), 1)
}

func (p *Publisher) skip(ctx context.Context, e *entity, reason string) {
	e.to(STATE_SKIPPED)
	p.stats.Inc(STAT_SKIPPED)
	p.emit(ctx, e, 0, reason)
}

func (p *Publisher) reuse(ctx context.Context, e *entity, destinationID int64) {
	e.to(STATE_REUSED)
	p.stats.Inc(STAT_REUSED)
	p.emit(ctx, e, destinationID, "")
}

func (p *Publisher) fail(ctx context.Context, e *entity, report string, err error) {
	e.to(STATE_FAILED)
	failure := forum.Failure{Kind: e.kind, ID: e.id, Reason: err.Error()}
	p.stats.Fail(failure.Kind, failure.ID, failure.Reason)
	p.emit(ctx, e, 0, failure.Reason)
	p.tel.ReportBroken(report, err, e.id)

	recordErr := p.store.RecordFailure(ctx, p.runID, failure)
	if recordErr != nil {
		p.tel.ReportBroken(report_publisher_mapping, fmt.Errorf("record failure: %w", recordErr), e.id)
	}
}

func (p *Publisher) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// ensure creates the entity unless a previous run already did. It returns
// the destination id, or an error when the entity failed or ctx ended.
func (p *Publisher) ensure(ctx context.Context, e *entity, report string, create func(ctx context.Context) (int64, error)) (int64, error) {
	if e.key != "" {
		existing, found, err := p.store.Lookup(ctx, e.kind, e.key)
		if err != nil {
			p.tel.ReportBroken(report_publisher_mapping, fmt.Errorf("lookup: %w", err), e.id)
		}
		if found {
			p.reuse(ctx, e, existing)
			return existing, nil
		}
	}

	err := p.wait(ctx)
	if err != nil {
		return 0, err
	}

	e.to(STATE_SUBMITTED)
	id, err := create(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p.fail(ctx, e, report, err)
		return 0, err
	}

	e.to(STATE_CONFIRMED)
	p.stats.Inc(createdStat[e.kind])
	p.emit(ctx, e, id, "")

	if e.key != "" {
		err = p.store.Save(ctx, Mapping{Kind: e.kind, SourceKey: e.key, DestinationID: id, RunID: p.runID})
		if err != nil {
			p.tel.ReportBroken(report_publisher_mapping, fmt.Errorf("save: %w", err), e.id)
		}
	}
	return id, nil
}

func (p *Publisher) uploadable(a forum.Attachment) bool {
	return p.opts.UploadAttachments && a.Downloaded && a.LocalPath != nil
}

// skipPost marks post and everything under it as skipped.
func (p *Publisher) skipPost(ctx context.Context, post forum.Post, reason string) {
	p.skip(ctx, newEntity(forum.KIND_POST, post.ID, post.SourceKey), reason)
	p.skipPostChildren(ctx, post, reason)
}

func (p *Publisher) skipPostChildren(ctx context.Context, post forum.Post, reason string) {
	for _, a := range post.Attachments {
		if p.uploadable(a) {
			p.skip(ctx, newEntity(forum.KIND_ATTACHMENT, post.ID, a.Url), reason)
		}
	}
	keys := forum.CommentKeys(post)
	for i, c := range post.Comments {
		p.skip(ctx, newEntity(forum.KIND_COMMENT, c.ID, keys[i]), reason)
	}
}

func (p *Publisher) skipSubcategory(ctx context.Context, sub forum.Subcategory, reason string) {
	p.skip(ctx, newEntity(forum.KIND_SUBCATEGORY, sub.ID, sub.SourceKey), reason)
	for _, post := range sub.Posts {
		p.skipPost(ctx, post, reason)
	}
}

func (p *Publisher) publishCategory(ctx context.Context, category forum.Category) error {
	e := newEntity(forum.KIND_CATEGORY, category.ID, category.SourceKey)
	id, err := p.ensure(ctx, e, report_publisher_create_category, func(ctx context.Context) (int64, error) {
		return p.api.CreateCategory(ctx, discourse.CategoryRequest{
			Name:        category.Title,
			Slug:        Slug(category.Title),
			Description: category.Description,
		})
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		reason := fmt.Sprintf("parent category %s failed", category.ID)
		for _, sub := range category.Subcategories {
			p.skipSubcategory(ctx, sub, reason)
		}
		return nil
	}

	for _, sub := range category.Subcategories {
		err = p.publishSubcategory(ctx, sub, id)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishSubcategory(ctx context.Context, sub forum.Subcategory, parentID int64) error {
	e := newEntity(forum.KIND_SUBCATEGORY, sub.ID, sub.SourceKey)
	id, err := p.ensure(ctx, e, report_publisher_create_category, func(ctx context.Context) (int64, error) {
		return p.api.CreateCategory(ctx, discourse.CategoryRequest{
			Name:        sub.Title,
			Slug:        Slug(sub.Title),
			Description: sub.Description,
			ParentID:    &parentID,
		})
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		reason := fmt.Sprintf("parent subcategory %s failed", sub.ID)
		for _, post := range sub.Posts {
			p.skipPost(ctx, post, reason)
		}
		return nil
	}

	for _, post := range sub.Posts {
		err = p.publishPost(ctx, post, id)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishPost(ctx context.Context, post forum.Post, categoryID int64) error {
	e := newEntity(forum.KIND_POST, post.ID, post.SourceKey)
	topicID, err := p.ensure(ctx, e, report_publisher_create_topic, func(ctx context.Context) (int64, error) {
		topic, err := p.api.CreateTopic(ctx, discourse.TopicRequest{
			Title:      post.Title,
			Raw:        p.topicBody(post),
			CategoryID: categoryID,
			CreatedAt:  p.createdAt(post.PublishedAt, post.CreatedAt, p.exported),
		})
		return topic.TopicID, err
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		p.skipPostChildren(ctx, post, fmt.Sprintf("parent post %s failed", post.ID))
		return nil
	}

	// attachments of a reused topic went up with it
	if e.state == STATE_REUSED {
		for _, a := range post.Attachments {
			if p.uploadable(a) {
				p.reuse(ctx, newEntity(forum.KIND_ATTACHMENT, post.ID, a.Url), 0)
			}
		}
	} else {
		for _, a := range post.Attachments {
			if !p.uploadable(a) {
				continue
			}
			err = p.publishAttachment(ctx, post, a, topicID)
			if err != nil {
				return err
			}
		}
	}

	keys := forum.CommentKeys(post)
	for i, comment := range post.Comments {
		err = p.publishComment(ctx, comment, keys[i], topicID)
		if err != nil {
			return err
		}
	}
	return nil
}

// uploadName is the name Discourse sees for a, it authorizes uploads by
// extension. Link texts like "Download" fall back to the stored file name.
func uploadName(a forum.Attachment) string {
	if filepath.Ext(strings.TrimSpace(a.Filename)) != "" {
		return strings.TrimSpace(a.Filename)
	}
	return filepath.Base(*a.LocalPath)
}

// publishAttachment uploads the local copy of a. Attachments are not
// recorded in the mapping store, a url is all Discourse returns for them.
func (p *Publisher) publishAttachment(ctx context.Context, post forum.Post, a forum.Attachment, topicID int64) error {
	e := newEntity(forum.KIND_ATTACHMENT, post.ID, "")

	info, statErr := os.Stat(*a.LocalPath)
	if statErr == nil && p.opts.MaxFileSizeMB > 0 && float64(info.Size()) > p.opts.MaxFileSizeMB*1024*1024 {
		p.tel.ReportWarning(report_publisher_upload, errTooLarge, *a.LocalPath, info.Size())
		p.skip(ctx, e, errTooLarge.Error())
		return nil
	}

	p.ensure(ctx, e, report_publisher_upload, func(ctx context.Context) (int64, error) {
		// never fetched again from the source, the crawl owns downloads
		if statErr != nil {
			return 0, fmt.Errorf("local copy of %s: %w", a.Url, statErr)
		}
		url, err := p.api.Upload(ctx, discourse.UploadRequest{
			Path:     *a.LocalPath,
			Filename: uploadName(a),
			TopicID:  topicID,
		})
		if err != nil {
			return 0, err
		}
		p.tel.ReportDebug("uploaded", a.Filename, url)
		return 0, nil
	})
	return ctx.Err()
}

func (p *Publisher) publishComment(ctx context.Context, comment forum.Comment, key string, topicID int64) error {
	e := newEntity(forum.KIND_COMMENT, comment.ID, key)
	p.ensure(ctx, e, report_publisher_create_reply, func(ctx context.Context) (int64, error) {
		return p.api.CreateReply(ctx, discourse.ReplyRequest{
			TopicID:   topicID,
			Raw:       p.renderBody(comment.Content),
			CreatedAt: p.createdAt(comment.PublishedAt, comment.CreatedAt, p.exported),
		})
	})
	return ctx.Err()
}

func (p *Publisher) report() Report {
	return Report{
		RunID:    p.runID,
		DryRun:   p.opts.DryRun,
		Events:   p.events,
		Stats:    p.stats.Counts(),
		Failures: p.stats.Failures(),
	}
}

// Run imports the snapshot. Entity failures are recorded in the report, only
// cancellation or an unusable mapping store end the run early.
func (p *Publisher) Run(ctx context.Context, snap forum.Snapshot) (Report, error) {
	p.runID = uuid.NewString()
	p.exported = snap.ExportDate
	p.stats = forum.NewStats(ImportStatKeys...)
	p.events = nil

	err := p.store.StartRun(ctx, RunInfo{
		ID:           p.runID,
		DryRun:       p.opts.DryRun,
		SnapshotPath: p.opts.SnapshotPath,
		DiscourseUrl: p.opts.DiscourseUrl,
	})
	if err != nil {
		p.tel.ReportBroken(report_publisher_mapping, fmt.Errorf("start run: %w", err))
		return p.report(), err
	}

	for _, category := range snap.Categories {
		err = p.publishCategory(ctx, category)
		if err != nil {
			return p.report(), err
		}
		p.tel.ReportDebug("category imported", category.ID, category.Title)
	}

	err = p.store.FinishRun(ctx, p.runID)
	if err != nil {
		p.tel.ReportBroken(report_publisher_mapping, fmt.Errorf("finish run: %w", err))
	}

	report := p.report()
	for key, value := range report.Stats {
		p.tel.ReportCount(key, value)
	}
	return report, nil
}
