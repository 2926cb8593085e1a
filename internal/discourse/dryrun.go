package discourse

import (
	"context"
	"forummigrate/internal/components/telemetry"
	"sync/atomic"
)

const (
	DRY_RUN_ID         int64 = 999
	DRY_RUN_UPLOAD_URL       = "http://example.com/fake-upload.pdf"
)

// DryRun is an API that never leaves the process, every create succeeds with
// DRY_RUN_ID.
type DryRun struct {
	tel   telemetry.API
	calls atomic.Int64
}

func NewDryRun(tel telemetry.API) *DryRun {
	return &DryRun{tel: telemetry.NewScopedAPI("discourse_dry_run", tel)}
}

// Calls is the number of api calls made so far.
func (d *DryRun) Calls() int64 {
	return d.calls.Load()
}

func (d *DryRun) Ping(ctx context.Context) error {
	return nil
}

func (d *DryRun) CreateCategory(ctx context.Context, req CategoryRequest) (int64, error) {
	d.calls.Add(1)
	d.tel.ReportDebug("would create category", req.Name, req.Slug)
	return DRY_RUN_ID, nil
}

func (d *DryRun) CreateTopic(ctx context.Context, req TopicRequest) (TopicResult, error) {
	d.calls.Add(1)
	d.tel.ReportDebug("would create topic", req.Title, req.CategoryID)
	return TopicResult{TopicID: DRY_RUN_ID, PostID: DRY_RUN_ID}, nil
}

func (d *DryRun) CreateReply(ctx context.Context, req ReplyRequest) (int64, error) {
	d.calls.Add(1)
	d.tel.ReportDebug("would create reply", req.TopicID)
	return DRY_RUN_ID, nil
}

func (d *DryRun) Upload(ctx context.Context, req UploadRequest) (string, error) {
	d.calls.Add(1)
	d.tel.ReportDebug("would upload", req.Path, req.TopicID)
	return DRY_RUN_UPLOAD_URL, nil
}
