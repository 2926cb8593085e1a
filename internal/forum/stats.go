package forum

import (
	"maps"
	"sync"
)

const (
	STAT_CATEGORIES             = "total_categories"
	STAT_SUBCATEGORIES          = "total_subcategories"
	STAT_POSTS                  = "total_posts"
	STAT_COMMENTS               = "total_comments"
	STAT_ATTACHMENTS            = "total_attachments"
	STAT_ATTACHMENTS_DOWNLOADED = "attachments_downloaded"
	STAT_ATTACHMENTS_FAILED     = "attachments_failed"
	STAT_ATTACHMENTS_SKIPPED    = "attachments_skipped"
	STAT_ERRORS                 = "errors"
)

// CrawlStatKeys are the counters every snapshot reports, even when zero.
var CrawlStatKeys = []string{
	STAT_CATEGORIES,
	STAT_SUBCATEGORIES,
	STAT_POSTS,
	STAT_COMMENTS,
	STAT_ATTACHMENTS,
	STAT_ATTACHMENTS_DOWNLOADED,
	STAT_ATTACHMENTS_FAILED,
	STAT_ATTACHMENTS_SKIPPED,
	STAT_ERRORS,
}

// Failure is one entity that could not be processed.
type Failure struct {
	Kind   Kind   `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Stats is a set of named counters plus the failures behind the error count.
// It is safe for concurrent use.
type Stats struct {
	mutex    sync.Mutex
	counts   map[string]int64
	failures []Failure
}

// NewStats creates Stats where each of keys is reported even if never
// incremented.
func NewStats(keys ...string) *Stats {
	counts := make(map[string]int64, len(keys)+1)
	for _, k := range keys {
		counts[k] = 0
	}
	counts[STAT_ERRORS] = 0
	return &Stats{counts: counts}
}

func (s *Stats) Add(key string, n int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counts[key] += n
}

func (s *Stats) Inc(key string) {
	s.Add(key, 1)
}

// Fail increments the error counter and remembers why.
func (s *Stats) Fail(kind Kind, id, reason string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counts[STAT_ERRORS]++
	s.failures = append(s.failures, Failure{Kind: kind, ID: id, Reason: reason})
}

func (s *Stats) Counts() map[string]int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return maps.Clone(s.counts)
}

func (s *Stats) Failures() []Failure {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]Failure, len(s.failures))
	copy(out, s.failures)
	return out
}
