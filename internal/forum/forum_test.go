package forum

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestIdentifiers(t *testing.T) {
	cat := CategoryID(1)
	sub := SubcategoryID(cat, 2)
	post := PostID(sub, 3)
	require.Equal(t, "c1", cat)
	require.Equal(t, "c1.s2", sub)
	require.Equal(t, "c1.s2.p3", post)
	require.Equal(t, "c1.s2.p3.m4", CommentID(post, 4))
}

func TestSourceKey(t *testing.T) {
	a := SourceKey("https://Forum.example.com/post/calibration/", "k-simrad", "Calibration")
	b := SourceKey("https://forum.example.com/post/calibration#comments", "k-other")
	require.Len(t, a, 16)
	require.Equal(t, a, b)
	require.NotEqual(t, a, SourceKey("https://forum.example.com/post/other", ""))

	// without a url the key follows the parent and the fields, not the position
	old := SourceKey("", "k-simrad", "Old post", "Ivan")
	require.Len(t, old, 16)
	require.Equal(t, old, SourceKey("", "k-simrad", "  old   POST ", "ivan"))
	require.NotEqual(t, old, SourceKey("", "k-simrad", "New post", "Ivan"))
	require.NotEqual(t, old, SourceKey("", "k-lowrance", "Old post", "Ivan"))
}

func TestKeysClaim(t *testing.T) {
	keys := Keys{}
	require.Equal(t, "k", keys.Claim("k"))
	require.Equal(t, "k~2", keys.Claim("k"))
	require.Equal(t, "other", keys.Claim("other"))
}

func TestCommentKeys(t *testing.T) {
	post := Post{SourceKey: "k-post", Comments: []Comment{
		{Author: "Anna", Content: "<p>Thanks</p>"},
		{Author: "Ivan", Content: "<p>Welcome</p>"},
		{Author: "Anna", Content: "<p>Thanks</p>"},
	}}
	keys := CommentKeys(post)
	require.Len(t, keys, 3)
	require.Equal(t, keys[0]+"~2", keys[2])

	// a comment deleted upstream leaves the keys of the others untouched
	post.Comments = post.Comments[1:2]
	require.Equal(t, []string{keys[1]}, CommentKeys(post))
}

func TestAttachmentMarks(t *testing.T) {
	att := Attachment{Filename: "manual.pdf", Url: "https://host/manual.pdf"}
	require.True(t, att.Valid())

	att.MarkDownloaded("downloads/c1.s1.p1/manual_1234abcd.pdf")
	require.True(t, att.Downloaded)
	require.NotNil(t, att.LocalPath)
	require.True(t, att.Valid())

	att.MarkFailed()
	require.False(t, att.Downloaded)
	require.Nil(t, att.LocalPath)
	require.True(t, att.Valid())
}

func TestStatsConcurrent(t *testing.T) {
	stats := NewStats(CrawlStatKeys...)

	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.Inc(STAT_POSTS)
			stats.Fail(KIND_COMMENT, "c1.s1.p1.m1", "missing content")
		}()
	}
	wg.Wait()

	counts := stats.Counts()
	require.Equal(t, int64(50), counts[STAT_POSTS])
	require.Equal(t, int64(50), counts[STAT_ERRORS])
	require.Equal(t, int64(0), counts[STAT_CATEGORIES])
	require.Len(t, stats.Failures(), 50)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	exported := time.Date(2024, time.March, 10, 12, 30, 0, 0, time.UTC)
	path := SnapshotPath(dir, exported)
	require.Equal(t, filepath.Join(dir, "forum_structure_20240310_123000.json"), path)

	local := "downloads/c1.s1.p1/manual_1234abcd.pdf"
	snap := Snapshot{
		ExportDate: exported,
		ForumUrl:   "https://forum.example.com",
		Categories: []Category{{
			ID:    "c1",
			Title: "Sonar",
			Subcategories: []Subcategory{{
				ID:    "c1.s1",
				Title: "Simrad",
				Posts: []Post{{
					ID:        "c1.s1.p1",
					SourceKey: "abcd",
					Title:     "Calibration guide",
					Content:   "<p>Use <b>&lt;care&gt;</b></p>",
					Attachments: []Attachment{
						{Filename: "manual.pdf", Url: "https://host/manual.pdf", Downloaded: true, LocalPath: &local},
					},
					Comments: []Comment{{ID: "c1.s1.p1.m1", Author: "Ivan", Content: "<p>thanks</p>"}},
				}},
			}},
		}},
		Stats:    map[string]int64{STAT_CATEGORIES: 1},
		Complete: true,
	}

	require.NoError(t, SaveSnapshot(path, snap))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files should not be left behind")

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(snap, loaded))

	totals := loaded.Totals()
	require.Len(t, totals, len(TotalKeys))
	require.Equal(t, int64(1), totals[STAT_POSTS])
	require.Equal(t, int64(1), totals[STAT_COMMENTS])
	require.Equal(t, int64(1), totals[STAT_ATTACHMENTS_DOWNLOADED])

	index := loaded.PostsBySourceKey()
	require.Equal(t, "Calibration guide", index["abcd"].Title)
}

func TestLoadSnapshotMissing(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
