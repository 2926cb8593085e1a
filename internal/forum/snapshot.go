package forum

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the document a crawl produces and an import consumes.
type Snapshot struct {
	ExportDate time.Time        `json:"export_date"`
	ForumUrl   string           `json:"forum_url"`
	Categories []Category       `json:"categories"`
	Stats      map[string]int64 `json:"stats"`
	Failures   []Failure        `json:"failures"`
	// Complete is false for checkpoints written while a crawl is running.
	Complete bool `json:"complete"`
}

// SnapshotPath is where a crawl started at t writes its snapshot.
func SnapshotPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("forum_structure_%s.json", t.Format("20060102_150405")))
}

// SaveSnapshot writes the snapshot next to path and renames it into place, a
// reader never sees a half written file.
func SaveSnapshot(path string, snap Snapshot) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	err = encoder.Encode(snap)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadSnapshot(path string) (Snapshot, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	err = json.Unmarshal(contents, &snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return snap, nil
}

// PostsBySourceKey indexes every post of the snapshot, later duplicates of the
// same key are ignored.
func (s Snapshot) PostsBySourceKey() map[string]Post {
	out := map[string]Post{}
	for _, c := range s.Categories {
		for _, sub := range c.Subcategories {
			for _, p := range sub.Posts {
				if _, exists := out[p.SourceKey]; exists {
					continue
				}
				out[p.SourceKey] = p
			}
		}
	}
	return out
}

// TotalKeys are the counters of Totals.
var TotalKeys = []string{
	STAT_CATEGORIES,
	STAT_SUBCATEGORIES,
	STAT_POSTS,
	STAT_COMMENTS,
	STAT_ATTACHMENTS,
	STAT_ATTACHMENTS_DOWNLOADED,
}

// Totals counts the entities of the tree.
func (s Snapshot) Totals() map[string]int64 {
	out := map[string]int64{}
	for _, key := range TotalKeys {
		out[key] = 0
	}
	for _, c := range s.Categories {
		out[STAT_CATEGORIES]++
		for _, sub := range c.Subcategories {
			out[STAT_SUBCATEGORIES]++
			for _, p := range sub.Posts {
				out[STAT_POSTS]++
				out[STAT_COMMENTS] += int64(len(p.Comments))
				out[STAT_ATTACHMENTS] += int64(len(p.Attachments))
				for _, a := range p.Attachments {
					if a.Downloaded {
						out[STAT_ATTACHMENTS_DOWNLOADED]++
					}
				}
			}
		}
	}
	return out
}
