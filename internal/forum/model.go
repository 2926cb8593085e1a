// Package forum holds the extracted forum tree, the snapshot document it is
// persisted as and the counters collected while producing or replaying it.
package forum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

type Kind string

const (
	KIND_CATEGORY    Kind = "category"
	KIND_SUBCATEGORY Kind = "subcategory"
	KIND_POST        Kind = "post"
	KIND_COMMENT     Kind = "comment"
	KIND_ATTACHMENT  Kind = "attachment"
)

type Category struct {
	ID            string        `json:"id"`
	SourceKey     string        `json:"source_key"`
	Title         string        `json:"title"`
	Url           string        `json:"url"`
	Description   string        `json:"description"`
	PostsCount    string        `json:"posts_count"`
	Subcategories []Subcategory `json:"subcategories"`
}

type Subcategory struct {
	ID          string `json:"id"`
	SourceKey   string `json:"source_key"`
	Title       string `json:"title"`
	Url         string `json:"url"`
	Description string `json:"description"`
	Posts       []Post `json:"posts"`
}

type Post struct {
	ID          string `json:"id"`
	SourceKey   string `json:"source_key"`
	Title       string `json:"title"`
	Url         string `json:"url"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
	PublishedAt string `json:"published_at,omitempty"`
	Description string `json:"description"`
	// Content is empty until the post page itself has been extracted.
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	Comments    []Comment    `json:"comments"`
}

type Comment struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
	PublishedAt string `json:"published_at,omitempty"`
	Content     string `json:"content"`
}

// Attachment must only be changed through MarkDownloaded and MarkFailed so
// that LocalPath is set exactly when Downloaded is true.
type Attachment struct {
	Filename   string  `json:"filename"`
	Url        string  `json:"url"`
	Downloaded bool    `json:"downloaded"`
	LocalPath  *string `json:"local_path"`
}

func (a *Attachment) MarkDownloaded(path string) {
	a.Downloaded = true
	a.LocalPath = &path
}

func (a *Attachment) MarkFailed() {
	a.Downloaded = false
	a.LocalPath = nil
}

// Valid reports whether the downloaded flag and local path agree.
func (a Attachment) Valid() bool {
	return a.Downloaded == (a.LocalPath != nil)
}

func CategoryID(ordinal int) string {
	return fmt.Sprintf("c%d", ordinal)
}

func SubcategoryID(parent string, ordinal int) string {
	return fmt.Sprintf("%s.s%d", parent, ordinal)
}

func PostID(parent string, ordinal int) string {
	return fmt.Sprintf("%s.p%d", parent, ordinal)
}

func CommentID(parent string, ordinal int) string {
	return fmt.Sprintf("%s.m%d", parent, ordinal)
}

func normalizeUrl(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	return parsed.String()
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

func normalizeField(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// SourceKey identifies an entity independently of where it appeared in the
// listing: a hash of its url, or for an entity without one a hash of its
// parent's key and the fields describing it. Fields must not change between
// crawls, relative dates like "2 days ago" do.
func SourceKey(rawUrl, parentKey string, fields ...string) string {
	if strings.TrimSpace(rawUrl) != "" {
		return hashKey(normalizeUrl(rawUrl))
	}
	parts := []string{parentKey}
	for _, field := range fields {
		parts = append(parts, normalizeField(field))
	}
	return hashKey(strings.Join(parts, "\x1f"))
}

// Keys hands out the source keys of one listing. Entities that look the same
// share a key, repeats get a numbered suffix in listing order.
type Keys map[string]int

func (k Keys) Claim(key string) string {
	k[key]++
	if k[key] == 1 {
		return key
	}
	return fmt.Sprintf("%s~%d", key, k[key])
}

// CommentKeys returns the source key of every comment of post, in order.
func CommentKeys(post Post) []string {
	keys := Keys{}
	out := make([]string, len(post.Comments))
	for i, comment := range post.Comments {
		out[i] = keys.Claim(SourceKey("", post.SourceKey, comment.Author, comment.Content))
	}
	return out
}
