// Package discourse talks to the Discourse REST API.
package discourse

import (
	"context"
	"fmt"
	"strings"
)

const (
	DEFAULT_CATEGORY_COLOR      = "0088CC"
	DEFAULT_CATEGORY_TEXT_COLOR = "FFFFFF"
)

type CategoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Color       string `json:"color"`
	TextColor   string `json:"text_color"`
	Description string `json:"description,omitempty"`
	// ParentID makes the new category a subcategory.
	ParentID *int64 `json:"parent_category_id,omitempty"`
}

type TopicRequest struct {
	Title      string   `json:"title"`
	Raw        string   `json:"raw"`
	CategoryID int64    `json:"category"`
	Tags       []string `json:"tags,omitempty"`
	// CreatedAt backdates the post, RFC3339. Discourse only honors it for
	// admin api keys.
	CreatedAt string `json:"created_at,omitempty"`
}

// TopicResult identifies a created topic and its opening post.
type TopicResult struct {
	TopicID int64
	PostID  int64
}

type ReplyRequest struct {
	TopicID   int64  `json:"topic_id"`
	Raw       string `json:"raw"`
	CreatedAt string `json:"created_at,omitempty"`
}

type UploadRequest struct {
	// Path is the local file to upload.
	Path string
	// Filename is the name Discourse shows, the base name of Path when empty.
	Filename string
	TopicID  int64
}

// API is the part of Discourse the publisher needs.
//
// note: fault injection point
type API interface {
	// Ping verifies the instance is reachable and the credentials work.
	Ping(ctx context.Context) error
	CreateCategory(ctx context.Context, req CategoryRequest) (int64, error)
	CreateTopic(ctx context.Context, req TopicRequest) (TopicResult, error)
	CreateReply(ctx context.Context, req ReplyRequest) (int64, error)
	// Upload returns the url of the uploaded file.
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// APIError is a non-2xx response from Discourse.
type APIError struct {
	Method string
	Path   string
	Status int
	// Errors are the messages Discourse put in its "errors" field.
	Errors []string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("discourse %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("discourse %s %s: status %d: %s", e.Method, e.Path, e.Status, strings.Join(e.Errors, "; "))
}
