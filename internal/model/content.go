// Package model defines the entities the dashboard consumes from the backend.
package model

import (
	"fmt"
	"time"
)

// Kind names one of the four primary content collections.
type Kind string

const (
	KindBlog        Kind = "blog"
	KindVideo       Kind = "video"
	KindPodcast     Kind = "podcast"
	KindPublication Kind = "publication"
)

// Kinds lists the primary collections in display order.
var Kinds = []Kind{KindBlog, KindVideo, KindPodcast, KindPublication}

// ParseKind accepts singular or plural names ("blog", "blogs").
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Resource() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// Resource is the REST collection segment for the kind.
func (k Kind) Resource() string { return string(k) + "s" }

// ContentItem generalizes blogs, videos, podcasts and publications.
// Status is server-authoritative and only displayed or echoed back.
type ContentItem struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"` // rich-text HTML
	Author      string     `json:"author,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CoverImage  string     `json:"coverImage,omitempty"`
	VideoURL    string     `json:"videoUrl,omitempty"`
	AudioURL    string     `json:"audioUrl,omitempty"`
	FileURL     string     `json:"fileUrl,omitempty"`
	Duration    int64      `json:"duration,omitempty"` // seconds
	Status      string     `json:"status,omitempty"`
	Pinned      bool       `json:"isPinned,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Validate rejects payloads that cannot be displayed or addressed.
func (c ContentItem) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("content item: empty id")
	}
	return nil
}

// ContentInput is a create/update intent. Zero-valued fields are omitted.
// File fields hold local paths; any non-empty one switches the request to multipart.
type ContentInput struct {
	Title       string
	Description string
	Author      string
	Tags        []string
	Status      string

	CoverFile string
	MediaFile string // video, audio or document depending on kind
}

// HasFiles reports whether the input must be sent as multipart form data.
func (in ContentInput) HasFiles() bool { return in.CoverFile != "" || in.MediaFile != "" }

// MediaField is the multipart field name the backend expects for a kind's main file.
func MediaField(k Kind) string {
	switch k {
	case KindVideo:
		return "video"
	case KindPodcast:
		return "audio"
	case KindPublication:
		return "file"
	default:
		return "media"
	}
}
