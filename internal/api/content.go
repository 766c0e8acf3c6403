package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

// ContentAPI groups the endpoints of one content collection.
type ContentAPI struct {
	c    *Client
	kind model.Kind
}

// Content returns the endpoint group for kind.
func (c *Client) Content(kind model.Kind) *ContentAPI { return &ContentAPI{c: c, kind: kind} }

func (c *Client) Blogs() *ContentAPI        { return c.Content(model.KindBlog) }
func (c *Client) Videos() *ContentAPI       { return c.Content(model.KindVideo) }
func (c *Client) Podcasts() *ContentAPI     { return c.Content(model.KindPodcast) }
func (c *Client) Publications() *ContentAPI { return c.Content(model.KindPublication) }

// Kind reports the collection this group addresses.
func (a *ContentAPI) Kind() model.Kind { return a.kind }

func (a *ContentAPI) path(parts ...string) string {
	segs := append([]string{a.kind.Resource()}, parts...)
	for i := range segs {
		segs[i] = url.PathEscape(segs[i])
	}
	return "/" + strings.Join(segs, "/")
}

// List reads one page; zero Page/Limit default to 1 and 10.
func (a *ContentAPI) List(ctx context.Context, p model.ListParams) (model.Page[model.ContentItem], error) {
	env, err := a.c.do(ctx, request{method: http.MethodGet, path: a.path(), query: pageQuery(p)})
	if err != nil {
		return model.Page[model.ContentItem]{}, err
	}
	return convert.Content(env, a.kind)
}

// Get reads a single item.
func (a *ContentAPI) Get(ctx context.Context, id string) (model.ContentItem, error) {
	env, err := a.c.do(ctx, request{method: http.MethodGet, path: a.path(id)})
	if err != nil {
		return model.ContentItem{}, err
	}
	return convert.ContentItem(env, a.kind)
}

// Create adds an item; inputs carrying files are sent as multipart with the upload timeout.
func (a *ContentAPI) Create(ctx context.Context, in model.ContentInput) (model.ContentItem, error) {
	return a.write(ctx, http.MethodPost, a.path(), in)
}

// Update patches an item.
func (a *ContentAPI) Update(ctx context.Context, id string, in model.ContentInput) (model.ContentItem, error) {
	return a.write(ctx, http.MethodPatch, a.path(id), in)
}

// Delete removes an item.
func (a *ContentAPI) Delete(ctx context.Context, id string) error {
	_, err := a.c.do(ctx, request{method: http.MethodDelete, path: a.path(id)})
	return err
}

// Pinned returns the collection's pinned items.
func (a *ContentAPI) Pinned(ctx context.Context) ([]model.ContentItem, error) {
	env, err := a.c.do(ctx, request{method: http.MethodGet, path: a.path("pinned")})
	if err != nil {
		return nil, err
	}
	items, err := convert.List[model.ContentItem](env)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Kind = a.kind
	}
	return items, nil
}

// SetPinned flags or unflags an item for priority display.
func (a *ContentAPI) SetPinned(ctx context.Context, id string, pinned bool) (model.ContentItem, error) {
	env, err := a.c.do(ctx, request{
		method: http.MethodPatch,
		path:   a.path(id, "pin"),
		body:   map[string]bool{"isPinned": pinned},
	})
	if err != nil {
		return model.ContentItem{}, err
	}
	return convert.ContentItem(env, a.kind)
}

// SetStatus sends a status change; the server decides whether it is allowed.
func (a *ContentAPI) SetStatus(ctx context.Context, id, status string) (model.ContentItem, error) {
	env, err := a.c.do(ctx, request{
		method: http.MethodPatch,
		path:   a.path(id, "status"),
		body:   map[string]string{"status": status},
	})
	if err != nil {
		return model.ContentItem{}, err
	}
	return convert.ContentItem(env, a.kind)
}

func (a *ContentAPI) write(ctx context.Context, method, path string, in model.ContentInput) (model.ContentItem, error) {
	r := request{method: method, path: path}
	if in.HasFiles() {
		f := &form{}
		f.set("title", in.Title)
		f.set("description", in.Description)
		f.set("author", in.Author)
		f.set("status", in.Status)
		if len(in.Tags) > 0 {
			f.set("tags", strings.Join(in.Tags, ","))
		}
		f.file("coverImage", in.CoverFile)
		f.file(model.MediaField(a.kind), in.MediaFile)
		r.form = f
	} else {
		r.body = contentBody(in)
	}
	env, err := a.c.do(ctx, r)
	if err != nil {
		return model.ContentItem{}, err
	}
	return convert.ContentItem(env, a.kind)
}

func contentBody(in model.ContentInput) map[string]any {
	b := map[string]any{}
	if in.Title != "" {
		b["title"] = in.Title
	}
	if in.Description != "" {
		b["description"] = in.Description
	}
	if in.Author != "" {
		b["author"] = in.Author
	}
	if in.Status != "" {
		b["status"] = in.Status
	}
	if len(in.Tags) > 0 {
		b["tags"] = in.Tags
	}
	return b
}

// pageQuery renders paging parameters with defaults applied.
func pageQuery(p model.ListParams) url.Values {
	p = p.Normalize()
	q := url.Values{}
	q.Set("page", fmt.Sprint(p.Page))
	q.Set("limit", fmt.Sprint(p.Limit))
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sortOrder", p.SortOrder)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}
