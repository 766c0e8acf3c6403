package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

// GetWebsiteContent reads the public site settings.
func (c *Client) GetWebsiteContent(ctx context.Context) (model.WebsiteContent, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/website-content"})
	if err != nil {
		return model.WebsiteContent{}, err
	}
	return convert.Data[model.WebsiteContent](env)
}

// UpdateWebsiteContent patches the site settings; a hero image file switches to multipart.
func (c *Client) UpdateWebsiteContent(ctx context.Context, in model.WebsiteContentInput) (model.WebsiteContent, error) {
	r := request{method: http.MethodPatch, path: "/website-content"}
	if in.HeroImageFile != "" {
		f := &form{}
		f.set("heroTitle", in.HeroTitle)
		f.set("heroSubtitle", in.HeroSubtitle)
		f.set("about", in.About)
		f.set("contactEmail", in.ContactEmail)
		f.set("contactPhone", in.ContactPhone)
		f.set("footer", in.Footer)
		f.file("heroImage", in.HeroImageFile)
		r.form = f
	} else {
		r.body = in.WebsiteContent
	}
	env, err := c.do(ctx, r)
	if err != nil {
		return model.WebsiteContent{}, err
	}
	return convert.Data[model.WebsiteContent](env)
}

const suggestionsPath = "/website-content/life-suggestions"

// ListSuggestions reads the curated life-suggestion list.
func (c *Client) ListSuggestions(ctx context.Context) ([]model.Suggestion, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: suggestionsPath})
	if err != nil {
		return nil, err
	}
	return convert.List[model.Suggestion](env)
}

// AddSuggestion creates a suggestion and returns it with its server-assigned id.
func (c *Client) AddSuggestion(ctx context.Context, s model.Suggestion) (model.Suggestion, error) {
	env, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   suggestionsPath,
		body:   map[string]string{"text": s.Text, "author": s.Author},
	})
	if err != nil {
		return model.Suggestion{}, err
	}
	return convert.Data[model.Suggestion](env)
}

// RemoveSuggestion deletes a suggestion.
func (c *Client) RemoveSuggestion(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: suggestionsPath + "/" + url.PathEscape(id)})
	return err
}
