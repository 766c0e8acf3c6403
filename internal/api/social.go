package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

// ListSocialLinks reads all footer links.
func (c *Client) ListSocialLinks(ctx context.Context) ([]model.SocialLink, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/social-links"})
	if err != nil {
		return nil, err
	}
	return convert.List[model.SocialLink](env)
}

// CreateSocialLink adds a link.
func (c *Client) CreateSocialLink(ctx context.Context, l model.SocialLink) (model.SocialLink, error) {
	return c.socialWrite(ctx, http.MethodPost, "/social-links", l)
}

// UpdateSocialLink replaces platform and URL of link l.ID.
func (c *Client) UpdateSocialLink(ctx context.Context, l model.SocialLink) (model.SocialLink, error) {
	return c.socialWrite(ctx, http.MethodPatch, "/social-links/"+url.PathEscape(l.ID), l)
}

// DeleteSocialLink removes a link.
func (c *Client) DeleteSocialLink(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/social-links/" + url.PathEscape(id)})
	return err
}

func (c *Client) socialWrite(ctx context.Context, method, path string, l model.SocialLink) (model.SocialLink, error) {
	env, err := c.do(ctx, request{
		method: method,
		path:   path,
		body:   map[string]string{"platform": l.Platform, "url": l.URL},
	})
	if err != nil {
		return model.SocialLink{}, err
	}
	return convert.Data[model.SocialLink](env)
}
