package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

// ListNotifications reads one page of the admin inbox.
func (c *Client) ListNotifications(ctx context.Context, p model.ListParams) (model.Page[model.Notification], error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/notifications", query: pageQuery(p)})
	if err != nil {
		return model.Page[model.Notification]{}, err
	}
	return convert.Page[model.Notification](env)
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodPatch, path: "/notifications/" + url.PathEscape(id) + "/read"})
	return err
}

// MarkAllNotificationsRead marks the whole inbox read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodPatch, path: "/notifications/read-all"})
	return err
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/notifications/" + url.PathEscape(id)})
	return err
}
