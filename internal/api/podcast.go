package api

import (
	"context"
	"net/http"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

// StartLive transitions a podcast to live; the server assigns the session id.
func (c *Client) StartLive(ctx context.Context, podcastID string) (model.LiveSession, error) {
	return c.live(ctx, http.MethodPost, podcastID, "start")
}

// EndLive ends the podcast's live session.
func (c *Client) EndLive(ctx context.Context, podcastID string) (model.LiveSession, error) {
	return c.live(ctx, http.MethodPost, podcastID, "end")
}

// LiveStatus reads the server's view of the live session.
func (c *Client) LiveStatus(ctx context.Context, podcastID string) (model.LiveSession, error) {
	return c.live(ctx, http.MethodGet, podcastID, "")
}

func (c *Client) live(ctx context.Context, method, podcastID, action string) (model.LiveSession, error) {
	path := c.Podcasts().path(podcastID, "live")
	if action != "" {
		path += "/" + action
	}
	env, err := c.do(ctx, request{method: method, path: path})
	if err != nil {
		return model.LiveSession{}, err
	}
	s, err := convert.Data[model.LiveSession](env)
	if err != nil {
		return s, err
	}
	if s.PodcastID == "" {
		s.PodcastID = podcastID
	}
	return s, nil
}
