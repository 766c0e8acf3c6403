package api

import (
	"context"
	"net/http"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

// Login exchanges credentials for a session token. Storing the token is the caller's job.
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	env, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return model.Session{}, err
	}
	return convert.Data[model.Session](env)
}

// Logout tells the backend to end the session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"})
	return err
}

// Me returns the authenticated administrator.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"})
	if err != nil {
		return model.User{}, err
	}
	return convert.Data[model.User](env)
}

// ChangePassword updates the administrator's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/auth/change-password",
		body:   map[string]string{"currentPassword": current, "newPassword": next},
	})
	return err
}
