// Package api translates dashboard operations into authenticated REST calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/errs"
)

// DefaultPrefix is the versioned path every endpoint lives under.
const DefaultPrefix = "/api/v1"

// maxBody caps how much of a response is read into memory.
const maxBody = 32 << 20

// TokenSource yields the bearer credential for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Config describes where and how to reach the backend.
type Config struct {
	BaseURL       string
	Prefix        string        // defaults to DefaultPrefix
	Timeout       time.Duration // 0 means no client-side timeout
	UploadTimeout time.Duration // multipart requests; 0 means no timeout
}

// Client issues backend requests. It never retries.
type Client struct {
	base           *url.URL
	http           *http.Client
	upload         *http.Client
	tokens         TokenSource
	log            *zap.Logger
	onUnauthorized func(context.Context)
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithHTTPClient replaces the transport used for both regular and upload requests.
// Timeouts from Config are applied on copies of hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		reg, up := *hc, *hc
		reg.Timeout, up.Timeout = c.http.Timeout, c.upload.Timeout
		c.http, c.upload = &reg, &up
	}
}

// WithUnauthorizedHandler registers fn to run after any 401 response.
func WithUnauthorizedHandler(fn func(context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New validates cfg and builds a Client.
func New(cfg Config, tokens TokenSource, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api: empty base url")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base url must be http(s), got %q", cfg.BaseURL)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	c := &Client{
		base:   base.JoinPath(prefix),
		http:   &http.Client{Timeout: cfg.Timeout},
		upload: &http.Client{Timeout: cfg.UploadTimeout},
		tokens: tokens,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// request is one logical backend call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any   // JSON-encoded when non-nil
	form   *form // multipart; takes precedence over body
}

// URL resolves path (and query) against the configured base.
func (c *Client) URL(path string, query url.Values) string {
	u := c.base.JoinPath(strings.TrimPrefix(path, "/"))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, r request) (convert.Envelope, error) {
	op := r.method + " " + r.path
	start := time.Now()

	var (
		body        io.Reader
		contentType string
		hc          = c.http
	)
	switch {
	case r.form != nil:
		if err := r.form.check(); err != nil {
			return convert.Envelope{}, fmt.Errorf("%s: %w", op, err)
		}
		rd, ct := r.form.reader()
		body, contentType, hc = rd, ct, c.upload
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return convert.Envelope{}, fmt.Errorf("%s: encode body: %w", op, err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.URL(r.path, r.query), body)
	if err != nil {
		return convert.Envelope{}, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.log.Info("api",
			zap.String("op", op),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return convert.Envelope{}, &Error{Op: op, Message: err.Error(), Kind: errs.ErrTransport}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.log.Info("api",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)
	if err != nil {
		return convert.Envelope{}, &Error{Op: op, Status: resp.StatusCode, Message: err.Error(), Kind: errs.ErrTransport}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(bytes.TrimSpace(raw)) == 0 {
			return convert.Envelope{Success: true}, nil
		}
		env, err := convert.DecodeEnvelope(raw)
		if err != nil {
			return convert.Envelope{}, fmt.Errorf("%s: %w", op, err)
		}
		if !env.Success {
			return env, &Error{Op: op, Status: resp.StatusCode, Message: env.Message, Errors: env.Errors, Kind: errs.ErrValidation}
		}
		return env, nil
	}

	ae := &Error{Op: op, Status: resp.StatusCode, Kind: kindForStatus(resp.StatusCode)}
	if env, derr := convert.DecodeEnvelope(raw); derr == nil {
		ae.Message, ae.Errors = env.Message, env.Errors
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
	return convert.Envelope{}, ae
}
