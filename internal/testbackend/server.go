// Package testbackend is an in-memory implementation of the dashboard REST API and
// its real-time channel. It backs end-to-end tests and cmd/fakeapi; it is not a
// production server.
package testbackend

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/mediadesk/internal/crypto"
	"github.com/and161185/mediadesk/internal/model"
)

// Config configures a Server.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SignKey       []byte
	AccessTTL     time.Duration // default 15m
	Log           *zap.Logger
}

// Request is one recorded API call.
type Request struct {
	Method string
	Path   string
	Query  string
	Auth   string
}

// Server holds all backend state behind one mutex.
type Server struct {
	signKey   []byte
	accessTTL time.Duration
	log       *zap.Logger
	now       func() time.Time

	mu            sync.Mutex
	admin         model.User
	pwdHash       string
	revoked       map[string]bool
	content       map[model.Kind][]model.ContentItem
	site          model.WebsiteContent
	suggestions   []model.Suggestion
	social        []model.SocialLink
	notifications []model.Notification
	live          map[string]model.LiveSession
	requests      []Request

	rt *realtime
}

// New builds a Server with the admin account from cfg.
func New(cfg Config) (*Server, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil, errors.New("testbackend: admin credentials required")
	}
	if len(cfg.SignKey) == 0 {
		return nil, errors.New("testbackend: signing key required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	hash, err := pkgcrypto.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	s := &Server{
		signKey:   cfg.SignKey,
		accessTTL: cfg.AccessTTL,
		log:       cfg.Log,
		now:       time.Now,
		admin:     model.User{ID: newID(), Name: "Admin", Email: cfg.AdminEmail, Role: "admin"},
		pwdHash:   hash,
		revoked:   map[string]bool{},
		content:   map[model.Kind][]model.ContentItem{},
		live:      map[string]model.LiveSession{},
	}
	s.rt = newRealtime(s)
	return s, nil
}

// Handler returns the HTTP router: REST under /api/v1, the real-time channel
// under /podcast.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recoveryMiddleware(s.log), loggingMiddleware(s.log))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })
	r.GET("/podcast", s.rt.serve)

	v1 := r.Group("/api/v1", s.record)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("", s.authMiddleware)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/auth/me", s.me)
	authed.PATCH("/auth/change-password", s.changePassword)

	for _, k := range model.Kinds {
		g := authed.Group("/" + k.Resource())
		g.GET("", s.listContent(k))
		g.POST("", s.createContent(k))
		g.GET("/pinned", s.pinnedContent(k))
		g.GET("/:id", s.getContent(k))
		g.PATCH("/:id", s.updateContent(k))
		g.DELETE("/:id", s.deleteContent(k))
		g.PATCH("/:id/pin", s.pinContent(k))
		g.PATCH("/:id/status", s.statusContent(k))
		if k == model.KindPodcast {
			g.POST("/:id/live/start", s.startLive)
			g.POST("/:id/live/end", s.endLive)
			g.GET("/:id/live", s.liveStatus)
		}
	}

	authed.GET("/website-content", s.getSite)
	authed.PATCH("/website-content", s.updateSite)
	authed.GET("/website-content/life-suggestions", s.listSuggestions)
	authed.POST("/website-content/life-suggestions", s.addSuggestion)
	authed.DELETE("/website-content/life-suggestions/:id", s.removeSuggestion)

	authed.GET("/social-links", s.listSocial)
	authed.POST("/social-links", s.createSocial)
	authed.PATCH("/social-links/:id", s.updateSocial)
	authed.DELETE("/social-links/:id", s.deleteSocial)

	authed.GET("/notifications", s.listNotifications)
	authed.PATCH("/notifications/read-all", s.readAllNotifications)
	authed.PATCH("/notifications/:id/read", s.readNotification)
	authed.DELETE("/notifications/:id", s.deleteNotification)

	return r
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.RawQuery,
		Auth:   c.GetHeader("Authorization"),
	})
	s.mu.Unlock()
	c.Next()
}

// Requests returns every API call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count reports how many calls matched method and path exactly.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// SeedContent appends items to kind, assigning ids and timestamps where missing.
func (s *Server) SeedContent(kind model.Kind, items ...model.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if it.ID == "" {
			it.ID = newID()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = s.now()
		}
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = it.CreatedAt
		}
		if it.Status == "" {
			it.Status = "draft"
		}
		s.content[kind] = append(s.content[kind], it)
	}
}

// SeedNotifications appends inbox entries.
func (s *Server) SeedNotifications(ns ...model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range ns {
		if n.ID == "" {
			n.ID = newID()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = s.now()
		}
		s.notifications = append(s.notifications, n)
	}
}

// Chunks reports how many audio chunks were received for podcastID.
func (s *Server) Chunks(podcastID string) int { return s.rt.chunks(podcastID) }

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}
