package testbackend

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

var statuses = map[string]bool{"draft": true, "published": true, "archived": true}

func (s *Server) listContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, valid := pageParams(c)
		if !valid {
			return
		}
		s.mu.Lock()
		items := filterSortContent(s.content[k], p)
		s.mu.Unlock()
		page, meta := paginate(items, p)
		okPage(c, page, meta)
	}
}

func (s *Server) pinnedContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []model.ContentItem{}
		for _, it := range s.content[k] {
			if it.Pinned {
				out = append(out, it)
			}
		}
		ok(c, http.StatusOK, out)
	}
}

func (s *Server) getContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.indexContent(k, c.Param("id"))
		if i < 0 {
			fail(c, http.StatusNotFound, notFound(k))
			return
		}
		ok(c, http.StatusOK, s.content[k][i])
	}
}

func (s *Server) createContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, files, valid := readContentInput(c, k)
		if !valid {
			return
		}
		if strings.TrimSpace(in.Title) == "" {
			fail(c, http.StatusBadRequest, "Title is required",
				convert.FieldError{Field: "title", Message: "required"})
			return
		}
		if k != model.KindBlog && files[model.MediaField(k)] == "" {
			fail(c, http.StatusBadRequest, fmt.Sprintf("A %s file is required", model.MediaField(k)),
				convert.FieldError{Field: model.MediaField(k), Message: "required"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		now := s.now()
		it := model.ContentItem{ID: newID(), CreatedAt: now, UpdatedAt: now, Status: "draft"}
		applyInput(&it, in, files)
		s.content[k] = append(s.content[k], it)
		ok(c, http.StatusCreated, it)
	}
}

func (s *Server) updateContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, files, valid := readContentInput(c, k)
		if !valid {
			return
		}
		if in.Status != "" && !statuses[in.Status] {
			fail(c, http.StatusBadRequest, "Invalid status")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.indexContent(k, c.Param("id"))
		if i < 0 {
			fail(c, http.StatusNotFound, notFound(k))
			return
		}
		it := &s.content[k][i]
		applyInput(it, in, files)
		it.UpdatedAt = s.now()
		ok(c, http.StatusOK, *it)
	}
}

func (s *Server) deleteContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.indexContent(k, c.Param("id"))
		if i < 0 {
			fail(c, http.StatusNotFound, notFound(k))
			return
		}
		s.content[k] = append(s.content[k][:i], s.content[k][i+1:]...)
		ok(c, http.StatusOK, nil)
	}
}

func (s *Server) pinContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Pinned *bool `json:"isPinned"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Pinned == nil {
			fail(c, http.StatusBadRequest, "isPinned is required")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.indexContent(k, c.Param("id"))
		if i < 0 {
			fail(c, http.StatusNotFound, notFound(k))
			return
		}
		s.content[k][i].Pinned = *body.Pinned
		ok(c, http.StatusOK, s.content[k][i])
	}
}

func (s *Server) statusContent(k model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || !statuses[body.Status] {
			fail(c, http.StatusBadRequest, "Invalid status")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.indexContent(k, c.Param("id"))
		if i < 0 {
			fail(c, http.StatusNotFound, notFound(k))
			return
		}
		it := &s.content[k][i]
		it.Status = body.Status
		if body.Status == "published" && it.PublishedAt == nil {
			now := s.now()
			it.PublishedAt = &now
		}
		ok(c, http.StatusOK, *it)
	}
}

// indexContent requires s.mu.
func (s *Server) indexContent(k model.Kind, id string) int {
	for i, it := range s.content[k] {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func notFound(k model.Kind) string {
	name := string(k)
	return strings.ToUpper(name[:1]) + name[1:] + " not found"
}

// readContentInput accepts JSON or multipart. Uploaded files are not stored; each
// is assigned a CDN-style URL keyed by field name.
func readContentInput(c *gin.Context, k model.Kind) (model.ContentInput, map[string]string, bool) {
	var in model.ContentInput
	files := map[string]string{}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid multipart body")
			return in, nil, false
		}
		get := func(name string) string {
			if v := form.Value[name]; len(v) > 0 {
				return v[0]
			}
			return ""
		}
		in.Title, in.Description, in.Author, in.Status = get("title"), get("description"), get("author"), get("status")
		if t := get("tags"); t != "" {
			in.Tags = strings.Split(t, ",")
		}
		for field, fhs := range form.File {
			if len(fhs) > 0 {
				files[field] = fmt.Sprintf("https://cdn.local/%s/%s/%s", k.Resource(), newID(), filepath.Base(fhs[0].Filename))
			}
		}
		return in, files, true
	}
	var body struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Author      string   `json:"author"`
		Status      string   `json:"status"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return in, nil, false
	}
	in = model.ContentInput{Title: body.Title, Description: body.Description, Author: body.Author, Status: body.Status, Tags: body.Tags}
	return in, files, true
}

func applyInput(it *model.ContentItem, in model.ContentInput, files map[string]string) {
	if in.Title != "" {
		it.Title = in.Title
	}
	if in.Description != "" {
		it.Description = in.Description
	}
	if in.Author != "" {
		it.Author = in.Author
	}
	if in.Status != "" {
		it.Status = in.Status
	}
	if len(in.Tags) > 0 {
		it.Tags = in.Tags
	}
	for field, url := range files {
		switch field {
		case "coverImage":
			it.CoverImage = url
		case "video":
			it.VideoURL = url
		case "audio":
			it.AudioURL = url
		case "file":
			it.FileURL = url
		}
	}
}
