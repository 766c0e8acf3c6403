package testbackend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

func (s *Server) getSite(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, s.site)
}

func (s *Server) updateSite(c *gin.Context) {
	var in model.WebsiteContent
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in = model.WebsiteContent{
			HeroTitle:    c.PostForm("heroTitle"),
			HeroSubtitle: c.PostForm("heroSubtitle"),
			About:        c.PostForm("about"),
			ContactEmail: c.PostForm("contactEmail"),
			ContactPhone: c.PostForm("contactPhone"),
			Footer:       c.PostForm("footer"),
		}
		if fh, err := c.FormFile("heroImage"); err == nil {
			in.HeroImage = fmt.Sprintf("https://cdn.local/site/%s/%s", newID(), fh.Filename)
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if in.ContactEmail != "" && !strings.Contains(in.ContactEmail, "@") {
		fail(c, http.StatusBadRequest, "Contact email is invalid",
			convert.FieldError{Field: "contactEmail", Message: "invalid"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&s.site.HeroTitle, in.HeroTitle)
	merge(&s.site.HeroSubtitle, in.HeroSubtitle)
	merge(&s.site.HeroImage, in.HeroImage)
	merge(&s.site.About, in.About)
	merge(&s.site.ContactEmail, in.ContactEmail)
	merge(&s.site.ContactPhone, in.ContactPhone)
	merge(&s.site.Footer, in.Footer)
	ok(c, http.StatusOK, s.site)
}

func (s *Server) listSuggestions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.Suggestion{}, s.suggestions...)
	ok(c, http.StatusOK, out)
}

func (s *Server) addSuggestion(c *gin.Context) {
	var body struct {
		Text   string `json:"text"`
		Author string `json:"author"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		fail(c, http.StatusBadRequest, "Suggestion text is required",
			convert.FieldError{Field: "text", Message: "required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sg := model.Suggestion{ID: newID(), Text: body.Text, Author: body.Author}
	s.suggestions = append(s.suggestions, sg)
	ok(c, http.StatusCreated, sg)
}

func (s *Server) removeSuggestion(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sg := range s.suggestions {
		if sg.ID == c.Param("id") {
			s.suggestions = append(s.suggestions[:i], s.suggestions[i+1:]...)
			ok(c, http.StatusOK, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, "Suggestion not found")
}

func (s *Server) listSocial(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, append([]model.SocialLink{}, s.social...))
}

func bindSocial(c *gin.Context) (model.SocialLink, bool) {
	var l model.SocialLink
	if err := c.ShouldBindJSON(&l); err != nil || l.Platform == "" || l.URL == "" {
		fail(c, http.StatusBadRequest, "Platform and URL are required")
		return l, false
	}
	return l, true
}

func (s *Server) createSocial(c *gin.Context) {
	l, valid := bindSocial(c)
	if !valid {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.social {
		if strings.EqualFold(ex.Platform, l.Platform) {
			fail(c, http.StatusConflict, "A link for this platform already exists")
			return
		}
	}
	l.ID = newID()
	s.social = append(s.social, l)
	ok(c, http.StatusCreated, l)
}

func (s *Server) updateSocial(c *gin.Context) {
	l, valid := bindSocial(c)
	if !valid {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.social {
		if s.social[i].ID == c.Param("id") {
			s.social[i].Platform, s.social[i].URL = l.Platform, l.URL
			ok(c, http.StatusOK, s.social[i])
			return
		}
	}
	fail(c, http.StatusNotFound, "Social link not found")
}

func (s *Server) deleteSocial(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.social {
		if s.social[i].ID == c.Param("id") {
			s.social = append(s.social[:i], s.social[i+1:]...)
			ok(c, http.StatusOK, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, "Social link not found")
}

func (s *Server) listNotifications(c *gin.Context) {
	p, valid := pageParams(c)
	if !valid {
		return
	}
	s.mu.Lock()
	all := append([]model.Notification{}, s.notifications...)
	s.mu.Unlock()
	page, meta := paginate(all, p)
	okPage(c, page, meta)
}

func (s *Server) readNotification(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == c.Param("id") {
			s.notifications[i].Read = true
			ok(c, http.StatusOK, s.notifications[i])
			return
		}
	}
	fail(c, http.StatusNotFound, "Notification not found")
}

func (s *Server) readAllNotifications(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	ok(c, http.StatusOK, nil)
}

func (s *Server) deleteNotification(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == c.Param("id") {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			ok(c, http.StatusOK, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, "Notification not found")
}
