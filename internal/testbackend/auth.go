package testbackend

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	pkgcrypto "github.com/and161185/mediadesk/internal/crypto"
	"github.com/and161185/mediadesk/internal/model"
)

func (s *Server) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" || body.Password == "" {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}
	s.mu.Lock()
	admin, hash := s.admin, s.pwdHash
	s.mu.Unlock()

	match, err := pkgcrypto.VerifyPassword(body.Password, hash)
	// the same message for unknown email and wrong password
	if err != nil || !match || !strings.EqualFold(body.Email, admin.Email) {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	tok, err := s.issueAccessToken(admin.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	ok(c, http.StatusOK, model.Session{Token: tok, User: admin})
}

func (s *Server) logout(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	s.revoked[raw] = true
	s.mu.Unlock()
	ok(c, http.StatusOK, nil)
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	admin := s.admin
	s.mu.Unlock()
	ok(c, http.StatusOK, admin)
}

func (s *Server) changePassword(c *gin.Context) {
	var body struct {
		Current string `json:"currentPassword"`
		New     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Current == "" || body.New == "" {
		fail(c, http.StatusBadRequest, "Current and new password are required")
		return
	}
	s.mu.Lock()
	hash := s.pwdHash
	s.mu.Unlock()
	if match, err := pkgcrypto.VerifyPassword(body.Current, hash); err != nil || !match {
		fail(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	next, err := pkgcrypto.HashPassword(body.New)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not update password")
		return
	}
	s.mu.Lock()
	s.pwdHash = next
	s.mu.Unlock()
	ok(c, http.StatusOK, nil)
}
