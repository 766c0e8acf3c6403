package testbackend

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/convert"
	"github.com/and161185/mediadesk/internal/model"
)

const ctxUserID = "userID"

func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// metadata only, never bodies
		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", c.ClientIP()),
		)
	}
}

func recoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				fail(c, http.StatusInternalServerError, "Internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// authMiddleware accepts "Bearer <jwt>" signed with the server key and not revoked.
func (s *Server) authMiddleware(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		fail(c, http.StatusUnauthorized, "Authentication required")
		c.Abort()
		return
	}
	sub, err := s.verify(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		fail(c, http.StatusUnauthorized, err.Error())
		c.Abort()
		return
	}
	c.Set(ctxUserID, sub)
	c.Next()
}

// verify checks signature, expiry and revocation and returns the subject.
func (s *Server) verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.New("Invalid or expired token")
	}
	s.mu.Lock()
	revoked := s.revoked[raw]
	s.mu.Unlock()
	if revoked {
		return "", errors.New("Session has ended")
	}
	return claims.Subject, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *Server) issueAccessToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		ID:        newID(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func ok(c *gin.Context, status int, data any) {
	raw, err := jsonRaw(data)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(status, convert.Envelope{Success: true, Data: raw})
}

func okPage[T any](c *gin.Context, items []T, meta model.Meta) {
	raw, err := jsonRaw(items)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, convert.Envelope{Success: true, Data: raw, Meta: &meta})
}

func fail(c *gin.Context, status int, msg string, fields ...convert.FieldError) {
	c.JSON(status, convert.Envelope{Success: false, Message: msg, Errors: fields})
}
