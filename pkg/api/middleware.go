package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/errors"
	"cardvault/pkg/logger"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"

	userContextKey = "user"
)

// requestLogger tags each request with an ID and logs its outcome
func requestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Header(headerRequestID, requestID)
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		log := logger.FromContext(ctx, base)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request failed", attrs...)
			return
		}
		log.Info("request completed", attrs...)
	}
}

func recovery(base *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context(), base).Error("handler panicked", "panic", recovered)
		respondError(c, base, errors.New("internal panic"))
	})
}

// requireUser resolves the X-User-ID header to a stored user
func (s *Server) requireUser(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(headerUserID))
	if id == "" {
		respondError(c, s.log(c), errors.Unauthorized("Missing "+headerUserID+" header"))
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, s.log(c), errors.Unauthorized("Unknown user"))
			return
		}
		respondError(c, s.log(c), err)
		return
	}

	c.Set(userContextKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userContextKey).(*models.User)
}

func (s *Server) log(c *gin.Context) *slog.Logger {
	return logger.FromContext(c.Request.Context(), s.logger)
}
