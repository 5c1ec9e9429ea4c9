package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/errors"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

const notificationListLimit = 100

// listNotifications refreshes trend notifications before listing. A failed
// refresh does not fail the listing.
func (s *Server) listNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	if _, err := s.notifications.TrendNotifications(ctx, user); err != nil {
		s.log(c).Warn("trend notifications failed", "user_id", user.ID, "error", err)
	}

	items, err := s.store.ListNotifications(ctx, user.ID, notificationListLimit)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	respond(c, http.StatusOK, items)
}

func (s *Server) unreadCount(c *gin.Context) {
	n, err := s.store.CountUnreadNotifications(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusOK, gin.H{"count": n})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id := c.Param("id")
	err := s.store.MarkNotificationRead(c.Request.Context(), currentUser(c).ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, s.log(c), errors.NotFound("Notification not found"))
		return
	}
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "read": true})
}
