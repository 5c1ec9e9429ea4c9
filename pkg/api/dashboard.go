package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const recentScanWindow = 7 * 24 * time.Hour

// getDashboard summarizes the caller's collection for the home screen.
func (s *Server) getDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c).ID

	summary, err := s.store.SummarizeInventory(ctx, userID)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	recent, err := s.store.CountScansSince(ctx, userID, time.Now().Add(-recentScanWindow))
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	unread, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"total_cards":   summary.Cards,
		"total_value":   summary.Value.Round(2),
		"recent_scans":  recent,
		"unread_alerts": unread,
	})
}
