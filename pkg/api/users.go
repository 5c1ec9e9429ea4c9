package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.log(c), bindError(err))
		return
	}

	user := &models.User{
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Username:          strings.TrimSpace(req.Username),
		NotificationInApp: true,
		SubscriptionTier:  models.TierFree,
	}
	if err := s.store.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, s.log(c), err)
		return
	}

	s.log(c).Info("user created", "user_id", user.ID)
	respond(c, http.StatusCreated, user)
}

func (s *Server) getSettings(c *gin.Context) {
	respond(c, http.StatusOK, currentUser(c))
}

type settingsRequest struct {
	InventoryPublic    *bool   `json:"inventory_public"`
	MarketplaceEnabled *bool   `json:"marketplace_enabled"`
	NotificationInApp  *bool   `json:"notification_in_app"`
	City               *string `json:"city" binding:"omitempty,max=100"`
	StateProvince      *string `json:"state_province" binding:"omitempty,max=100"`
	Country            *string `json:"country" binding:"omitempty,max=100"`
}

func (s *Server) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.log(c), bindError(err))
		return
	}

	user, err := s.store.UpdateUser(c.Request.Context(), currentUser(c).ID, repository.UserUpdate{
		InventoryPublic:    req.InventoryPublic,
		MarketplaceEnabled: req.MarketplaceEnabled,
		NotificationInApp:  req.NotificationInApp,
		City:               trimmed(req.City),
		StateProvince:      trimmed(req.StateProvince),
		Country:            trimmed(req.Country),
	})
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusOK, user)
}

// trimmed strips surrounding space; a blank value becomes "" so the column is cleared
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
