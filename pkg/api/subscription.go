package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/errors"
	"cardvault/pkg/repository"
)

func (s *Server) getSubscription(c *gin.Context) {
	user := currentUser(c)
	count, err := s.store.CountInventory(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	tier := s.tiers.Resolve(user.SubscriptionTier)
	respond(c, http.StatusOK, gin.H{
		"tier":          tier.Key,
		"name":          tier.Name,
		"max_cards":     tier.MaxCards,
		"current_cards": count,
		"price":         tier.Price,
		"price_period":  tier.PricePeriod,
	})
}

func (s *Server) listTiers(c *gin.Context) {
	respond(c, http.StatusOK, s.tiers.All())
}

type upgradeRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// upgradeSubscription switches the plan directly. Billing happens upstream.
func (s *Server) upgradeSubscription(c *gin.Context) {
	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.log(c), bindError(err))
		return
	}
	tier, ok := s.tiers.Lookup(req.Tier)
	if !ok {
		respondError(c, s.log(c), errors.Validationf("unknown tier %q", req.Tier))
		return
	}

	user, err := s.store.UpdateUser(c.Request.Context(), currentUser(c).ID, repository.UserUpdate{
		SubscriptionTier: &tier.Key,
	})
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	s.log(c).Info("subscription changed", "user_id", user.ID, "tier", tier.Key)
	respond(c, http.StatusOK, gin.H{
		"tier":      tier.Key,
		"max_cards": tier.MaxCards,
	})
}
