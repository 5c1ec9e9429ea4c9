package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cardvault/pkg/errors"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

type createWantRequest struct {
	CardName     string           `json:"card_name" binding:"required,max=200"`
	SetCode      string           `json:"set_code" binding:"max=20"`
	MinCondition string           `json:"min_condition"`
	MaxPrice     *decimal.Decimal `json:"max_price"`
}

func (s *Server) listWants(c *gin.Context) {
	wants, err := s.store.ListWants(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	if wants == nil {
		wants = []models.Want{}
	}
	respond(c, http.StatusOK, wants)
}

func (s *Server) createWant(c *gin.Context) {
	var req createWantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.log(c), bindError(err))
		return
	}

	want := &models.Want{
		UserID:   currentUser(c).ID,
		CardName: strings.TrimSpace(req.CardName),
	}
	if want.CardName == "" {
		respondError(c, s.log(c), errors.Validation("card_name is required"))
		return
	}
	if code := strings.ToUpper(strings.TrimSpace(req.SetCode)); code != "" {
		want.SetCode = &code
	}
	if req.MinCondition != "" {
		cond := models.Condition(req.MinCondition)
		if !cond.Valid() {
			respondError(c, s.log(c), errors.Validationf("unknown condition %q", req.MinCondition))
			return
		}
		want.MinCondition = &cond
	}
	if req.MaxPrice != nil {
		if req.MaxPrice.IsNegative() {
			respondError(c, s.log(c), errors.Validation("max_price must not be negative"))
			return
		}
		want.MaxPrice = decimal.NewNullDecimal(*req.MaxPrice)
	}

	if err := s.store.CreateWant(c.Request.Context(), want); err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusCreated, want)
}

func (s *Server) deleteWant(c *gin.Context) {
	id := c.Param("id")
	err := s.store.DeleteWant(c.Request.Context(), currentUser(c).ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, s.log(c), errors.NotFound("Want not found"))
		return
	}
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id})
}

type matchOwner struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	City          *string `json:"city"`
	StateProvince *string `json:"state_province"`
	Country       *string `json:"country"`
}

type matchView struct {
	WantID string      `json:"want_id"`
	Wanted models.Want `json:"wanted"`
	Owner  matchOwner  `json:"owner"`
	Have   entryView   `json:"have"`
}

// listMatches computes matches for the caller and records a notification
// for each new one.
func (s *Server) listMatches(c *gin.Context) {
	matches, created, err := s.notifications.MatchNotifications(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}

	views := make([]matchView, len(matches))
	for i, m := range matches {
		views[i] = matchView{
			WantID: m.Want.ID,
			Wanted: m.Want,
			Owner: matchOwner{
				ID:            m.Owner.ID,
				Username:      m.Owner.Username,
				City:          m.Owner.City,
				StateProvince: m.Owner.StateProvince,
				Country:       m.Owner.Country,
			},
			Have: s.publicEntry(m.Entry),
		}
	}
	respond(c, http.StatusOK, gin.H{
		"matches":               views,
		"notifications_created": created,
	})
}
