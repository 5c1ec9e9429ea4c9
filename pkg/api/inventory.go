package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/errors"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

// Limit 0 or absent returns the whole inventory on one page.
type inventoryQuery struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	Limit     int    `form:"limit" binding:"min=0"`
	Search    string `form:"search" binding:"max=200"`
	SortBy    string `form:"sort_by,default=scanned_at" binding:"oneof=scanned_at value"`
	SortOrder string `form:"sort_order,default=desc" binding:"oneof=asc desc"`
}

// entryView is an inventory entry with URLs in place of stored paths.
// ImageURL is the crop when there is one, else the scan it came from.
type entryView struct {
	models.InventoryEntry
	ImageURL string `json:"image_url"`
}

func (s *Server) publicEntry(e models.InventoryEntry) entryView {
	display := s.urls.PublicURL(e.DisplayImage())
	e.ScanImageURL = s.urls.PublicURL(e.ScanImageURL)
	if e.CardImageURL != nil {
		u := s.urls.PublicURL(*e.CardImageURL)
		e.CardImageURL = &u
	}
	return entryView{InventoryEntry: e, ImageURL: display}
}

func (s *Server) publicEntries(entries []models.InventoryEntry) []entryView {
	out := make([]entryView, len(entries))
	for i, e := range entries {
		out[i] = s.publicEntry(e)
	}
	return out
}

func (s *Server) listInventory(c *gin.Context) {
	var q inventoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, s.log(c), bindError(err))
		return
	}

	page, err := s.store.ListInventory(c.Request.Context(), currentUser(c).ID, repository.InventoryQuery{
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		Limit:     q.Limit,
	})
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}

	limit, pages := q.Limit, int64(0)
	if limit == 0 {
		limit = int(page.Total)
		if page.Total > 0 {
			pages = 1
		}
	} else {
		pages = (page.Total + int64(limit) - 1) / int64(limit)
	}
	respond(c, http.StatusOK, gin.H{
		"items":       s.publicEntries(page.Items),
		"total":       page.Total,
		"page":        q.Page,
		"limit":       limit,
		"total_pages": pages,
	})
}

func (s *Server) deleteInventoryEntry(c *gin.Context) {
	id := c.Param("id")
	err := s.store.DeleteInventoryEntry(c.Request.Context(), currentUser(c).ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, s.log(c), errors.NotFound("Inventory entry not found"))
		return
	}
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id})
}
