package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/errors"
	"cardvault/pkg/models"
	"cardvault/pkg/services/scan"
)

type scanResults struct {
	DetectedCards []models.DetectedCard `json:"detected_cards"`
	TotalCards    int                   `json:"total_cards"`
}

type scanView struct {
	ScanID      string            `json:"scan_id"`
	Status      models.ScanStatus `json:"status"`
	ScanType    models.ScanMode   `json:"scan_type"`
	ImageURL    string            `json:"image_url"`
	Results     *scanResults      `json:"results,omitempty"`
	Error       string            `json:"error,omitempty"`
	AutoSaved   *int              `json:"auto_saved,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}

func (s *Server) scanView(sc *models.Scan, cards []models.DetectedCard) scanView {
	v := scanView{
		ScanID:      sc.ID,
		Status:      sc.Status,
		ScanType:    sc.ScanType,
		ImageURL:    s.urls.PublicURL(sc.ImageURL),
		Error:       sc.Error,
		CreatedAt:   sc.CreatedAt,
		ProcessedAt: sc.ProcessedAt,
	}
	if sc.Status == models.ScanStatusCompleted {
		public := make([]models.DetectedCard, len(cards))
		for i, card := range cards {
			card.CropImagePath = s.urls.PublicURL(card.CropImagePath)
			public[i] = card
		}
		v.Results = &scanResults{DetectedCards: public, TotalCards: len(public)}
	}
	return v
}

func (s *Server) uploadScan(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, s.log(c), errors.Validation("image file is required"))
		return
	}
	f, err := file.Open()
	if err != nil {
		respondError(c, s.log(c), errors.Validation("image file is unreadable"))
		return
	}
	defer f.Close()

	out, err := s.scans.Process(c.Request.Context(), currentUser(c), scan.Upload{
		Filename: file.Filename,
		Body:     f,
		Mode:     models.ScanMode(c.PostForm("scan_type")),
	})
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}

	v := s.scanView(out.Scan, out.Cards)
	if out.Scan.Status == models.ScanStatusCompleted {
		v.AutoSaved = &out.AutoSaved
	}
	respond(c, http.StatusOK, v)
}

func (s *Server) getScan(c *gin.Context) {
	sc, cards, err := s.scans.Get(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}
	respond(c, http.StatusOK, s.scanView(sc, cards))
}

type saveCardsRequest struct {
	CardIDs []string `json:"card_ids" binding:"required,min=1,dive,required"`
}

func (s *Server) saveScanCards(c *gin.Context) {
	var req saveCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, s.log(c), bindError(err))
		return
	}

	res, err := s.scans.SaveSelected(c.Request.Context(), currentUser(c), c.Param("id"), req.CardIDs)
	if err != nil {
		respondError(c, s.log(c), err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"saved_count": res.Saved,
		"entries":     s.publicEntries(res.Entries),
	})
}
