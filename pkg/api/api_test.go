package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault/pkg/database/memory"
	"cardvault/pkg/logger"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
	"cardvault/pkg/services/cropper"
	"cardvault/pkg/services/detection"
	"cardvault/pkg/services/inventory"
	"cardvault/pkg/services/marketplace"
	"cardvault/pkg/services/notification"
	"cardvault/pkg/services/scan"
	"cardvault/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDetector struct {
	raw string
	err error
}

func (d *stubDetector) Detect(context.Context, string, models.ScanMode) (string, error) {
	return d.raw, d.err
}

type apiFixture struct {
	server   *Server
	store    *memory.Store
	detector *stubDetector
	user     *models.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := logger.Discard()
	store := memory.New()
	uploads, err := storage.New(t.TempDir())
	require.NoError(t, err)

	tiers := models.NewTierTable(
		models.Tier{Key: models.TierFree, Name: "Free", MaxCards: 3, MaxTrendInsights: 2},
		models.Tier{Key: models.TierPro, Name: "Pro", MaxCards: 1000, MaxTrendInsights: 20},
	)
	crops := cropper.New(uploads, 4, log)
	inv := inventory.NewService(store, tiers, crops, log)
	det := &stubDetector{}
	scans := scan.NewService(store, uploads, det, detection.NewNormalizer(log), crops, inv, log)
	gen := notification.NewGenerator(
		notification.NewDeduper(store, log),
		marketplace.NewMatcher(store, log),
		store, tiers, log,
	)

	user := &models.User{Email: "ash@example.com", Username: "ash", NotificationInApp: true}
	require.NoError(t, store.CreateUser(context.Background(), user))

	srv := NewServer(Deps{
		Store:         store,
		Scans:         scans,
		Notifications: gen,
		URLs:          uploads,
		Tiers:         tiers,
		Logger:        log,
	})
	return &apiFixture{server: srv, store: store, detector: det, user: user}
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, f.user.ID)
	return f.serve(t, req)
}

func (f *apiFixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var env testEnvelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (f *apiFixture) upload(t *testing.T, mode string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "binder.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, w.WriteField("scan_type", mode))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(headerUserID, f.user.ID)
	return f.serve(t, req)
}

func (f *apiFixture) seedEntries(t *testing.T, owner string, names ...string) {
	t.Helper()
	err := f.store.InTx(context.Background(), func(tx repository.Tx) error {
		entries := make([]models.InventoryEntry, len(names))
		for i, name := range names {
			entries[i] = models.InventoryEntry{
				ID:           fmt.Sprintf("%s-%d", owner, i),
				UserID:       owner,
				CardName:     name,
				SetCode:      "LEA",
				Quantity:     1,
				Condition:    models.ConditionNearMint,
				CurrentValue: decimal.NewNullDecimal(decimal.NewFromInt(int64(10 * (i + 1)))),
				ScanImageURL: "/tmp/scan.jpg",
				ScannedAt:    time.Now().Add(time.Duration(i) * time.Minute),
				CreatedAt:    time.Now(),
			}
		}
		return tx.CreateInventoryEntries(context.Background(), entries)
	})
	require.NoError(t, err)
}

const multiPayload = `{"success": true, "detected_cards": [
	{"name": "Island", "set_code": "M10", "bounding_box": {"x": 0, "y": 0, "width": 0.5, "height": 1}},
	{"name": "Swamp", "set_code": "M10", "bounding_box": {"x": 0.5, "y": 0, "width": 0.5, "height": 1}}
]}`

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRequireUser(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	rec, env := f.serve(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.False(t, env.Success)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set(headerUserID, "nobody")
	rec, env = f.serve(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unknown user", env.Error.Message)
}

func TestRequestIDEchoed(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestCreateUser(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"email": "Misty@Example.com", "username": "misty",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "misty@example.com", user.Email)
	assert.Equal(t, models.TierFree, user.SubscriptionTier)

	rec, env = f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"email": "misty@example.com", "username": "misty",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", string(env.Error.Code))

	rec, env = f.do(t, http.MethodPost, "/api/v1/users", map[string]string{
		"email": "not-an-email", "username": "brock",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "email", details["Email"])
}

func TestUpdateSettings(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPatch, "/api/v1/settings", map[string]any{
		"marketplace_enabled": true,
		"city":                "Pallet",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.True(t, user.MarketplaceEnabled)
	assert.True(t, user.NotificationInApp, "untouched fields keep their value")
	require.NotNil(t, user.City)
	assert.Equal(t, "Pallet", *user.City)

	stored, err := f.store.GetUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.True(t, stored.MarketplaceEnabled)
}

func TestUpdateSettings_TrimsLocation(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPatch, "/api/v1/settings", map[string]any{
		"city":           "  Pallet Town ",
		"state_province": "\tKanto",
		"country":        " JP\n",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.NotNil(t, user.City)
	assert.Equal(t, "Pallet Town", *user.City)
	require.NotNil(t, user.StateProvince)
	assert.Equal(t, "Kanto", *user.StateProvince)
	require.NotNil(t, user.Country)
	assert.Equal(t, "JP", *user.Country)

	rec, env = f.do(t, http.MethodPatch, "/api/v1/settings", map[string]any{"city": "   "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Nil(t, user.City, "a blank city clears the field")
	require.NotNil(t, user.Country)
	assert.Equal(t, "JP", *user.Country)
}

func TestUploadScan_MultiAutoSaves(t *testing.T) {
	f := newAPIFixture(t)
	f.detector.raw = multiPayload

	rec, env := f.upload(t, "multi")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view scanView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.ScanStatusCompleted, view.Status)
	assert.True(t, strings.HasPrefix(view.ImageURL, "/uploads/"), view.ImageURL)
	require.NotNil(t, view.Results)
	assert.Equal(t, 2, view.Results.TotalCards)
	assert.Equal(t, "Island", view.Results.DetectedCards[0].Name)
	for _, card := range view.Results.DetectedCards {
		assert.True(t, strings.HasPrefix(card.CropImagePath, "/uploads/"), card.CropImagePath)
	}
	require.NotNil(t, view.AutoSaved)
	assert.Equal(t, 2, *view.AutoSaved)

	count, err := f.store.CountInventory(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	rec, env = f.do(t, http.MethodGet, "/api/v1/scans/"+view.ScanID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched scanView
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, view.ScanID, fetched.ScanID)
	assert.Equal(t, 2, fetched.Results.TotalCards)
	assert.Nil(t, fetched.AutoSaved)
}

func TestUploadScan_DetectorFailureIsReported(t *testing.T) {
	f := newAPIFixture(t)
	f.detector.err = context.DeadlineExceeded

	rec, env := f.upload(t, "single")
	require.Equal(t, http.StatusOK, rec.Code)
	var view scanView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.ScanStatusFailed, view.Status)
	assert.NotEmpty(t, view.Error)
	assert.Nil(t, view.Results)
}

func TestUploadScan_Validation(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.upload(t, "binder")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans/upload", strings.NewReader(""))
	req.Header.Set(headerUserID, f.user.ID)
	rec, env := f.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "image file is required", env.Error.Message)
}

func TestGetScan_NotFound(t *testing.T) {
	f := newAPIFixture(t)
	rec, env := f.do(t, http.MethodGet, "/api/v1/scans/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Scan not found", env.Error.Message)
}

func TestSaveScanCards_QuotaRejected(t *testing.T) {
	f := newAPIFixture(t)
	f.detector.raw = multiPayload

	_, env := f.upload(t, "multi")
	var view scanView
	require.NoError(t, json.Unmarshal(env.Data, &view))

	// two already auto-saved; the free ceiling here is 3
	ids := []string{view.Results.DetectedCards[0].ID, view.Results.DetectedCards[1].ID}
	rec, env := f.do(t, http.MethodPost, "/api/v1/scans/"+view.ScanID+"/save", map[string]any{"card_ids": ids})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", string(env.Error.Code))
	assert.Contains(t, env.Error.Message, "Card limit reached")

	rec, env = f.do(t, http.MethodPost, "/api/v1/scans/"+view.ScanID+"/save", map[string]any{"card_ids": ids[:1]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved struct {
		SavedCount int         `json:"saved_count"`
		Entries    []entryView `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, 1, saved.SavedCount)
	require.Len(t, saved.Entries, 1)
	assert.Equal(t, "Island", saved.Entries[0].CardName)
	require.NotNil(t, saved.Entries[0].CardImageURL)
	assert.Equal(t, *saved.Entries[0].CardImageURL, saved.Entries[0].ImageURL, "the crop is preferred")
	assert.True(t, strings.HasPrefix(saved.Entries[0].ImageURL, "/uploads/cropped/"), saved.Entries[0].ImageURL)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/scans/"+view.ScanID+"/save", map[string]any{"card_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInventory(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEntries(t, f.user.ID, "Black Lotus", "Mox Pearl", "Time Walk")

	rec, env := f.do(t, http.MethodGet, "/api/v1/inventory?limit=2&sort_by=value&sort_order=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	type inventoryPage struct {
		Items      []entryView `json:"items"`
		Total      int64       `json:"total"`
		Page       int         `json:"page"`
		Limit      int         `json:"limit"`
		TotalPages int64       `json:"total_pages"`
	}
	var page inventoryPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.EqualValues(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Time Walk", page.Items[0].CardName)
	assert.Equal(t, "/uploads/scan.jpg", page.Items[0].ScanImageURL)
	assert.Equal(t, "/uploads/scan.jpg", page.Items[0].ImageURL, "falls back to the scan image without a crop")

	t.Run("no limit returns everything", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/inventory", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var all inventoryPage
		require.NoError(t, json.Unmarshal(env.Data, &all))
		assert.Len(t, all.Items, 3)
		assert.Equal(t, 3, all.Limit)
		assert.EqualValues(t, 1, all.TotalPages)

		rec, env = f.do(t, http.MethodGet, "/api/v1/inventory?limit=500", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, &all))
		assert.Len(t, all.Items, 3)
		assert.EqualValues(t, 1, all.TotalPages)
	})

	t.Run("empty inventory has no pages", func(t *testing.T) {
		other := newAPIFixture(t)
		rec, env := other.do(t, http.MethodGet, "/api/v1/inventory", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var empty inventoryPage
		require.NoError(t, json.Unmarshal(env.Data, &empty))
		assert.Empty(t, empty.Items)
		assert.Equal(t, 0, empty.Limit)
		assert.EqualValues(t, 0, empty.TotalPages)
	})

	rec, _ = f.do(t, http.MethodGet, "/api/v1/inventory?sort_by=name", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/v1/inventory?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInventory_ImageURLPrefersCrop(t *testing.T) {
	f := newAPIFixture(t)
	crop := "/tmp/cropped/bolt.jpg"
	err := f.store.InTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateInventoryEntries(context.Background(), []models.InventoryEntry{{
			ID:           "cropped-bolt",
			UserID:       f.user.ID,
			CardName:     "Lightning Bolt",
			Quantity:     1,
			ScanImageURL: "/tmp/scan.jpg",
			CardImageURL: &crop,
			ScannedAt:    time.Now(),
		}})
	})
	require.NoError(t, err)

	rec, env := f.do(t, http.MethodGet, "/api/v1/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Items []entryView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "/uploads/bolt.jpg", page.Items[0].ImageURL)
	assert.Equal(t, "/uploads/scan.jpg", page.Items[0].ScanImageURL)
}

func TestDeleteInventoryEntry(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEntries(t, f.user.ID, "Sol Ring")

	rec, _ := f.do(t, http.MethodDelete, "/api/v1/inventory/"+f.user.ID+"-0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodDelete, "/api/v1/inventory/"+f.user.ID+"-0", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Inventory entry not found", env.Error.Message)
}

func TestWants(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/marketplace/wants", map[string]any{
		"card_name":     "  Lightning Bolt ",
		"set_code":      " lea ",
		"min_condition": "Lightly Played",
		"max_price":     "12.50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var want models.Want
	require.NoError(t, json.Unmarshal(env.Data, &want))
	assert.Equal(t, "Lightning Bolt", want.CardName)
	require.NotNil(t, want.SetCode)
	assert.Equal(t, "LEA", *want.SetCode)
	assert.True(t, want.MaxPrice.Valid)
	assert.True(t, want.MaxPrice.Decimal.Equal(decimal.RequireFromString("12.5")))

	rec, _ = f.do(t, http.MethodPost, "/api/v1/marketplace/wants", map[string]any{
		"card_name": "Bolt", "min_condition": "Pristine",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/marketplace/wants", map[string]any{"card_name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/api/v1/marketplace/wants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wants []models.Want
	require.NoError(t, json.Unmarshal(env.Data, &wants))
	require.Len(t, wants, 1)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/marketplace/wants/"+want.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/api/v1/marketplace/wants/"+want.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchesCreateNotificationsOnce(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	seller := &models.User{Email: "gary@example.com", Username: "gary", MarketplaceEnabled: true}
	require.NoError(t, f.store.CreateUser(ctx, seller))
	f.seedEntries(t, seller.ID, "Lightning Bolt")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/marketplace/wants", map[string]any{"card_name": "lightning"})
	require.Equal(t, http.StatusCreated, rec.Code)

	type matchesBody struct {
		Matches []matchView `json:"matches"`
		Created int         `json:"notifications_created"`
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/marketplace/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body matchesBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "gary", body.Matches[0].Owner.Username)
	assert.Equal(t, "Lightning Bolt", body.Matches[0].Have.CardName)
	assert.Equal(t, "/uploads/scan.jpg", body.Matches[0].Have.ImageURL)
	assert.Equal(t, 1, body.Created)

	_, env = f.do(t, http.MethodGet, "/api/v1/marketplace/matches", nil)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Matches, 1)
	assert.Equal(t, 0, body.Created)

	_, env = f.do(t, http.MethodGet, "/api/v1/notifications/unread-count", nil)
	var unread struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unread))
	assert.EqualValues(t, 1, unread.Count)
}

func TestNotifications(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEntries(t, f.user.ID, "Tarmogoyf", "Snapcaster Mage", "Dark Confidant")

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var items []models.Notification
	require.NoError(t, json.Unmarshal(env.Data, &items))
	// free tier here allows two trend insights
	require.Len(t, items, 2)
	for _, n := range items {
		assert.Equal(t, models.NotificationTrend, n.Type)
		assert.False(t, n.Read)
	}

	_, env = f.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2, "listing again does not duplicate trends")

	rec, _ = f.do(t, http.MethodPost, "/api/v1/notifications/"+items[0].ID+"/read", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, env = f.do(t, http.MethodGet, "/api/v1/notifications/unread-count", nil)
	var unread struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unread))
	assert.EqualValues(t, 1, unread.Count)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/notifications/missing/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscription(t *testing.T) {
	f := newAPIFixture(t)
	f.seedEntries(t, f.user.ID, "Counterspell")

	rec, env := f.do(t, http.MethodGet, "/api/v1/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub struct {
		Tier         string `json:"tier"`
		MaxCards     int    `json:"max_cards"`
		CurrentCards int64  `json:"current_cards"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Equal(t, 3, sub.MaxCards)
	assert.EqualValues(t, 1, sub.CurrentCards)

	rec, env = f.do(t, http.MethodGet, "/api/v1/subscription/tiers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tiers []models.Tier
	require.NoError(t, json.Unmarshal(env.Data, &tiers))
	require.Len(t, tiers, 2)
	assert.Equal(t, models.TierFree, tiers[0].Key)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/subscription/upgrade", map[string]string{"tier": "platinum"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/subscription/upgrade", map[string]string{"tier": models.TierPro})
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := f.store.GetUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, stored.SubscriptionTier)
}

func TestDashboard(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	rec, env := f.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	type dashboard struct {
		TotalCards   int64           `json:"total_cards"`
		TotalValue   decimal.Decimal `json:"total_value"`
		RecentScans  int64           `json:"recent_scans"`
		UnreadAlerts int64           `json:"unread_alerts"`
	}
	var empty dashboard
	require.NoError(t, json.Unmarshal(env.Data, &empty))
	assert.Zero(t, empty.TotalCards)
	assert.True(t, empty.TotalValue.IsZero())

	f.seedEntries(t, f.user.ID, "Tarmogoyf", "Snapcaster Mage")
	require.NoError(t, f.store.CreateScan(ctx, &models.Scan{UserID: f.user.ID, CreatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, f.store.CreateScan(ctx, &models.Scan{UserID: f.user.ID, CreatedAt: time.Now().Add(-8 * 24 * time.Hour)}))
	_, err := f.store.CreateNotificationIfAbsent(ctx, &models.Notification{
		UserID:  f.user.ID,
		Type:    models.NotificationTrend,
		Title:   "Tarmogoyf is trending",
		Message: "Prices are up",
	})
	require.NoError(t, err)

	rec, env = f.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got dashboard
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.EqualValues(t, 2, got.TotalCards)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(30)), got.TotalValue.String())
	assert.EqualValues(t, 1, got.RecentScans, "scans older than a week are not recent")
	assert.EqualValues(t, 1, got.UnreadAlerts)
}
