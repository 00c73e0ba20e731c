package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/signals"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/stats"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *storage.Storage) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := stats.New(store, 200)
	detector := signals.New(store, engine, signals.Config{
		ThresholdFactor: 0.7,
		MinObservations: 5,
		MaxResults:      200,
	})
	return New(store, engine, detector), store
}

func itemKey(id, name string) models.ItemKey {
	return models.ItemKey{ID: &id, Name: &name}
}

func seedListings(t *testing.T, store *storage.Storage, item models.ItemKey, at time.Time, prices ...float64) {
	t.Helper()
	entries := make([]models.ListingEntry, 0, len(prices))
	for i := range prices {
		entries = append(entries, models.ListingEntry{Item: item, Price: &prices[i]})
	}
	if _, err := store.AppendListingBatch(entries, at); err != nil {
		t.Fatalf("failed to seed listings: %v", err)
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doGet(t *testing.T, r *gin.Engine, path string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response to %s is not valid JSON: %v (body %q)", path, err, w.Body.String())
	}
	return w.Code, env
}

func TestStatsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	stone := itemKey("stone", "Stone")
	seedListings(t, store, stone, time.Now(), 10, 20)

	code, env := doGet(t, srv.Router(), "/api/stats")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("got %d/%q, want 200/ok", code, env.Status)
	}

	var totals models.StoreTotals
	if err := json.Unmarshal(env.Data, &totals); err != nil {
		t.Fatalf("failed to decode totals: %v", err)
	}
	if totals.TotalEvents != 2 || totals.TotalListings != 2 || totals.UniqueItems != 1 {
		t.Errorf("totals = %+v, want 2 events, 2 listings, 1 unique item", totals)
	}
}

func TestLiveEndpointFiltersByWindow(t *testing.T) {
	srv, store := newTestServer(t)
	stone := itemKey("stone", "Stone")
	seedListings(t, store, stone, time.Now(), 10)
	seedListings(t, store, stone, time.Now().Add(-10*time.Minute), 20)

	code, env := doGet(t, srv.Router(), "/api/live")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("got %d/%q, want 200/ok", code, env.Status)
	}

	var listings []models.LiveListing
	if err := json.Unmarshal(env.Data, &listings); err != nil {
		t.Fatalf("failed to decode listings: %v", err)
	}
	if len(listings) != 1 || listings[0].Price != 10 {
		t.Errorf("live listings = %+v, want only the recent price-10 row", listings)
	}
}

func TestUndervaluedEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	stone := itemKey("stone", "Stone")
	seedListings(t, store, stone, time.Now(), 10, 10, 10, 10, 3)

	code, env := doGet(t, srv.Router(), "/api/undervalued")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("got %d/%q, want 200/ok", code, env.Status)
	}

	var findings []models.Finding
	if err := json.Unmarshal(env.Data, &findings); err != nil {
		t.Fatalf("failed to decode findings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].Price != 3 || findings[0].Median != 10 {
		t.Errorf("finding = %+v, want price 3 against median 10", findings[0])
	}
}

func TestRecommendationsEndpointEmptyStore(t *testing.T) {
	srv, _ := newTestServer(t)

	code, env := doGet(t, srv.Router(), "/api/recommendations")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("got %d/%q, want 200/ok", code, env.Status)
	}
	// Empty data must serialize as [], not null.
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestTrendEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	stone := itemKey("stone", "Stone")
	seedListings(t, store, stone, time.Now(), 10, 20, 30)
	rollup := models.DailyRollup{
		Date: "2024-03-01", Item: stone, Median: 15, P25: 10, P75: 20, Count: 4,
	}
	if err := store.UpsertDailyRollup(rollup); err != nil {
		t.Fatalf("failed to seed rollup: %v", err)
	}

	code, env := doGet(t, srv.Router(), "/api/trend/stone")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("got %d/%q, want 200/ok", code, env.Status)
	}

	var body struct {
		ItemID  string               `json:"item_id"`
		Daily   []models.DailyRollup `json:"daily"`
		Current *models.ItemStats    `json:"current"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("failed to decode trend payload: %v", err)
	}
	if body.ItemID != "stone" || len(body.Daily) != 1 || body.Daily[0].Median != 15 {
		t.Errorf("trend payload = %+v, want one rollup with median 15", body)
	}
	if body.Current == nil || body.Current.Median != 20 {
		t.Errorf("current stats = %+v, want live median 20", body.Current)
	}
}

func TestTrendEndpointUnknownItem(t *testing.T) {
	srv, _ := newTestServer(t)

	code, env := doGet(t, srv.Router(), "/api/trend/never_listed")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("got %d/%q, want 200/ok", code, env.Status)
	}

	var body struct {
		Daily   []models.DailyRollup `json:"daily"`
		Current *models.ItemStats    `json:"current"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("failed to decode trend payload: %v", err)
	}
	if len(body.Daily) != 0 || body.Current != nil {
		t.Errorf("unknown item should yield empty trend, got %+v", body)
	}
}
