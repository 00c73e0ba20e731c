// Package api is the read-only reporting surface over the scan database.
// It never writes; the scanner process owns all mutations.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/signals"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/stats"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

const (
	liveWindow = 5 * time.Minute
	liveLimit  = 100
)

// Server serves the reporting endpoints.
type Server struct {
	store    *storage.Storage
	engine   *stats.Engine
	detector *signals.Detector
	now      func() time.Time
}

// New creates a reporting server over the given store and detector.
func New(store *storage.Storage, engine *stats.Engine, detector *signals.Detector) *Server {
	return &Server{
		store:    store,
		engine:   engine,
		detector: detector,
		now:      time.Now,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	api.GET("/live", s.live)
	api.GET("/undervalued", s.undervalued)
	api.GET("/recommendations", s.recommendations)
	api.GET("/trend/:item_id", s.trend)
	api.GET("/stats", s.stats)

	return r
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": data})
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// live returns listings observed in the last five minutes, newest first.
func (s *Server) live(c *gin.Context) {
	since := s.now().Add(-liveWindow).UnixMilli()
	listings, err := s.store.RecentListings(since, liveLimit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if listings == nil {
		listings = []models.LiveListing{}
	}
	ok(c, listings)
}

func (s *Server) undervalued(c *gin.Context) {
	findings, err := s.detector.Undervalued()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	ok(c, findings)
}

func (s *Server) recommendations(c *gin.Context) {
	recs, err := s.detector.Recommendations()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}
	ok(c, recs)
}

// trend returns the daily rollup history plus the current live statistics
// for one item id.
func (s *Server) trend(c *gin.Context) {
	itemID := c.Param("item_id")
	if itemID == "" {
		fail(c, http.StatusBadRequest, "item_id is required")
		return
	}

	rollups, err := s.store.RollupTrend(&itemID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if rollups == nil {
		rollups = []models.DailyRollup{}
	}

	// The path carries only the id; recover the full stored identity (the
	// display name participates in item matching) before computing stats.
	var current *models.ItemStats
	items, err := s.store.DistinctItems(models.EventListing, 0)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	for _, item := range items {
		if item.ID != nil && *item.ID == itemID {
			current, err = s.engine.ComputeItemStats(item)
			if err != nil {
				fail(c, http.StatusInternalServerError, err.Error())
				return
			}
			break
		}
	}

	ok(c, gin.H{
		"item_id": itemID,
		"daily":   rollups,
		"current": current, // null below the minimum sample count
	})
}

func (s *Server) stats(c *gin.Context) {
	totals, err := s.store.Totals()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, totals)
}
