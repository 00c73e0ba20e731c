// Package signals derives market signals from stored samples: undervalued
// listings and ranked purchase recommendations. Both outputs are read-only
// views over current store state and are recomputable at any time.
package signals

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/logger"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/stats"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

// Recommendation gates and weights. Tuned against the historical scanner
// output; the priority floor keeps marginal candidates out of reports.
const (
	recommendPriceFactor = 0.85
	recommendMinDiscount = 15.0
	priorityFloor        = 30.0

	discountWeight   = 0.4
	stabilityWeight  = 0.3
	confidenceWeight = 0.3
)

// Config holds detection thresholds.
type Config struct {
	// ThresholdFactor is the fraction of the median below which a listing
	// counts as undervalued (default 0.7).
	ThresholdFactor float64
	// MinObservations restricts recommendations to items seen at least
	// this many times.
	MinObservations int
	// MaxResults caps both ranked outputs.
	MaxResults int
}

// Detector flags undervalued items and ranks purchase candidates.
type Detector struct {
	store  *storage.Storage
	engine *stats.Engine
	cfg    Config
}

// New creates a detector over the given store and statistics engine.
func New(store *storage.Storage, engine *stats.Engine, cfg Config) *Detector {
	return &Detector{store: store, engine: engine, cfg: cfg}
}

// Undervalued returns every stored listing priced strictly below
// median * ThresholdFactor for its item, ranked by discount percentage
// descending and capped at MaxResults.
func (d *Detector) Undervalued() ([]models.Finding, error) {
	items, err := d.store.DistinctItems(models.EventListing, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list item identities: %w", err)
	}

	var findings []models.Finding
	for _, item := range items {
		st, err := d.engine.ComputeItemStats(item)
		if err != nil {
			logger.Warn("Skipping %s: %v", item.Label(), err)
			continue
		}
		if st == nil || st.Median <= 0 {
			continue
		}
		threshold := st.Median * d.cfg.ThresholdFactor

		listings, err := d.store.ListingsBelow(item, threshold)
		if err != nil {
			logger.Warn("Skipping %s: %v", item.Label(), err)
			continue
		}
		for _, l := range listings {
			findings = append(findings, models.Finding{
				ID:          uuid.New().String(),
				Item:        item,
				TS:          l.TS,
				Price:       l.Price,
				Count:       l.Count,
				TimeLeft:    l.TimeLeft,
				SellerName:  l.SellerName,
				Median:      st.Median,
				Threshold:   threshold,
				DiscountPct: int(math.Round((1 - l.Price/st.Median) * 100)),
				Profit:      st.Median - l.Price,
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].DiscountPct > findings[j].DiscountPct
	})
	if len(findings) > d.cfg.MaxResults {
		findings = findings[:d.cfg.MaxResults]
	}
	return findings, nil
}

// Recommendations scores purchase candidates for items with enough
// observation history. A candidate must be priced below median*0.85 with
// a discount of at least 15%; surviving candidates are scored, anything
// below the priority floor is discarded, and the rest are ranked by
// priority descending and capped at MaxResults.
func (d *Detector) Recommendations() ([]models.Recommendation, error) {
	items, err := d.store.DistinctItems(models.EventListing, d.cfg.MinObservations)
	if err != nil {
		return nil, fmt.Errorf("failed to list item identities: %w", err)
	}

	var recs []models.Recommendation
	for _, item := range items {
		st, err := d.engine.ComputeItemStats(item)
		if err != nil {
			logger.Warn("Skipping %s: %v", item.Label(), err)
			continue
		}
		if st == nil || st.Median <= 0 || st.SampleSize < d.cfg.MinObservations {
			continue
		}

		candidates, err := d.store.ListingsBelow(item, st.Median*recommendPriceFactor)
		if err != nil {
			logger.Warn("Skipping %s: %v", item.Label(), err)
			continue
		}
		for _, l := range candidates {
			discount := (1 - l.Price/st.Median) * 100
			if discount < recommendMinDiscount {
				continue
			}

			discountScore := math.Min(100, discount*1.5)
			stabilityScore := math.Max(0, 100-st.Volatility)
			confidenceScore := math.Min(100, float64(st.SampleSize))
			priority := discountWeight*discountScore +
				stabilityWeight*stabilityScore +
				confidenceWeight*confidenceScore
			if priority < priorityFloor {
				continue
			}

			recs = append(recs, models.Recommendation{
				ID:              uuid.New().String(),
				Item:            item,
				TS:              l.TS,
				Price:           l.Price,
				SellerName:      l.SellerName,
				Median:          st.Median,
				DiscountPct:     discount,
				Profit:          st.Median - l.Price,
				Volatility:      st.Volatility,
				SampleSize:      st.SampleSize,
				DiscountScore:   discountScore,
				StabilityScore:  stabilityScore,
				ConfidenceScore: confidenceScore,
				Priority:        priority,
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})
	if len(recs) > d.cfg.MaxResults {
		recs = recs[:d.cfg.MaxResults]
	}
	return recs, nil
}
