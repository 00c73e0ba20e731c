// Package compactor rolls raw listing events older than the retention
// window into daily per-item summaries, then evicts the raw rows.
package compactor

import (
	"fmt"
	"sort"
	"time"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/logger"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/stats"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Compactor performs the rollup-then-delete retention pass.
type Compactor struct {
	store *storage.Storage
	now   func() time.Time
}

// New creates a compactor over the given store.
func New(store *storage.Storage) *Compactor {
	return &Compactor{store: store, now: time.Now}
}

// Compact summarizes every (date, item) group of listing events older than
// retentionDays into the daily rollup table, then deletes the raw events
// past the cutoff. Rollups are written before anything is deleted, so a
// failure mid-pass never loses unsummarized data; reruns replace rollup
// rows instead of duplicating them.
//
// Rollups deliberately skip the outlier filter: they are the permanent
// historical record and must summarize everything, including outliers.
func (c *Compactor) Compact(retentionDays int) error {
	cutoff := c.now().UTC().UnixMilli() - int64(retentionDays)*millisPerDay

	groups, err := c.store.ListingDayGroupsBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to collect compaction groups: %w", err)
	}

	rolled := 0
	for _, g := range groups {
		prices, err := c.store.ListingPricesForDay(g.Date, g.Item)
		if err != nil {
			return fmt.Errorf("failed to load prices for %s on %s: %w", g.Item.Label(), g.Date, err)
		}
		if len(prices) == 0 {
			continue
		}

		sort.Float64s(prices)
		q1Idx, q3Idx := stats.QuartileIndexes(len(prices))
		rollup := models.DailyRollup{
			Date:   g.Date,
			Item:   g.Item,
			Median: stats.Median(prices),
			P25:    prices[q1Idx],
			P75:    prices[q3Idx],
			Count:  len(prices),
		}
		if err := c.store.UpsertDailyRollup(rollup); err != nil {
			// Stop before the delete: raw rows must outlive any group we
			// failed to summarize.
			return fmt.Errorf("failed to write rollup for %s on %s: %w", g.Item.Label(), g.Date, err)
		}
		rolled++
	}

	deleted, err := c.store.DeleteEventsBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to evict old events: %w", err)
	}

	logger.Info("Compaction complete: %d rollups written, %d raw events older than %d days evicted",
		rolled, deleted, retentionDays)
	return nil
}
