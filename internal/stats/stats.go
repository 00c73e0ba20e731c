// Package stats computes outlier-filtered price distribution summaries.
//
// The two-pass procedure (positional quartiles, 1.5*IQR filter, then
// summary over the surviving set) is load-bearing: the signal detector and
// the retention compactor both depend on these exact formulas, so changing
// them would break continuity with historical rollups.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

// MinSamples is the smallest sample count that carries enough signal to
// summarize. Below it ComputeItemStats reports absence.
const MinSamples = 3

// Engine reads price samples from the store and summarizes them per item.
type Engine struct {
	store     *storage.Storage
	sampleCap int
}

// New creates a statistics engine. sampleCap bounds how many of the most
// recent samples participate, deliberately under-weighting older data.
func New(store *storage.Storage, sampleCap int) *Engine {
	return &Engine{store: store, sampleCap: sampleCap}
}

// ComputeItemStats summarizes the item's recent listing prices. It returns
// (nil, nil) when fewer than MinSamples non-null prices exist.
func (e *Engine) ComputeItemStats(item models.ItemKey) (*models.ItemStats, error) {
	prices, err := e.store.PricesForItem(item, 0, e.sampleCap)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for %s: %w", item.Label(), err)
	}
	s := Summarize(prices)
	if s != nil {
		s.Item = item
	}
	return s, nil
}

// Summarize runs the filter-then-summarize procedure over a price sample
// set. Returns nil when the set has fewer than MinSamples values.
func Summarize(prices []float64) *models.ItemStats {
	n := len(prices)
	if n < MinSamples {
		return nil
	}

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	q1Idx, q3Idx := QuartileIndexes(n)
	q1, q3 := sorted[q1Idx], sorted[q3Idx]
	iqr := q3 - q1

	filtered := sorted
	if iqr > 0 {
		lower := math.Max(0, q1-1.5*iqr)
		upper := q3 + 1.5*iqr
		kept := make([]float64, 0, n)
		for _, p := range sorted {
			if p >= lower && p <= upper {
				kept = append(kept, p)
			}
		}
		// An empty filtered set means the fences were useless; fall back.
		if len(kept) > 0 {
			filtered = kept
		}
	}

	mean := meanOf(filtered)
	stdev := populationStdDev(filtered, mean)
	volatility := 0.0
	if mean > 0 {
		volatility = stdev / mean * 100
	}

	return &models.ItemStats{
		SampleSize:   n,
		FilteredSize: len(filtered),
		Median:       Median(filtered),
		Mean:         mean,
		Min:          filtered[0],
		Max:          filtered[len(filtered)-1],
		StdDev:       stdev,
		Volatility:   volatility,
	}
}

// QuartileIndexes returns the positional quartile indices floor(n/4) and
// floor(3n/4). This simple approximation is kept over an interpolated
// percentile for reproducibility with historical rollups.
func QuartileIndexes(n int) (q1, q3 int) {
	return n / 4, (3 * n) / 4
}

// Median returns the median of an ascending-sorted slice: the middle value
// for odd lengths, the mean of the two middle values for even lengths.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1, so a single-element set has a
// standard deviation of 0.
func populationStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}
