package compactor

import (
	"testing"
	"time"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

func newTestCompactor(t *testing.T, now time.Time) (*Compactor, *storage.Storage) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := New(store)
	c.now = func() time.Time { return now }
	return c, store
}

func f64Ptr(v float64) *float64 { return &v }

func itemKey(id, name string) models.ItemKey {
	return models.ItemKey{ID: &id, Name: &name}
}

func listingAt(t *testing.T, store *storage.Storage, item models.ItemKey, observedAt time.Time, prices ...float64) {
	t.Helper()
	entries := make([]models.ListingEntry, 0, len(prices))
	for _, p := range prices {
		entries = append(entries, models.ListingEntry{Item: item, Price: f64Ptr(p)})
	}
	if _, err := store.AppendListingBatch(entries, observedAt); err != nil {
		t.Fatalf("failed to seed listings: %v", err)
	}
}

func TestCompactRollsUpAndEvicts(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	c, store := newTestCompactor(t, now)

	stone := itemKey("stone", "Stone")
	old := now.AddDate(0, 0, -10)
	listingAt(t, store, stone, old, 10, 20, 30, 40)
	listingAt(t, store, stone, now.AddDate(0, 0, -1), 99)

	if err := c.Compact(7); err != nil {
		t.Fatalf("Compact returned error: %v", err)
	}

	id := "stone"
	rollups, err := store.RollupTrend(&id)
	if err != nil {
		t.Fatalf("RollupTrend returned error: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected 1 rollup row, got %d", len(rollups))
	}
	r := rollups[0]
	if r.Date != old.UTC().Format("2006-01-02") {
		t.Errorf("rollup date = %q, want %q", r.Date, old.UTC().Format("2006-01-02"))
	}
	if r.Median != 25 || r.P25 != 20 || r.P75 != 40 || r.Count != 4 {
		t.Errorf("rollup = median %v p25 %v p75 %v count %d, want 25/20/40/4",
			r.Median, r.P25, r.P75, r.Count)
	}

	totals, err := store.Totals()
	if err != nil {
		t.Fatalf("Totals returned error: %v", err)
	}
	if totals.TotalEvents != 1 {
		t.Errorf("expected only the recent event to survive, got %d events", totals.TotalEvents)
	}
}

func TestCompactKeepsOutliersInRollups(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	c, store := newTestCompactor(t, now)

	dirt := itemKey("dirt", "Dirt")
	listingAt(t, store, dirt, now.AddDate(0, 0, -9), 10, 20, 30, 1000)

	if err := c.Compact(7); err != nil {
		t.Fatalf("Compact returned error: %v", err)
	}

	id := "dirt"
	rollups, err := store.RollupTrend(&id)
	if err != nil {
		t.Fatalf("RollupTrend returned error: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected 1 rollup row, got %d", len(rollups))
	}
	// The 1000 outlier stays in the historical record.
	if rollups[0].P75 != 1000 || rollups[0].Count != 4 {
		t.Errorf("rollup p75 %v count %d, want 1000/4", rollups[0].P75, rollups[0].Count)
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	c, store := newTestCompactor(t, now)

	stone := itemKey("stone", "Stone")
	listingAt(t, store, stone, now.AddDate(0, 0, -8), 5, 15)

	if err := c.Compact(7); err != nil {
		t.Fatalf("first Compact returned error: %v", err)
	}
	if err := c.Compact(7); err != nil {
		t.Fatalf("second Compact returned error: %v", err)
	}

	id := "stone"
	rollups, err := store.RollupTrend(&id)
	if err != nil {
		t.Fatalf("RollupTrend returned error: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("rerun duplicated rollup rows: got %d, want 1", len(rollups))
	}
	if rollups[0].Median != 10 || rollups[0].Count != 2 {
		t.Errorf("rollup median %v count %d, want 10/2", rollups[0].Median, rollups[0].Count)
	}
}

func TestCompactEvictsTransactionsWithoutRollups(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	c, store := newTestCompactor(t, now)

	sword := itemKey("sword", "Sword")
	entries := []models.TransactionEntry{{Item: sword, Price: f64Ptr(250)}}
	if _, err := store.AppendTransactionBatch(entries, now.AddDate(0, 0, -10)); err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}

	if err := c.Compact(7); err != nil {
		t.Fatalf("Compact returned error: %v", err)
	}

	totals, err := store.Totals()
	if err != nil {
		t.Fatalf("Totals returned error: %v", err)
	}
	if totals.TotalEvents != 0 {
		t.Errorf("expected old transaction to be evicted, got %d events", totals.TotalEvents)
	}

	id := "sword"
	rollups, err := store.RollupTrend(&id)
	if err != nil {
		t.Fatalf("RollupTrend returned error: %v", err)
	}
	if len(rollups) != 0 {
		t.Errorf("transactions must not produce rollups, got %d rows", len(rollups))
	}
}
