package models

// EventType distinguishes the two kinds of observations in the event log.
type EventType string

const (
	EventListing     EventType = "listing"
	EventTransaction EventType = "transaction"
)

// ListingEntry is one auction listing as returned by the upstream API,
// already normalized (display name falls back to item id). Numeric fields
// stay pointers so missing values persist as NULL instead of zero.
type ListingEntry struct {
	Item       ItemKey
	Price      *float64
	Count      *int64
	SellerName *string
	SellerUUID *string
	TimeLeft   *int64
}

// TransactionEntry is one completed sale as returned by the upstream API.
type TransactionEntry struct {
	Item       ItemKey
	Price      *float64
	SellerName *string
	SellerUUID *string
	SoldAt     *int64 // unix millis reported by upstream
}

// Event is one immutable row of the append-only event log. Events are never
// mutated; only the compactor deletes them, and only after the covering
// daily rollup exists.
type Event struct {
	ID         int64
	Type       EventType
	TS         int64 // observation time, unix millis, same for a whole batch
	Item       ItemKey
	Price      *float64
	SellerName *string
	SellerUUID *string
	Count      *int64
	TimeLeft   *int64
}

// LiveListing is a stored listing observation in the shape the signal
// detector and the reporting surface consume.
type LiveListing struct {
	TS         int64   `json:"ts"`
	Item       ItemKey `json:"item"`
	Count      *int64  `json:"count"`
	Price      float64 `json:"price"`
	SellerName *string `json:"seller_name"`
	TimeLeft   *int64  `json:"time_left"`
}

// DailyRollup is the permanent per-day per-item summary that replaces raw
// listing events after retention expiry. Keyed by (date, item_id, item_name);
// recomputing a date replaces the row.
type DailyRollup struct {
	Date   string  `json:"date"` // YYYY-MM-DD, UTC
	Item   ItemKey `json:"item"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	Count  int     `json:"count"`
}

// StoreTotals are the global counters shown in poll summaries and by the
// reporting surface.
type StoreTotals struct {
	TotalEvents       int64 `json:"total_events"`
	TotalListings     int64 `json:"total_listings"`
	TotalTransactions int64 `json:"total_transactions"`
	UniqueItems       int64 `json:"unique_items"`
}
