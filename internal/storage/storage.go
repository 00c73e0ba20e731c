// Package storage provides SQLite-backed persistence for the append-only
// event log and the daily rollup table.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
// Events are append-only: nothing mutates a row once written, and only
// the compactor deletes rows past the retention cutoff.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/donutsmp/ahscanner.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "donutsmp", "ahscanner.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			type        TEXT NOT NULL,
			ts          INTEGER NOT NULL,
			item_id     TEXT,
			item_name   TEXT,
			price       REAL,
			seller_name TEXT,
			seller_uuid TEXT,
			count       INTEGER,
			time_left   INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS rollups_daily (
			date      TEXT,
			item_id   TEXT,
			item_name TEXT,
			median    REAL,
			p25       REAL,
			p75       REAL,
			count     INTEGER,
			PRIMARY KEY (date, item_id, item_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_item ON events(item_id, item_name)`,
		`CREATE INDEX IF NOT EXISTS idx_rollups_item ON rollups_daily(item_id, item_name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AppendListingBatch inserts one fetched page of listings as events. The
// whole batch commits in a single transaction stamped with the same
// observedAt timestamp; a failure mid-batch leaves nothing visible.
// Returns the number of rows inserted.
func (s *Storage) AppendListingBatch(entries []models.ListingEntry, observedAt time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO events (type, ts, item_id, item_name, price, seller_name, seller_uuid, count, time_left)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := observedAt.UnixMilli()
	inserted := 0
	for _, e := range entries {
		_, err := stmt.Exec(
			string(models.EventListing), ts,
			nullStr(e.Item.ID), nullStr(e.Item.Name),
			nullF64(e.Price), nullStr(e.SellerName), nullStr(e.SellerUUID),
			nullI64(e.Count), nullI64(e.TimeLeft),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert listing event: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit listing batch: %w", err)
	}
	return inserted, nil
}

// AppendTransactionBatch inserts one fetched page of completed sales as
// events, all-or-nothing, stamped with the same observedAt timestamp.
func (s *Storage) AppendTransactionBatch(entries []models.TransactionEntry, observedAt time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO events (type, ts, item_id, item_name, price, seller_name, seller_uuid, count, time_left)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := observedAt.UnixMilli()
	inserted := 0
	for _, e := range entries {
		_, err := stmt.Exec(
			string(models.EventTransaction), ts,
			nullStr(e.Item.ID), nullStr(e.Item.Name),
			nullF64(e.Price), nullStr(e.SellerName), nullStr(e.SellerUUID),
			nil, nil,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction event: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction batch: %w", err)
	}
	return inserted, nil
}

// PricesForItem returns up to limit non-null listing prices for the given
// item identity, newest first. since is a unix-millis lower bound; pass 0
// for no bound. Item matching uses SQL IS semantics so absent fields match
// absent fields.
func (s *Storage) PricesForItem(item models.ItemKey, since int64, limit int) ([]float64, error) {
	query := `
		SELECT price FROM events
		WHERE type = 'listing' AND item_id IS ? AND item_name IS ? AND price IS NOT NULL`
	args := []any{nullStr(item.ID), nullStr(item.Name)}
	if since > 0 {
		query += ` AND ts >= ?`
		args = append(args, since)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// DistinctItems returns the distinct item identities observed with the
// given event type ("" for any type), optionally restricted to identities
// with at least minCount events.
func (s *Storage) DistinctItems(eventType models.EventType, minCount int) ([]models.ItemKey, error) {
	query := `SELECT item_id, item_name FROM events`
	var args []any
	if eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, string(eventType))
	}
	query += ` GROUP BY item_id, item_name`
	if minCount > 0 {
		query += ` HAVING COUNT(*) >= ?`
		args = append(args, minCount)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct items: %w", err)
	}
	defer rows.Close()

	var items []models.ItemKey
	for rows.Next() {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan item identity: %w", err)
		}
		items = append(items, models.ItemKey{ID: strPtr(id), Name: strPtr(name)})
	}
	return items, rows.Err()
}

// ListingsBelow returns stored listings for the item priced strictly below
// threshold, cheapest first.
func (s *Storage) ListingsBelow(item models.ItemKey, threshold float64) ([]models.LiveListing, error) {
	rows, err := s.db.Query(`
		SELECT ts, item_id, item_name, count, price, seller_name, time_left
		FROM events
		WHERE type = 'listing' AND item_id IS ? AND item_name IS ? AND price IS NOT NULL AND price < ?
		ORDER BY price ASC`,
		nullStr(item.ID), nullStr(item.Name), threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query underpriced listings: %w", err)
	}
	defer rows.Close()
	return scanLiveListings(rows)
}

// RecentListings returns listings observed after since (unix millis),
// newest first, capped at limit. Used by the reporting surface.
func (s *Storage) RecentListings(since int64, limit int) ([]models.LiveListing, error) {
	rows, err := s.db.Query(`
		SELECT ts, item_id, item_name, count, price, seller_name, time_left
		FROM events
		WHERE type = 'listing' AND ts > ? AND price IS NOT NULL
		ORDER BY ts DESC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent listings: %w", err)
	}
	defer rows.Close()
	return scanLiveListings(rows)
}

func scanLiveListings(rows *sql.Rows) ([]models.LiveListing, error) {
	var listings []models.LiveListing
	for rows.Next() {
		var (
			l        models.LiveListing
			id, name sql.NullString
			count    sql.NullInt64
			seller   sql.NullString
			timeLeft sql.NullInt64
		)
		if err := rows.Scan(&l.TS, &id, &name, &count, &l.Price, &seller, &timeLeft); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		l.Item = models.ItemKey{ID: strPtr(id), Name: strPtr(name)}
		l.Count = i64Ptr(count)
		l.SellerName = strPtr(seller)
		l.TimeLeft = i64Ptr(timeLeft)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Totals returns the global counters for poll summaries and /api/stats.
func (s *Storage) Totals() (models.StoreTotals, error) {
	var t models.StoreTotals
	queries := []struct {
		dst   *int64
		query string
	}{
		{&t.TotalEvents, `SELECT COUNT(*) FROM events`},
		{&t.TotalListings, `SELECT COUNT(*) FROM events WHERE type = 'listing'`},
		{&t.TotalTransactions, `SELECT COUNT(*) FROM events WHERE type = 'transaction'`},
		{&t.UniqueItems, `SELECT COUNT(DISTINCT item_id) FROM events`},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dst); err != nil {
			return t, fmt.Errorf("failed to query totals: %w", err)
		}
	}
	return t, nil
}

// DayItem is one (date, item identity) group of listing events pending
// compaction.
type DayItem struct {
	Date string
	Item models.ItemKey
}

// ListingDayGroupsBefore returns the (date, item) groups among listing
// events observed before cutoff (unix millis). Dates are UTC YYYY-MM-DD.
func (s *Storage) ListingDayGroupsBefore(cutoff int64) ([]DayItem, error) {
	rows, err := s.db.Query(`
		SELECT date(ts / 1000, 'unixepoch') AS day, item_id, item_name
		FROM events
		WHERE ts < ? AND type = 'listing'
		GROUP BY day, item_id, item_name`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query compaction groups: %w", err)
	}
	defer rows.Close()

	var groups []DayItem
	for rows.Next() {
		var g DayItem
		var id, name sql.NullString
		if err := rows.Scan(&g.Date, &id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan compaction group: %w", err)
		}
		g.Item = models.ItemKey{ID: strPtr(id), Name: strPtr(name)}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListingPricesForDay returns all non-null listing prices for the item on
// the given UTC date.
func (s *Storage) ListingPricesForDay(date string, item models.ItemKey) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT price FROM events
		WHERE date(ts / 1000, 'unixepoch') = ? AND item_id IS ? AND item_name IS ?
		  AND price IS NOT NULL AND type = 'listing'`,
		date, nullStr(item.ID), nullStr(item.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to query day prices: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan day price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// UpsertDailyRollup writes one rollup row, replacing any existing row for
// the same (date, item_id, item_name). Reruns are safe.
func (s *Storage) UpsertDailyRollup(r models.DailyRollup) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO rollups_daily (date, item_id, item_name, median, p25, p75, count)
		VALUES (?,?,?,?,?,?,?)`,
		r.Date, nullStr(r.Item.ID), nullStr(r.Item.Name), r.Median, r.P25, r.P75, r.Count)
	if err != nil {
		return fmt.Errorf("failed to upsert rollup: %w", err)
	}
	return nil
}

// DeleteEventsBefore evicts all events observed before cutoff. Callers
// must have written the covering rollups first.
func (s *Storage) DeleteEventsBefore(cutoff int64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM events WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RollupTrend returns the daily rollups for an item id, oldest first.
// A nil itemID matches rows whose item_id is NULL.
func (s *Storage) RollupTrend(itemID *string) ([]models.DailyRollup, error) {
	rows, err := s.db.Query(`
		SELECT date, item_id, item_name, median, p25, p75, count
		FROM rollups_daily
		WHERE item_id IS ?
		ORDER BY date ASC`, nullStr(itemID))
	if err != nil {
		return nil, fmt.Errorf("failed to query rollup trend: %w", err)
	}
	defer rows.Close()

	var rollups []models.DailyRollup
	for rows.Next() {
		var r models.DailyRollup
		var id, name sql.NullString
		if err := rows.Scan(&r.Date, &id, &name, &r.Median, &r.P25, &r.P75, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan rollup: %w", err)
		}
		r.Item = models.ItemKey{ID: strPtr(id), Name: strPtr(name)}
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullF64(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullI64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func i64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
