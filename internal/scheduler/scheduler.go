// Package scheduler drives the perpetual scan loop: backfill on startup,
// then measured poll cycles with retention compaction on its own interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/compactor"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/donutsmp"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/logger"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/signals"
	"github.com/ColinPogu/donutsmp-ah-scanner/internal/storage"
)

// transactionRetryDelay is the fixed pause between attempts on the
// transaction sweep; sale history is less urgent than live listings.
const transactionRetryDelay = 2 * time.Second

// quickBackfillPages bounds the quick-backfill listings sweep.
const quickBackfillPages = 10

// MarketAPI is the upstream surface the scheduler polls.
type MarketAPI interface {
	FetchListings(ctx context.Context, page int, search, sort string) ([]models.ListingEntry, error)
	FetchTransactions(ctx context.Context, page int) ([]models.TransactionEntry, error)
}

// Notifier pushes ranked recommendations out-of-band after a cycle.
type Notifier interface {
	SendRecommendations(recs []models.Recommendation) error
}

// Config holds the scheduler's loop behavior.
type Config struct {
	Pages              int
	PollInterval       time.Duration
	Search             string
	Sort               string
	FullBackfill       bool
	MaxEmptyPages      int
	UnauthorizedPause  time.Duration
	RetentionDays      int
	CompactionInterval time.Duration
	NotifyTopK         int
}

// Scheduler owns the scan loop. It is not safe for concurrent use; run a
// single Run goroutine per instance.
type Scheduler struct {
	client    MarketAPI
	store     *storage.Storage
	detector  *signals.Detector
	compactor *compactor.Compactor
	notifier  Notifier
	cfg       Config
	retry     RetryPolicy

	pollCount      int
	lastCompaction time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler. notifier may be nil when notifications are
// disabled.
func New(client MarketAPI, store *storage.Storage, detector *signals.Detector, comp *compactor.Compactor, notifier Notifier, cfg Config, retry RetryPolicy) *Scheduler {
	return &Scheduler{
		client:    client,
		store:     store,
		detector:  detector,
		compactor: comp,
		notifier:  notifier,
		cfg:       cfg,
		retry:     retry,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetchListingsWithRetry fetches one listings page, retrying transient
// failures with linear backoff. Unauthorized, fatal, and context errors
// are returned to the caller unretried.
func (s *Scheduler) fetchListingsWithRetry(ctx context.Context, page int) ([]models.ListingEntry, error) {
	for retry := 0; ; retry++ {
		entries, err := s.client.FetchListings(ctx, page, s.cfg.Search, s.cfg.Sort)
		if err == nil {
			return entries, nil
		}
		if errors.Is(err, donutsmp.ErrUnauthorized) || ctx.Err() != nil {
			return nil, err
		}
		if !donutsmp.IsRetryable(err) {
			return nil, err
		}
		if retry >= s.retry.MaxRetries {
			return nil, err
		}
		delay := s.retry.Backoff(retry + 1)
		logger.Warn("Listings page %d failed (retry %d/%d, waiting %v): %v",
			page, retry+1, s.retry.MaxRetries, delay, err)
		if serr := s.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
}

// Backfill seeds the store on startup. Full mode walks every listings page
// until the market is exhausted; quick mode grabs the first few pages so
// statistics have something to chew on immediately.
func (s *Scheduler) Backfill(ctx context.Context) error {
	if s.cfg.FullBackfill {
		if err := s.fullBackfill(ctx); err != nil {
			return err
		}
	} else {
		if err := s.quickBackfill(ctx); err != nil {
			return err
		}
	}
	return s.sweepTransactions(ctx)
}

// fullBackfill walks pages from 1 until MaxEmptyPages consecutive pages
// come back empty. A page whose retries are exhausted counts as empty so a
// broken upstream cannot keep the walk alive forever; a page with data
// resets the streak.
func (s *Scheduler) fullBackfill(ctx context.Context) error {
	logger.Info("Starting full backfill (stop after %d consecutive empty pages)", s.cfg.MaxEmptyPages)
	stored := 0
	emptyStreak := 0
	for page := 1; ; page++ {
		entries, err := s.fetchListingsWithRetry(ctx, page)
		if err != nil {
			if errors.Is(err, donutsmp.ErrUnauthorized) || ctx.Err() != nil {
				return err
			}
			logger.Warn("Backfill page %d abandoned: %v", page, err)
			emptyStreak++
		} else if len(entries) == 0 {
			emptyStreak++
		} else {
			emptyStreak = 0
			n, err := s.store.AppendListingBatch(entries, s.now())
			if err != nil {
				return err
			}
			stored += n
		}
		if emptyStreak >= s.cfg.MaxEmptyPages {
			logger.Info("Full backfill complete: %d pages walked, %d listings stored", page, stored)
			return nil
		}
	}
}

// quickBackfill grabs up to ten pages, stopping at the first empty one.
// Failed pages are skipped rather than ending the sweep.
func (s *Scheduler) quickBackfill(ctx context.Context) error {
	logger.Info("Starting quick backfill")
	stored := 0
	for page := 1; page <= quickBackfillPages; page++ {
		entries, err := s.fetchListingsWithRetry(ctx, page)
		if err != nil {
			if errors.Is(err, donutsmp.ErrUnauthorized) || ctx.Err() != nil {
				return err
			}
			logger.Warn("Backfill page %d abandoned: %v", page, err)
			continue
		}
		if len(entries) == 0 {
			break
		}
		n, err := s.store.AppendListingBatch(entries, s.now())
		if err != nil {
			return err
		}
		stored += n
	}
	logger.Info("Quick backfill complete: %d listings stored", stored)
	return nil
}

// sweepTransactions collects the bounded sale-history window, stopping at
// the first empty page. Transient failures get one flat-delay retry cycle.
func (s *Scheduler) sweepTransactions(ctx context.Context) error {
	stored := 0
	for page := 1; page <= donutsmp.MaxTransactionPages; page++ {
		entries, err := s.fetchTransactionsWithRetry(ctx, page)
		if err != nil {
			if errors.Is(err, donutsmp.ErrUnauthorized) || ctx.Err() != nil {
				return err
			}
			logger.Warn("Transaction page %d abandoned: %v", page, err)
			continue
		}
		if len(entries) == 0 {
			break
		}
		n, err := s.store.AppendTransactionBatch(entries, s.now())
		if err != nil {
			return err
		}
		stored += n
	}
	if stored > 0 {
		logger.Debug("Transaction sweep stored %d sales", stored)
	}
	return nil
}

func (s *Scheduler) fetchTransactionsWithRetry(ctx context.Context, page int) ([]models.TransactionEntry, error) {
	for retry := 0; ; retry++ {
		entries, err := s.client.FetchTransactions(ctx, page)
		if err == nil {
			return entries, nil
		}
		if errors.Is(err, donutsmp.ErrUnauthorized) || ctx.Err() != nil {
			return nil, err
		}
		if !donutsmp.IsRetryable(err) || retry >= s.retry.MaxRetries {
			return nil, err
		}
		if serr := s.sleep(ctx, transactionRetryDelay); serr != nil {
			return nil, serr
		}
	}
}

// pollOnce runs one scan cycle: fetch the configured listing pages, sweep
// transactions, push recommendations, and compact if due. Page failures
// are isolated; only unauthorized and context errors abort the cycle.
func (s *Scheduler) pollOnce(ctx context.Context) error {
	cycleID := uuid.New().String()
	start := s.now()
	logger.Debug("Poll cycle %s starting", cycleID)

	stored := 0
	for page := 1; page <= s.cfg.Pages; page++ {
		entries, err := s.fetchListingsWithRetry(ctx, page)
		if err != nil {
			if errors.Is(err, donutsmp.ErrUnauthorized) || ctx.Err() != nil {
				return err
			}
			logger.Warn("Poll cycle %s: page %d skipped: %v", cycleID, page, err)
			continue
		}
		if len(entries) == 0 {
			break
		}
		n, err := s.store.AppendListingBatch(entries, s.now())
		if err != nil {
			return err
		}
		stored += n
	}

	if err := s.sweepTransactions(ctx); err != nil {
		return err
	}

	s.notifyRecommendations()
	s.maybeCompact()

	s.pollCount++
	totals, err := s.store.Totals()
	if err != nil {
		logger.Warn("Poll cycle %s: failed to read store totals: %v", cycleID, err)
	} else {
		logger.Info("Poll cycle %s complete in %v: %d listings stored (store: %d events, %d unique items)",
			cycleID, s.now().Sub(start), stored, totals.TotalEvents, totals.UniqueItems)
	}
	return nil
}

func (s *Scheduler) notifyRecommendations() {
	if s.notifier == nil {
		return
	}
	recs, err := s.detector.Recommendations()
	if err != nil {
		logger.Error("Failed to compute recommendations: %v", err)
		return
	}
	if len(recs) == 0 {
		return
	}
	if s.cfg.NotifyTopK > 0 && len(recs) > s.cfg.NotifyTopK {
		recs = recs[:s.cfg.NotifyTopK]
	}
	if err := s.notifier.SendRecommendations(recs); err != nil {
		logger.Error("Failed to send recommendation notification: %v", err)
		return
	}
	logger.Info("Sent %d recommendations", len(recs))
}

// maybeCompact runs the retention pass when the compaction interval has
// elapsed. lastCompaction starts at the zero time, so a fresh process
// compacts on its first cycle and a pre-existing database is trimmed
// immediately. On failure the clock is not advanced, so the next cycle
// tries again.
func (s *Scheduler) maybeCompact() {
	if s.now().Sub(s.lastCompaction) < s.cfg.CompactionInterval {
		return
	}
	if err := s.compactor.Compact(s.cfg.RetentionDays); err != nil {
		logger.Error("Compaction failed: %v", err)
		return
	}
	s.lastCompaction = s.now()
}

// Run backfills once, then polls forever, pacing cycles so that fetch time
// counts against the interval. An unauthorized upstream pauses the loop
// instead of killing it, so a rotated key recovers without a restart.
// Returns when ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Backfill(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("Backfill failed: %v", err)
	}

	logger.Info("Starting poll loop (interval: %v, pages: %d)", s.cfg.PollInterval, s.cfg.Pages)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		start := s.now()
		if err := s.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, donutsmp.ErrUnauthorized) {
				logger.Error("Upstream rejected credentials, pausing %v before retrying", s.cfg.UnauthorizedPause)
				if serr := s.sleep(ctx, s.cfg.UnauthorizedPause); serr != nil {
					return serr
				}
				continue
			}
			logger.Error("Poll cycle failed: %v", err)
		}
		wait := s.cfg.PollInterval - s.now().Sub(start)
		if wait < 0 {
			wait = 0
		}
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
