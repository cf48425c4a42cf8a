// Package recurrence implements the background job that clones fixed-expense
// templates into concrete ledger entries on their recurrence day.
package recurrence

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"

	"github.com/mpereira/finledger/internal/logging"
	"github.com/mpereira/finledger/internal/server/models"
	"github.com/mpereira/finledger/internal/server/repositories/repomanager"
)

// clonePrefix marks materialized entries so statements show where they came
// from.
const clonePrefix = "[recurring] "

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_sweeps_total",
		Help: "Total number of materialization sweeps started",
	})
	materializedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_materialized_total",
		Help: "Total number of ledger entries cloned from fixed-expense templates",
	})
	skippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_skipped_total",
		Help: "Total number of clones skipped because the day was already materialized",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_failed_total",
		Help: "Total number of template clones that failed after retries",
	})
)

// Materializer runs a daily sweep over all active fixed-expense templates
// whose recurrence day matches the current UTC day and inserts one clone per
// template. The (source, day) unique key in storage makes a repeated sweep of
// the same day a no-op, so crashing mid-sweep and running again is safe.
type Materializer struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	logger       logging.Logger
	interval     time.Duration
	sweepTimeout time.Duration

	mu      sync.Mutex
	lastRun time.Time

	// now is a seam for tests.
	now func() time.Time
}

// NewMaterializer constructs a Materializer. interval controls how often the
// day-change check fires; sweepTimeout bounds one full sweep.
func NewMaterializer(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, interval, sweepTimeout time.Duration) *Materializer {
	return &Materializer{
		db:           db,
		repomanager:  m,
		logger:       logger.With("component", "recurrence"),
		interval:     interval,
		sweepTimeout: sweepTimeout,
		now:          time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping once per calendar day. The
// first tick after startup sweeps immediately so a server started after
// midnight still materializes the current day.
func (m *Materializer) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweepIfNewDay(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepIfNewDay(ctx)
		}
	}
}

func (m *Materializer) sweepIfNewDay(ctx context.Context) {
	now := m.now().UTC()

	m.mu.Lock()
	if sameDay(m.lastRun, now) {
		m.mu.Unlock()
		return
	}
	m.lastRun = now
	m.mu.Unlock()

	if err := m.RunOnce(ctx, now); err != nil {
		m.logger.Error(ctx, "materialization sweep failed", "error", err)
		// retry on the next tick
		m.mu.Lock()
		m.lastRun = time.Time{}
		m.mu.Unlock()
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// RunOnce performs one sweep for the calendar day of now. Per-template
// failures are retried a few times, then logged and skipped so one broken
// template cannot stall the rest of the sweep.
func (m *Materializer) RunOnce(ctx context.Context, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, m.sweepTimeout)
	defer cancel()

	sweepsTotal.Inc()
	day := now.UTC().Day()
	materializedOn := time.Date(now.UTC().Year(), now.UTC().Month(), day, 0, 0, 0, 0, time.UTC)

	repo := m.repomanager.Transactions(m.db)
	templates, err := repo.ListRecurringByDay(ctx, day)
	if err != nil {
		return err
	}

	m.logger.Info(ctx, "materialization sweep started", "day", day, "templates", len(templates))

	var created, skipped int
	for _, tpl := range templates {
		clone := cloneTemplate(tpl, materializedOn)

		var inserted bool
		backoff := retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var err error
			inserted, err = repo.CreateMaterialized(ctx, clone)
			if err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			failedTotal.Inc()
			m.logger.Error(ctx, "failed to materialize template", "template", tpl.ID, "error", err)
			continue
		}

		if inserted {
			created++
			materializedTotal.Inc()
		} else {
			skipped++
			skippedTotal.Inc()
		}
	}

	m.logger.Info(ctx, "materialization sweep finished", "day", day, "created", created, "skipped", skipped)
	return nil
}

// cloneTemplate builds the concrete entry produced from a fixed-expense
// template. The clone carries no recurrence day of its own, so it is never
// picked up by a later sweep.
func cloneTemplate(tpl *models.Transaction, materializedOn time.Time) *models.Transaction {
	sourceID := tpl.ID
	on := materializedOn
	return &models.Transaction{
		Amount:         tpl.Amount,
		Description:    clonePrefix + tpl.Description,
		Type:           tpl.Type,
		OwnerID:        tpl.OwnerID,
		Active:         true,
		SourceID:       &sourceID,
		MaterializedOn: &on,
	}
}
