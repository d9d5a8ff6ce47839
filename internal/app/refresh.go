package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/domain/dedupe"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/scoring"
	"github.com/campuspulse/engage/internal/domain/term"
	"github.com/campuspulse/engage/pkg/logger"
	"github.com/campuspulse/engage/pkg/metrics"
)

// Refresh performs the daily incremental update: it evicts the oldest
// term, merges the delta window [lastRefresh, today] into every course's
// event log and recomputes scores. Per-category failures are contained to
// that category; a rate-limited fetch aborts the rest of the run. The
// last-refresh date only advances when the run completes, so an aborted
// run re-covers the same window on its next attempt.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()
	today := s.now()
	if term.IsBoundary(today) {
		// Boundary days belong to FullReset.
		s.logger.Info(ctx, "refresh skipped: trimester boundary", logger.String("date", today.Format(dateLayout)))
		return nil
	}

	current := term.Current(today)
	evicted := current.Previous(s.termsToKeep)[s.termsToKeep]
	s.store.Evict(ctx, evicted.String())
	s.cache.InvalidateTerm(evicted.String())

	// Safety net: if a boundary reset failed earlier the current term may
	// not exist yet. Publish a complete empty shell before merging into it.
	if !s.store.HasTerm(ctx, current.String()) {
		s.logger.Warn(ctx, "current term missing, initializing shell", logger.String("term", current.String()))
		s.store.PublishTerm(ctx, current.String(), s.emptyTermData())
	}

	since := s.lastRefreshDate()
	until := today.Format(dateLayout)
	s.logger.Info(ctx, "refresh starting",
		logger.String("term", current.String()),
		logger.String("since", since),
		logger.String("until", until),
	)

	var categoryErrs []error
	s.mu.RLock()
	categories := s.categories.All()
	s.mu.RUnlock()

	for _, c := range categories {
		if err := s.refreshCourse(ctx, current.String(), c, since, until); err != nil {
			if errors.Is(err, discourse.ErrRateLimited) {
				// Fatal for the whole run; the unrefreshed window is
				// retried tomorrow since lastRefresh has not advanced.
				metrics.RecordRefreshRun("rate_limited", time.Since(start).Seconds())
				return fmt.Errorf("refresh aborted at course %s: %w", c.Key(), err)
			}
			categoryErrs = append(categoryErrs, fmt.Errorf("course %s: %w", c.Key(), err))
			s.logger.Error(ctx, "course refresh failed",
				logger.String("course", c.Key()),
				logger.Error(err),
			)
		}
	}

	if err := s.refreshOverall(ctx, current.String(), since, until); err != nil {
		if errors.Is(err, discourse.ErrRateLimited) {
			metrics.RecordRefreshRun("rate_limited", time.Since(start).Seconds())
			return fmt.Errorf("refresh aborted at overall feed: %w", err)
		}
		categoryErrs = append(categoryErrs, fmt.Errorf("overall: %w", err))
		s.logger.Error(ctx, "overall refresh failed", logger.Error(err))
	}

	s.setLastRefresh(today)
	outcome := "success"
	if len(categoryErrs) > 0 {
		outcome = "partial"
	}
	metrics.RecordRefreshRun(outcome, time.Since(start).Seconds())
	s.logger.Info(ctx, "refresh complete",
		logger.String("term", current.String()),
		logger.Int("errors", len(categoryErrs)),
		logger.Duration("took", time.Since(start)),
	)
	return errors.Join(categoryErrs...)
}

// refreshCourse merges one course's delta window into its bucket. The
// merged event log is deduplicated on full-row equality and all four
// bucket fields are overwritten together.
func (s *Service) refreshCourse(ctx context.Context, currentTerm string, c model.Category, since, until string) error {
	params := map[string]string{
		"category_id": fmt.Sprintf("%d", c.ID),
		"start_date":  since,
		"end_date":    until,
	}
	table, err := s.runner.RunReport(ctx, discourse.QueryCourseActions, params)
	if err != nil {
		return err
	}
	if table.Empty() {
		return nil
	}

	existing, err := s.store.Bucket(ctx, currentTerm, c.Key())
	if err != nil {
		// A course discovered mid-term has no bucket until the next
		// reset rebuilds the catalogue.
		s.logger.Warn(ctx, "skipping course without bucket",
			logger.String("term", currentTerm),
			logger.String("course", c.Key()),
		)
		return nil
	}

	incoming := eventsFromTable(ctx, s.logger, table)
	merged := dedupe.Merge(existing.Events, incoming)
	if len(merged) == len(existing.Events) {
		return nil
	}
	if err := s.store.SetBucket(ctx, currentTerm, c.Key(), s.computeCourseBucket(merged)); err != nil {
		return err
	}
	s.cache.InvalidateBucket(currentTerm, c.Key())
	s.logger.Info(ctx, "course refreshed",
		logger.String("course", c.Key()),
		logger.Int("new_events", len(merged)-len(existing.Events)),
	)
	return nil
}

// refreshOverall merges the organization-wide delta feed. Unlike course
// events the feed is pre-aggregated, so deltas are group-summed by user id
// instead of deduplicated row-wise.
func (s *Service) refreshOverall(ctx context.Context, currentTerm, since, until string) error {
	params := map[string]string{
		"start_date": since,
		"end_date":   until,
	}
	if s.orgDomain != "" {
		params["domain"] = s.orgDomain
	}
	table, err := s.runner.RunReport(ctx, discourse.QueryOverallEngagement, params)
	if err != nil {
		return err
	}
	if table.Empty() {
		return nil
	}

	existing, err := s.store.Bucket(ctx, currentTerm, model.OverallKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			existing = s.emptyOverallBucket()
		} else {
			return err
		}
	}

	incoming := scoring.OverallMetrics(rowsAsMaps(table), s.overallScorer.Weights())
	combined := scoring.CombineSum(existing.RawMetrics, incoming)
	if err := s.store.SetBucket(ctx, currentTerm, model.OverallKey, s.computeOverallBucket(combined)); err != nil {
		return err
	}
	s.cache.InvalidateBucket(currentTerm, model.OverallKey)
	return nil
}
