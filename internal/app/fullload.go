package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/repository"
	"github.com/campuspulse/engage/internal/domain/model"
	"github.com/campuspulse/engage/internal/domain/scoring"
	"github.com/campuspulse/engage/internal/domain/term"
	"github.com/campuspulse/engage/pkg/logger"
	"github.com/campuspulse/engage/pkg/metrics"
)

// LoadAll populates the dataset with real historical data for the current
// and previous terms. It is the slow path, run off the request path after
// Bootstrap. Per-course and per-term failures are collected and logged but
// never abort the siblings; the next scheduled refresh is the recovery
// path for anything missed. The loaded flag flips to true at the end even
// on a partial load.
func (s *Service) LoadAll(ctx context.Context) error {
	start := time.Now()
	terms := term.Current(s.now()).Previous(s.termsToKeep - 1)
	s.logger.Info(ctx, "full load starting", logger.Int("terms", len(terms)))

	dataset, errs := s.buildDataset(ctx, terms)
	for _, t := range terms {
		// Publish term by term: each term appears complete or not at all.
		s.store.PublishTerm(ctx, t.String(), dataset[t.String()])
		s.cache.InvalidateTerm(t.String())
	}

	s.setLoaded(true)
	s.logger.Info(ctx, "full load complete",
		logger.Int("errors", len(errs)),
		logger.Duration("took", time.Since(start)),
	)
	return errors.Join(errs...)
}

// buildDataset fetches and scores every (term, course) pair plus the
// overall bucket per term. Failed pairs keep their empty bucket and
// contribute an entry to the returned error list.
func (s *Service) buildDataset(ctx context.Context, terms []term.Term) (map[string]repository.TermData, []error) {
	s.mu.RLock()
	categories := s.categories.All()
	s.mu.RUnlock()

	dataset := make(map[string]repository.TermData, len(terms))
	var errs []error

	for _, t := range terms {
		data := make(repository.TermData, len(categories)+1)
		startDate, endDate := t.DateRange()

		for _, c := range categories {
			key := c.Key()
			bucket, err := s.loadCourseBucket(ctx, c, startDate, endDate)
			if err != nil {
				metrics.RecordCourseLoadError()
				errs = append(errs, fmt.Errorf("term %s course %s: %w", t, key, err))
				s.logger.Error(ctx, "course load failed",
					logger.String("term", t.String()),
					logger.String("course", key),
					logger.Error(err),
				)
				data[key] = s.emptyCourseBucket()
				continue
			}
			data[key] = bucket
		}

		overall, err := s.loadOverallBucket(ctx, startDate, endDate)
		if err != nil {
			metrics.RecordCourseLoadError()
			errs = append(errs, fmt.Errorf("term %s overall: %w", t, err))
			s.logger.Error(ctx, "overall load failed",
				logger.String("term", t.String()),
				logger.Error(err),
			)
			overall = s.emptyOverallBucket()
		}
		data[model.OverallKey] = overall

		dataset[t.String()] = data
	}
	return dataset, errs
}

// loadCourseBucket fetches one course's events for a date range and runs
// the scoring pipeline.
func (s *Service) loadCourseBucket(ctx context.Context, c model.Category, startDate, endDate string) (repository.Bucket, error) {
	params := map[string]string{
		"category_id": fmt.Sprintf("%d", c.ID),
		"start_date":  startDate,
		"end_date":    endDate,
	}
	table, err := s.runner.RunReport(ctx, discourse.QueryCourseActions, params)
	if err != nil {
		return repository.Bucket{}, err
	}
	events := eventsFromTable(ctx, s.logger, table)
	return s.computeCourseBucket(events), nil
}

// loadOverallBucket fetches the organization-wide engagement feed for a
// date range and runs the scoring pipeline keyed by user id.
func (s *Service) loadOverallBucket(ctx context.Context, startDate, endDate string) (repository.Bucket, error) {
	params := map[string]string{
		"start_date": startDate,
		"end_date":   endDate,
	}
	if s.orgDomain != "" {
		params["domain"] = s.orgDomain
	}
	table, err := s.runner.RunReport(ctx, discourse.QueryOverallEngagement, params)
	if err != nil {
		return repository.Bucket{}, err
	}
	raw := scoring.OverallMetrics(rowsAsMaps(table), s.overallScorer.Weights())
	return s.computeOverallBucket(raw), nil
}

// computeCourseBucket derives all four bucket fields from an event log.
func (s *Service) computeCourseBucket(events []model.Event) repository.Bucket {
	raw := scoring.CourseMetrics(events)
	return repository.Bucket{
		Events:        events,
		RawMetrics:    raw,
		Unnormalized:  s.courseScorer.Unnormalized(raw),
		LogNormalized: s.courseScorer.LogNormalized(raw),
	}
}

// computeOverallBucket derives the overall bucket fields from a raw
// metric table.
func (s *Service) computeOverallBucket(raw scoring.MetricTable) repository.Bucket {
	return repository.Bucket{
		Events:        []model.Event{},
		RawMetrics:    raw,
		Unnormalized:  s.overallScorer.Unnormalized(raw),
		LogNormalized: s.overallScorer.LogNormalized(raw),
	}
}

// eventsFromTable parses report rows into events, dropping rows that
// cannot be parsed.
func eventsFromTable(ctx context.Context, log logger.Logger, table discourse.Table) []model.Event {
	events := make([]model.Event, 0, len(table.Rows))
	for _, row := range table.Rows {
		e, err := model.EventFromRow(row)
		if err != nil {
			log.Warn(ctx, "dropping unparseable event row", logger.Error(err))
			continue
		}
		events = append(events, e)
	}
	return events
}

// rowsAsMaps converts a fetched table to plain maps for the scoring layer.
func rowsAsMaps(table discourse.Table) []map[string]any {
	rows := make([]map[string]any, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = row
	}
	return rows
}
